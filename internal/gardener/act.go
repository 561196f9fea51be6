package gardener

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrRateLimited is returned when the colony refuses more commands for now.
var ErrRateLimited = errors.New("gardener: command rate limited")

// errRejected marks a single command the colony refused.
type errRejected struct{ msg string }

func (e errRejected) Error() string { return e.msg }

// Command mirrors the body of POST /api/v1/command.
type Command struct {
	Kind string `json:"kind"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// Actor queues commands via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Act queues the commands in order and returns how many were accepted.
// Commands the colony rejects are logged and skipped; transport errors and
// rate limiting stop the batch.
func (a *Actor) Act(cmds []Command) (int, error) {
	accepted := 0
	for _, c := range cmds {
		err := a.send(c)
		var rejected errRejected
		switch {
		case err == nil:
			accepted++
		case errors.As(err, &rejected):
			slog.Warn("command rejected", "error", err)
		default:
			return accepted, err
		}
	}
	return accepted, nil
}

func (a *Actor) send(c Command) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, a.BaseURL+"/api/v1/command", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST command: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		return nil
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusBadRequest {
		return errRejected{fmt.Sprintf("command %s at (%d,%d): %s", c.Kind, c.X, c.Y, bytes.TrimSpace(respBody))}
	}
	return fmt.Errorf("command %s at (%d,%d) failed (%d): %s", c.Kind, c.X, c.Y, resp.StatusCode, bytes.TrimSpace(respBody))
}
