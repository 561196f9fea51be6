// Package gardener implements the colony caretaker: an operator process that
// watches the colony through the public API and drops food through the
// command endpoint when the colony is going hungry.
package gardener

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ColonySnapshot holds all data collected during an observation cycle.
type ColonySnapshot struct {
	Status ColonyStatus `json:"status"`
	Ants   []AntInfo    `json:"ants"`
}

// ColonyStatus mirrors GET /api/v1/status.
type ColonyStatus struct {
	Tick           uint64 `json:"tick"`
	Clock          string `json:"clock"`
	Playback       string `json:"playback"`
	TicksPerSecond int    `json:"ticks_per_second"`
	Stats          struct {
		Alive        int     `json:"alive"`
		Dead         int     `json:"dead"`
		AvgHunger    float64 `json:"avg_hunger"`
		CarryingFood int     `json:"carrying_food"`
		Food         int     `json:"food"`
	} `json:"stats"`
}

// Position mirrors a grid cell.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// AntInfo mirrors items from GET /api/v1/ants?alive=true.
type AntInfo struct {
	ID        uint64   `json:"id"`
	Name      string   `json:"name"`
	Role      string   `json:"role"`
	Position  Position `json:"position"`
	Ahead     Position `json:"ahead"`
	Hunger    float64  `json:"hunger"`
	HungerMax float64  `json:"hunger_max"`
	Tier      string   `json:"tier"`
	Carrying  string   `json:"carrying"`
}

// Observer fetches colony state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches the status and living ants.
func (o *Observer) Observe() (*ColonySnapshot, error) {
	snap := &ColonySnapshot{}

	if err := o.fetchJSON("/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON("/api/v1/ants?alive=true", &snap.Ants); err != nil {
		return nil, fmt.Errorf("fetch ants: %w", err)
	}

	return snap, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
