// Package entropy draws world seeds from random.org, falling back to
// crypto/rand when no key is configured or the API is unavailable.
package entropy

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultEndpoint is the random.org JSON-RPC endpoint.
const DefaultEndpoint = "https://api.random.org/json-rpc/4/invoke"

// Seeds are assembled from two draws in [0, seedPart).
const seedPart = 1_000_000_000

// Client fetches seeds from random.org.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// WithEndpoint points the client at another JSON-RPC server.
func (c *Client) WithEndpoint(url string) *Client {
	if c != nil {
		c.endpoint = url
	}
	return c
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Seed returns a positive seed. It never fails: API errors are logged and
// crypto/rand is used instead.
func (c *Client) Seed(ctx context.Context) int64 {
	if c.Enabled() {
		seed, err := c.fetch(ctx)
		if err == nil {
			slog.Debug("seed drawn from random.org", "seed", seed)
			return seed
		}
		slog.Warn("random.org unavailable, using crypto/rand", "error", err)
	}
	return CryptoSeed()
}

func (c *Client) fetch(ctx context.Context) (int64, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]any{
			"apiKey": c.apiKey,
			"n":      2,
			"min":    0,
			"max":    seedPart - 1,
		},
		"id": 1,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch: status %s", resp.Status)
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}

	var result struct {
		Result struct {
			Random struct {
				Data []int64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}
	if result.Error != nil {
		return 0, fmt.Errorf("api: %s", result.Error.Message)
	}

	data := result.Result.Random.Data
	if len(data) != 2 {
		return 0, fmt.Errorf("api: got %d integers, want 2", len(data))
	}
	seed := data[0]*seedPart + data[1]
	if seed == 0 {
		// Zero means "pick one" to the generator.
		seed = 1
	}
	return seed, nil
}

// CryptoSeed returns a positive seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano() | 1
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		seed = 1
	}
	return seed
}
