// Command gardener runs the colony caretaker. It observes the colony,
// decides whether the ants need food, and drops it via the command API.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/mini-colony/internal/gardener"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("COLONYSIM_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("COLONYSIM_ADMIN_KEY")
	intervalSec := envIntOrDefault("GARDENER_INTERVAL", 60)
	maxDrops := envIntOrDefault("GARDENER_MAX_DROPS", gardener.DefaultMaxDrops)
	memoryPath := envOrDefault("GARDENER_MEMORY", "data/gardener_memory.json")

	if adminKey == "" {
		slog.Error("COLONYSIM_ADMIN_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalSec) * time.Second

	slog.Info("colony gardener starting",
		"api_url", apiURL,
		"interval", interval,
		"max_drops", maxDrops,
	)

	caretaker := &gardener.Caretaker{
		Observer: gardener.NewObserver(apiURL),
		Actor:    gardener.NewActor(apiURL, adminKey),
		Memory:   gardener.LoadMemory(memoryPath),
		MaxDrops: maxDrops,
	}

	// Wait for colonysim API to be ready before first cycle.
	slog.Info("waiting for colonysim API...")
	waitForAPI(apiURL)

	// Run first cycle immediately.
	runCycle(caretaker)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runCycle(caretaker)
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			fmt.Println("Gardener stopped.")
			return
		}
	}
}

func runCycle(c *gardener.Caretaker) {
	decision, err := c.RunCycle()
	if err != nil {
		slog.Error("gardener cycle failed", "error", err)
		return
	}
	slog.Info("gardener cycle complete", "action", decision.Action, "rationale", decision.Rationale)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the colonysim status endpoint with exponential backoff
// until it responds. Exits after 5 minutes if the API never becomes ready.
func waitForAPI(apiURL string) {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		resp, err := http.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("colonysim API is ready")
				return
			}
		}
		if time.Now().After(deadline) {
			slog.Error("colonysim API did not become ready within 5 minutes")
			os.Exit(1)
		}
		slog.Info("colonysim not ready, retrying...", "backoff", backoff)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
