package gardener

import (
	"encoding/json"
	"log/slog"
	"os"
)

const maxRecords = 10

// CycleRecord captures what happened in a single caretaker cycle.
type CycleRecord struct {
	Tick        uint64  `json:"tick"`
	Action      string  `json:"action"`
	Drops       int     `json:"drops"`
	HungryShare float64 `json:"hungry_share"`
	FoodPerAnt  float64 `json:"food_per_ant"`
	CrisisLevel string  `json:"crisis_level"`
	Rationale   string  `json:"rationale,omitempty"`
}

// CycleMemory manages a ring of recent cycle records, optionally kept on
// disk between runs.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file at path. Returns empty memory if it is
// missing or unreadable. An empty path keeps memory in process only.
func LoadMemory(path string) *CycleMemory {
	mem := &CycleMemory{path: path}
	if path == "" {
		return mem
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mem
	}
	if err := json.Unmarshal(data, mem); err != nil {
		slog.Warn("gardener memory corrupted, starting fresh", "error", err)
		return &CycleMemory{path: path}
	}
	return mem
}

// Save writes the memory to disk.
func (m *CycleMemory) Save() {
	if m.path == "" {
		return
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal gardener memory", "error", err)
		return
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		slog.Error("failed to write gardener memory", "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Last returns the newest record.
func (m *CycleMemory) Last() (CycleRecord, bool) {
	if len(m.Records) == 0 {
		return CycleRecord{}, false
	}
	return m.Records[len(m.Records)-1], true
}
