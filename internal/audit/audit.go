package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operations recorded in the trail.
const (
	OpExportJob = "BATCH_EXPORT"
	OpExportRun = "BATCH_EXPORT_RUN"
	OpImport    = "BULK_IMPORT"
)

// Entry is one line in the audit trail.
type Entry struct {
	Time       time.Time `json:"time"`
	RunID      string    `json:"run_id,omitempty"`
	Operation  string    `json:"operation"`
	EntityID   string    `json:"entity_id,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Detail     string    `json:"detail,omitempty"`
}

// Trail appends entries to a JSONL file, one object per line. Safe for
// concurrent use by the export workers.
type Trail struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// Open opens the trail file in append mode, creating it and its parent
// directory when missing.
func Open(path string) (*Trail, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit trail: %w", err)
	}
	return &Trail{f: f, enc: json.NewEncoder(f)}, nil
}

// Record appends one entry, stamping Time when unset.
func (t *Trail) Record(e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enc.Encode(e); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (t *Trail) Close() error {
	if t == nil || t.f == nil {
		return nil
	}
	return t.f.Close()
}

// ReadAll loads every entry from a trail file, oldest first.
func ReadAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	dec := json.NewDecoder(f)
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode audit entry %d: %w", len(entries)+1, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// NewRunID returns a unique ID tying one run's entries together.
func NewRunID() string {
	return uuid.NewString()
}
