package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/firstbites/firstbites/internal/allergen"
)

// MaxAge is the staleness bound for the persisted snapshot. Layers that serve
// the persisted copy without a live cache should not trust anything older.
const MaxAge = 24 * time.Hour

// envelope is the on-disk file shape.
type envelope struct {
	Allergens   []allergen.Record `json:"allergens"`
	LastUpdated time.Time         `json:"last_updated"`
}

// Store reads and writes the snapshot file at a fixed path. Exactly one
// writer (the exposure cache, during refresh) is assumed; Load is meant for
// startup only.
type Store struct {
	path string
}

// New creates a Store backed by the file at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Load returns the persisted snapshot and the time it was saved. A missing,
// empty or corrupt file is reported as ok == false, never as an error — warm
// data is an optimization, not a requirement.
func (s *Store) Load() (allergen.Snapshot, time.Time, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("store: could not read snapshot file", "path", s.path, "err", err)
		}
		return allergen.Snapshot{}, time.Time{}, false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Warn("store: snapshot file is corrupt — ignoring", "path", s.path, "err", err)
		return allergen.Snapshot{}, time.Time{}, false
	}
	if env.LastUpdated.IsZero() || env.Allergens == nil {
		slog.Warn("store: snapshot file is incomplete — ignoring", "path", s.path)
		return allergen.Snapshot{}, time.Time{}, false
	}

	snap := allergen.Snapshot{Records: env.Allergens, ComputedAt: env.LastUpdated}
	return snap, env.LastUpdated, true
}

// Save writes snap to disk, replacing any previous snapshot. The write goes
// through a temp file and rename so readers never see a partial file.
func (s *Store) Save(snap allergen.Snapshot) error {
	data, err := json.MarshalIndent(envelope{
		Allergens:   snap.Records,
		LastUpdated: snap.ComputedAt,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".allergens-*.json")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: replace snapshot file: %w", err)
	}
	return nil
}

// Fresh reports whether a snapshot saved at savedAt is still within MaxAge.
func Fresh(savedAt, now time.Time) bool {
	return now.Sub(savedAt) < MaxAge
}
