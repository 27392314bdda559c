package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileSource reads feeding entries from a local JSON file and watches it for
// writes. Intended for development and for households that export their feed
// log instead of connecting the hosted API.
//
// File shape:
//
//	{
//	  "entries": [
//	    {"timestamp": "2024-05-01T12:30:00Z", "foods": ["scrambled eggs", "toast"]}
//	  ]
//	}
type FileSource struct {
	path string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileSource creates a FileSource reading from path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// FetchEntries reads and parses the feed file. Entries with an unparseable
// timestamp are skipped; a missing or unreadable file is ErrUnavailable.
func (s *FileSource) FetchEntries(ctx context.Context) ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", ErrUnavailable, s.path, err)
	}

	var payload struct {
		Entries []struct {
			Timestamp string   `json:"timestamp"`
			Foods     []string `json:"foods"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: parse %q: %v", ErrUnavailable, s.path, err)
	}

	entries := make([]Entry, 0, len(payload.Entries))
	for _, raw := range payload.Entries {
		ts, err := time.Parse(time.RFC3339, raw.Timestamp)
		if err != nil {
			slog.Warn("feed: skipping entry with bad timestamp",
				"timestamp", raw.Timestamp, "err", err)
			continue
		}
		entries = append(entries, Entry{Timestamp: ts, Foods: raw.Foods})
	}
	return entries, nil
}

// Attach starts watching the feed file. onChange fires on every write or
// create event; editors that save atomically replace the inode, so the path
// is re-added after each event.
func (s *FileSource) Attach(onChange func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		slog.Warn("feed: file watcher already attached", "path", s.path)
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: create watcher: %v", ErrUnavailable, err)
	}
	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return fmt.Errorf("%w: watch %q: %v", ErrUnavailable, s.path, err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})
	go s.watch(watcher, s.done, onChange)

	slog.Info("feed: watching feed file for changes", "path", s.path)
	return nil
}

// Detach stops the file watcher and waits for the watch loop to exit.
func (s *FileSource) Detach() {
	s.mu.Lock()
	watcher, done := s.watcher, s.done
	s.watcher, s.done = nil, nil
	s.mu.Unlock()

	if watcher != nil {
		watcher.Close()
	}
	if done != nil {
		<-done
	}
}

func (s *FileSource) watch(watcher *fsnotify.Watcher, done chan struct{}, onChange func()) {
	defer close(done)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			slog.Debug("feed: feed file changed", "path", s.path, "op", event.Op)
			onChange()
			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(s.path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("feed: file watcher error", "err", err)
		}
	}
}
