package feed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFeedFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write feed file: %v", err)
	}
}

func TestFileSource_FetchEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	writeFeedFile(t, path, `{
		"entries": [
			{"timestamp": "2024-05-01T12:30:00Z", "foods": ["scrambled eggs", "toast"]},
			{"timestamp": "2024-05-02T08:00:00Z", "foods": ["cheese"]}
		]
	}`)

	entries, err := NewFileSource(path).FetchEntries(context.Background())
	if err != nil {
		t.Fatalf("FetchEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(entries))
	}
	want := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	if !entries[0].Timestamp.Equal(want) {
		t.Errorf("entries[0].Timestamp: got %v, want %v", entries[0].Timestamp, want)
	}
	if len(entries[0].Foods) != 2 || entries[0].Foods[0] != "scrambled eggs" {
		t.Errorf("entries[0].Foods: got %v", entries[0].Foods)
	}
}

func TestFileSource_SkipsBadTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	writeFeedFile(t, path, `{
		"entries": [
			{"timestamp": "yesterday-ish", "foods": ["cheese"]},
			{"timestamp": "2024-05-02T08:00:00Z", "foods": ["toast"]}
		]
	}`)

	entries, err := NewFileSource(path).FetchEntries(context.Background())
	if err != nil {
		t.Fatalf("FetchEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries: got %d, want 1 (bad timestamp skipped)", len(entries))
	}
	if entries[0].Foods[0] != "toast" {
		t.Errorf("surviving entry: got %v, want toast", entries[0].Foods)
	}
}

func TestFileSource_MissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "absent.json"))
	if _, err := src.FetchEntries(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

func TestFileSource_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	writeFeedFile(t, path, "{not json")

	src := NewFileSource(path)
	if _, err := src.FetchEntries(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

func TestFileSource_AttachMissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "absent.json"))
	if err := src.Attach(func() {}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Attach on missing file: got %v, want ErrUnavailable", err)
	}
}

func TestFileSource_WatchFiresOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	writeFeedFile(t, path, `{"entries": []}`)

	changed := make(chan struct{}, 8)
	src := NewFileSource(path)
	if err := src.Attach(func() { changed <- struct{}{} }); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer src.Detach()

	writeFeedFile(t, path, `{"entries": [{"timestamp": "2024-05-02T08:00:00Z", "foods": ["cheese"]}]}`)

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange never fired after a write")
	}
}

func TestFileSource_DetachIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	writeFeedFile(t, path, `{"entries": []}`)

	src := NewFileSource(path)
	if err := src.Attach(func() {}); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	src.Detach()
	src.Detach() // second call must not panic or hang
}
