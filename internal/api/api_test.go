package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/firstbites/firstbites/internal/allergen"
	"github.com/firstbites/firstbites/internal/api"
	"github.com/firstbites/firstbites/internal/cache"
	"github.com/firstbites/firstbites/internal/feed"
)

// --- fakes ------------------------------------------------------------------

type fakeCache struct {
	snap       allergen.Snapshot
	hasSnap    bool
	refreshErr error
}

func (f *fakeCache) Current() (allergen.Snapshot, bool) { return f.snap, f.hasSnap }

func (f *fakeCache) Refresh(ctx context.Context) (allergen.Snapshot, error) {
	if f.refreshErr != nil {
		return allergen.Snapshot{}, f.refreshErr
	}
	return f.snap, nil
}

type fakeCounter int

func (f fakeCounter) Count() int { return int(f) }

func readySnapshot() allergen.Snapshot {
	days := 2
	exp := allergen.DateOf(time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC))
	return allergen.Snapshot{
		Records: []allergen.Record{
			{Name: "peanut", Foods: []string{}},
			{Name: "dairy", DaysSince: &days, LastExposure: &exp, Foods: []string{"cheese"}},
		},
		ComputedAt: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}
}

func doRequest(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return m
}

// --- /api/v1/allergens ------------------------------------------------------

func TestAllergens_NotReady(t *testing.T) {
	h := api.New(&fakeCache{}, nil)
	rec := doRequest(t, h, http.MethodGet, "/api/v1/allergens")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", rec.Code)
	}
	if m := decode(t, rec); m["error"] != "no allergen data available yet" {
		t.Errorf("error: got %v", m["error"])
	}
}

func TestAllergens_OK(t *testing.T) {
	h := api.New(&fakeCache{snap: readySnapshot(), hasSnap: true}, nil)
	rec := doRequest(t, h, http.MethodGet, "/api/v1/allergens")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: got %q", ct)
	}

	m := decode(t, rec)
	records, ok := m["allergens"].([]any)
	if !ok || len(records) != 2 {
		t.Fatalf("allergens: got %v", m["allergens"])
	}
	if m["last_updated"] == nil {
		t.Error("last_updated: missing")
	}

	// Never-consumed record: nulls present, not omitted.
	peanut := records[0].(map[string]any)
	if peanut["name"] != "peanut" {
		t.Fatalf("records[0].name: got %v", peanut["name"])
	}
	for _, key := range []string{"days_since_exposure", "last_exposure_date"} {
		if v, present := peanut[key]; !present || v != nil {
			t.Errorf("peanut %s: got %v (present=%v), want explicit null", key, v, present)
		}
	}

	dairy := records[1].(map[string]any)
	if dairy["days_since_exposure"] != float64(2) {
		t.Errorf("dairy days_since_exposure: got %v", dairy["days_since_exposure"])
	}
	if dairy["last_exposure_date"] != "2024-05-08" {
		t.Errorf("dairy last_exposure_date: got %v", dairy["last_exposure_date"])
	}
}

func TestAllergens_MethodNotAllowed(t *testing.T) {
	h := api.New(&fakeCache{snap: readySnapshot(), hasSnap: true}, nil)
	rec := doRequest(t, h, http.MethodPost, "/api/v1/allergens")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status: got %d, want 405", rec.Code)
	}
}

// --- /api/v1/refresh --------------------------------------------------------

func TestRefresh_OK(t *testing.T) {
	h := api.New(&fakeCache{snap: readySnapshot(), hasSnap: true}, nil)
	rec := doRequest(t, h, http.MethodPost, "/api/v1/refresh")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	m := decode(t, rec)
	if m["status"] != "success" {
		t.Errorf("status field: got %v", m["status"])
	}
	if m["last_updated"] == nil {
		t.Error("last_updated: missing")
	}
}

func TestRefresh_NotStarted(t *testing.T) {
	h := api.New(&fakeCache{refreshErr: cache.ErrNotStarted}, nil)
	rec := doRequest(t, h, http.MethodPost, "/api/v1/refresh")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", rec.Code)
	}
	if m := decode(t, rec); m["error"] != "feed source not attached" {
		t.Errorf("error: got %v", m["error"])
	}
}

func TestRefresh_FeedUnavailable(t *testing.T) {
	err := fmt.Errorf("cache: fetch entries: %w", feed.ErrUnavailable)
	h := api.New(&fakeCache{refreshErr: err}, nil)
	rec := doRequest(t, h, http.MethodPost, "/api/v1/refresh")

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want 502", rec.Code)
	}
	if m := decode(t, rec); m["error"] != "feed source unavailable" {
		t.Errorf("error: got %v", m["error"])
	}
}

func TestRefresh_UnexpectedError(t *testing.T) {
	h := api.New(&fakeCache{refreshErr: errors.New("boom")}, nil)
	rec := doRequest(t, h, http.MethodPost, "/api/v1/refresh")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rec.Code)
	}
}

func TestRefresh_MethodNotAllowed(t *testing.T) {
	h := api.New(&fakeCache{}, nil)
	rec := doRequest(t, h, http.MethodGet, "/api/v1/refresh")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status: got %d, want 405", rec.Code)
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_ColdCache(t *testing.T) {
	h := api.New(&fakeCache{}, fakeCounter(0))
	rec := doRequest(t, h, http.MethodGet, "/api/v1/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	m := decode(t, rec)
	if m["status"] != "ok" {
		t.Errorf("status field: got %v", m["status"])
	}
	if m["has_snapshot"] != false {
		t.Errorf("has_snapshot: got %v, want false", m["has_snapshot"])
	}
}

func TestHealth_WithSnapshotAndClients(t *testing.T) {
	h := api.New(&fakeCache{snap: readySnapshot(), hasSnap: true}, fakeCounter(3))
	rec := doRequest(t, h, http.MethodGet, "/api/v1/health")

	m := decode(t, rec)
	if m["has_snapshot"] != true {
		t.Errorf("has_snapshot: got %v, want true", m["has_snapshot"])
	}
	if m["clients"] != float64(3) {
		t.Errorf("clients: got %v, want 3", m["clients"])
	}
	if m["last_updated"] == nil {
		t.Error("last_updated: missing")
	}
}

func TestUnknownRoute(t *testing.T) {
	h := api.New(&fakeCache{}, nil)
	rec := doRequest(t, h, http.MethodGet, "/api/v1/unknown")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
}
