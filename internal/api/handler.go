package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/firstbites/firstbites/internal/allergen"
	"github.com/firstbites/firstbites/internal/cache"
	"github.com/firstbites/firstbites/internal/feed"
)

// Cache is the slice of the exposure cache the handlers need.
type Cache interface {
	Current() (allergen.Snapshot, bool)
	Refresh(ctx context.Context) (allergen.Snapshot, error)
}

// ClientCounter reports how many broadcast subscribers are connected.
// The WebSocket hub satisfies it.
type ClientCounter interface {
	Count() int
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	cache   Cache
	clients ClientCounter
	mux     *http.ServeMux
}

// New creates a Handler wired to the given cache and registers all routes.
// clients may be nil when no hub is mounted (e.g. in tests).
func New(c Cache, clients ClientCounter) http.Handler {
	h := &Handler{cache: c, clients: clients, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/allergens", h.allergens)
	h.mux.HandleFunc("/api/v1/refresh", h.refresh)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health — liveness plus cache/hub status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := HealthResponse{Status: "ok", Message: "API is running"}
	if h.clients != nil {
		resp.Clients = h.clients.Count()
	}
	if snap, ok := h.cache.Current(); ok {
		resp.HasSnapshot = true
		t := snap.ComputedAt
		resp.LastUpdated = &t
	}
	jsonResp(w, http.StatusOK, resp)
}

// allergens returns GET /api/v1/allergens — the current exposure snapshot.
// Before any snapshot exists the response is an explicit 503, never an
// empty-looking success.
func (h *Handler) allergens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap, ok := h.cache.Current()
	if !ok {
		jsonErr(w, http.StatusServiceUnavailable, "no allergen data available yet")
		return
	}

	jsonResp(w, http.StatusOK, AllergenResponse{
		Allergens:   snap.Records,
		LastUpdated: snap.ComputedAt,
	})
}

// refresh handles POST /api/v1/refresh — a manually triggered refresh.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap, err := h.cache.Refresh(r.Context())
	switch {
	case errors.Is(err, cache.ErrNotStarted):
		jsonErr(w, http.StatusServiceUnavailable, "feed source not attached")
		return
	case errors.Is(err, feed.ErrUnavailable):
		jsonErr(w, http.StatusBadGateway, "feed source unavailable")
		return
	case err != nil:
		jsonErr(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	jsonResp(w, http.StatusOK, RefreshResponse{
		Status:      "success",
		Message:     "cache refreshed",
		LastUpdated: snap.ComputedAt,
	})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
