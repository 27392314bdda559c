package api

import (
	"time"

	"github.com/firstbites/firstbites/internal/allergen"
)

// AllergenResponse is the payload for GET /api/v1/allergens.
type AllergenResponse struct {
	Allergens   []allergen.Record `json:"allergens"`
	LastUpdated time.Time         `json:"last_updated"`
}

// RefreshResponse is the payload for POST /api/v1/refresh.
type RefreshResponse struct {
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	LastUpdated time.Time `json:"last_updated"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status      string     `json:"status"`
	Message     string     `json:"message"`
	Clients     int        `json:"clients"`
	HasSnapshot bool       `json:"has_snapshot"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
