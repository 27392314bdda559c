package feed

import (
	"context"
	"errors"
	"time"
)

// Entry is one recorded feeding event. Entries are immutable once fetched.
type Entry struct {
	Timestamp time.Time
	Foods     []string
}

// Sentinel errors returned (wrapped) by Source implementations.
var (
	// ErrUnavailable means the upstream feed store could not be reached or
	// did not return usable data.
	ErrUnavailable = errors.New("feed source unavailable")

	// ErrAuthFailed means the upstream rejected the configured credentials.
	ErrAuthFailed = errors.New("feed source authentication failed")
)

// Source is the narrow interface the exposure cache consumes.
//
// FetchEntries returns all feeding entries, newest first. Attach starts the
// asynchronous change listener; onChange may be invoked from a goroutine
// owned by the source, with no payload — it only signals that a fetch is
// worthwhile. Detach stops the listener and is safe to call more than once.
type Source interface {
	FetchEntries(ctx context.Context) ([]Entry, error)
	Attach(onChange func()) error
	Detach()
}
