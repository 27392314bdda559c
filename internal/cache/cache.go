package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/firstbites/firstbites/internal/allergen"
	"github.com/firstbites/firstbites/internal/feed"
	"github.com/firstbites/firstbites/internal/metrics"
)

// State is the cache lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateWarm
	StateLive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateWarm:
		return "warm"
	case StateLive:
		return "live"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	// ErrNotStarted is returned by Refresh before the feed source is
	// attached (or after Stop).
	ErrNotStarted = errors.New("cache: feed source not attached")

	// ErrNotReady marks the "no snapshot ever computed and no warm data"
	// condition for read paths that need an explicit error value.
	ErrNotReady = errors.New("cache: no snapshot available yet")
)

// Publisher fans a fresh snapshot out to live subscribers. Publish must be
// safe to call from the refresh goroutine and must not block on slow
// subscribers.
type Publisher interface {
	Publish(allergen.Snapshot)
}

// Notifier delivers a best-effort "new data" alert to out-of-process
// endpoints and reports how many deliveries succeeded.
type Notifier interface {
	Notify(title, body string, meta map[string]string) int
}

// Persister is the durable snapshot store consumed by the cache.
type Persister interface {
	Load() (allergen.Snapshot, time.Time, bool)
	Save(allergen.Snapshot) error
}

// Cache is the process-wide exposure cache. Construct it with New, wire the
// optional collaborators, then Start it.
type Cache struct {
	source       feed.Source
	store        Persister
	defs         []allergen.Definition
	fetchTimeout time.Duration

	publisher Publisher
	notifier  Notifier

	group singleflight.Group

	mu      sync.RWMutex
	state   State
	current *allergen.Snapshot

	now func() time.Time // injectable for deterministic tests
}

// New creates a Cache reading from source, persisting through st and
// computing with defs. fetchTimeout bounds the feed-source fetch inside each
// refresh.
func New(source feed.Source, st Persister, defs []allergen.Definition, fetchTimeout time.Duration) *Cache {
	return &Cache{
		source:       source,
		store:        st,
		defs:         defs,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
	}
}

// SetPublisher wires the broadcast fan-out. Must be called before Start.
func (c *Cache) SetPublisher(p Publisher) { c.publisher = p }

// SetNotifier wires the out-of-process notifier. Must be called before Start.
func (c *Cache) SetNotifier(n Notifier) { c.notifier = n }

// Start warm-loads the persisted snapshot, then attaches the feed source.
//
// A missing or corrupt persisted snapshot is not an error. An attach failure
// is returned to the caller but leaves the cache in Warm state, still serving
// whatever warm data was loaded — callers should log the error and keep the
// process alive.
func (c *Cache) Start() error {
	c.mu.Lock()
	if c.state != StateUninitialized {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cache: start from state %s", state)
	}

	if snap, savedAt, ok := c.store.Load(); ok {
		c.current = &snap
		slog.Info("cache: warm boot from persisted snapshot",
			"allergens", len(snap.Records), "saved_at", savedAt)
	} else {
		slog.Info("cache: no persisted snapshot — starting cold")
	}
	c.state = StateWarm
	c.mu.Unlock()

	// Attach outside the lock: authentication may block on the network.
	if err := c.source.Attach(c.onSourceChange); err != nil {
		return fmt.Errorf("cache: attach feed source: %w", err)
	}

	c.mu.Lock()
	c.state = StateLive
	c.mu.Unlock()
	slog.Info("cache: live — listening for feed changes")
	return nil
}

// Current returns the latest snapshot without blocking on I/O or triggering
// a refresh. ok is false until a snapshot exists (warm-loaded or computed).
func (c *Cache) Current() (allergen.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return allergen.Snapshot{}, false
	}
	return *c.current, true
}

// State returns the current lifecycle state.
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Refresh fetches entries, recomputes the snapshot and installs it.
//
// Refresh is all-or-nothing: on any fetch failure the previous snapshot is
// untouched and the error satisfies errors.Is(err, feed.ErrUnavailable).
// Concurrent calls are coalesced — they share one fetch+compute and all
// receive its result. Persisting, publishing and notifying happen after the
// swap and never fail the refresh.
func (c *Cache) Refresh(ctx context.Context) (allergen.Snapshot, error) {
	c.mu.RLock()
	state := c.state
	c.mu.RUnlock()
	if state != StateLive {
		return allergen.Snapshot{}, ErrNotStarted
	}

	v, err, _ := c.group.Do("refresh", func() (any, error) {
		return c.doRefresh(ctx)
	})
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		return allergen.Snapshot{}, err
	}
	metrics.RefreshTotal.WithLabelValues("ok").Inc()
	return v.(allergen.Snapshot), nil
}

// Stop detaches the feed source. Refresh fails afterwards; Current keeps
// serving the last snapshot.
func (c *Cache) Stop() {
	c.mu.Lock()
	wasLive := c.state == StateLive
	c.state = StateStopped
	c.mu.Unlock()

	if wasLive {
		c.source.Detach()
	}
	slog.Info("cache: stopped")
}

// --- internal ---------------------------------------------------------------

// onSourceChange is the feed-source change callback. It runs the refresh on
// its own goroutine so the source's listener is never blocked, and logs
// failures since there is no synchronous caller to report to.
func (c *Cache) onSourceChange() {
	slog.Info("cache: feed change notification received")
	go func() {
		if _, err := c.Refresh(context.Background()); err != nil {
			slog.Error("cache: source-triggered refresh failed", "err", err)
		}
	}()
}

// doRefresh is the single-flight body: fetch, compute, swap, side effects.
func (c *Cache) doRefresh(ctx context.Context) (allergen.Snapshot, error) {
	fctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	entries, err := c.source.FetchEntries(fctx)
	if err != nil {
		if !errors.Is(err, feed.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", feed.ErrUnavailable, err)
		}
		return allergen.Snapshot{}, fmt.Errorf("cache: fetch entries: %w", err)
	}

	// The slow part runs outside the lock; only the swap takes it.
	snap := allergen.Compute(entries, c.now(), c.defs)

	c.mu.Lock()
	if c.current == nil || snap.ComputedAt.After(c.current.ComputedAt) {
		c.current = &snap
	} else {
		// A newer snapshot was installed meanwhile — keep it.
		snap = *c.current
	}
	c.mu.Unlock()

	if err := c.store.Save(snap); err != nil {
		// In-memory state is the source of truth; persistence is best effort.
		metrics.PersistFailures.Inc()
		slog.Error("cache: persist snapshot failed", "err", err)
	}

	if c.publisher != nil {
		c.publisher.Publish(snap)
	}
	if c.notifier != nil {
		go func() {
			n := c.notifier.Notify(
				"New feeding logged",
				"A new feeding has been logged — allergen exposures updated",
				map[string]string{"type": "feed_update"},
			)
			slog.Debug("cache: notification fan-out finished", "delivered", n)
		}()
	}

	slog.Info("cache: snapshot refreshed",
		"entries", len(entries), "computed_at", snap.ComputedAt)
	return snap, nil
}
