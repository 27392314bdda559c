// Package cache owns the current exposure snapshot and the refresh pipeline.
//
// The Cache is constructed once at process start and passed by handle to the
// HTTP layer and the WebSocket hub. Its lifecycle is
//
//	Uninitialized → Warm (persisted snapshot loaded) → Live (feed source
//	attached) → Stopped
//
// Readers call Current at any time and never block on a refresh. Refresh
// fetches from the feed source, recomputes, swaps the snapshot under the
// lock, then persists, publishes to subscribers and notifies out-of-process
// endpoints — the last three are side effects that never fail the refresh.
// Concurrent refresh triggers are coalesced through singleflight: at most one
// fetch+compute runs at a time and every trigger observes its result.
package cache
