// Package store persists the latest exposure snapshot to a JSON file so the
// cache can warm-boot before the feed source is reachable. The store holds at
// most one snapshot, overwritten on every successful refresh.
package store
