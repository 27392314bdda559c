// Package feed defines the boundary to the upstream feeding log.
//
// A Source supplies raw feed entries on demand and signals, via the callback
// given to Attach, that new entries exist upstream. Two implementations are
// provided: Client talks to the hosted feeding-log API and listens on its
// realtime WebSocket endpoint; FileSource reads a local JSON file and watches
// it for writes.
//
// Dynamic upstream payloads are validated and converted into typed Entry
// values here; malformed records are skipped and never leave this package.
package feed
