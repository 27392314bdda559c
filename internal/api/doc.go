// Package api implements the HTTP JSON handlers for /api/v1/*. It is thin
// plumbing over the exposure cache: read the current snapshot, force a
// refresh, report health. The WebSocket endpoint lives in internal/ws.
package api
