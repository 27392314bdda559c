// Package push delivers best-effort "new data" notifications to configured
// webhook endpoints. Delivery failures are logged and swallowed — a refresh
// never fails because a notification endpoint is down.
package push
