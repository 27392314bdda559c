package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// authTimeout bounds the login round-trip performed by Attach.
	authTimeout = 15 * time.Second

	// maxReconnectBackoff caps the realtime listener's redial delay.
	maxReconnectBackoff = time.Minute
)

// Client fetches feeding entries from the hosted feeding-log API and listens
// for change events on its realtime WebSocket endpoint.
//
// The wire format is treated as upstream-owned: entries arrive as loosely
// typed JSON and are converted to Entry values here, skipping anything
// malformed.
type Client struct {
	baseURL     string
	realtimeURL string
	email       string
	password    string
	httpc       *http.Client

	mu     sync.Mutex
	token  string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a Client for the API at baseURL. realtimeURL may be empty,
// which disables change notifications (Attach still authenticates).
func NewClient(baseURL, realtimeURL, email, password string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		realtimeURL: realtimeURL,
		email:       email,
		password:    password,
		httpc:       &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchEntries retrieves all solid-food feeding entries, newest first.
// Every failure satisfies errors.Is(err, ErrUnavailable).
func (c *Client) FetchEntries(ctx context.Context) ([]Entry, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	body, status, err := c.get(ctx, "/v1/feed/intervals", token)
	if status == http.StatusUnauthorized {
		// Token expired — authenticate once and retry.
		if token, err = c.authenticate(ctx); err != nil {
			return nil, err
		}
		body, status, err = c.get(ctx, "/v1/feed/intervals", token)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: feed API returned HTTP %d", ErrUnavailable, status)
	}

	var payload struct {
		Intervals []map[string]any `json:"intervals"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode intervals: %v", ErrUnavailable, err)
	}

	entries := parseIntervals(payload.Intervals)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

// Attach authenticates and starts the realtime listener. onChange is invoked
// from the listener goroutine whenever the upstream signals new data.
func (c *Client) Attach(onChange func()) error {
	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()
	if _, err := c.authenticate(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		slog.Warn("feed: listener already attached")
		return nil
	}

	lctx, lcancel := context.WithCancel(context.Background())
	c.cancel = lcancel
	c.done = make(chan struct{})

	if c.realtimeURL == "" {
		slog.Info("feed: realtime endpoint not configured — change notifications disabled")
		close(c.done)
		return nil
	}

	go c.listen(lctx, c.done, onChange)
	return nil
}

// Detach stops the realtime listener and waits for it to exit. Idempotent.
func (c *Client) Detach() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// --- internal ---------------------------------------------------------------

// authenticate logs in with the configured credentials and stores the token.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	creds, _ := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/auth/login", bytes.NewReader(creds))
	if err != nil {
		return "", fmt.Errorf("%w: build login request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: login: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: login rejected with HTTP %d", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: login returned HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Token == "" {
		return "", fmt.Errorf("%w: login response missing token", ErrUnavailable)
	}

	c.mu.Lock()
	c.token = body.Token
	c.mu.Unlock()
	return body.Token, nil
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}
	return c.authenticate(ctx)
}

// get performs an authenticated GET and returns the body and status code.
func (c *Client) get(ctx context.Context, path, token string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, resp.StatusCode, err
	}
	return buf.Bytes(), resp.StatusCode, nil
}

// listen dials the realtime endpoint and redials with exponential backoff
// until ctx is cancelled. Any data frame triggers onChange.
func (c *Client) listen(ctx context.Context, done chan struct{}, onChange func()) {
	defer close(done)

	backoff := time.Second
	for ctx.Err() == nil {
		header := http.Header{}
		c.mu.Lock()
		if c.token != "" {
			header.Set("Authorization", "Bearer "+c.token)
		}
		c.mu.Unlock()

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.realtimeURL, header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("feed: realtime dial failed — retrying",
				"url", c.realtimeURL, "backoff", backoff, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxReconnectBackoff {
				backoff = maxReconnectBackoff
			}
			continue
		}

		backoff = time.Second
		slog.Info("feed: realtime listener connected", "url", c.realtimeURL)
		c.readLoop(ctx, conn, onChange)
	}
}

// readLoop consumes frames until the connection drops or ctx is cancelled.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, onChange func()) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	defer conn.Close()
	for {
		mt, _, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("feed: realtime connection lost", "err", err)
			}
			return
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			onChange()
		}
	}
}

// parseIntervals converts the upstream's dynamic interval documents into
// typed entries. Batch documents ("multi": true) carry older entries nested
// under "data"; both shapes are handled, malformed records are skipped.
func parseIntervals(intervals []map[string]any) []Entry {
	var out []Entry
	for _, doc := range intervals {
		if multi, _ := doc["multi"].(bool); multi {
			data, ok := doc["data"].(map[string]any)
			if !ok {
				continue
			}
			for _, raw := range data {
				if m, ok := raw.(map[string]any); ok {
					if e, ok := parseEntry(m); ok {
						out = append(out, e)
					}
				}
			}
			continue
		}
		if e, ok := parseEntry(doc); ok {
			out = append(out, e)
		}
	}
	return out
}

// parseEntry converts one interval document. Only solid-food entries with a
// numeric start timestamp qualify; food names are lower-cased and trimmed.
func parseEntry(m map[string]any) (Entry, bool) {
	if mode, _ := m["mode"].(string); mode != "solids" {
		return Entry{}, false
	}
	start, ok := m["start"].(float64)
	if !ok {
		return Entry{}, false
	}

	foodsRaw, _ := m["foods"].(map[string]any)
	keys := make([]string, 0, len(foodsRaw))
	for k := range foodsRaw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var foods []string
	for _, k := range keys {
		fm, ok := foodsRaw[k].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fm["created_name"].(string)
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			foods = append(foods, name)
		}
	}

	return Entry{Timestamp: time.Unix(int64(start), 0), Foods: foods}, true
}
