package push

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/firstbites/firstbites/internal/metrics"
)

// Target is one resolved webhook delivery target.
type Target struct {
	// Type is "slack" or "http". Unknown types are skipped with a warning.
	Type string

	// URL is the resolved endpoint. Targets with an empty URL are skipped.
	URL string
}

// Notifier delivers notifications to a fixed set of webhook targets.
// Safe for concurrent use.
type Notifier struct {
	targets []Target
	client  *http.Client
}

// New creates a Notifier. An empty target list is valid — Notify returns 0.
func New(targets []Target) *Notifier {
	return &Notifier{
		targets: targets,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify sends title/body/meta to every target and returns the number of
// successful deliveries. Callers must not treat a zero count as a failure of
// their own operation.
func (n *Notifier) Notify(title, body string, meta map[string]string) int {
	sent := 0
	for _, t := range n.targets {
		if t.URL == "" {
			continue
		}

		var err error
		switch t.Type {
		case "slack":
			err = n.sendSlack(t.URL, title, body)
		case "http", "":
			err = n.sendHTTP(t.URL, title, body, meta)
		default:
			slog.Warn("push: unknown webhook type — skipping", "type", t.Type)
			continue
		}

		if err != nil {
			slog.Error("push: webhook delivery failed", "type", t.Type, "err", err)
		} else {
			sent++
			slog.Debug("push: webhook delivered", "type", t.Type, "title", title)
		}
	}

	metrics.NotificationsSent.Add(float64(sent))
	return sent
}

func (n *Notifier) sendSlack(url, title, body string) error {
	payload, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s", title, body),
	})
	return n.post(url, payload)
}

func (n *Notifier) sendHTTP(url, title, body string, meta map[string]string) error {
	payload, _ := json.Marshal(map[string]any{
		"title": title,
		"body":  body,
		"data":  meta,
	})
	return n.post(url, payload)
}

func (n *Notifier) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
