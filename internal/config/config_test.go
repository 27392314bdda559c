package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Minimal api-mode config; everything else defaulted.
	p := writeConfig(t, `source:
  base_url: "https://api.example.com"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Source.Mode != "api" {
		t.Errorf("source.mode: got %q, want api", cfg.Source.Mode)
	}
	if cfg.Source.FetchTimeout != DefaultFetchTimeout {
		t.Errorf("fetch_timeout: got %v, want %v", cfg.Source.FetchTimeout, DefaultFetchTimeout)
	}
	if cfg.Cache.SnapshotFile != DefaultSnapshotFile {
		t.Errorf("snapshot_file: got %q, want %q", cfg.Cache.SnapshotFile, DefaultSnapshotFile)
	}
}

func TestLoad_Full(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 9091
source:
  mode: api
  base_url: "https://api.example.com"
  realtime_url: "wss://rt.example.com/sync"
  email_env: FEED_EMAIL
  password_env: FEED_PASSWORD
  fetch_timeout: 30s
cache:
  snapshot_file: /var/lib/firstbites/allergens.json
notify:
  webhooks:
    - type: slack
      url_env: SLACK_WEBHOOK_URL
    - type: http
      url_env: GENERIC_WEBHOOK_URL
allergens:
  extra_keywords:
    dairy: ["oat milk"]
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 9091 {
		t.Errorf("http_port: got %d, want 9091", cfg.Server.HTTPPort)
	}
	if cfg.Source.RealtimeURL != "wss://rt.example.com/sync" {
		t.Errorf("realtime_url: got %q", cfg.Source.RealtimeURL)
	}
	if cfg.Source.FetchTimeout != 30*time.Second {
		t.Errorf("fetch_timeout: got %v, want 30s", cfg.Source.FetchTimeout)
	}
	if len(cfg.Notify.Webhooks) != 2 || cfg.Notify.Webhooks[0].Type != "slack" {
		t.Errorf("webhooks: got %+v", cfg.Notify.Webhooks)
	}
	if kws := cfg.Allergens.ExtraKeywords["dairy"]; len(kws) != 1 || kws[0] != "oat milk" {
		t.Errorf("extra_keywords: got %v", cfg.Allergens.ExtraKeywords)
	}
}

func TestLoad_FileMode(t *testing.T) {
	p := writeConfig(t, `source:
  mode: file
  feed_file: testdata/feed.json
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source.FeedFile != "testdata/feed.json" {
		t.Errorf("feed_file: got %q", cfg.Source.FeedFile)
	}
}

func TestLoad_CredentialEnvResolution(t *testing.T) {
	t.Setenv("TEST_FEED_EMAIL", "parent@example.com")
	t.Setenv("TEST_FEED_PASSWORD", "supersecret")
	t.Setenv("TEST_SLACK_URL", "https://hooks.slack.example/T000")

	p := writeConfig(t, `source:
  base_url: "https://api.example.com"
  email_env: TEST_FEED_EMAIL
  password_env: TEST_FEED_PASSWORD
notify:
  webhooks:
    - type: slack
      url_env: TEST_SLACK_URL
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e := cfg.Source.Email(); e != "parent@example.com" {
		t.Errorf("Email(): got %q", e)
	}
	if pw := cfg.Source.Password(); pw != "supersecret" {
		t.Errorf("Password(): got %q", pw)
	}
	if u := cfg.Notify.Webhooks[0].URL(); u != "https://hooks.slack.example/T000" {
		t.Errorf("URL(): got %q", u)
	}
}

func TestLoad_UnsetEnvResolvesEmpty(t *testing.T) {
	p := writeConfig(t, `source:
  base_url: "https://api.example.com"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source.Email() != "" || cfg.Source.Password() != "" {
		t.Error("credentials without env names should resolve to empty strings")
	}
}

func TestLoad_ApiModeRequiresBaseURL(t *testing.T) {
	p := writeConfig(t, `source:
  mode: api
`)
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for api mode without base_url, got nil")
	}
}

func TestLoad_FileModeRequiresFeedFile(t *testing.T) {
	p := writeConfig(t, `source:
  mode: file
`)
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for file mode without feed_file, got nil")
	}
}

func TestLoad_UnknownSourceMode(t *testing.T) {
	p := writeConfig(t, `source:
  mode: carrier-pigeon
`)
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for unknown source mode, got nil")
	}
}

func TestLoad_PortOutOfRange(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 70000
source:
  base_url: "https://api.example.com"
`)
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for out-of-range port, got nil")
	}
}

func TestLoad_UnknownWebhookType(t *testing.T) {
	p := writeConfig(t, `source:
  base_url: "https://api.example.com"
notify:
  webhooks:
    - type: carrier-pigeon
      url_env: X
`)
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for unknown webhook type, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
