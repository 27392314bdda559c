package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort     = 8080
	DefaultFetchTimeout = 15 * time.Second
	DefaultSnapshotFile = "cache/allergens.json"
)

// Config is the full configuration parsed from config.yaml.
type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Source    SourceConfig   `yaml:"source"`
	Cache     CacheConfig    `yaml:"cache"`
	Notify    NotifyConfig   `yaml:"notify"`
	Allergens AllergenConfig `yaml:"allergens"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`
}

// SourceConfig selects and configures the feed source.
type SourceConfig struct {
	// Mode is one of: api | file. Default "api".
	Mode string `yaml:"mode"`

	// BaseURL is the feeding-log API base URL (mode "api").
	BaseURL string `yaml:"base_url"`

	// RealtimeURL is the WebSocket endpoint for change notifications
	// (mode "api"). Empty disables realtime updates.
	RealtimeURL string `yaml:"realtime_url"`

	// EmailEnv and PasswordEnv name the environment variables holding the
	// feed account credentials (mode "api").
	EmailEnv    string `yaml:"email_env"`
	PasswordEnv string `yaml:"password_env"`

	// FetchTimeout bounds a single fetch from the feed source. Default 15s.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// FeedFile is the local JSON feed log (mode "file").
	FeedFile string `yaml:"feed_file"`
}

// Email returns the feed account email resolved from the environment.
func (s SourceConfig) Email() string {
	if s.EmailEnv == "" {
		return ""
	}
	return os.Getenv(s.EmailEnv)
}

// Password returns the feed account password resolved from the environment.
func (s SourceConfig) Password() string {
	if s.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(s.PasswordEnv)
}

// CacheConfig controls snapshot persistence.
type CacheConfig struct {
	// SnapshotFile is where the latest snapshot is persisted for warm boot.
	SnapshotFile string `yaml:"snapshot_file"`
}

// NotifyConfig holds webhook notification targets.
type NotifyConfig struct {
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// AllergenConfig extends the built-in allergen definitions.
type AllergenConfig struct {
	// ExtraKeywords maps an allergen name to additional keywords. Names that
	// match no built-in allergen define a new one. Applied once at startup;
	// the merged definition set is immutable afterwards.
	ExtraKeywords map[string][]string `yaml:"extra_keywords"`
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
		},
		Source: SourceConfig{
			Mode:         "api",
			FetchTimeout: DefaultFetchTimeout,
		},
		Cache: CacheConfig{
			SnapshotFile: DefaultSnapshotFile,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Source.Mode {
	case "api":
		if cfg.Source.BaseURL == "" {
			return fmt.Errorf("source.base_url is required in api mode")
		}
	case "file":
		if cfg.Source.FeedFile == "" {
			return fmt.Errorf("source.feed_file is required in file mode")
		}
	default:
		return fmt.Errorf("source.mode %q unknown: want api|file", cfg.Source.Mode)
	}
	if cfg.Source.FetchTimeout <= 0 {
		return fmt.Errorf("source.fetch_timeout must be positive")
	}
	if cfg.Cache.SnapshotFile == "" {
		return fmt.Errorf("cache.snapshot_file must not be empty")
	}
	for i, wh := range cfg.Notify.Webhooks {
		switch wh.Type {
		case "slack", "http", "":
		default:
			return fmt.Errorf("notify.webhooks[%d].type %q unknown: want slack|http", i, wh.Type)
		}
	}
	return nil
}
