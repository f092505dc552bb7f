package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the bookversions service configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store"`
	Jobs        JobsConfig        `yaml:"jobs"`
	Auth        AuthConfig        `yaml:"auth"`
	Publication PublicationConfig `yaml:"publication"`
	Macros      []MacroConfig     `yaml:"macros,omitempty"`
	Events      EventsConfig      `yaml:"events"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Server      ServerConfig      `yaml:"server"`
	Schedules   []Schedule        `yaml:"schedules,omitempty"`
}

// StoreDriver selects the document store backend.
type StoreDriver string

const (
	StoreDriverMemory StoreDriver = "memory"
	StoreDriverSQLite StoreDriver = "sqlite"
)

// StoreConfig configures the document repository.
type StoreConfig struct {
	Driver  StoreDriver `yaml:"driver"`
	Path    string      `yaml:"path,omitempty"`    // SQLite database file
	Fixture string      `yaml:"fixture,omitempty"` // YAML fixture loaded into an empty store at startup
}

// JobsConfig configures the background job queue.
type JobsConfig struct {
	Workers           int              `yaml:"workers"`
	QueueSize         int              `yaml:"queue_size"`
	HistorySize       int              `yaml:"history_size"`
	MaxRetries        int              `yaml:"max_retries"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff"`
	RetryInitialDelay string           `yaml:"retry_initial_delay"`
	RetryMaxDelay     string           `yaml:"retry_max_delay"`
}

// AuthConfig configures the authorization gate.
type AuthConfig struct {
	Enabled     bool               `yaml:"enabled"`
	DefaultUser string             `yaml:"default_user,omitempty"`
	Users       map[string][]Grant `yaml:"users,omitempty"`
}

// Grant gives rights on every document under a space prefix. An empty space means everywhere.
type Grant struct {
	Space  string   `yaml:"space"`
	Rights []string `yaml:"rights"`
}

// PublicationConfig holds publication defaults.
type PublicationConfig struct {
	DefaultLanguage string `yaml:"default_language"`
}

// MacroConfig registers or overrides a macro descriptor used by reference rewriting.
type MacroConfig struct {
	ID      string            `yaml:"id"`
	Content string            `yaml:"content,omitempty"` // richtext|opaque
	Params  map[string]string `yaml:"params,omitempty"`  // parameter -> document|attachment|page|pageAttachment
}

// EventsConfig configures event delivery: the NATS JetStream publisher (empty URL
// disables it) and the SQLite journal backing the publication history (empty path
// disables it).
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url,omitempty"`
	Stream        string `yaml:"stream,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
	Journal       string `yaml:"journal,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// ArchiveConfig configures git snapshots of published spaces.
type ArchiveConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Directory   string `yaml:"directory,omitempty"`
	AuthorName  string `yaml:"author_name,omitempty"`
	AuthorEmail string `yaml:"author_email,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	// MaxConnections caps concurrent API connections; 0 means unlimited.
	MaxConnections int `yaml:"max_connections,omitempty"`
}

// Schedule runs a publication configuration periodically in the daemon.
type Schedule struct {
	Name          string `yaml:"name"`
	Configuration string `yaml:"configuration"`
	Interval      string `yaml:"interval"`
	User          string `yaml:"user,omitempty"`
}

// IntervalDuration parses the schedule interval; callers run Validate first.
func (s Schedule) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(s.Interval)
	return d
}

// Load reads, expands and validates a configuration file.
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	if err := loadEnvFile(); err != nil {
		// Don't fail if .env doesn't exist, just log it
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes configuration YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// Default returns a configuration with every default applied (in-memory store).
func Default() *Config {
	var c Config
	applyDefaults(&c)
	return &c
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	exampleConfig := Config{
		Store: StoreConfig{Driver: StoreDriverSQLite, Path: "./bookversions.db", Fixture: "./fixtures/books.yaml"},
		Jobs: JobsConfig{
			Workers: 2, QueueSize: 100, HistorySize: 50,
			MaxRetries: 2, RetryBackoff: RetryBackoffLinear, RetryInitialDelay: "1s", RetryMaxDelay: "30s",
		},
		Auth: AuthConfig{
			Enabled:     true,
			DefaultUser: "admin",
			Users: map[string][]Grant{
				"admin":  {{Space: "", Rights: []string{"view", "edit", "delete", "publish"}}},
				"editor": {{Space: "Books", Rights: []string{"view", "edit"}}},
			},
		},
		Publication: PublicationConfig{DefaultLanguage: "en"},
		Macros: []MacroConfig{
			{ID: "children", Params: map[string]string{"parent": "document"}},
		},
		Events:  EventsConfig{NATSURL: "${NATS_URL}", Stream: "BOOKVERSIONS", SubjectPrefix: "bookversions", Journal: "./bookversions-events.db"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Archive: ArchiveConfig{Enabled: false, Directory: "./published-archive", AuthorName: "bookversions", AuthorEmail: "bookversions@localhost"},
		Server:  ServerConfig{Listen: ":8080", MaxConnections: 64},
		Schedules: []Schedule{
			{Name: "nightly-user-guide", Configuration: "Publications.UserGuide", Interval: "24h", User: "admin"},
		},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func normalizeDriver(raw StoreDriver) StoreDriver {
	return StoreDriver(strings.ToLower(strings.TrimSpace(string(raw))))
}
