// Package config loads the versewatch configuration file.
package config

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/versewatch/core/cas"
	"github.com/FocuswithJustin/versewatch/core/engine"
	"github.com/FocuswithJustin/versewatch/core/paraphrase"
	"github.com/FocuswithJustin/versewatch/core/translation"
	"github.com/FocuswithJustin/versewatch/internal/logging"
	"github.com/FocuswithJustin/versewatch/internal/validation"
)

// Config holds all versewatch configuration.
type Config struct {
	Translations TranslationsConfig `yaml:"translations"`
	Engine       EngineConfig       `yaml:"engine"`
	Sessions     SessionsConfig     `yaml:"sessions"`
	Server       ServerConfig       `yaml:"server"`
	Ingest       IngestConfig       `yaml:"ingest"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// DefaultTranslationsDir holds full translation documents. The bundled
// kjv is an excerpt; a kjv.svjson(.xz) placed here replaces it.
const DefaultTranslationsDir = "translations"

// TranslationsConfig says where translations come from. Sources are tried
// in order: directory, SQLite, bundled, HTTP mirror.
type TranslationsConfig struct {
	Default      string   `yaml:"default"`
	Dir          string   `yaml:"dir"`
	SQLite       string   `yaml:"sqlite"`
	MirrorURL    string   `yaml:"mirror_url"`
	CacheDir     string   `yaml:"cache_dir"` // offline copies of mirror downloads; empty disables
	FetchTimeout string   `yaml:"fetch_timeout"`
	Preload      []string `yaml:"preload"`
}

// EngineConfig tunes detection.
type EngineConfig struct {
	ExpandRanges bool             `yaml:"expand_ranges"`
	Paraphrase   ParaphraseConfig `yaml:"paraphrase"`
}

// ParaphraseConfig tunes the paraphrase classifier.
type ParaphraseConfig struct {
	Enabled            bool `yaml:"enabled"`
	paraphrase.Options `yaml:",inline"`
}

// SessionsConfig bounds per-session state.
type SessionsConfig struct {
	HistorySize int    `yaml:"history_size"` // segments kept for reports
	IdleTTL     string `yaml:"idle_ttl"`     // sessions idle longer are closed; empty disables
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr             string   `yaml:"addr"`
	AllowedOrigins   []string `yaml:"allowed_origins"` // WebSocket origins; empty allows same-origin only
	MaxFragmentBytes int      `yaml:"max_fragment_bytes"`
	ShutdownTimeout  string   `yaml:"shutdown_timeout"`
	APIKey           string   `yaml:"api_key,omitempty"` // empty disables authentication
	RateLimit        int      `yaml:"rate_limit"`        // requests per minute per client; 0 disables
	RateBurst        int      `yaml:"rate_burst"`
}

// IngestConfig configures the Kafka consumer.
type IngestConfig struct {
	Brokers     []string `yaml:"brokers"`
	Topic       string   `yaml:"topic"`
	GroupID     string   `yaml:"group_id"`
	OutputTopic string   `yaml:"output_topic"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Translations: TranslationsConfig{
			Default:      translation.DefaultID,
			Dir:          DefaultTranslationsDir,
			FetchTimeout: "30s",
		},
		Engine: EngineConfig{
			Paraphrase: ParaphraseConfig{
				Enabled: true,
				Options: paraphrase.Options{
					Threshold:     paraphrase.DefaultThreshold,
					MinShared:     paraphrase.DefaultMinShared,
					MaxCandidates: paraphrase.DefaultMaxCandidates,
					MaxResults:    paraphrase.DefaultMaxResults,
					MaxPostings:   paraphrase.DefaultMaxPostings,
				},
			},
		},
		Sessions: SessionsConfig{
			HistorySize: 50,
			IdleTTL:     "2h",
		},
		Server: ServerConfig{
			Addr:             ":8080",
			MaxFragmentBytes: validation.MaxFragmentLength,
			ShutdownTimeout:  "10s",
		},
		Ingest: IngestConfig{
			Topic:       "transcripts.final",
			GroupID:     "versewatch",
			OutputTopic: "scripture.references",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. An empty path or a missing
// file yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VERSEWATCH_TRANSLATIONS_DIR"); v != "" {
		c.Translations.Dir = v
	}
	if v := os.Getenv("VERSEWATCH_TRANSLATIONS_DB"); v != "" {
		c.Translations.SQLite = v
	}
	if v := os.Getenv("VERSEWATCH_MIRROR_URL"); v != "" {
		c.Translations.MirrorURL = v
	}
	if v := os.Getenv("VERSEWATCH_CACHE_DIR"); v != "" {
		c.Translations.CacheDir = v
	}
	if v := os.Getenv("VERSEWATCH_KAFKA_BROKERS"); v != "" {
		c.Ingest.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("VERSEWATCH_API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("VERSEWATCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateID(c.Translations.Default); err != nil {
		return fmt.Errorf("translations.default: %w", err)
	}
	for _, id := range c.Translations.Preload {
		if err := validation.ValidateID(id); err != nil {
			return fmt.Errorf("translations.preload: %w", err)
		}
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("logging.format: %w", err)
	}
	if t := c.Engine.Paraphrase.Threshold; t < 0 || t > 1 {
		return fmt.Errorf("engine.paraphrase.threshold: %v is outside [0, 1]", t)
	}
	if k := c.Server.APIKey; k != "" && len(k) < 16 {
		return fmt.Errorf("server.api_key: must be at least 16 characters (got %d)", len(k))
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("server.rate_limit: must not be negative")
	}
	if c.Sessions.HistorySize < 0 {
		return fmt.Errorf("sessions.history_size: must not be negative")
	}
	for name, d := range map[string]string{
		"translations.fetch_timeout": c.Translations.FetchTimeout,
		"sessions.idle_ttl":          c.Sessions.IdleTTL,
		"server.shutdown_timeout":    c.Server.ShutdownTimeout,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// GetFetchTimeout returns the translation fetch timeout.
func (c *Config) GetFetchTimeout() time.Duration {
	return parseDuration(c.Translations.FetchTimeout, 30*time.Second)
}

// GetIdleTTL returns the session idle timeout, or zero when disabled.
func (c *Config) GetIdleTTL() time.Duration {
	return parseDuration(c.Sessions.IdleTTL, 0)
}

// GetShutdownTimeout returns the server shutdown grace period.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Source builds the translation source chain described by the
// configuration. Local documents shadow the bundled excerpts, which are
// consulted before the mirror so the default never needs the network.
func (c *Config) Source() translation.ChainSource {
	var chain translation.ChainSource
	if c.Translations.Dir != "" {
		chain = append(chain, translation.NewDirSource(c.Translations.Dir))
	}
	if c.Translations.SQLite != "" {
		chain = append(chain, translation.NewSQLiteSource(c.Translations.SQLite))
	}
	chain = append(chain, translation.NewEmbeddedSource())
	if c.Translations.MirrorURL != "" {
		client := &http.Client{Timeout: c.GetFetchTimeout()}
		src := translation.NewHTTPSource(c.Translations.MirrorURL, client)
		if c.Translations.CacheDir != "" {
			store, err := cas.NewStore(c.Translations.CacheDir)
			if err != nil {
				logging.Warn("mirror cache disabled", "dir", c.Translations.CacheDir, "error", err)
			} else {
				src.Cache = store
			}
		}
		chain = append(chain, src)
	}
	return chain
}

// EngineOptions returns the engine options described by the configuration.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		ExpandRanges:      c.Engine.ExpandRanges,
		DisableParaphrase: !c.Engine.Paraphrase.Enabled,
		Paraphrase:        c.Engine.Paraphrase.Options,
	}
}

// LogSettings returns the parsed logging level and format.
func (c *Config) LogSettings() (logging.Level, logging.Format, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return level, logging.FormatJSON, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	return level, format, err
}
