package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Engine    EngineConfig    `yaml:"engine"`
	Narrative NarrativeConfig `yaml:"narrative"`
	Privacy   PrivacyConfig   `yaml:"privacy"`
	Cache     CacheConfig     `yaml:"cache"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Worker    WorkerConfig    `yaml:"worker"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EngineConfig holds the forecast horizon and thresholds injected into the
// curve, prediction and output engines.
type EngineConfig struct {
	PredictionWeeks            []int   `yaml:"prediction_weeks"`
	ChartHorizonWeeks          int     `yaml:"chart_horizon_weeks"`
	MinCalibrations            int     `yaml:"min_calibrations"`
	MaxCalibrations            int     `yaml:"max_calibrations"`
	FullConfidenceCalibrations int     `yaml:"full_confidence_calibrations"`
	ShockThreshold             float64 `yaml:"shock_threshold"`
	ShockRecoveryWeeks         float64 `yaml:"shock_recovery_weeks"`
	Strict                     bool    `yaml:"strict"`
}

// NarrativeConfig contains narrative generation settings.
type NarrativeConfig struct {
	Enabled   bool     `yaml:"enabled"`
	APIKey    string   `yaml:"-"`          // env-only, never in YAML
	Model     string   `yaml:"model"`
	MaxTokens int      `yaml:"max_tokens"`
	Timeout   Duration `yaml:"timeout"`
}

// PrivacyConfig controls what the dashboard exposes.
type PrivacyConfig struct {
	PseudonymSalt    string `yaml:"-"`                  // env-only, never in YAML
	IncludeRawScores bool   `yaml:"include_raw_scores"`
}

// CacheConfig contains Redis report cache settings. An empty Addr disables
// caching.
type CacheConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"-"`    // env-only, never in YAML
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// ArchiveConfig contains S3-compatible report archive settings. An empty
// Bucket disables archiving.
type ArchiveConfig struct {
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"-"`        // env-only, never in YAML
	SecretKey string `yaml:"-"`        // env-only, never in YAML
	UseSSL    *bool  `yaml:"use_ssl"`
}

// WorkerConfig contains background worker settings.
type WorkerConfig struct {
	RefreshInterval Duration `yaml:"refresh_interval"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("TWIN_CONFIG_PATH", "config/twin.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/twin.db",
		},
		Engine: EngineConfig{
			PredictionWeeks:            []int{2, 4, 8, 12, 24},
			ChartHorizonWeeks:          24,
			MinCalibrations:            7,
			MaxCalibrations:            90,
			FullConfidenceCalibrations: 14,
			ShockThreshold:             3.0,
			ShockRecoveryWeeks:         2,
		},
		Narrative: NarrativeConfig{
			Enabled:   true,
			Model:     "gpt-4o-mini",
			MaxTokens: 400,
			Timeout:   Duration(20 * time.Second),
		},
		Cache: CacheConfig{
			TTL: Duration(6 * time.Hour),
		},
		Archive: ArchiveConfig{
			Region: "us-east-1",
		},
		Worker: WorkerConfig{
			RefreshInterval: Duration(1 * time.Hour),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("TWIN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	envDuration("TWIN_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("TWIN_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("TWIN_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Database
	if v := os.Getenv("TWIN_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Engine
	if v := os.Getenv("TWIN_PREDICTION_WEEKS"); v != "" {
		if weeks, err := parseWeeks(v); err == nil {
			cfg.Engine.PredictionWeeks = weeks
		}
	}
	envInt("TWIN_CHART_HORIZON_WEEKS", &cfg.Engine.ChartHorizonWeeks)
	envInt("TWIN_MIN_CALIBRATIONS", &cfg.Engine.MinCalibrations)
	envInt("TWIN_MAX_CALIBRATIONS", &cfg.Engine.MaxCalibrations)
	if v := os.Getenv("TWIN_SHOCK_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.ShockThreshold = f
		}
	}
	if v := os.Getenv("TWIN_STRICT"); v != "" {
		cfg.Engine.Strict = v == "true" || v == "1"
	}

	// Narrative (OPENAI_API_KEY is industry convention)
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Narrative.APIKey = v
	}
	if v := os.Getenv("TWIN_NARRATIVE_ENABLED"); v != "" {
		cfg.Narrative.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("TWIN_NARRATIVE_MODEL"); v != "" {
		cfg.Narrative.Model = v
	}

	// Privacy
	if v := os.Getenv("TWIN_PSEUDONYM_SALT"); v != "" {
		cfg.Privacy.PseudonymSalt = v
	}

	// Cache
	if v := os.Getenv("TWIN_REDIS_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("TWIN_REDIS_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	envDuration("TWIN_CACHE_TTL", &cfg.Cache.TTL)

	// Archive
	if v := os.Getenv("TWIN_ARCHIVE_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := os.Getenv("TWIN_S3_ENDPOINT"); v != "" {
		cfg.Archive.Endpoint = v
	}
	if v := os.Getenv("TWIN_S3_REGION"); v != "" {
		cfg.Archive.Region = v
	}
	if v := os.Getenv("TWIN_S3_ACCESS_KEY"); v != "" {
		cfg.Archive.AccessKey = v
	}
	if v := os.Getenv("TWIN_S3_SECRET_KEY"); v != "" {
		cfg.Archive.SecretKey = v
	}
	if v := os.Getenv("TWIN_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Archive.UseSSL = &useSSL
	}

	// Worker
	envDuration("TWIN_REFRESH_INTERVAL", &cfg.Worker.RefreshInterval)

	// Log
	if v := os.Getenv("TWIN_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TWIN_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// parseWeeks parses a comma-separated week list such as "2,4,8".
func parseWeeks(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	weeks := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid week %q: %w", p, err)
		}
		weeks = append(weeks, n)
	}
	return weeks, nil
}

// validate checks the engine settings and the sections that need
// credentials once enabled.
func (c *Config) validate() error {
	e := c.Engine
	if len(e.PredictionWeeks) == 0 {
		return errors.New("engine.prediction_weeks must not be empty")
	}
	for i, w := range e.PredictionWeeks {
		if w <= 0 {
			return fmt.Errorf("engine.prediction_weeks[%d] must be positive, got %d", i, w)
		}
		if i > 0 && w <= e.PredictionWeeks[i-1] {
			return errors.New("engine.prediction_weeks must be strictly ascending")
		}
	}
	if e.ChartHorizonWeeks < e.PredictionWeeks[len(e.PredictionWeeks)-1] {
		return fmt.Errorf("engine.chart_horizon_weeks (%d) must cover the last prediction week", e.ChartHorizonWeeks)
	}
	if e.MinCalibrations < 1 {
		return errors.New("engine.min_calibrations must be at least 1")
	}
	if e.MaxCalibrations < e.MinCalibrations {
		return errors.New("engine.max_calibrations must be >= engine.min_calibrations")
	}
	if e.FullConfidenceCalibrations < e.MinCalibrations {
		return errors.New("engine.full_confidence_calibrations must be >= engine.min_calibrations")
	}
	if e.ShockThreshold <= 0 {
		return errors.New("engine.shock_threshold must be positive")
	}
	if e.ShockRecoveryWeeks <= 0 {
		return errors.New("engine.shock_recovery_weeks must be positive")
	}

	if c.Archive.Bucket != "" && c.Archive.Endpoint == "" {
		return errors.New("TWIN_S3_ENDPOINT is required when archive.bucket is set")
	}
	if c.Worker.RefreshInterval < 0 {
		return errors.New("worker.refresh_interval must not be negative")
	}
	return nil
}

// NarrativeActive reports whether narratives should be requested from the
// model. Without an API key the service falls back to no narrative.
func (c *Config) NarrativeActive() bool {
	return c.Narrative.Enabled && c.Narrative.APIKey != ""
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
