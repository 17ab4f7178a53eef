package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DefaultStages is the funnel vocabulary used when none is configured.
var DefaultStages = []string{"Leads", "Qualification", "Proposal", "Negotiation", "Close"}

// DefaultLTVBuckets are the lower bounds of the LTV histogram buckets.
var DefaultLTVBuckets = []float64{0, 500, 1000, 2500, 5000}

// Config holds application configuration
type Config struct {
	DatabaseURL    string
	RedisURL       string
	Port           string `validate:"required,numeric"`
	DataDir        string `validate:"required"`
	TrustedOrigins []string
	APIKeys        []string
	DefaultRange   string `validate:"oneof=today 7d 30d 90d 12m all 1m 3m 6m"`
	Cohort         CohortConfig
	Funnel         FunnelConfig
	LTV            LTVConfig
	Ingest         IngestConfig
	Dashboard      DashboardConfig
}

// CohortConfig controls retention aggregation.
type CohortConfig struct {
	Horizon  int    `validate:"min=1,max=60"`
	Limit    int    `validate:"min=0,max=120"`
	Activity string `validate:"oneof=payments events"`
}

// FunnelConfig holds the ordered stage vocabulary.
type FunnelConfig struct {
	Stages []string `validate:"min=2,unique,dive,required"`
}

// LTVConfig holds histogram bucket lower bounds.
type LTVConfig struct {
	Buckets []float64 `validate:"min=1,dive,gte=0"`
}

// IngestConfig controls batch uploads and the inbox poller.
type IngestConfig struct {
	BatchFile        string        `validate:"required"`
	Inbox            string        `validate:"required"`
	Interval         time.Duration `validate:"gte=0"`
	LockTTL          time.Duration `validate:"gt=0"`
	HistoryRetention time.Duration `validate:"gte=0"`
}

// DashboardConfig controls snapshot reuse between API requests.
type DashboardConfig struct {
	// CacheTTL is how long a published snapshot is served before it is
	// recomputed. Zero recomputes on every request.
	CacheTTL time.Duration `validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load loads configuration from multiple sources with priority:
// 1. Command flags (via LoadWithOverrides)
// 2. Config file (./kohort.toml or $XDG_CONFIG_HOME/kohort/kohort.toml)
// 3. Environment variables
func Load() (*Config, error) {
	return LoadWithOverrides("", "", "")
}

// LoadWithOverrides loads config and applies flag overrides
func LoadWithOverrides(databaseURL, port, dataDir string) (*Config, error) {
	v := newBaseViper()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := buildConfig(v, databaseURL, port, dataDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func newBaseViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("kohort")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	// XDG lookup is done by hand so tests can point XDG_CONFIG_HOME at a temp dir.
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configHome = filepath.Join(home, ".config")
		}
	}
	if configHome != "" {
		v.AddConfigPath(filepath.Join(configHome, "kohort"))
	}

	return v
}

func buildConfig(v *viper.Viper, overrideDatabaseURL, overridePort, overrideDataDir string) *Config {
	cfg := &Config{
		Port:           "3000",
		DataDir:        "./data",
		TrustedOrigins: []string{"localhost"},
		DefaultRange:   "30d",
		Cohort: CohortConfig{
			Horizon:  12,
			Limit:    12,
			Activity: "payments",
		},
		Funnel: FunnelConfig{Stages: append([]string(nil), DefaultStages...)},
		LTV:    LTVConfig{Buckets: append([]float64(nil), DefaultLTVBuckets...)},
		Ingest: IngestConfig{
			BatchFile:        "new_customers.json",
			Interval:         30 * time.Second,
			LockTTL:          2 * time.Minute,
			HistoryRetention: 90 * 24 * time.Hour,
		},
		Dashboard: DashboardConfig{CacheTTL: 30 * time.Second},
	}

	// Apply config file values
	if v.IsSet("database_url") {
		cfg.DatabaseURL = v.GetString("database_url")
	}
	if v.IsSet("redis_url") {
		cfg.RedisURL = v.GetString("redis_url")
	}
	if v.IsSet("port") {
		cfg.Port = v.GetString("port")
	}
	if v.IsSet("data_dir") {
		cfg.DataDir = v.GetString("data_dir")
	}
	if v.IsSet("trusted_origins") {
		cfg.TrustedOrigins = parseTrustedOrigins(parseList(v.Get("trusted_origins")))
	}
	if v.IsSet("api_keys") {
		cfg.APIKeys = parseList(v.Get("api_keys"))
	}
	if v.IsSet("default_range") {
		cfg.DefaultRange = strings.ToLower(v.GetString("default_range"))
	}
	if v.IsSet("cohort.horizon") {
		cfg.Cohort.Horizon = v.GetInt("cohort.horizon")
	}
	if v.IsSet("cohort.limit") {
		cfg.Cohort.Limit = v.GetInt("cohort.limit")
	}
	if v.IsSet("cohort.activity") {
		cfg.Cohort.Activity = strings.ToLower(v.GetString("cohort.activity"))
	}
	if v.IsSet("funnel.stages") {
		cfg.Funnel.Stages = parseList(v.Get("funnel.stages"))
	}
	if v.IsSet("ltv.buckets") {
		cfg.LTV.Buckets = parseFloats(v.Get("ltv.buckets"))
	}
	if v.IsSet("ingest.batch_file") {
		cfg.Ingest.BatchFile = v.GetString("ingest.batch_file")
	}
	if v.IsSet("ingest.inbox") {
		cfg.Ingest.Inbox = v.GetString("ingest.inbox")
	}
	if v.IsSet("ingest.interval") {
		cfg.Ingest.Interval = v.GetDuration("ingest.interval")
	}
	if v.IsSet("ingest.lock_ttl") {
		cfg.Ingest.LockTTL = v.GetDuration("ingest.lock_ttl")
	}
	if v.IsSet("ingest.history_retention") {
		cfg.Ingest.HistoryRetention = v.GetDuration("ingest.history_retention")
	}
	if v.IsSet("dashboard.cache_ttl") {
		cfg.Dashboard.CacheTTL = v.GetDuration("dashboard.cache_ttl")
	}

	// Environment fallback (only if not configured)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
	}
	if !v.IsSet("port") {
		if envPort := os.Getenv("PORT"); envPort != "" {
			cfg.Port = envPort
		}
	}
	if !v.IsSet("data_dir") {
		if envDataDir := os.Getenv("DATA_DIR"); envDataDir != "" {
			cfg.DataDir = envDataDir
		}
	}
	if !v.IsSet("trusted_origins") {
		if envOrigins := os.Getenv("TRUSTED_ORIGINS"); envOrigins != "" {
			cfg.TrustedOrigins = parseTrustedOrigins(parseList(envOrigins))
		}
	}
	if !v.IsSet("api_keys") {
		if envKeys := os.Getenv("API_KEYS"); envKeys != "" {
			cfg.APIKeys = parseList(envKeys)
		}
	}

	// Apply overrides (flags) last
	if overrideDatabaseURL != "" {
		cfg.DatabaseURL = overrideDatabaseURL
	}
	if overridePort != "" {
		cfg.Port = overridePort
	}
	if overrideDataDir != "" {
		cfg.DataDir = overrideDataDir
	}

	// Inbox follows the data directory unless pinned explicitly.
	if cfg.Ingest.Inbox == "" {
		cfg.Ingest.Inbox = filepath.Join(cfg.DataDir, "inbox")
	}

	return cfg
}

// parseTrustedOrigins sanitizes each origin, dropping the ones that fail.
func parseTrustedOrigins(values []string) []string {
	origins := make([]string, 0, len(values))
	for _, value := range values {
		origin, err := SanitizeTrustedDomain(value)
		if err != nil {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}

// parseList accepts a TOML array or a comma-separated string.
func parseList(raw any) []string {
	var parts []string
	switch value := raw.(type) {
	case string:
		parts = strings.Split(value, ",")
	case []string:
		parts = value
	case []any:
		for _, item := range value {
			parts = append(parts, fmt.Sprint(item))
		}
	default:
		return []string{}
	}

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseFloats accepts numeric TOML arrays or a comma-separated string.
// Entries that are not numbers are skipped.
func parseFloats(raw any) []float64 {
	var out []float64
	add := func(s string) {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			out = append(out, f)
		}
	}

	switch value := raw.(type) {
	case []any:
		for _, item := range value {
			switch n := item.(type) {
			case float64:
				out = append(out, n)
			case int64:
				out = append(out, float64(n))
			case int:
				out = append(out, float64(n))
			default:
				add(fmt.Sprint(n))
			}
		}
	case []float64:
		out = append(out, value...)
	case string:
		for _, part := range strings.Split(value, ",") {
			add(part)
		}
	}
	return out
}
