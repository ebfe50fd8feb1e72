package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	SuggestModeStub   = "stub"
	SuggestModeRemote = "remote"
	SuggestModeOpenAI = "openai"

	ExportStoreMemory  = "memory"
	ExportStoreLevelDB = "leveldb"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`

	SuggestMode        string        `mapstructure:"SUGGEST_MODE"`
	SuggestURL         string        `mapstructure:"SUGGEST_URL"`
	OpenAIAPIKey       string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL      string        `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel        string        `mapstructure:"OPENAI_MODEL"`
	SuggestTimeout     time.Duration `mapstructure:"SUGGEST_TIMEOUT"`
	SuggestRPS         float64       `mapstructure:"SUGGEST_RPS"`
	SuggestBurst       int           `mapstructure:"SUGGEST_BURST"`
	SuggestMaxInFlight int64         `mapstructure:"SUGGEST_MAX_INFLIGHT"`

	ExportStore string `mapstructure:"EXPORT_STORE"`
	ExportDir   string `mapstructure:"EXPORT_DIR"`
	ClinicName  string `mapstructure:"CLINIC_NAME"`

	SessionTTL time.Duration `mapstructure:"SESSION_TTL"`
}

var keys = []string{
	"PORT", "ENV", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"REQUEST_TIMEOUT", "BODY_LIMIT",
	"SUGGEST_MODE", "SUGGEST_URL", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
	"SUGGEST_TIMEOUT", "SUGGEST_RPS", "SUGGEST_BURST", "SUGGEST_MAX_INFLIGHT",
	"EXPORT_STORE", "EXPORT_DIR", "CLINIC_NAME", "SESSION_TTL",
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("SUGGEST_MODE", SuggestModeStub)
	v.SetDefault("SUGGEST_TIMEOUT", "30s")
	v.SetDefault("SUGGEST_RPS", 2)
	v.SetDefault("SUGGEST_BURST", 2)
	v.SetDefault("SUGGEST_MAX_INFLIGHT", 4)
	v.SetDefault("EXPORT_STORE", ExportStoreMemory)
	v.SetDefault("EXPORT_DIR", "data/exports")
	v.SetDefault("SESSION_TTL", "2h")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	origins := v.GetString("CORS_ORIGINS")
	if origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	cfg.SuggestMode = strings.ToLower(strings.TrimSpace(cfg.SuggestMode))
	cfg.ExportStore = strings.ToLower(strings.TrimSpace(cfg.ExportStore))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the selected suggestion source and export store have
// what they need to start.
func (c *Config) Validate() error {
	switch c.SuggestMode {
	case SuggestModeStub:
	case SuggestModeRemote:
		if c.SuggestURL == "" {
			return fmt.Errorf("SUGGEST_URL is required when SUGGEST_MODE is %q", SuggestModeRemote)
		}
	case SuggestModeOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when SUGGEST_MODE is %q", SuggestModeOpenAI)
		}
	default:
		return fmt.Errorf("SUGGEST_MODE must be %q, %q, or %q, got %q",
			SuggestModeStub, SuggestModeRemote, SuggestModeOpenAI, c.SuggestMode)
	}

	switch c.ExportStore {
	case ExportStoreMemory:
	case ExportStoreLevelDB:
		if c.ExportDir == "" {
			return fmt.Errorf("EXPORT_DIR is required when EXPORT_STORE is %q", ExportStoreLevelDB)
		}
	default:
		return fmt.Errorf("EXPORT_STORE must be %q or %q, got %q", ExportStoreMemory, ExportStoreLevelDB, c.ExportStore)
	}

	if c.SuggestTimeout <= 0 {
		return fmt.Errorf("SUGGEST_TIMEOUT must be positive, got %s", c.SuggestTimeout)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.SuggestBurst < 0 {
		return fmt.Errorf("SUGGEST_BURST must not be negative, got %d", c.SuggestBurst)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %v", c.RateLimitRPS)
	}
	return nil
}
