// Package config resolves process configuration from the environment.
//
// A .env file in the working directory is loaded first when present, so local
// development does not need exported variables. Values already set in the
// environment win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-audit/internal/chat"
)

// DefaultReportLanguage is the report language when REPORT_LANGUAGE is unset.
const DefaultReportLanguage = "Brazilian Portuguese"

// Config holds everything the entry points need to wire the application.
type Config struct {
	// APIKey is the Gemini credential. It may be empty here and resolved
	// later from SSM (see auth.GetAPIKey).
	APIKey string
	Model  string

	Port               int
	FrontendBackendURL string
	AllowedOrigins     []string

	RatePerMinute float64
	RateBurst     int
	// TrustedProxies lists proxy addresses or CIDRs whose X-Forwarded-For
	// header is used for rate limiting. Empty means key on the peer address.
	TrustedProxies []string

	// ModelTimeout bounds each model call. Zero means no timeout.
	ModelTimeout time.Duration

	// MaxImageDimension triggers a downscale of larger screenshots. Zero disables it.
	MaxImageDimension int

	ReportLanguage string

	ArchiveBucket  string
	HistoryTable   string
	SSMAPIKeyParam string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	cfg := &Config{
		APIKey:             os.Getenv("GEMINI_API_KEY"),
		Model:              getEnv("GEMINI_MODEL", chat.DefaultModelName),
		FrontendBackendURL: strings.TrimRight(os.Getenv("FRONTEND_BACKEND_URL"), "/"),
		AllowedOrigins:     splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		TrustedProxies:     splitList(os.Getenv("TRUSTED_PROXIES")),
		ReportLanguage:     getEnv("REPORT_LANGUAGE", DefaultReportLanguage),
		ArchiveBucket:      os.Getenv("REPORT_ARCHIVE_BUCKET"),
		HistoryTable:       os.Getenv("REPORT_HISTORY_TABLE"),
		SSMAPIKeyParam:     os.Getenv("SSM_API_KEY_PARAM"),
	}

	var err error
	if cfg.Port, err = getInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.RatePerMinute, err = getFloat("RATE_LIMIT_PER_MINUTE", 6); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = getInt("RATE_LIMIT_BURST", 3); err != nil {
		return nil, err
	}
	if cfg.MaxImageDimension, err = getInt("MAX_IMAGE_DIMENSION", 0); err != nil {
		return nil, err
	}
	if v := os.Getenv("MODEL_TIMEOUT"); v != "" {
		cfg.ModelTimeout, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MODEL_TIMEOUT %q: %w", v, err)
		}
	}

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}

	return cfg, nil
}

// RateLimitEnabled reports whether the upload rate limit is active.
func (c *Config) RateLimitEnabled() bool {
	return c.RatePerMinute > 0 && c.RateBurst > 0
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", key, v)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative number", key, v)
	}
	return f, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
