package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                  string
	AllowedOrigins        []string
	DatabaseURL           string
	DatabaseMigrate       bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	ReportCacheTTL        time.Duration
	ReportTimezone        string
	AuthSecret            string
	AccessTokenTTLMinutes int
	CheckoutMaxAttempts   int
	CheckoutCommitTimeout time.Duration
	CheckoutRetryBackoff  time.Duration
	ProfitPolicy          string
	LogLevel              string
	LogPretty             bool
	LoginAttemptsPerMin   int
}

// Load reads configuration from the environment. Secrets get no defaults.
func Load() Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGINS", "http://127.0.0.1:3000")
	v.SetDefault("DATABASE_MIGRATE", false)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REPORT_CACHE_TTL_SECONDS", 30)
	v.SetDefault("REPORT_TIMEZONE", "Asia/Jakarta")
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 480)
	v.SetDefault("CHECKOUT_MAX_ATTEMPTS", 3)
	v.SetDefault("CHECKOUT_COMMIT_TIMEOUT_SECONDS", 5)
	v.SetDefault("CHECKOUT_RETRY_BACKOFF_MS", 5)
	v.SetDefault("PROFIT_POLICY", "cost_basis")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("LOGIN_ATTEMPTS_PER_MINUTE", 5)

	tokenTTL := v.GetInt("ACCESS_TOKEN_TTL_MINUTES")
	if tokenTTL < 1 {
		tokenTTL = 480
	}
	attempts := v.GetInt("CHECKOUT_MAX_ATTEMPTS")
	if attempts < 1 {
		attempts = 3
	}
	commitTimeout := v.GetInt("CHECKOUT_COMMIT_TIMEOUT_SECONDS")
	if commitTimeout < 1 {
		commitTimeout = 5
	}
	backoff := v.GetInt("CHECKOUT_RETRY_BACKOFF_MS")
	if backoff < 0 {
		backoff = 0
	}
	cacheTTL := v.GetInt("REPORT_CACHE_TTL_SECONDS")
	if cacheTTL < 0 {
		cacheTTL = 0
	}
	loginRate := v.GetInt("LOGIN_ATTEMPTS_PER_MINUTE")
	if loginRate < 1 {
		loginRate = 5
	}

	return Config{
		Port:                  v.GetString("PORT"),
		AllowedOrigins:        splitList(v.GetString("ALLOWED_ORIGINS")),
		DatabaseURL:           strings.TrimSpace(v.GetString("DATABASE_URL")),
		DatabaseMigrate:       v.GetBool("DATABASE_MIGRATE"),
		RedisAddr:             strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:         v.GetString("REDIS_PASSWORD"),
		RedisDB:               v.GetInt("REDIS_DB"),
		ReportCacheTTL:        time.Duration(cacheTTL) * time.Second,
		ReportTimezone:        strings.TrimSpace(v.GetString("REPORT_TIMEZONE")),
		AuthSecret:            strings.TrimSpace(v.GetString("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		CheckoutMaxAttempts:   attempts,
		CheckoutCommitTimeout: time.Duration(commitTimeout) * time.Second,
		CheckoutRetryBackoff:  time.Duration(backoff) * time.Millisecond,
		ProfitPolicy:          strings.TrimSpace(v.GetString("PROFIT_POLICY")),
		LogLevel:              v.GetString("LOG_LEVEL"),
		LogPretty:             v.GetBool("LOG_PRETTY"),
		LoginAttemptsPerMin:   loginRate,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location resolves the report timezone, falling back to UTC when the zone
// database does not know it.
func (c Config) Location() *time.Location {
	if c.ReportTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
