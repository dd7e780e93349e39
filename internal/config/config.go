package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the analytics chat service.
type Config struct {
	BindAddr           string
	ShutdownTimeout    time.Duration
	SessionIdleTimeout time.Duration
	MetricsNamespace   string

	AllowAnyOrigin bool

	AgentProvider   string
	AnthropicAPIKey string
	AnthropicModel  string
	AgentMaxTokens  int

	// DataDatabaseURL points at the analytical database questions are
	// answered from; MemoryDatabaseURL at the durable turn log. Either may
	// be empty for the in-process default.
	DataDatabaseURL   string
	MemoryDatabaseURL string

	HistoryMaxTurns   int
	HistoryKeepRecent int
	MaxFetchRetries   int
	CacheKeepLast     int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "datachat"),
		AllowAnyOrigin:     false,
		AgentProvider:      envOrDefault("AGENT_PROVIDER", "auto"),
		AnthropicAPIKey:    stringsTrimSpace("ANTHROPIC_API_KEY"),
		AnthropicModel:     stringsTrimSpace("ANTHROPIC_MODEL"),
		AgentMaxTokens:     1024,
		DataDatabaseURL:    stringsTrimSpace("DATA_DATABASE_URL"),
		MemoryDatabaseURL:  stringsTrimSpace("MEMORY_DATABASE_URL"),
		ShutdownTimeout:    15 * time.Second,
		SessionIdleTimeout: 30 * time.Minute,
		HistoryMaxTurns:    20,
		HistoryKeepRecent:  10,
		MaxFetchRetries:    2,
		CacheKeepLast:      5,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionIdleTimeout, err = durationFromEnv("APP_SESSION_IDLE_TIMEOUT", cfg.SessionIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.AgentMaxTokens, err = intFromEnv("AGENT_MAX_TOKENS", cfg.AgentMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryMaxTurns, err = intFromEnv("HISTORY_MAX_TURNS", cfg.HistoryMaxTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryKeepRecent, err = intFromEnv("HISTORY_KEEP_RECENT", cfg.HistoryKeepRecent)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxFetchRetries, err = intFromEnv("MAX_FETCH_RETRIES", cfg.MaxFetchRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheKeepLast, err = intFromEnv("CACHE_KEEP_LAST", cfg.CacheKeepLast)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionIdleTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_IDLE_TIMEOUT must be at least 5s")
	}
	if cfg.AgentMaxTokens <= 0 {
		return Config{}, fmt.Errorf("AGENT_MAX_TOKENS must be positive")
	}
	if cfg.HistoryMaxTurns <= 0 {
		return Config{}, fmt.Errorf("HISTORY_MAX_TURNS must be positive")
	}
	if cfg.HistoryKeepRecent <= 0 || cfg.HistoryKeepRecent >= cfg.HistoryMaxTurns {
		return Config{}, fmt.Errorf("HISTORY_KEEP_RECENT must be positive and below HISTORY_MAX_TURNS")
	}
	if cfg.MaxFetchRetries < 0 {
		return Config{}, fmt.Errorf("MAX_FETCH_RETRIES must be >= 0")
	}
	if cfg.CacheKeepLast <= 0 {
		return Config{}, fmt.Errorf("CACHE_KEEP_LAST must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
