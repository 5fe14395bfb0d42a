// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	PlatformBaseURL string
	PlatformToken   string
	BotName         string
	Owner           string
	UserAgent       string
	Subreddits      []string

	DatabasePath string
	LogLevel     string

	ShearThreshold  int
	ShearDistance   time.Duration
	RecheckInterval time.Duration
	Retention       time.Duration

	TelegramBotToken string
	TelegramChatID   int64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("PLATFORM_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("PLATFORM_TOKEN is required")
	}

	botName := os.Getenv("BOT_NAME")
	if botName == "" {
		return nil, fmt.Errorf("BOT_NAME is required")
	}

	rawSubs := os.Getenv("SUBREDDITS")
	if rawSubs == "" {
		return nil, fmt.Errorf("SUBREDDITS is required")
	}
	var subs []string
	for _, s := range strings.Split(rawSubs, ",") {
		if s = strings.TrimSpace(s); s != "" {
			subs = append(subs, s)
		}
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("SUBREDDITS must name at least one subreddit")
	}

	cfg := &Config{
		PlatformBaseURL: envOrDefault("PLATFORM_BASE_URL", "https://oauth.reddit.com"),
		PlatformToken:   token,
		BotName:         botName,
		Owner:           envOrDefault("BOT_OWNER", botName),
		UserAgent:       envOrDefault("USER_AGENT", botName+"/1.0"),
		Subreddits:      subs,
		DatabasePath:    envOrDefault("DATABASE_PATH", "./data/bot.db"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		ShearThreshold:  4,
		ShearDistance:   time.Hour,
		RecheckInterval: 30 * time.Second,
		Retention:       10 * 24 * time.Hour,
	}

	var err error
	if cfg.ShearThreshold, err = envOrDefaultInt("SHEAR_THRESHOLD", cfg.ShearThreshold); err != nil {
		return nil, err
	}
	if cfg.ShearDistance, err = envOrDefaultSeconds("SHEAR_DISTANCE_SECONDS", cfg.ShearDistance); err != nil {
		return nil, err
	}
	if cfg.RecheckInterval, err = envOrDefaultSeconds("RECHECK_INTERVAL_SECONDS", cfg.RecheckInterval); err != nil {
		return nil, err
	}
	retentionDays, err := envOrDefaultInt("RETENTION_DAYS", 10)
	if err != nil {
		return nil, err
	}
	cfg.Retention = time.Duration(retentionDays) * 24 * time.Hour

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		cfg.TelegramChatID = id
	}

	return cfg, nil
}

// NotifyEnabled reports whether an operator alert channel is configured.
func (c *Config) NotifyEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envOrDefaultSeconds(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return time.Duration(v) * time.Second, nil
}
