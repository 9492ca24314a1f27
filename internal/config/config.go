package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Config holds runtime configuration derived from environment variables and
// an optional YAML file named by PAPAYA_CONFIG.
type Config struct {
	LegacyFile         string
	OptimizedFile      string
	ShardLocation      *time.Location
	UserCountTolerance int
	LedgerFile         string

	LogLevel  string
	LogFormat string
	LogFile   string

	// Telegram admins are notified when a verification finishes.
	BotToken string
	AdminIDs []int64

	DiscordToken     string
	DiscordChannelID string

	// Cloudflare R2
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LEGACY_FILE", "db_export.json")
	v.SetDefault("OPTIMIZED_FILE", "db_optimized.json")
	v.SetDefault("SHARD_TIMEZONE", "UTC")
	v.SetDefault("USER_COUNT_TOLERANCE", 5)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// Load reads configuration. Every setting is optional.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("PAPAYA_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		LegacyFile:         v.GetString("LEGACY_FILE"),
		OptimizedFile:      v.GetString("OPTIMIZED_FILE"),
		UserCountTolerance: v.GetInt("USER_COUNT_TOLERANCE"),
		LedgerFile:         v.GetString("LEDGER_FILE"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
		LogFile:   v.GetString("LOG_FILE"),

		BotToken:         v.GetString("TG_BOT_SECRET"),
		DiscordToken:     v.GetString("DISCORD_TOKEN"),
		DiscordChannelID: v.GetString("DISCORD_CHANNEL_ID"),

		R2AccountID:       v.GetString("R2_ACCOUNT_ID"),
		R2AccessKeyID:     v.GetString("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: v.GetString("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      v.GetString("R2_BUCKET_NAME"),
		R2PublicURL:       v.GetString("R2_PUBLIC_URL"),
	}

	if cfg.UserCountTolerance < 0 {
		return nil, errors.New("USER_COUNT_TOLERANCE must not be negative")
	}

	loc, err := time.LoadLocation(v.GetString("SHARD_TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHARD_TIMEZONE: %w", err)
	}
	cfg.ShardLocation = loc

	admins := strings.FieldsFunc(v.GetString("TG_ADMIN_IDS"), func(r rune) bool { return r == ',' || r == ' ' })
	for _, id := range admins {
		if id == "" {
			continue
		}
		value, err := parseInt64(id)
		if err != nil {
			return nil, fmt.Errorf("invalid TG_ADMIN_IDS entry %q: %w", id, err)
		}
		cfg.AdminIDs = append(cfg.AdminIDs, value)
	}

	return cfg, nil
}

// ArchiveEnabled reports whether R2 credentials are present.
func (c *Config) ArchiveEnabled() bool {
	return c.R2AccountID != ""
}

// TelegramEnabled reports whether admins can be messaged over Telegram.
func (c *Config) TelegramEnabled() bool {
	return c.BotToken != "" && len(c.AdminIDs) > 0
}

// DiscordEnabled reports whether a Discord channel is configured.
func (c *Config) DiscordEnabled() bool {
	return c.DiscordToken != "" && c.DiscordChannelID != ""
}

func parseInt64(value string) (int64, error) {
	var result int64
	_, err := fmt.Sscan(value, &result)
	return result, err
}
