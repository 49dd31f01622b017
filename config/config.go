// Package config loads module configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

const (
	WatchModeLocal  = "local"
	WatchModeRemote = "remote"
)

// Config holds all runtime settings.
type Config struct {
	Server       string             `json:"server"`
	Watch        WatchConfig        `json:"watch"`
	API          APIConfig          `json:"api"`
	Store        StoreConfig        `json:"store"`
	Queue        QueueConfig        `json:"queue"`
	Connectivity ConnectivityConfig `json:"connectivity"`
	Discord      DiscordConfig      `json:"discord"`
	Sound        SoundConfig        `json:"sound"`
}

type WatchConfig struct {
	// LogPath is the chat log to tail. Empty means wait for an explicit
	// StartWatching call.
	LogPath string `json:"log_path"`
	// Mode selects the local tailer or the remote watcher daemon feed.
	Mode string `json:"mode"`
	// RemoteFeedURL is the watcher daemon websocket URL (remote mode).
	RemoteFeedURL string `json:"remote_feed_url"`
}

type APIConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"-"`
}

type StoreConfig struct {
	Path string `json:"path"`
}

type QueueConfig struct {
	MaxRetries     int           `json:"max_retries"`
	RetryBaseDelay time.Duration `json:"retry_base_delay"`
}

type ConnectivityConfig struct {
	ProbeInterval time.Duration `json:"probe_interval"`
	ProbeTimeout  time.Duration `json:"probe_timeout"`
}

type DiscordConfig struct {
	BotToken  string `json:"-"`
	ChannelID string `json:"channel_id"`
}

type SoundConfig struct {
	PlayerCommand string `json:"player_command"`
	Dir           string `json:"dir"`
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Server: getEnvString("TRADE_SERVER", "Cadence"),
		Watch: WatchConfig{
			LogPath:       getEnvString("WATCH_LOG_PATH", ""),
			Mode:          getEnvString("WATCH_MODE", WatchModeLocal),
			RemoteFeedURL: getEnvString("WATCH_REMOTE_FEED_URL", ""),
		},
		API: APIConfig{
			BaseURL: getEnvString("TRADE_API_URL", "https://api.tradewatch.app"),
			APIKey:  getEnvString("TRADE_API_KEY", ""),
		},
		Store: StoreConfig{
			Path: getEnvString("STORE_PATH", "tradewatch.db"),
		},
		Queue: QueueConfig{
			MaxRetries:     getEnvInt("QUEUE_MAX_RETRIES", 3),
			RetryBaseDelay: getEnvDuration("QUEUE_RETRY_BASE_DELAY", time.Second),
		},
		Connectivity: ConnectivityConfig{
			ProbeInterval: getEnvDuration("CONNECTIVITY_PROBE_INTERVAL", 15*time.Second),
			ProbeTimeout:  getEnvDuration("CONNECTIVITY_PROBE_TIMEOUT", 5*time.Second),
		},
		Discord: DiscordConfig{
			BotToken:  getEnvString("DISCORD_BOT_TOKEN", ""),
			ChannelID: getEnvString("DISCORD_CHANNEL_ID", ""),
		},
		Sound: SoundConfig{
			PlayerCommand: getEnvString("SOUND_PLAYER_COMMAND", ""),
			Dir:           getEnvString("SOUND_DIR", "sounds"),
		},
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
