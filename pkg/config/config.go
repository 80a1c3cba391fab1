package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Discord    DiscordConfig    `json:"discord" label:"Discord"`
	TTS        TTSConfig        `json:"tts" label:"Text to Speech"`
	Storage    StorageConfig    `json:"storage" label:"Storage"`
	Voice      VoiceConfig      `json:"voice" label:"Voice Playback"`
	RateLimits RateLimitsConfig `json:"rate_limits" label:"Rate Limits"`
	Log        LogConfig        `json:"log" label:"Logging"`
}

type DiscordConfig struct {
	Token         string `json:"token" label:"Token" env:"PICOTTS_DISCORD_TOKEN"`
	CommandPrefix string `json:"command_prefix" label:"Command Prefix" env:"PICOTTS_DISCORD_COMMAND_PREFIX"`
	Proxy         string `json:"proxy" label:"Proxy" env:"PICOTTS_DISCORD_PROXY"` // empty falls back to HTTP(S)_PROXY
}

type TTSConfig struct {
	Dir                   string          `json:"dir" label:"Artifact Directory" env:"PICOTTS_TTS_DIR"`
	DefaultVoice          string          `json:"default_voice" label:"Default Voice" env:"PICOTTS_TTS_DEFAULT_VOICE"`
	RequestTimeoutSeconds int             `json:"request_timeout_seconds" label:"Request Timeout" env:"PICOTTS_TTS_REQUEST_TIMEOUT_SECONDS"`
	CleanupSchedule       string          `json:"cleanup_schedule" label:"Cleanup Schedule" env:"PICOTTS_TTS_CLEANUP_SCHEDULE"` // cron expression, empty disables
	MaxArtifactAgeMinutes int             `json:"max_artifact_age_minutes" label:"Max Artifact Age" env:"PICOTTS_TTS_MAX_ARTIFACT_AGE_MINUTES"`
	Providers             ProvidersConfig `json:"providers" label:"Providers"`
	DownloadGuard         DownloadGuard   `json:"download_guard" label:"Download Guard"`
}

// DownloadGuard restricts where hosted audio (ttsmp3 URLs) may be fetched
// from. Loopback, private and metadata addresses are refused unless listed.
type DownloadGuard struct {
	Enabled      bool     `json:"enabled" label:"Enabled" env:"PICOTTS_TTS_DOWNLOAD_GUARD_ENABLED"`
	AllowedHosts []string `json:"allowed_hosts" label:"Allowed Hosts" env:"PICOTTS_TTS_DOWNLOAD_GUARD_ALLOWED_HOSTS" envSeparator:","`
}

type ProvidersConfig struct {
	TikTok TikTokConfig `json:"tiktok" label:"TikTok"`
	TTSMP3 TTSMP3Config `json:"ttsmp3" label:"ttsmp3"`
	SAPI   SAPIConfig   `json:"sapi" label:"SAPI"`
}

type TikTokConfig struct {
	Enabled   bool   `json:"enabled" label:"Enabled" env:"PICOTTS_TTS_PROVIDERS_TIKTOK_ENABLED"`
	Endpoint  string `json:"endpoint" label:"Endpoint" env:"PICOTTS_TTS_PROVIDERS_TIKTOK_ENDPOINT"`
	SessionID string `json:"session_id" label:"Session ID" env:"PICOTTS_TTS_PROVIDERS_TIKTOK_SESSION_ID"`
}

type TTSMP3Config struct {
	Enabled  bool   `json:"enabled" label:"Enabled" env:"PICOTTS_TTS_PROVIDERS_TTSMP3_ENABLED"`
	Endpoint string `json:"endpoint" label:"Endpoint" env:"PICOTTS_TTS_PROVIDERS_TTSMP3_ENDPOINT"`
}

type SAPIConfig struct {
	Enabled  bool   `json:"enabled" label:"Enabled" env:"PICOTTS_TTS_PROVIDERS_SAPI_ENABLED"`
	Endpoint string `json:"endpoint" label:"Endpoint" env:"PICOTTS_TTS_PROVIDERS_SAPI_ENDPOINT"`
}

type StorageConfig struct {
	DatabasePath string `json:"database_path" label:"Database Path" env:"PICOTTS_STORAGE_DATABASE_PATH"`
}

type VoiceConfig struct {
	FFmpegPath string `json:"ffmpeg_path" label:"ffmpeg Path" env:"PICOTTS_VOICE_FFMPEG_PATH"`
	Bitrate    int    `json:"bitrate" label:"Opus Bitrate (kbps)" env:"PICOTTS_VOICE_BITRATE"`
}

type RateLimitsConfig struct {
	MaxRequestsPerMinute int `json:"max_requests_per_minute" label:"Max Requests Per Minute" env:"PICOTTS_RATE_LIMITS_MAX_REQUESTS_PER_MINUTE"` // 0 = unlimited
	Burst                int `json:"burst" label:"Burst" env:"PICOTTS_RATE_LIMITS_BURST"`
}

type LogConfig struct {
	Level string `json:"level" label:"Level" env:"PICOTTS_LOG_LEVEL"`
	File  string `json:"file" label:"File" env:"PICOTTS_LOG_FILE"`
}

func (c TTSConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c TTSConfig) MaxArtifactAge() time.Duration {
	return time.Duration(c.MaxArtifactAgeMinutes) * time.Minute
}

// LoadConfig reads the JSON file at path over DefaultConfig and then applies
// PICOTTS_* environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// the file holds the bot token
	return os.WriteFile(path, data, 0o600)
}

// Validate reports settings the gateway cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Discord.Token) == "" {
		return fmt.Errorf("discord token is not set (set discord.token or PICOTTS_DISCORD_TOKEN)")
	}
	if c.Discord.CommandPrefix == "" {
		return fmt.Errorf("discord command prefix must not be empty")
	}
	if c.TTS.Dir == "" {
		return fmt.Errorf("tts dir must not be empty")
	}
	if c.TTS.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("tts request_timeout_seconds must be positive, got %d", c.TTS.RequestTimeoutSeconds)
	}
	if c.RateLimits.MaxRequestsPerMinute < 0 {
		return fmt.Errorf("rate_limits max_requests_per_minute must not be negative")
	}
	return nil
}

func (c *Config) DatabasePath() string {
	return expandHome(c.Storage.DatabasePath)
}

func (c *Config) ArtifactDir() string {
	return expandHome(c.TTS.Dir)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
