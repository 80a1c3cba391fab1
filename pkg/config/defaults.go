// PicoTTS - Discord text-to-speech bot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package config

const (
	DefaultVoice         = "tiktok-en_us_002"
	DefaultCommandPrefix = "tts!"

	DefaultTikTokEndpoint = "https://api16-normal-useast5.us.tiktokv.com/media/api/text/speech/invoke/"
	DefaultTTSMP3Endpoint = "https://ttsmp3.com/makemp3_new.php"
	DefaultSAPIEndpoint   = "https://www.tetyys.com/SAPI4/SAPI4"
)

// DefaultConfig returns the default configuration for PicoTTS.
func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			Token:         "",
			CommandPrefix: DefaultCommandPrefix,
		},
		TTS: TTSConfig{
			Dir:                   "tts",
			DefaultVoice:          DefaultVoice,
			RequestTimeoutSeconds: 30,
			CleanupSchedule:       "*/15 * * * *",
			MaxArtifactAgeMinutes: 60,
			Providers: ProvidersConfig{
				TikTok: TikTokConfig{
					Enabled:  true,
					Endpoint: DefaultTikTokEndpoint,
				},
				TTSMP3: TTSMP3Config{
					Enabled:  true,
					Endpoint: DefaultTTSMP3Endpoint,
				},
				SAPI: SAPIConfig{
					Enabled:  true,
					Endpoint: DefaultSAPIEndpoint,
				},
			},
			DownloadGuard: DownloadGuard{
				Enabled: true,
			},
		},
		Storage: StorageConfig{
			DatabasePath: "~/.picotts/picotts.db",
		},
		Voice: VoiceConfig{
			FFmpegPath: "ffmpeg",
			Bitrate:    64,
		},
		RateLimits: RateLimitsConfig{
			MaxRequestsPerMinute: 20,
			Burst:                5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
