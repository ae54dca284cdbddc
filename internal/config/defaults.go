package config

const (
	defaultConfigFile    = "transcript.toml"
	defaultAddr          = ":8080"
	defaultMaxUploadMB   = 1024
	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultYTDLPBinary   = "yt-dlp"
	defaultCeilingBytes  = 25 << 20
	defaultSafetyMargin  = 1 << 20
	defaultChunkSeconds  = 600
	defaultSampleRate    = 16000
	defaultChannels      = 1
	defaultBitrate       = "48k"
	defaultToolTimeout   = 3600

	defaultTranscriptionURL   = "https://api.openai.com/v1/audio/transcriptions"
	defaultTranscriptionModel = "whisper-1"
	defaultTranslationURL     = "https://api.openai.com/v1/chat/completions"
	defaultTranslationModel   = "gpt-4o-mini"
	defaultTargetLanguage     = "tr"
	defaultHTTPTimeout        = 600
	defaultRetryAttempts      = 2
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Addr:        defaultAddr,
			CORSOrigins: []string{"*"},
			MaxUploadMB: defaultMaxUploadMB,
		},
		Media: Media{
			FFmpegBinary:      defaultFFmpegBinary,
			FFprobeBinary:     defaultFFprobeBinary,
			YTDLPBinary:       defaultYTDLPBinary,
			CeilingBytes:      defaultCeilingBytes,
			SafetyMarginBytes: defaultSafetyMargin,
			ChunkSeconds:      defaultChunkSeconds,
			AdaptiveChunking:  true,
			SampleRate:        defaultSampleRate,
			Channels:          defaultChannels,
			Bitrate:           defaultBitrate,
			ToolTimeout:       defaultToolTimeout,
		},
		Transcription: Transcription{
			BaseURL:        defaultTranscriptionURL,
			Model:          defaultTranscriptionModel,
			TimeoutSeconds: defaultHTTPTimeout,
			RetryAttempts:  defaultRetryAttempts,
		},
		Translation: Translation{
			BaseURL:        defaultTranslationURL,
			Model:          defaultTranslationModel,
			TargetLanguage: defaultTargetLanguage,
			TimeoutSeconds: defaultHTTPTimeout,
			RetryAttempts:  defaultRetryAttempts,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}
