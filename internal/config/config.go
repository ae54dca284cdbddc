// Package config loads transcript pipeline settings.
//
// Values are layered: repository defaults, then an optional TOML file, then
// environment variables (which may come from a .env file loaded by the
// binaries). Validate rejects settings the pipeline cannot honour.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

type Server struct {
	Addr        string   `toml:"addr"`
	CORSOrigins []string `toml:"cors_origins"`
	MaxUploadMB int64    `toml:"max_upload_mb"`
}

// Media holds the size policy and external tool settings.
type Media struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	YTDLPBinary   string `toml:"ytdlp_binary"`
	WorkDir       string `toml:"work_dir"`

	// CeilingBytes is the transcription service's hard payload limit.
	CeilingBytes int64 `toml:"ceiling_bytes"`
	// SafetyMarginBytes is subtracted from the ceiling to absorb estimation error.
	SafetyMarginBytes int64 `toml:"safety_margin_bytes"`

	ChunkSeconds     int  `toml:"chunk_seconds"`
	AdaptiveChunking bool `toml:"adaptive_chunking"`

	SampleRate  int    `toml:"sample_rate"`
	Channels    int    `toml:"channels"`
	Bitrate     string `toml:"bitrate"`
	ToolTimeout int    `toml:"tool_timeout_seconds"`
}

// Transcription configures the speech-to-text capability.
type Transcription struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
	Mock           bool   `toml:"mock"`
}

// Translation configures the text-generation capability.
type Translation struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TargetLanguage string `toml:"target_language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
	Mock           bool   `toml:"mock"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values.
//
// Sections:
//   - Server: HTTP bind address and browser access
//   - Media: capacity limit, chunking, compression and tool binaries
//   - Transcription: speech-to-text API
//   - Translation: chat completion API and target language
//   - Logging: level and format
type Config struct {
	Server        Server        `toml:"server"`
	Media         Media         `toml:"media"`
	Transcription Transcription `toml:"transcription"`
	Translation   Translation   `toml:"translation"`
	Logging       Logging       `toml:"logging"`
}

// Load reads defaults, the optional TOML file at path, and environment
// overrides, then validates the result. It reports the resolved path and
// whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolvePath(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func resolvePath(path string) (string, bool, error) {
	if strings.TrimSpace(path) == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if strings.TrimSpace(path) == "" {
		path = defaultConfigFile
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false, fmt.Errorf("resolve config path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return abs, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", abs)
	}
	return abs, true, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.Transcription.APIKey == "" {
			c.Transcription.APIKey = v
		}
		if c.Translation.APIKey == "" {
			c.Translation.APIKey = v
		}
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		base := strings.TrimRight(v, "/")
		c.Transcription.BaseURL = base + "/audio/transcriptions"
		c.Translation.BaseURL = base + "/chat/completions"
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TARGET_LANGUAGE"); v != "" {
		c.Translation.TargetLanguage = v
	}
	if v := os.Getenv("WORK_DIR"); v != "" {
		c.Media.WorkDir = v
	}
	if b, ok := envBool("USE_MOCK_TRANSCRIBE"); ok {
		c.Transcription.Mock = b
	}
	if b, ok := envBool("USE_MOCK_LLM"); ok {
		c.Translation.Mock = b
	}
}

func (c *Config) normalize() {
	c.Media.FFmpegBinary = orDefault(c.Media.FFmpegBinary, defaultFFmpegBinary)
	c.Media.FFprobeBinary = orDefault(c.Media.FFprobeBinary, defaultFFprobeBinary)
	c.Media.YTDLPBinary = orDefault(c.Media.YTDLPBinary, defaultYTDLPBinary)
	c.Media.Bitrate = orDefault(c.Media.Bitrate, defaultBitrate)
	c.Media.WorkDir = strings.TrimSpace(c.Media.WorkDir)
	c.Transcription.APIKey = strings.TrimSpace(c.Transcription.APIKey)
	c.Translation.APIKey = strings.TrimSpace(c.Translation.APIKey)
	c.Translation.TargetLanguage = strings.ToLower(strings.TrimSpace(c.Translation.TargetLanguage))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// CapacityLimit is the effective per-request byte limit the core enforces.
func (c *Config) CapacityLimit() int64 {
	return c.Media.CeilingBytes - c.Media.SafetyMarginBytes
}

func (c *Config) ChunkDuration() time.Duration {
	return time.Duration(c.Media.ChunkSeconds) * time.Second
}

func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.Media.ToolTimeout) * time.Second
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML with secrets masked.
func (c *Config) Encode() ([]byte, error) {
	masked := *c
	masked.Transcription.APIKey = mask(c.Transcription.APIKey)
	masked.Translation.APIKey = mask(c.Translation.APIKey)
	return toml.Marshal(masked)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func envBool(key string) (bool, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, false
	}
	return b, true
}
