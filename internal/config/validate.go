package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Validate performs semantic validation on the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Media.CeilingBytes <= 0 {
		errs = append(errs, errors.New("media.ceiling_bytes must be positive"))
	}
	if c.Media.SafetyMarginBytes < 0 {
		errs = append(errs, errors.New("media.safety_margin_bytes must not be negative"))
	}
	if c.Media.SafetyMarginBytes >= c.Media.CeilingBytes {
		errs = append(errs, errors.New("media.safety_margin_bytes must be smaller than media.ceiling_bytes"))
	}
	if c.Media.ChunkSeconds <= 0 {
		errs = append(errs, errors.New("media.chunk_seconds must be positive"))
	}
	if c.Media.SampleRate <= 0 || c.Media.Channels <= 0 {
		errs = append(errs, errors.New("media.sample_rate and media.channels must be positive"))
	}
	if c.Media.ToolTimeout <= 0 {
		errs = append(errs, errors.New("media.tool_timeout_seconds must be positive"))
	}
	if c.Transcription.RetryAttempts < 0 || c.Translation.RetryAttempts < 0 {
		errs = append(errs, errors.New("retry_attempts must not be negative"))
	}
	if !c.Transcription.Mock && c.Transcription.APIKey == "" {
		errs = append(errs, errors.New("transcription.api_key (or OPENAI_API_KEY) is required"))
	}
	if _, err := ParseLanguage(c.Translation.TargetLanguage); err != nil {
		errs = append(errs, fmt.Errorf("translation.target_language: %w", err))
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// ParseLanguage validates a BCP 47 tag such as "tr" or "pt-BR".
func ParseLanguage(code string) (language.Tag, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return language.Und, errors.New("language is required")
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und, fmt.Errorf("unknown language %q: %w", code, err)
	}
	return tag, nil
}
