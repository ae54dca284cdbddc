// Package translation forwards a finished transcript to an OpenAI-compatible
// chat completion endpoint with a fixed translator instruction.
package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"media-transcript-go/internal/logger"
	"media-transcript-go/internal/openai"
	"media-transcript-go/internal/types"
)

type Options struct {
	APIKey        string
	Endpoint      string
	Model         string
	Timeout       time.Duration
	RetryAttempts int
	// Mock answers locally without network access (USE_MOCK_LLM).
	Mock bool
}

type Client struct {
	opts   Options
	caller *openai.Caller
	log    *logger.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func New(opts Options, log *logger.Logger) *Client {
	if log == nil {
		log = logger.New()
	}
	log = log.WithComponent("translation")
	return &Client{
		opts:   opts,
		caller: openai.NewCaller(opts.APIKey, opts.Timeout, opts.RetryAttempts, log),
		log:    log,
	}
}

// Translate sends text as one request and returns the translation. The text
// is never split. Failures are *types.TranslationError, except cancellation,
// which returns the context's error.
func (c *Client) Translate(ctx context.Context, text, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &types.TranslationError{Err: types.ErrEmptyText}
	}
	name, err := LanguageName(target)
	if err != nil {
		return "", &types.TranslationError{Err: err}
	}
	log := c.log.WithField("target", target).WithField("chars", len(text))

	if c.opts.Mock {
		log.Info("mock LLM mode ON")
		return fmt.Sprintf("[%s] %s", target, text), nil
	}
	if c.opts.Endpoint == "" {
		return "", &types.TranslationError{Err: fmt.Errorf("translation endpoint not configured")}
	}

	data, err := json.Marshal(chatRequest{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: Instruction(name)},
			{Role: "user", Content: text},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", &types.TranslationError{Err: err}
	}

	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	var resp chatResponse
	if err := c.caller.Do(ctx, build, &resp); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &types.TranslationError{Err: err}
	}
	out := contentFromChoices(resp)
	if out == "" {
		return "", &types.TranslationError{Err: types.ErrEmptyText}
	}
	log.Info("translated")
	return out, nil
}

// Instruction is the fixed system prompt for a target language name.
func Instruction(languageName string) string {
	return fmt.Sprintf("You are a translator. Translate the user's text into %s. "+
		"Preserve meaning, tone and line breaks. Reply with the translation only.", languageName)
}

// LanguageName returns the English display name for a BCP 47 code, e.g. "tr" -> "Turkish".
func LanguageName(code string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("unknown target language %q: %w", code, err)
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name, nil
	}
	return tag.String(), nil
}

// contentFromChoices reads choices[0].message.content.
func contentFromChoices(resp chatResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}
