// Package transcription is the speech-to-text capability: an
// OpenAI-compatible /audio/transcriptions client.
package transcription

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"media-transcript-go/internal/logger"
	"media-transcript-go/internal/openai"
	"media-transcript-go/internal/types"
)

type Options struct {
	APIKey        string
	Endpoint      string
	Model         string
	Language      string
	Timeout       time.Duration
	RetryAttempts int
	// Mock answers locally without network access (USE_MOCK_TRANSCRIBE).
	Mock bool
}

type Client struct {
	opts   Options
	caller *openai.Caller
	log    *logger.Logger
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func New(opts Options, log *logger.Logger) *Client {
	if log == nil {
		log = logger.New()
	}
	log = log.WithComponent("transcription")
	return &Client{
		opts:   opts,
		caller: openai.NewCaller(opts.APIKey, opts.Timeout, opts.RetryAttempts, log),
		log:    log,
	}
}

// Transcribe uploads the file at path and returns the recognized text.
// Size limits are enforced by the caller.
func (c *Client) Transcribe(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat audio: %w", err)
	}
	log := c.log.WithField("file", filepath.Base(path)).WithField("size", humanize.IBytes(uint64(info.Size())))

	if c.opts.Mock {
		log.Info("mock transcription mode ON")
		return "MOCK TRANSCRIPT: " + filepath.Base(path), nil
	}
	if c.opts.Endpoint == "" {
		return "", fmt.Errorf("transcription endpoint not configured")
	}

	build := func(ctx context.Context) (*http.Request, error) {
		body, contentType, err := c.multipartBody(path)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}

	start := time.Now()
	var resp transcriptionResponse
	if err := c.caller.Do(ctx, build, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", types.ErrEmptyText
	}
	log.WithField("elapsed", time.Since(start).Round(time.Millisecond).String()).Info("transcribed")
	return resp.Text, nil
}

func (c *Client) multipartBody(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	_ = w.WriteField("model", c.opts.Model)
	_ = w.WriteField("response_format", "json")
	if c.opts.Language != "" {
		_ = w.WriteField("language", c.opts.Language)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &b, w.FormDataContentType(), nil
}
