// Package openai holds the HTTP transport shared by the OpenAI-compatible
// transcription and translation clients.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"media-transcript-go/internal/logger"
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed if sent again.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Caller sends JSON-answering requests. Transport failures, 429 and 5xx are
// retried up to Attempts extra times; other answers are final.
type Caller struct {
	HTTP     *http.Client
	APIKey   string
	Attempts int
	Log      *logger.Logger

	// InitialInterval is the first retry wait; it grows exponentially.
	InitialInterval time.Duration
}

// NewCaller builds a Caller with its own http.Client.
func NewCaller(apiKey string, timeout time.Duration, attempts int, log *logger.Logger) *Caller {
	if log == nil {
		log = logger.New()
	}
	return &Caller{
		HTTP:            &http.Client{Timeout: timeout},
		APIKey:          apiKey,
		Attempts:        attempts,
		Log:             log,
		InitialInterval: time.Second,
	}
}

// Do builds a request with build, sends it, and decodes the JSON body into
// target. build is called once per attempt so bodies can be re-read.
func (c *Caller) Do(ctx context.Context, build func(ctx context.Context) (*http.Request, error), target any) error {
	exp := backoff.NewExponentialBackOff()
	if c.InitialInterval > 0 {
		exp.InitialInterval = c.InitialInterval
	}
	exp.MaxElapsedTime = 0
	attempts := c.Attempts
	if attempts < 0 {
		attempts = 0
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts)), ctx)

	op := func() error {
		req, err := build(ctx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
			if apiErr.Temporary() {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}
		if len(body) == 0 {
			return backoff.Permanent(fmt.Errorf("empty body"))
		}
		if err := json.Unmarshal(body, target); err != nil {
			return backoff.Permanent(fmt.Errorf("json decode error: %w", err))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.Log.WithError(err).WithField("retry_in", wait.String()).Warn("transient api failure, retrying")
	}
	return backoff.RetryNotify(op, bo, notify)
}

// errorMessage pulls error.message out of an OpenAI-style error body.
func errorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
