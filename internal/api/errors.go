package api

import (
	"context"
	"errors"
	"net/http"

	"media-transcript-go/internal/pipeline"
	"media-transcript-go/internal/types"
)

// statusClientClosedRequest is nginx's status for a request the client
// abandoned; net/http has no constant for it.
const statusClientClosedRequest = 499

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		maxBytes *http.MaxBytesError
		capErr   *types.CapacityExceededError
		encErr   *types.EncodingError
		segErr   *types.SegmentationError
		trErr    *types.TranscriptionError
		tlErr    *types.TranslationError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, types.ErrAuthRequired):
		return http.StatusForbidden
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrBusy),
		errors.Is(err, pipeline.ErrNotReady),
		errors.Is(err, pipeline.ErrNoTranscript),
		errors.Is(err, pipeline.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, pipeline.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrURLUnavailable):
		return http.StatusNotImplemented
	case errors.As(err, &maxBytes), errors.As(err, &capErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &encErr), errors.As(err, &segErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &trErr), errors.As(err, &tlErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// kindFor names the error class for front-ends.
func kindFor(err error) string {
	var (
		capErr *types.CapacityExceededError
		encErr *types.EncodingError
		segErr *types.SegmentationError
		trErr  *types.TranscriptionError
		tlErr  *types.TranslationError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, types.ErrAuthRequired):
		return "auth_required"
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	case errors.Is(err, pipeline.ErrBusy):
		return "busy"
	case errors.Is(err, pipeline.ErrNotReady):
		return "not_ready"
	case errors.Is(err, pipeline.ErrNoTranscript):
		return "no_transcript"
	case errors.Is(err, pipeline.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, pipeline.ErrURLUnavailable):
		return "url_unavailable"
	case errors.As(err, &capErr):
		return "capacity_exceeded"
	case errors.As(err, &encErr):
		return "encoding"
	case errors.As(err, &segErr):
		return "segmentation"
	case errors.As(err, &trErr):
		return "transcription"
	case errors.As(err, &tlErr):
		return "translation"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal"
	}
}
