package types

import (
	"errors"
	"fmt"
	"strings"
)

// FetchKind classifies why a remote source could not be fetched.
type FetchKind string

const (
	FetchAuthRequired FetchKind = "auth_required"
	FetchNotFound     FetchKind = "not_found"
)

var (
	// ErrAuthRequired matches FetchErrors whose source needs login or cookies.
	ErrAuthRequired = errors.New("source requires authentication")
	// ErrNotFound matches every other FetchError.
	ErrNotFound = errors.New("source not found")
)

// FetchError reports a remote source that was unreachable or denied access.
type FetchError struct {
	URL    string
	Kind   FetchKind
	Detail string
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrAuthRequired) and errors.Is(err, ErrNotFound) work.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrAuthRequired:
		return e.Kind == FetchAuthRequired
	case ErrNotFound:
		return e.Kind == FetchNotFound
	}
	return false
}

// EncodingError reports an ffmpeg failure or a missing/invalid output file.
type EncodingError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *EncodingError) Error() string {
	msg := "encoding: " + e.Op
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if tail := lastLine(e.Stderr); tail != "" {
		msg += " (" + tail + ")"
	}
	return msg
}

func (e *EncodingError) Unwrap() error { return e.Err }

// SegmentationError reports that splitting produced no segments.
type SegmentationError struct {
	Path string
}

func (e *SegmentationError) Error() string {
	return fmt.Sprintf("segmentation: no segments produced from %s", e.Path)
}

// CapacityExceededError reports an artifact still over the limit after every fallback.
type CapacityExceededError struct {
	Path  string
	Size  int64
	Limit int64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: %s is %d bytes, limit %d", e.Path, e.Size, e.Limit)
}

// TranscriptionError reports a failed capability call or an unusable response.
// Ordinal is WholeFile when the artifact was not split.
type TranscriptionError struct {
	Ordinal int
	Err     error
}

func (e *TranscriptionError) Error() string {
	if e.Ordinal == WholeFile {
		return fmt.Sprintf("transcription: %v", e.Err)
	}
	return fmt.Sprintf("transcription: segment %d: %v", e.Ordinal, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

type TranslationError struct {
	Err error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation: %v", e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// ErrEmptyText is returned by capabilities that answered without usable text.
var ErrEmptyText = errors.New("empty text in response")

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
