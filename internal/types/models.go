package types

import (
	"path/filepath"
	"strings"
	"time"
)

// MediaArtifact is a media file on local storage owned by one session.
// Compression and chunking produce new artifacts; an artifact is never mutated.
type MediaArtifact struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Format string `json:"format,omitempty"`
}

// NewArtifact builds an artifact, deriving the format hint from the extension.
func NewArtifact(path string, size int64) MediaArtifact {
	return MediaArtifact{
		Path:   path,
		Size:   size,
		Format: strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
	}
}

// Segment is one bounded-duration slice of an artifact.
// Ordinal defines concatenation order.
type Segment struct {
	Ordinal  int           `json:"ordinal"`
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Duration time.Duration `json:"duration,omitempty"`
}

// WholeFile is the ordinal of a piece transcribed from an unsplit artifact.
const WholeFile = -1

type TranscriptPiece struct {
	Ordinal int    `json:"ordinal"`
	Text    string `json:"text"`
}

// Strategy records which path the orchestrator took for an artifact.
type Strategy string

const (
	StrategyDirect   Strategy = "direct"
	StrategyCompress Strategy = "compress"
	StrategyChunk    Strategy = "chunk"
)

// Transcript is the reconciled result of one orchestrator run.
type Transcript struct {
	Text     string            `json:"text"`
	Pieces   []TranscriptPiece `json:"pieces"`
	Strategy Strategy          `json:"strategy"`
}

// Progress is reported after each segment finishes transcribing.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}
