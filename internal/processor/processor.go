package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"media-transcript-go/internal/logger"
	"media-transcript-go/internal/media"
	"media-transcript-go/internal/types"
)

// Delimiter joins transcript pieces from consecutive segments.
const Delimiter = "\n"

const (
	minSegmentDuration = 30 * time.Second
	segmentFillRatio   = 0.9
)

// Transcriber submits one artifact to the transcription capability.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

type Compressor interface {
	Compress(ctx context.Context, in types.MediaArtifact, dir string) (types.MediaArtifact, error)
}

type Chunker interface {
	Chunk(ctx context.Context, in types.MediaArtifact, dir string, segment time.Duration) (media.Chunks, error)
}

// DurationProber is optional; without it the configured chunk duration is used.
type DurationProber interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Workspace is the session-owned scratch area intermediate files live in.
type Workspace interface {
	Dir() string
	Track(paths ...string)
	Discard(paths ...string)
}

type Options struct {
	Limit         int64
	ChunkDuration time.Duration
	Adaptive      bool
}

type Deps struct {
	Compressor  Compressor
	Chunker     Chunker
	Prober      DurationProber
	Transcriber Transcriber
}

// Orchestrator turns a ready artifact into a single transcript, compressing
// and chunking it as needed to respect the capacity limit.
type Orchestrator struct {
	classifier Classifier
	opts       Options
	deps       Deps
	log        *logger.Logger
}

func New(opts Options, deps Deps, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.New()
	}
	return &Orchestrator{
		classifier: NewClassifier(opts.Limit),
		opts:       opts,
		deps:       deps,
		log:        log.WithComponent("processor"),
	}
}

// Transcribe runs the classify → compress → chunk → transcribe sequence.
// Segments are submitted one at a time in ordinal order; the first failure
// aborts the run and no partial transcript is returned. Intermediate files
// are discarded from ws before returning, on success and failure alike.
func (o *Orchestrator) Transcribe(ctx context.Context, in types.MediaArtifact, ws Workspace, onProgress func(types.Progress)) (types.Transcript, error) {
	log := o.log.WithField("artifact", in.Path).WithField("size", humanize.IBytes(uint64(in.Size)))

	if o.classifier.Classify(in.Size) == Direct {
		log.Info("artifact fits capacity limit, transcribing directly")
		return o.single(ctx, in, types.StrategyDirect, onProgress)
	}

	log.WithField("limit", humanize.IBytes(uint64(o.opts.Limit))).Info("artifact over capacity limit, compressing")
	compressed, err := o.deps.Compressor.Compress(ctx, in, ws.Dir())
	if err != nil {
		return types.Transcript{}, err
	}
	ws.Track(compressed.Path)
	defer ws.Discard(compressed.Path)

	if o.classifier.ClassifyCompressed(compressed.Size) == Direct {
		log.WithField("compressed_size", humanize.IBytes(uint64(compressed.Size))).Info("compressed artifact fits, transcribing")
		return o.single(ctx, compressed, types.StrategyCompress, onProgress)
	}

	segment := o.segmentDuration(ctx, compressed)
	log.WithField("compressed_size", humanize.IBytes(uint64(compressed.Size))).
		WithField("segment", segment.String()).
		Warn("compressed artifact still too large, splitting")

	chunks, err := o.deps.Chunker.Chunk(ctx, compressed, ws.Dir(), segment)
	if err != nil {
		return types.Transcript{}, err
	}
	ws.Track(chunks.Paths()...)
	defer ws.Discard(chunks.Paths()...)

	for _, s := range chunks.Segments {
		if !o.classifier.Fits(s.Size) {
			return types.Transcript{}, &types.CapacityExceededError{Path: s.Path, Size: s.Size, Limit: o.opts.Limit}
		}
	}

	total := len(chunks.Segments)
	pieces := make([]types.TranscriptPiece, 0, total)
	for i, s := range chunks.Segments {
		if err := ctx.Err(); err != nil {
			return types.Transcript{}, fmt.Errorf("transcription cancelled before segment %d: %w", s.Ordinal, err)
		}
		log.WithField("part", fmt.Sprintf("%d/%d", i+1, total)).Info("transcribing segment")
		text, err := o.submit(ctx, s.Ordinal, s.Path)
		if err != nil {
			return types.Transcript{}, err
		}
		pieces = append(pieces, types.TranscriptPiece{Ordinal: s.Ordinal, Text: text})
		report(onProgress, i+1, total)
	}

	return types.Transcript{
		Text:     Join(pieces),
		Pieces:   pieces,
		Strategy: types.StrategyChunk,
	}, nil
}

func (o *Orchestrator) single(ctx context.Context, a types.MediaArtifact, strategy types.Strategy, onProgress func(types.Progress)) (types.Transcript, error) {
	text, err := o.submit(ctx, types.WholeFile, a.Path)
	if err != nil {
		return types.Transcript{}, err
	}
	report(onProgress, 1, 1)
	return types.Transcript{
		Text:     text,
		Pieces:   []types.TranscriptPiece{{Ordinal: types.WholeFile, Text: text}},
		Strategy: strategy,
	}, nil
}

func (o *Orchestrator) submit(ctx context.Context, ordinal int, path string) (string, error) {
	text, err := o.deps.Transcriber.Transcribe(ctx, path)
	if err != nil {
		// A cancelled run is not a capability failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var already *types.TranscriptionError
		if errors.As(err, &already) {
			return "", err
		}
		return "", &types.TranscriptionError{Ordinal: ordinal, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &types.TranscriptionError{Ordinal: ordinal, Err: types.ErrEmptyText}
	}
	return text, nil
}

// segmentDuration shrinks the configured duration when the artifact's
// observed byte rate would put a full-length segment over the limit.
func (o *Orchestrator) segmentDuration(ctx context.Context, a types.MediaArtifact) time.Duration {
	configured := o.opts.ChunkDuration
	if !o.opts.Adaptive || o.deps.Prober == nil {
		return configured
	}
	d, err := o.deps.Prober.Duration(ctx, a.Path)
	if err != nil {
		o.log.WithError(err).Warn("probe failed, using configured segment duration")
		return configured
	}
	return AdaptiveDuration(a.Size, d, o.opts.Limit, configured)
}

// AdaptiveDuration returns the longest whole-second duration, capped at
// configured, whose expected size stays within fill ratio of limit.
func AdaptiveDuration(size int64, total time.Duration, limit int64, configured time.Duration) time.Duration {
	if size <= 0 || total <= 0 || limit <= 0 {
		return configured
	}
	bytesPerSecond := float64(size) / total.Seconds()
	seconds := int64(float64(limit) * segmentFillRatio / bytesPerSecond)
	d := time.Duration(seconds) * time.Second
	if d < minSegmentDuration {
		d = minSegmentDuration
	}
	if d > configured {
		return configured
	}
	return d
}

// Join concatenates pieces in ascending ordinal order regardless of the
// order they are held in.
func Join(pieces []types.TranscriptPiece) string {
	sorted := make([]types.TranscriptPiece, len(pieces))
	copy(sorted, pieces)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Ordinal < sorted[j].Ordinal })
	texts := make([]string, len(sorted))
	for i, p := range sorted {
		texts[i] = p.Text
	}
	return strings.Join(texts, Delimiter)
}

func report(cb func(types.Progress), done, total int) {
	if cb != nil {
		cb(types.Progress{Done: done, Total: total})
	}
}
