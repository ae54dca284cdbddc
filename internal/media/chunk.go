package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"media-transcript-go/internal/types"
)

var chunkName = regexp.MustCompile(`^chunk_(\d+)\.mp3$`)

// Chunks is the ordered output of one split, rooted in its own directory.
type Chunks struct {
	Dir      string
	Segments []types.Segment
}

// Paths returns the segment files followed by their directory.
func (c Chunks) Paths() []string {
	out := make([]string, 0, len(c.Segments)+1)
	for _, s := range c.Segments {
		out = append(out, s.Path)
	}
	if c.Dir != "" {
		out = append(out, c.Dir)
	}
	return out
}

// Chunker splits an artifact into fixed-duration segments with ffmpeg's
// segment muxer.
type Chunker struct {
	ffmpeg    string
	runner    Runner
	opts      EncodeOptions
	mkdirTemp func(dir, pattern string) (string, error)
	readDir   func(name string) ([]os.DirEntry, error)
	removeAll func(path string) error
}

func NewChunker(ffmpegPath string, runner Runner, opts EncodeOptions) *Chunker {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Chunker{
		ffmpeg:    ffmpegPath,
		runner:    runner,
		opts:      opts,
		mkdirTemp: os.MkdirTemp,
		readDir:   os.ReadDir,
		removeAll: os.RemoveAll,
	}
}

// Chunk splits in into segments of at most segment duration. Each segment's
// ordinal is parsed from the sequence number ffmpeg assigned, and the result
// is sorted by ordinal, so callers never depend on directory listing order.
func (c *Chunker) Chunk(ctx context.Context, in types.MediaArtifact, dir string, segment time.Duration) (Chunks, error) {
	if segment < time.Second {
		return Chunks{}, fmt.Errorf("chunk: segment duration %s too short", segment)
	}

	chunkDir, err := c.mkdirTemp(dir, "chunks-*")
	if err != nil {
		return Chunks{}, fmt.Errorf("chunk: create segment dir: %w", err)
	}

	args := buildChunkArgs(in.Path, filepath.Join(chunkDir, "chunk_%03d.mp3"), segment, c.opts)
	res, err := c.runner.Run(ctx, c.ffmpeg, args...)
	if err != nil {
		_ = c.removeAll(chunkDir)
		return Chunks{}, &types.EncodingError{Op: "split", Stderr: res.Stderr, Err: err}
	}

	entries, err := c.readDir(chunkDir)
	if err != nil {
		_ = c.removeAll(chunkDir)
		return Chunks{}, &types.EncodingError{Op: "split", Stderr: res.Stderr, Err: err}
	}

	segments := make([]types.Segment, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := chunkName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		ordinal, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		segments = append(segments, types.Segment{
			Ordinal:  ordinal,
			Path:     filepath.Join(chunkDir, entry.Name()),
			Size:     info.Size(),
			Duration: segment,
		})
	}
	if len(segments) == 0 {
		_ = c.removeAll(chunkDir)
		return Chunks{}, &types.SegmentationError{Path: in.Path}
	}

	sort.Slice(segments, func(i, j int) bool { return segments[i].Ordinal < segments[j].Ordinal })
	return Chunks{Dir: chunkDir, Segments: segments}, nil
}

// buildChunkArgs builds ffmpeg segment-muxer args; the pattern must carry a
// zero-padded sequence placeholder.
func buildChunkArgs(inputPath, pattern string, segment time.Duration, opts EncodeOptions) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-vn",
		"-f", "segment",
		"-segment_time", strconv.Itoa(int(segment / time.Second)),
		"-reset_timestamps", "1",
	}
	args = append(args, opts.args()...)
	return append(args, pattern)
}
