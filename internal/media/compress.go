package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"media-transcript-go/internal/types"
)

// Compressor re-encodes an artifact to a smaller single-channel audio file.
type Compressor struct {
	ffmpeg string
	runner Runner
	opts   EncodeOptions
	stat   func(name string) (os.FileInfo, error)
	newID  func() string
}

func NewCompressor(ffmpegPath string, runner Runner, opts EncodeOptions) *Compressor {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Compressor{
		ffmpeg: ffmpegPath,
		runner: runner,
		opts:   opts,
		stat:   os.Stat,
		newID:  func() string { return uuid.New().String()[:8] },
	}
}

// Compress writes a new artifact into dir and never touches the input file.
// A failed run or a missing/empty output is reported as *types.EncodingError.
func (c *Compressor) Compress(ctx context.Context, in types.MediaArtifact, dir string) (types.MediaArtifact, error) {
	out := filepath.Join(dir, compressedName(in.Path, c.newID()))
	if out == in.Path {
		return types.MediaArtifact{}, &types.EncodingError{Op: "compress", Err: fmt.Errorf("output path equals input %s", in.Path)}
	}

	args := buildCompressArgs(in.Path, out, c.opts)
	res, err := c.runner.Run(ctx, c.ffmpeg, args...)
	if err != nil {
		_ = os.Remove(out)
		return types.MediaArtifact{}, &types.EncodingError{Op: "compress", Stderr: res.Stderr, Err: err}
	}

	info, err := c.stat(out)
	if err != nil {
		return types.MediaArtifact{}, &types.EncodingError{Op: "compress", Stderr: res.Stderr, Err: fmt.Errorf("output missing: %w", err)}
	}
	if info.Size() == 0 {
		_ = os.Remove(out)
		return types.MediaArtifact{}, &types.EncodingError{Op: "compress", Stderr: res.Stderr, Err: fmt.Errorf("output empty: %s", out)}
	}
	return types.NewArtifact(out, info.Size()), nil
}

func compressedName(inputPath, id string) string {
	base := filepath.Base(inputPath)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." {
		name = "audio"
	}
	return fmt.Sprintf("%s_compressed_%s.mp3", name, id)
}

// buildCompressArgs builds ffmpeg args for mono, reduced-rate MP3 output.
func buildCompressArgs(inputPath, outPath string, opts EncodeOptions) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-vn",
	}
	args = append(args, opts.args()...)
	return append(args, outPath)
}
