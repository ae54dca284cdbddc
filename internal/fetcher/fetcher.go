// Package fetcher downloads remote media with yt-dlp and extracts its audio.
package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"media-transcript-go/internal/logger"
	"media-transcript-go/internal/media"
	"media-transcript-go/internal/types"
)

const outputBase = "download"

// authMarkers are stderr fragments yt-dlp prints when a source needs a login.
var authMarkers = []string{
	"sign in",
	"log in",
	"login",
	"cookies",
	"private video",
	"members-only",
	"confirm your age",
	"authentication",
	"http error 401",
	"http error 403",
}

type Options struct {
	YTDLPBinary  string
	FFmpegBinary string
	// AudioQuality is passed to --audio-quality.
	AudioQuality string
}

type Fetcher struct {
	opts   Options
	runner media.Runner
	log    *logger.Logger
}

func New(opts Options, runner media.Runner, log *logger.Logger) *Fetcher {
	if runner == nil {
		runner = media.ExecRunner{}
	}
	if log == nil {
		log = logger.New()
	}
	if opts.YTDLPBinary == "" {
		opts.YTDLPBinary = "yt-dlp"
	}
	if opts.AudioQuality == "" {
		opts.AudioQuality = "192K"
	}
	return &Fetcher{opts: opts, runner: runner, log: log.WithComponent("fetcher")}
}

// Fetch downloads url's best audio stream into dir as a single mp3.
func (f *Fetcher) Fetch(ctx context.Context, url, dir string) (types.MediaArtifact, error) {
	log := f.log.WithField("url", url)
	log.Info("fetching remote media")

	res, err := f.runner.Run(ctx, f.opts.YTDLPBinary, f.args(url, dir)...)
	if err != nil {
		if ctx.Err() != nil {
			return types.MediaArtifact{}, ctx.Err()
		}
		return types.MediaArtifact{}, classify(url, res.Stderr, err)
	}

	path, size, err := findOutput(dir)
	if err != nil {
		return types.MediaArtifact{}, &types.FetchError{URL: url, Kind: types.FetchNotFound, Detail: "no audio produced", Err: err}
	}
	log.WithField("size", humanize.IBytes(uint64(size))).Info("remote media fetched")
	return types.NewArtifact(path, size), nil
}

func (f *Fetcher) args(url, dir string) []string {
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", f.opts.AudioQuality,
		"-o", filepath.Join(dir, outputBase+".%(ext)s"),
	}
	if f.opts.FFmpegBinary != "" && f.opts.FFmpegBinary != "ffmpeg" {
		args = append(args, "--ffmpeg-location", f.opts.FFmpegBinary)
	}
	return append(args, "--", url)
}

// classify maps yt-dlp failures onto AuthRequired or NotFound.
func classify(url, stderr string, err error) *types.FetchError {
	detail := lastErrorLine(stderr)
	lower := strings.ToLower(stderr)
	for _, marker := range authMarkers {
		if strings.Contains(lower, marker) {
			return &types.FetchError{URL: url, Kind: types.FetchAuthRequired, Detail: detail, Err: err}
		}
	}
	return &types.FetchError{URL: url, Kind: types.FetchNotFound, Detail: detail, Err: err}
}

func findOutput(dir string) (string, int64, error) {
	path := filepath.Join(dir, outputBase+".mp3")
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, err
	}
	if info.Size() == 0 {
		return "", 0, errors.New("empty audio file")
	}
	return path, info.Size(), nil
}

func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	if n := len(lines); n > 0 {
		return strings.TrimSpace(lines[n-1])
	}
	return ""
}
