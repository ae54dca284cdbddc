package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-transcript-go/internal/logger"
	"media-transcript-go/internal/media"
	"media-transcript-go/internal/types"
)

type fakeRunner struct {
	name string
	args []string
	run  func(args []string) (media.CommandResult, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (media.CommandResult, error) {
	f.name = name
	f.args = args
	if f.run == nil {
		return media.CommandResult{}, nil
	}
	return f.run(args)
}

// outputPath finds the -o template and resolves it to the mp3 yt-dlp would write.
func outputPath(args []string) string {
	for i, a := range args {
		if a == "-o" && i+1 < len(args) {
			return strings.Replace(args[i+1], "%(ext)s", "mp3", 1)
		}
	}
	return ""
}

// TestFetchProducesArtifact checks the happy path and argument shape.
func TestFetchProducesArtifact(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{run: func(args []string) (media.CommandResult, error) {
		return media.CommandResult{}, os.WriteFile(outputPath(args), []byte("mp3-bytes"), 0o644)
	}}
	f := New(Options{}, runner, logger.Discard())

	a, err := f.Fetch(context.Background(), "https://video.example/watch?v=1", dir)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if a.Path != filepath.Join(dir, "download.mp3") || a.Size != 9 || a.Format != "mp3" {
		t.Fatalf("artifact = %+v", a)
	}
	if runner.name != "yt-dlp" {
		t.Fatalf("binary = %q", runner.name)
	}
	if last := runner.args[len(runner.args)-1]; last != "https://video.example/watch?v=1" {
		t.Fatalf("url arg = %q", last)
	}
	if runner.args[len(runner.args)-2] != "--" {
		t.Fatalf("url must follow --, args = %v", runner.args)
	}
}

// TestFetchClassifiesFailures checks stderr-based error kinds.
func TestFetchClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		stderr string
		want   error
	}{
		{"sign in", "ERROR: [youtube] abc: Sign in to confirm you're not a bot. Use --cookies-from-browser", types.ErrAuthRequired},
		{"private", "ERROR: [vimeo] 123: This is a private video", types.ErrAuthRequired},
		{"unavailable", "ERROR: [youtube] abc: Video unavailable", types.ErrNotFound},
		{"unsupported", "ERROR: Unsupported URL: https://nothing.example", types.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{run: func(args []string) (media.CommandResult, error) {
				return media.CommandResult{Stderr: tc.stderr, ExitCode: 1}, errors.New("exit status 1")
			}}
			_, err := New(Options{}, runner, logger.Discard()).Fetch(context.Background(), "https://x", t.TempDir())
			if !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
			var fe *types.FetchError
			if !errors.As(err, &fe) || fe.Detail == "" || strings.HasPrefix(fe.Detail, "ERROR:") {
				t.Fatalf("fetch error = %+v", fe)
			}
		})
	}
}

// TestFetchNoOutputIsNotFound checks a silent yt-dlp run is still an error.
func TestFetchNoOutputIsNotFound(t *testing.T) {
	_, err := New(Options{}, &fakeRunner{}, logger.Discard()).Fetch(context.Background(), "https://x", t.TempDir())
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

// TestFetchCustomFFmpeg checks the ffmpeg location is forwarded.
func TestFetchCustomFFmpeg(t *testing.T) {
	runner := &fakeRunner{}
	f := New(Options{YTDLPBinary: "/opt/yt-dlp", FFmpegBinary: "/opt/ffmpeg"}, runner, logger.Discard())
	_, _ = f.Fetch(context.Background(), "https://x", t.TempDir())
	if runner.name != "/opt/yt-dlp" {
		t.Fatalf("binary = %q", runner.name)
	}
	joined := strings.Join(runner.args, " ")
	if !strings.Contains(joined, "--ffmpeg-location /opt/ffmpeg") {
		t.Fatalf("args = %v", runner.args)
	}
}
