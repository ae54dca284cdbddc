package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Prober reads container metadata with ffprobe.
type Prober struct {
	ffprobe string
	runner  Runner
}

func NewProber(ffprobePath string, runner Runner) *Prober {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Prober{ffprobe: ffprobePath, runner: runner}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

// Duration returns the container duration of path.
func (p *Prober) Duration(ctx context.Context, path string) (time.Duration, error) {
	if strings.TrimSpace(path) == "" {
		return 0, errors.New("ffprobe: empty path")
	}
	args := []string{"-v", "error", "-hide_banner", "-show_entries", "format=duration,size,bit_rate", "-of", "json", "--", path}
	res, err := p.runner.Run(ctx, p.ffprobe, args...)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(res.Stderr))
	}

	var out probeOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("ffprobe: no duration for %s", path)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
