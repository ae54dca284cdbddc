// Package deps checks for the external tools the pipeline shells out to.
package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"media-transcript-go/internal/config"
)

// Requirement defines an external binary the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// ErrMissing is returned by Require when a mandatory binary is absent.
var ErrMissing = errors.New("required dependency missing")

// Requirements lists the binaries for cfg. ffmpeg is mandatory; ffprobe only
// enables adaptive chunking and yt-dlp only URL input.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.Media.FFmpegBinary, Description: "Compression and splitting"},
		{Name: "FFprobe", Command: cfg.Media.FFprobeBinary, Description: "Duration probe for adaptive chunking", Optional: true},
		{Name: "yt-dlp", Command: cfg.Media.YTDLPBinary, Description: "Remote media download", Optional: true},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}

// Require returns ErrMissing naming every unavailable mandatory dependency.
func Require(statuses []Status) error {
	var missing []string
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s.Name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
}

// Available reports whether the named dependency was found.
func Available(statuses []Status, name string) bool {
	for _, s := range statuses {
		if s.Name == name {
			return s.Available
		}
	}
	return false
}
