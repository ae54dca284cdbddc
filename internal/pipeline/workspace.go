package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

const lockFileName = ".session.lock"

// ErrWorkspaceReleased is returned when a released workspace is used again.
var ErrWorkspaceReleased = errors.New("workspace released")

// Workspace is the temporary directory exclusively owned by one session.
// Every artifact the session creates lives inside it and is registered, so
// Release reclaims all of it no matter which path the session took.
type Workspace struct {
	mu       sync.Mutex
	dir      string
	lock     *flock.Flock
	tracked  map[string]struct{}
	released bool
}

// NewWorkspace creates a fresh directory under root and takes an exclusive
// lock on it.
func NewWorkspace(root, sessionID string) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}
	dir, err := os.MkdirTemp(root, "session-"+sessionID+"-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil || !ok {
		_ = os.RemoveAll(dir)
		if err == nil {
			err = errors.New("already locked")
		}
		return nil, fmt.Errorf("lock workspace %s: %w", dir, err)
	}

	return &Workspace{
		dir:     dir,
		lock:    lock,
		tracked: make(map[string]struct{}),
	}, nil
}

func (w *Workspace) Dir() string {
	return w.dir
}

// Track registers paths created inside the workspace. Paths outside it are
// ignored since the session does not own them.
func (w *Workspace) Track(paths ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return
	}
	for _, p := range paths {
		if w.owns(p) {
			w.tracked[filepath.Clean(p)] = struct{}{}
		}
	}
}

// Discard removes registered intermediates before the session ends.
func (w *Workspace) Discard(paths ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return
	}
	for _, p := range paths {
		if !w.owns(p) {
			continue
		}
		clean := filepath.Clean(p)
		_ = os.RemoveAll(clean)
		delete(w.tracked, clean)
	}
}

// Tracked lists registered paths that have not been discarded.
func (w *Workspace) Tracked() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.tracked))
	for p := range w.tracked {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Release unlocks and deletes the workspace. Safe to call more than once.
func (w *Workspace) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return nil
	}
	w.released = true
	w.tracked = nil

	var errs []error
	if err := w.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("unlock workspace: %w", err))
	}
	if err := os.RemoveAll(w.dir); err != nil {
		errs = append(errs, fmt.Errorf("remove workspace: %w", err))
	}
	return errors.Join(errs...)
}

func (w *Workspace) owns(p string) bool {
	rel, err := filepath.Rel(w.dir, filepath.Clean(p))
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
