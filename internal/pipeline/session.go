// Package pipeline holds the per-session controller that sequences input
// acquisition, transcription and translation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"media-transcript-go/internal/logger"
	"media-transcript-go/internal/processor"
	"media-transcript-go/internal/types"
)

var (
	// ErrBusy is returned when another action is already running on the session.
	ErrBusy = errors.New("session busy")
	// ErrNotReady is returned when transcription is requested without input.
	ErrNotReady = errors.New("no input ready")
	// ErrNoTranscript is returned when translation is requested before transcription.
	ErrNoTranscript = errors.New("no transcript")
	// ErrUnsupportedFormat is returned for uploads outside the accepted extensions.
	ErrUnsupportedFormat = errors.New("unsupported media format")
	ErrEmptyInput        = errors.New("empty input identity")
	// ErrURLUnavailable is returned for URL input when no fetcher is wired.
	ErrURLUnavailable = errors.New("url input unavailable")
)

// AcceptedExtensions lists the upload formats the pipeline takes.
var AcceptedExtensions = []string{".mp3", ".wav", ".m4a", ".mp4", ".mov", ".avi", ".ogg", ".opus"}

// SupportedFormat reports whether name carries an accepted extension.
func SupportedFormat(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range AcceptedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Transcriber turns a ready artifact into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, in types.MediaArtifact, ws processor.Workspace, onProgress func(types.Progress)) (types.Transcript, error)
}

type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Fetcher downloads remote media into dir as a single audio artifact.
type Fetcher interface {
	Fetch(ctx context.Context, url, dir string) (types.MediaArtifact, error)
}

type Options struct {
	WorkDir        string
	TargetLanguage string
	MaxEvents      int
}

type Deps struct {
	Transcriber Transcriber
	Translator  Translator
	Fetcher     Fetcher
}

// Snapshot is a read-only view of a session for renderers.
type Snapshot struct {
	ID             string                  `json:"id"`
	Identity       string                  `json:"identity,omitempty"`
	State          State                   `json:"state"`
	Ready          bool                    `json:"ready"`
	Artifact       *types.MediaArtifact    `json:"artifact,omitempty"`
	Transcript     string                  `json:"transcript,omitempty"`
	Pieces         []types.TranscriptPiece `json:"pieces,omitempty"`
	Strategy       types.Strategy          `json:"strategy,omitempty"`
	Translation    string                  `json:"translation,omitempty"`
	TargetLanguage string                  `json:"targetLanguage"`
}

// HasTranscript reports whether the snapshot carries transcript text.
func (s Snapshot) HasTranscript() bool {
	return s.Transcript != ""
}

// Session is the explicit controller for one unit of work. Actions are
// serialized: a second action while one runs returns ErrBusy, and Reset
// cancels the running action and waits for it before tearing down.
type Session struct {
	id     string
	opts   Options
	deps   Deps
	log    *logger.Logger
	events *EventBus

	action sync.Mutex

	mu          sync.RWMutex
	machine     *Machine
	identity    string
	artifact    types.MediaArtifact
	ws          *Workspace
	transcript  *types.Transcript
	translation *string
	cancel      context.CancelFunc
	resetting   int
}

func NewSession(opts Options, deps Deps, log *logger.Logger) *Session {
	if log == nil {
		log = logger.New()
	}
	id := uuid.NewString()
	return &Session{
		id:      id,
		opts:    opts,
		deps:    deps,
		log:     log.WithComponent("session").WithSession(id),
		events:  NewEventBus(opts.MaxEvents),
		machine: NewMachine(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Events() *EventBus { return s.events }

// AcquireUpload stores an uploaded file as the session input. Re-uploading
// the same name keeps the current input and results.
func (s *Session) AcquireUpload(ctx context.Context, name string, r io.Reader) (Snapshot, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return Snapshot{}, ErrEmptyInput
	}
	if !SupportedFormat(name) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}

	ctx, done, err := s.begin(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	defer done()

	if s.sameInput(name) {
		s.log.WithField("identity", name).Debug("same upload, keeping session")
		return s.Snapshot(), nil
	}
	ws, err := s.replaceInput()
	if err != nil {
		return Snapshot{}, err
	}

	path := filepath.Join(ws.Dir(), name)
	size, err := writeFile(ctx, path, r)
	if err != nil {
		s.abandon(ws)
		return Snapshot{}, fmt.Errorf("store upload: %w", err)
	}
	ws.Track(path)

	return s.inputReady(name, types.NewArtifact(path, size), ws)
}

// AcquireFromURL fetches remote media as the session input. A fetch failure
// leaves the session EMPTY.
func (s *Session) AcquireFromURL(ctx context.Context, url string) (Snapshot, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Snapshot{}, ErrEmptyInput
	}
	if s.deps.Fetcher == nil {
		return Snapshot{}, ErrURLUnavailable
	}

	ctx, done, err := s.begin(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	defer done()

	if s.sameInput(url) {
		s.log.WithField("identity", url).Debug("same url, keeping session")
		return s.Snapshot(), nil
	}
	ws, err := s.replaceInput()
	if err != nil {
		return Snapshot{}, err
	}

	artifact, err := s.deps.Fetcher.Fetch(ctx, url, ws.Dir())
	if err != nil {
		s.abandon(ws)
		s.publish(Event{Type: EventTypeError, Message: err.Error()})
		s.log.WithError(err).WithField("url", url).Warn("fetch failed")
		return Snapshot{}, err
	}
	ws.Track(artifact.Path)

	return s.inputReady(url, artifact, ws)
}

// RunTranscription transcribes the ready input. A session that already holds
// a transcript returns it without calling the capability again. On failure
// the session stays ready for a user-triggered retry.
func (s *Session) RunTranscription(ctx context.Context) (string, error) {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer done()

	s.mu.Lock()
	switch s.machine.State() {
	case StateEmpty:
		s.mu.Unlock()
		return "", ErrNotReady
	case StateTranscribed, StateTranslated:
		text := s.transcript.Text
		s.mu.Unlock()
		return text, nil
	}
	if err := s.machine.Transition(StateTranscribing); err != nil {
		s.mu.Unlock()
		return "", err
	}
	artifact, ws := s.artifact, s.ws
	s.mu.Unlock()
	s.publish(Event{Type: EventTypeState, State: StateTranscribing})

	log := s.log.WithField("artifact", artifact.Path).WithField("size", humanize.IBytes(uint64(artifact.Size)))
	log.Info("transcription started")

	transcript, err := s.deps.Transcriber.Transcribe(ctx, artifact, ws, func(p types.Progress) {
		s.publish(Event{
			Type:    EventTypeProgress,
			Message: fmt.Sprintf("part %d/%d", p.Done, p.Total),
			Done:    p.Done,
			Total:   p.Total,
		})
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		_ = s.machine.Transition(StateInputReady)
		if cancelled(err) {
			log.WithError(err).Info("transcription cancelled")
			s.publish(Event{Type: EventTypeState, State: StateInputReady, Message: "cancelled"})
			return "", err
		}
		log.WithError(err).Warn("transcription failed")
		s.publish(Event{Type: EventTypeError, State: StateInputReady, Message: err.Error()})
		return "", err
	}
	s.transcript = &transcript
	if err := s.machine.Transition(StateTranscribed); err != nil {
		return "", err
	}
	log.WithField("strategy", string(transcript.Strategy)).WithField("pieces", len(transcript.Pieces)).Info("transcription finished")
	s.publish(Event{Type: EventTypeResult, State: StateTranscribed})
	return transcript.Text, nil
}

// RunTranslation translates the stored transcript into the configured target
// language. A failure restores the prior state and keeps any earlier
// translation.
func (s *Session) RunTranslation(ctx context.Context) (string, error) {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer done()

	s.mu.Lock()
	prev := s.machine.State()
	if prev != StateTranscribed && prev != StateTranslated {
		s.mu.Unlock()
		return "", ErrNoTranscript
	}
	if err := s.machine.Transition(StateTranslating); err != nil {
		s.mu.Unlock()
		return "", err
	}
	text, target := s.transcript.Text, s.opts.TargetLanguage
	s.mu.Unlock()
	s.publish(Event{Type: EventTypeState, State: StateTranslating})

	translated, err := s.deps.Translator.Translate(ctx, text, target)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		_ = s.machine.Transition(prev)
		if cancelled(err) {
			s.log.WithError(err).Info("translation cancelled")
			s.publish(Event{Type: EventTypeState, State: prev, Message: "cancelled"})
			return "", err
		}
		var trErr *types.TranslationError
		if !errors.As(err, &trErr) {
			err = &types.TranslationError{Err: err}
		}
		s.log.WithError(err).Warn("translation failed")
		s.publish(Event{Type: EventTypeError, State: prev, Message: err.Error()})
		return "", err
	}
	s.translation = &translated
	if err := s.machine.Transition(StateTranslated); err != nil {
		return "", err
	}
	s.log.WithField("target", target).Info("translation finished")
	s.publish(Event{Type: EventTypeResult, State: StateTranslated})
	return translated, nil
}

// Reset cancels any running action, waits for it, then clears the session
// and releases its workspace. Actions started while a reset is pending are
// refused with ErrBusy. Calling it on an empty session is a no-op.
func (s *Session) Reset() {
	s.mu.Lock()
	s.resetting++
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.action.Lock()
	defer s.action.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetting--
	if s.machine.State() == StateEmpty && s.ws == nil {
		return
	}
	s.teardownLocked()
	s.publish(Event{Type: EventTypeState, State: StateEmpty})
}

// Close releases everything the session holds.
func (s *Session) Close() error {
	s.Reset()
	return nil
}

// Snapshot returns a copy of the session for rendering.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:             s.id,
		Identity:       s.identity,
		State:          s.machine.State(),
		Ready:          s.machine.Ready(),
		TargetLanguage: s.opts.TargetLanguage,
	}
	if snap.Ready {
		a := s.artifact
		snap.Artifact = &a
	}
	if s.machine.HasTranscript() && s.transcript != nil {
		snap.Transcript = s.transcript.Text
		snap.Pieces = append([]types.TranscriptPiece(nil), s.transcript.Pieces...)
		snap.Strategy = s.transcript.Strategy
	}
	if s.translation != nil {
		snap.Translation = *s.translation
	}
	return snap
}

// begin claims the action slot and publishes its cancel func under mu, so a
// concurrent Reset either sees the cancel func or is seen as pending.
func (s *Session) begin(ctx context.Context) (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resetting > 0 || !s.action.TryLock() {
		return nil, nil, ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	return ctx, func() {
		cancel()
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		s.action.Unlock()
	}, nil
}

func (s *Session) sameInput(identity string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.machine.Ready() && s.identity == identity
}

// replaceInput tears down the current input and opens a fresh workspace.
// Old text is cleared before anything about the new input is stored.
func (s *Session) replaceInput() (*Workspace, error) {
	s.mu.Lock()
	if s.machine.State() != StateEmpty || s.ws != nil {
		s.teardownLocked()
		s.publish(Event{Type: EventTypeState, State: StateEmpty})
	}
	s.mu.Unlock()

	ws, err := NewWorkspace(s.opts.WorkDir, s.id)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

func (s *Session) inputReady(identity string, artifact types.MediaArtifact, ws *Workspace) (Snapshot, error) {
	s.mu.Lock()
	if err := s.machine.Transition(StateInputReady); err != nil {
		s.mu.Unlock()
		s.abandon(ws)
		return Snapshot{}, err
	}
	s.identity = identity
	s.artifact = artifact
	s.ws = ws
	s.publish(Event{Type: EventTypeState, State: StateInputReady, Message: identity})
	s.mu.Unlock()

	s.log.WithField("identity", identity).WithField("size", humanize.IBytes(uint64(artifact.Size))).Info("input ready")
	return s.Snapshot(), nil
}

// abandon drops a workspace whose input never became ready.
func (s *Session) abandon(ws *Workspace) {
	if err := ws.Release(); err != nil {
		s.log.WithError(err).Warn("release workspace")
	}
}

// teardownLocked clears all results and the input. Caller holds s.mu.
func (s *Session) teardownLocked() {
	s.transcript = nil
	s.translation = nil
	s.identity = ""
	s.artifact = types.MediaArtifact{}
	if s.ws != nil {
		if err := s.ws.Release(); err != nil {
			s.log.WithError(err).Warn("release workspace")
		}
		s.ws = nil
	}
	s.machine.Reset()
}

func (s *Session) publish(e Event) {
	e.SessionID = s.id
	s.events.Publish(e)
}

// writeFile copies r to path, stopping early if ctx is cancelled.
func writeFile(ctx context.Context, path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, copyErr := io.Copy(f, readerWithContext{ctx: ctx, r: r})
	closeErr := f.Close()
	if copyErr != nil {
		return 0, copyErr
	}
	if closeErr != nil {
		return 0, closeErr
	}
	if n == 0 {
		return 0, errors.New("upload is empty")
	}
	return n, nil
}

type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (r readerWithContext) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

func cancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
