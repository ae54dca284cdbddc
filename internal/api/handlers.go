package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"media-transcript-go/internal/export"
	"media-transcript-go/internal/logger"
	"media-transcript-go/internal/pipeline"
)

// Handler serves one pipeline session.
type Handler struct {
	session   *pipeline.Session
	log       *logger.Logger
	maxUpload int64
}

func NewHandler(session *pipeline.Session, maxUploadBytes int64, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.New()
	}
	return &Handler{session: session, log: log.WithComponent("api"), maxUpload: maxUploadBytes}
}

type urlRequest struct {
	URL string `json:"url"`
}

type transcriptResponse struct {
	Transcript string            `json:"transcript"`
	Session    pipeline.Snapshot `json:"session"`
}

type translationResponse struct {
	Translation string            `json:"translation"`
	Session     pipeline.Snapshot `json:"session"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "ok")
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, h.session.Snapshot(), http.StatusOK)
}

// Upload streams the multipart "file" field into the session.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		jsonError(w, "expected multipart/form-data body", http.StatusBadRequest)
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			jsonError(w, "missing file field", http.StatusBadRequest)
			return
		}
		if err != nil {
			h.fail(w, r, fmt.Errorf("read upload: %w", err))
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		snap, err := h.session.AcquireUpload(r.Context(), part.FileName(), part)
		_ = part.Close()
		if err != nil {
			h.fail(w, r, err)
			return
		}
		jsonResponse(w, snap, http.StatusOK)
		return
	}
}

func (h *Handler) SubmitURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	snap, err := h.session.AcquireFromURL(r.Context(), req.URL)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResponse(w, snap, http.StatusOK)
}

func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	text, err := h.session.RunTranscription(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.WithRequest(r).WithField("duration_ms", time.Since(start).Milliseconds()).Info("transcription returned")
	jsonResponse(w, transcriptResponse{Transcript: text, Session: h.session.Snapshot()}, http.StatusOK)
}

func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
	text, err := h.session.RunTranslation(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResponse(w, translationResponse{Translation: text, Session: h.session.Snapshot()}, http.StatusOK)
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.session.Reset()
	jsonResponse(w, h.session.Snapshot(), http.StatusOK)
}

// Events returns events newer than the since query parameter.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			jsonError(w, "since must be a non-negative integer", http.StatusBadRequest)
			return
		}
		since = v
	}
	events := h.session.Events().Since(since)
	if events == nil {
		events = []pipeline.Event{}
	}
	jsonResponse(w, events, http.StatusOK)
}

// Export downloads the transcript as txt (default) or xlsx.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap := h.session.Snapshot()
	if !snap.HasTranscript() {
		h.fail(w, r, pipeline.ErrNoTranscript)
		return
	}

	doc := export.Document{
		Identity:       snap.Identity,
		Transcript:     snap.Transcript,
		Pieces:         snap.Pieces,
		Strategy:       snap.Strategy,
		Translation:    snap.Translation,
		TargetLanguage: snap.TargetLanguage,
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(snap.Identity, format)))
	if err := export.Write(w, doc, format); err != nil {
		h.log.WithRequest(r).WithError(err).Error("export failed")
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	entry := h.log.WithRequest(r).WithError(err).WithField("status", status)
	if status >= 500 {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	jsonErrorKind(w, err.Error(), kindFor(err), status)
}

func jsonResponse(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	jsonErrorKind(w, msg, "bad_request", status)
}

func jsonErrorKind(w http.ResponseWriter, msg, kind string, status int) {
	jsonResponse(w, map[string]string{"error": msg, "kind": kind}, status)
}
