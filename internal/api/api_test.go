package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"media-transcript-go/internal/logger"
	"media-transcript-go/internal/pipeline"
	"media-transcript-go/internal/processor"
	"media-transcript-go/internal/translation"
	"media-transcript-go/internal/types"
)

type fakeTranscriber struct {
	calls int
	text  string
	err   error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, in types.MediaArtifact, ws processor.Workspace, onProgress func(types.Progress)) (types.Transcript, error) {
	f.calls++
	if f.err != nil {
		return types.Transcript{}, f.err
	}
	return types.Transcript{Text: f.text, Strategy: types.StrategyDirect}, nil
}

type fakeTranslator struct{}

func (fakeTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	return "[" + target + "] " + text, nil
}

type fakeFetcher struct {
	err error
}

func (f fakeFetcher) Fetch(ctx context.Context, url, dir string) (types.MediaArtifact, error) {
	return types.MediaArtifact{}, f.err
}

func newTestServer(t *testing.T, tr *fakeTranscriber, fetchErr error) *httptest.Server {
	t.Helper()
	log := logger.Discard()
	session := pipeline.NewSession(pipeline.Options{WorkDir: t.TempDir(), TargetLanguage: "tr"}, pipeline.Deps{
		Transcriber: tr,
		Translator:  fakeTranslator{},
		Fetcher:     fakeFetcher{err: fetchErr},
	}, log)
	srv := httptest.NewServer(NewRouter(NewHandler(session, 10<<20, log), nil, log))
	t.Cleanup(func() {
		srv.Close()
		_ = session.Close()
	})
	return srv
}

func uploadFile(t *testing.T, srv *httptest.Server, name, content string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte(content))
	_ = mw.Close()

	resp, err := http.Post(srv.URL+"/session/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return resp
}

func post(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

// TestUploadTranscribeExport walks the main flow over HTTP.
func TestUploadTranscribeExport(t *testing.T) {
	tr := &fakeTranscriber{text: "Merhaba dünya"}
	srv := newTestServer(t, tr, nil)

	resp := uploadFile(t, srv, "talk.mp3", "audio")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	var snap pipeline.Snapshot
	decode(t, resp, &snap)
	if snap.State != pipeline.StateInputReady {
		t.Fatalf("state = %s", snap.State)
	}

	resp = post(t, srv, "/session/transcribe", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transcribe status = %d", resp.StatusCode)
	}
	var out transcriptResponse
	decode(t, resp, &out)
	if out.Transcript != "Merhaba dünya" || out.Session.State != pipeline.StateTranscribed {
		t.Fatalf("response = %+v", out)
	}

	resp = post(t, srv, "/session/translate", "")
	var tl translationResponse
	decode(t, resp, &tl)
	if tl.Translation != "[tr] Merhaba dünya" {
		t.Fatalf("translation = %q", tl.Translation)
	}

	resp, err := http.Get(srv.URL + "/session/export?format=txt")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "talk_transcript.txt") {
		t.Fatalf("content-disposition = %q", cd)
	}
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if !strings.HasPrefix(buf.String(), "Merhaba dünya\n") {
		t.Fatalf("export body = %q", buf.String())
	}

	xresp, err := http.Get(srv.URL + "/session/export?format=xlsx")
	if err != nil {
		t.Fatal(err)
	}
	xresp.Body.Close()
	if !strings.Contains(xresp.Header.Get("Content-Type"), "spreadsheetml") {
		t.Fatalf("xlsx content-type = %q", xresp.Header.Get("Content-Type"))
	}
}

// TestTranscribeWithoutInputConflicts checks the not-ready mapping.
func TestTranscribeWithoutInputConflicts(t *testing.T) {
	srv := newTestServer(t, &fakeTranscriber{text: "x"}, nil)
	resp := post(t, srv, "/session/transcribe", "")
	var body map[string]string
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusConflict || body["kind"] != "not_ready" {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}

	resp, err := http.Get(srv.URL + "/session/export")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
}

// TestURLAuthRequired checks protected sources map to 403 and stay empty.
func TestURLAuthRequired(t *testing.T) {
	tr := &fakeTranscriber{text: "x"}
	srv := newTestServer(t, tr, &types.FetchError{URL: "https://v", Kind: types.FetchAuthRequired})

	resp := post(t, srv, "/session/url", `{"url":"https://v"}`)
	var body map[string]string
	decode(t, resp, &body)
	if resp.StatusCode != http.StatusForbidden || body["kind"] != "auth_required" {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}

	resp, err := http.Get(srv.URL + "/session")
	if err != nil {
		t.Fatal(err)
	}
	var snap pipeline.Snapshot
	decode(t, resp, &snap)
	if snap.State != pipeline.StateEmpty || tr.calls != 0 {
		t.Fatalf("snapshot = %+v calls = %d", snap, tr.calls)
	}
}

// TestUploadRejectsUnsupportedFormat checks the allowlist mapping.
func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	srv := newTestServer(t, &fakeTranscriber{}, nil)
	resp := uploadFile(t, srv, "notes.pdf", "x")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

// TestEventsAndReset checks the event feed and reset endpoint.
func TestEventsAndReset(t *testing.T) {
	srv := newTestServer(t, &fakeTranscriber{text: "x"}, nil)
	uploadFile(t, srv, "a.wav", "audio").Body.Close()

	resp, err := http.Get(srv.URL + "/session/events?since=0")
	if err != nil {
		t.Fatal(err)
	}
	var events []pipeline.Event
	decode(t, resp, &events)
	if len(events) == 0 || events[len(events)-1].State != pipeline.StateInputReady {
		t.Fatalf("events = %+v", events)
	}

	bad, err := http.Get(srv.URL + "/session/events?since=-1")
	if err != nil {
		t.Fatal(err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", bad.StatusCode)
	}

	resp = post(t, srv, "/session/reset", "")
	var snap pipeline.Snapshot
	decode(t, resp, &snap)
	if snap.State != pipeline.StateEmpty || snap.Ready {
		t.Fatalf("snapshot = %+v", snap)
	}
}

// TestStatusFor covers the error to status mapping.
func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&types.FetchError{Kind: types.FetchNotFound}, http.StatusNotFound},
		{pipeline.ErrBusy, http.StatusConflict},
		{&types.CapacityExceededError{}, http.StatusRequestEntityTooLarge},
		{&types.EncodingError{Op: "compress"}, http.StatusUnprocessableEntity},
		{&types.SegmentationError{}, http.StatusUnprocessableEntity},
		{&types.TranscriptionError{Ordinal: 2, Err: errors.New("x")}, http.StatusBadGateway},
		{&types.TranslationError{Err: errors.New("x")}, http.StatusBadGateway},
		{&types.TranscriptionError{Ordinal: 1, Err: context.Canceled}, statusClientClosedRequest},
		{&types.TranslationError{Err: context.Canceled}, statusClientClosedRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
	if got := kindFor(&types.TranscriptionError{Err: context.Canceled}); got != "cancelled" {
		t.Fatalf("kindFor(cancelled) = %q", got)
	}
}

// blockingTranscriber holds each request until its context ends.
type blockingTranscriber struct {
	started chan struct{}
}

func (b blockingTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	close(b.started)
	<-ctx.Done()
	return "", ctx.Err()
}

// serveCancelled sends req through router, cancels it once started fires and
// returns the recorded response.
func serveCancelled(t *testing.T, router http.Handler, req *http.Request, started <-chan struct{}) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		router.ServeHTTP(rec, req.WithContext(ctx))
		close(done)
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the backend")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after cancellation")
	}
	return rec
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body["kind"]
}

// TestCancelledTranscriptionIsClientClosed checks an abandoned request through
// the real orchestrator is not reported as a backend failure.
func TestCancelledTranscriptionIsClientClosed(t *testing.T) {
	log := logger.Discard()
	started := make(chan struct{})
	orch := processor.New(processor.Options{Limit: 24 << 20, ChunkDuration: 10 * time.Minute},
		processor.Deps{Transcriber: blockingTranscriber{started: started}}, log)
	session := pipeline.NewSession(pipeline.Options{WorkDir: t.TempDir(), TargetLanguage: "tr"}, pipeline.Deps{
		Transcriber: orch,
		Translator:  fakeTranslator{},
		Fetcher:     fakeFetcher{},
	}, log)
	t.Cleanup(func() { _ = session.Close() })
	router := NewRouter(NewHandler(session, 10<<20, log), nil, log)

	if _, err := session.AcquireUpload(context.Background(), "talk.mp3", strings.NewReader("audio")); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/session/transcribe", nil)
	rec := serveCancelled(t, router, req, started)

	if rec.Code != statusClientClosedRequest {
		t.Fatalf("status = %d, want %d", rec.Code, statusClientClosedRequest)
	}
	if kind := errorKind(t, rec); kind != "cancelled" {
		t.Fatalf("kind = %q", kind)
	}
	if snap := session.Snapshot(); snap.State != pipeline.StateInputReady {
		t.Fatalf("state = %s", snap.State)
	}
	for _, e := range session.Events().Since(0) {
		if e.Type == pipeline.EventTypeError {
			t.Fatalf("cancellation published an error event: %+v", e)
		}
	}
}

// TestCancelledTranslationIsClientClosed checks the same for a translation
// request stuck at the chat backend.
func TestCancelledTranslationIsClientClosed(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(backend.Close)
	t.Cleanup(func() { close(release) })

	log := logger.Discard()
	tl := translation.New(translation.Options{Endpoint: backend.URL, Model: "m", Timeout: 5 * time.Second}, log)
	session := pipeline.NewSession(pipeline.Options{WorkDir: t.TempDir(), TargetLanguage: "tr"}, pipeline.Deps{
		Transcriber: &fakeTranscriber{text: "hello"},
		Translator:  tl,
		Fetcher:     fakeFetcher{},
	}, log)
	t.Cleanup(func() { _ = session.Close() })
	router := NewRouter(NewHandler(session, 10<<20, log), nil, log)

	if _, err := session.AcquireUpload(context.Background(), "talk.mp3", strings.NewReader("audio")); err != nil {
		t.Fatal(err)
	}
	if _, err := session.RunTranscription(context.Background()); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/session/translate", nil)
	rec := serveCancelled(t, router, req, started)

	if rec.Code != statusClientClosedRequest {
		t.Fatalf("status = %d, want %d", rec.Code, statusClientClosedRequest)
	}
	if kind := errorKind(t, rec); kind != "cancelled" {
		t.Fatalf("kind = %q", kind)
	}
	if snap := session.Snapshot(); snap.State != pipeline.StateTranscribed || snap.Translation != "" {
		t.Fatalf("snapshot = %+v", snap)
	}
}
