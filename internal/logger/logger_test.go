package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestJSONFormatCarriesFields verifies component and session tags reach the output.
func TestJSONFormatCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOptions(Options{Output: &buf, Format: "json", Level: "debug"})
	log.WithComponent("processor").WithSession("s-1").WithError(errors.New("bad")).Info("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["component"] != "processor" {
		t.Fatalf("component = %v", line["component"])
	}
	if line["session_id"] != "s-1" {
		t.Fatalf("session_id = %v", line["session_id"])
	}
	if line["error"] != "bad" {
		t.Fatalf("error = %v", line["error"])
	}
}

// TestLevelParsing checks the accepted level names.
func TestLevelParsing(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"WARN":    logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"":        logrus.InfoLevel,
		"verbose": logrus.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestWithRequestKeepsHeaderID checks an incoming X-Request-ID is reused.
func TestWithRequestKeepsHeaderID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOptions(Options{Output: &buf, Format: "text"})
	req := httptest.NewRequest("POST", "/session/upload", nil)
	req.Header.Set("X-Request-ID", "abc")
	log.WithRequest(req).Info("upload")

	if !strings.Contains(buf.String(), "req_id=abc") {
		t.Fatalf("missing req_id in %q", buf.String())
	}
}
