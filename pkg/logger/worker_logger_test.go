package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestLogger_WritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf, Service: "test"})

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	l.WithContext(ctx).
		WithField("extracted_by", "direct_email_extractor").
		WithError(errors.New("boom")).
		WithDuration(1500*time.Microsecond).
		Info("parsed %d emails", 2)

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if entry.Message != "parsed 2 emails" || entry.Level != "INFO" || entry.Service != "test" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.RequestID != "req-1" || entry.Error != "boom" || entry.Duration != 1.5 {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Fields["extracted_by"] != "direct_email_extractor" {
		t.Errorf("Fields = %v", entry.Fields)
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf})

	l.Info("hidden")
	l.Warn("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestLogger_WithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Config{Output: &buf})
	_ = parent.WithField("k", "v")

	parent.Info("x")
	if strings.Contains(buf.String(), `"k"`) {
		t.Errorf("parent logger picked up child field: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{"DEBUG": LevelDebug, "warning": LevelWarn, "error": LevelError, "": LevelInfo}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf})

	zl := l.Component("poller")
	zl.Info().Str("mailbox", "INBOX").Msg("tick")

	if !strings.Contains(buf.String(), "tick") || !strings.Contains(buf.String(), "poller") {
		t.Errorf("output = %q", buf.String())
	}
}
