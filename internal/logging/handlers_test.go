package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"testing"
	"time"
)

type failingHandler struct {
	slog.Handler
	err error
}

func (h failingHandler) Handle(context.Context, slog.Record) error { return h.err }

func TestMultiHandlerJoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	text := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	errJournal := errors.New("journal unavailable")

	h := NewMultiHandler(nil, text, failingHandler{Handler: text, err: errJournal})
	if len(h.handlers) != 2 {
		t.Fatalf("handlers = %d, want nil skipped", len(h.handlers))
	}

	r := slog.NewRecord(time.Now(), slog.LevelWarn, "Audio buffer overflow", 0)
	if err := h.Handle(context.Background(), r); !errors.Is(err, errJournal) {
		t.Errorf("Handle() error = %v, want %v", err, errJournal)
	}
	if !strings.Contains(buf.String(), "Audio buffer overflow") {
		t.Errorf("healthy handler missed the record: %q", buf.String())
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(debug) = true, no handler accepts debug")
	}
}

func TestMultiHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	text := slog.NewTextHandler(&buf, nil)

	logger := slog.New(NewMultiHandler(text)).With("filter", "Branch 1").WithGroup("audio")
	logger.Info("Wait for frames", "buffered_frames", 512)

	out := buf.String()
	if !strings.Contains(out, "filter=\"Branch 1\"") || !strings.Contains(out, "audio.buffered_frames=512") {
		t.Errorf("output = %q", out)
	}
}

func TestJournalFieldName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"filter", "FILTER"},
		{"buffered_frames", "BUFFERED_FRAMES"},
		{"stored-rev", "STORED_REV"},
		{"http.status", "HTTP_STATUS"},
		{"_private", "PRIVATE"},
		{"2nd", "X2ND"},
		{"", "X"},
	}
	for _, tt := range tests {
		if got := fieldName(tt.key); got != tt.want {
			t.Errorf("fieldName(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestJournalHandlerFields(t *testing.T) {
	h := NewJournalHandler(slog.LevelInfo).
		WithAttrs([]slog.Attr{slog.String("filter", "Branch 1"), slog.String("module", "output")}).
		WithGroup("session").(*JournalHandler).
		WithAttrs([]slog.Attr{
			slog.Int("width", 1280),
			slog.Bool("active", true),
			slog.Float64("ratio", 0.5),
			slog.Group("audio", slog.Uint64("dropped", 800)),
		}).(*JournalHandler)

	want := map[string]string{
		"FILTER":                "Branch 1",
		"MODULE":                "output",
		"SESSION_WIDTH":         "1280",
		"SESSION_ACTIVE":        "true",
		"SESSION_RATIO":         "0.5",
		"SESSION_AUDIO_DROPPED": "800",
	}
	if !maps.Equal(h.fields, want) {
		t.Errorf("fields = %v, want %v", h.fields, want)
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(debug) = true at info level")
	}

	fields := map[string]string{}
	putField(fields, "", slog.Any("empty", nil))
	putField(fields, "", slog.Attr{})
	if _, ok := fields["EMPTY"]; !ok || len(fields) != 1 {
		t.Errorf("fields = %v, want only EMPTY", fields)
	}
}
