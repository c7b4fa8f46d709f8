package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func resetState() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	logBuffer = nil
	logCallback = nil
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"output": "debug",
			"api":    "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"output", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()

			if got := handler.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, got, tt.wantDebug)
			}
			if got := handler.Enabled(context.Background(), slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, got, tt.wantInfo)
			}
			if got := handler.Enabled(context.Background(), slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, got, tt.wantWarn)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	loggerBefore := GetLogger("hostsim")
	handlerBefore := loggerBefore.Handler()

	if handlerBefore.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Logger created before Initialize should NOT have debug enabled")
	}

	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"hostsim": "debug"},
	})

	if GetLogger("hostsim") != loggerBefore {
		t.Error("Logger should be cached - same pointer before and after Initialize")
	}
	if !handlerBefore.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Cached logger should have debug enabled after Initialize updates LevelVar")
	}
}

func TestSetModuleLevel(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info"})

	handler := GetLogger("audio").Handler()
	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug enabled before SetModuleLevel")
	}

	if err := SetModuleLevel("audio", "DEBUG"); err != nil {
		t.Fatalf("SetModuleLevel: %v", err)
	}
	if !handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug not enabled after SetModuleLevel")
	}
	if got := ModuleLevels()["audio"]; got != "debug" {
		t.Errorf("ModuleLevels()[audio] = %q, want debug", got)
	}

	if err := SetModuleLevel("audio", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestBufferHandlerCapturesEntries(t *testing.T) {
	resetState()
	Initialize(Config{Level: "debug", BufferSize: 4})

	var mu sync.Mutex
	var seen []LogEntry
	SetLogCallback(func(e LogEntry) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	})
	defer SetLogCallback(nil)

	logger := GetLogger("output").With("filter", "Branch 1")
	logger.WithGroup("video").Info("Output started", "width", 1280, "elapsed", 2*time.Second)

	entries := GetBuffer().ReadAll()
	if len(entries) != 1 {
		t.Fatalf("buffered %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Module != "output" || e.Level != "info" || e.Message != "Output started" {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Attributes["filter"] != "Branch 1" {
		t.Errorf("filter attr = %v", e.Attributes["filter"])
	}
	if e.Attributes["video.width"] != int64(1280) {
		t.Errorf("video.width attr = %v (%T)", e.Attributes["video.width"], e.Attributes["video.width"])
	}
	if e.Attributes["video.elapsed"] != "2s" {
		t.Errorf("video.elapsed attr = %v", e.Attributes["video.elapsed"])
	}
	if e.Seq != 1 {
		t.Errorf("Seq = %d, want 1", e.Seq)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0].Seq != 1 {
		t.Errorf("callback saw %+v", seen)
	}
}

func TestRingBufferWrapAndReadSince(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		rb.Write(LogEntry{Message: msg})
	}

	if rb.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", rb.Count())
	}

	var got []string
	for _, e := range rb.ReadAll() {
		got = append(got, e.Message)
	}
	if strings.Join(got, "") != "cde" {
		t.Errorf("ReadAll() = %v, want [c d e]", got)
	}

	since := rb.ReadSince(4)
	if len(since) != 1 || since[0].Message != "e" || since[0].Seq != 5 {
		t.Errorf("ReadSince(4) = %+v", since)
	}
	if rb.ReadSince(5) != nil {
		t.Error("ReadSince(latest) should be empty")
	}
}

func TestMultiHandlerDebugOutput(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, infoHandler)).With("module", "test")
	logger.Debug("debug only message")

	if count := strings.Count(buf.String(), "debug only message"); count != 1 {
		t.Errorf("Expected 1 debug message, got %d. Output: %s", count, buf.String())
	}
}

func TestFormatLogLine(t *testing.T) {
	entry := LogEntry{
		Timestamp:  time.Date(2025, 1, 9, 10, 30, 0, 0, time.UTC),
		Level:      "warn",
		Module:     "audio",
		Message:    "Audio buffer overflow",
		Attributes: map[string]any{"filter": "Branch 1", "dropped": 800},
	}
	want := "2025-01-09T10:30:00Z [WARN] [audio] Audio buffer overflow dropped=800 filter=Branch 1"
	if got := FormatLogLine(entry); got != want {
		t.Errorf("FormatLogLine() = %q, want %q", got, want)
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			if tt.isNil {
				if got != nil {
					t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
