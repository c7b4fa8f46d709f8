package led

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakeLED(t *testing.T, name string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"trigger", "brightness"} {
		if err := os.WriteFile(filepath.Join(dir, f), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestSysfsController_Set(t *testing.T) {
	tests := []struct {
		pattern        string
		wantTrigger    string
		wantBrightness string
	}{
		{PatternSolid, "none", "1"},
		{PatternBlink, "heartbeat", "1"},
		{PatternOff, "none", "0"},
	}

	root := fakeLED(t, "ACT")
	ctrl := newSysfs(root, "ACT")

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			if err := ctrl.Set(tt.pattern); err != nil {
				t.Fatalf("Set(%q): %v", tt.pattern, err)
			}
			if got := readFile(t, filepath.Join(root, "ACT", "trigger")); got != tt.wantTrigger {
				t.Errorf("trigger = %q, want %q", got, tt.wantTrigger)
			}
			if got := readFile(t, filepath.Join(root, "ACT", "brightness")); got != tt.wantBrightness {
				t.Errorf("brightness = %q, want %q", got, tt.wantBrightness)
			}
		})
	}
}

func TestSysfsController_Errors(t *testing.T) {
	root := fakeLED(t, "ACT")

	if err := newSysfs(root, "ACT").Set("strobe"); err == nil {
		t.Error("Set() with unknown pattern should fail")
	}
	if err := newSysfs(root, "missing").Set(PatternSolid); err == nil {
		t.Error("Set() on a missing LED should fail")
	}
}

func TestNewController(t *testing.T) {
	root := fakeLED(t, "ACT")
	model := filepath.Join(t.TempDir(), "model")
	if err := os.WriteFile(model, []byte("Raspberry Pi 4 Model B Rev 1.4\x00"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		modelPath string
		led       string
		wantName  string
	}{
		{"explicit LED", "/nonexistent", "ACT", "ACT"},
		{"board default", model, "", "ACT"},
		{"unknown board", "/nonexistent", "", ""},
		{"missing LED", "/nonexistent", "usr_led", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newController(root, tt.modelPath, tt.led, discardLogger())
			if ctrl.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", ctrl.Name(), tt.wantName)
			}
			if err := ctrl.Set(PatternSolid); err != nil {
				t.Errorf("Set() returned error: %v", err)
			}
		})
	}
}

func TestDetectBoard(t *testing.T) {
	if got := detectBoard("/nonexistent/model"); got != "unknown" {
		t.Errorf("detectBoard() = %q, want unknown", got)
	}
}
