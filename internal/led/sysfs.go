package led

import (
	"fmt"
	"os"
	"path/filepath"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs drives an LED through the Linux LED class interface.
type sysfs struct {
	root string
	name string
}

func newSysfs(root, name string) *sysfs {
	return &sysfs{root: root, name: name}
}

func (s *sysfs) Name() string {
	return s.name
}

// Set selects the kernel trigger for the pattern and switches the LED.
// Blinking uses the heartbeat trigger; solid and off take manual control.
func (s *sysfs) Set(pattern string) error {
	ledPath := filepath.Join(s.root, s.name)
	if _, err := os.Stat(ledPath); err != nil {
		return fmt.Errorf("LED %q not found at %s: %w", s.name, ledPath, err)
	}

	trigger, brightness := "none", "0"
	switch pattern {
	case PatternSolid:
		brightness = "1"
	case PatternBlink:
		trigger, brightness = "heartbeat", "1"
	case PatternOff:
	default:
		return fmt.Errorf("unknown LED pattern %q", pattern)
	}

	if err := os.WriteFile(filepath.Join(ledPath, "trigger"), []byte(trigger), 0o644); err != nil {
		return fmt.Errorf("failed to set LED trigger: %w", err)
	}
	if err := os.WriteFile(filepath.Join(ledPath, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}
	return nil
}
