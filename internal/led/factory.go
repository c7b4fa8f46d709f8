package led

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// boardLEDs maps board models to the LED used as tally light.
var boardLEDs = map[string]string{
	"NanoPC-T6":    "usr_led",
	"Orange Pi":    "green_led",
	"Raspberry Pi": "ACT",
}

// New returns a controller for the named sysfs LED. An empty name picks the
// board's default LED. Hosts without one get a no-op controller.
func New(name string, logger *slog.Logger) Controller {
	return newController(sysfsLEDPath, deviceTreeModelPath, name, logger)
}

func newController(root, modelPath, name string, logger *slog.Logger) Controller {
	if name == "" {
		model := detectBoard(modelPath)
		for board, led := range boardLEDs {
			if strings.Contains(model, board) {
				name = led
				break
			}
		}
		logger.Info("Detected board for tally LED", "board_model", model, "led", name)
	}

	if name == "" {
		logger.Info("No tally LED available, using no-op controller")
		return newNoop(logger)
	}
	if _, err := os.Stat(filepath.Join(root, name)); err != nil {
		logger.Warn("Tally LED not found, using no-op controller", "led", name, "error", err)
		return newNoop(logger)
	}
	return newSysfs(root, name)
}

// detectBoard reads the device tree model, "unknown" when unavailable.
func detectBoard(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}
