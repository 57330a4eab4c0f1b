package led

import (
	"os"
	"strings"

	"github.com/smazurov/framegate/internal/logging"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// Auto selects the LED from the board model.
const Auto = "auto"

// boardLEDs maps a device tree model substring to the LED used for status.
var boardLEDs = []struct {
	model string
	led   string
}{
	{"NanoPC-T6", "usr_led"},
	{"Orange Pi", "green_led"},
	{"Raspberry Pi", "ACT"},
}

// New returns a controller for name, which is a sysfs LED name or Auto.
// Unknown boards and an empty name get a no-op controller.
func New(name string, logger logging.Logger) Controller {
	if name == Auto {
		model := detectBoard(deviceTreeModelPath)
		name = ledForBoard(model)
		if name == "" {
			logger.Info("No status LED known for board", "board_model", model)
		} else {
			logger.Info("Detected board status LED", "board_model", model, "led", name)
		}
	}
	if name == "" {
		return noop{}
	}
	return newSysfs(sysfsLEDPath, name)
}

func ledForBoard(model string) string {
	for _, b := range boardLEDs {
		if strings.Contains(model, b.model) {
			return b.led
		}
	}
	return ""
}

// detectBoard reads the device tree model, which is NUL terminated.
func detectBoard(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}

type noop struct{}

func (noop) Set(Pattern) error { return nil }
func (noop) Name() string      { return "" }
