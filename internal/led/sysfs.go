package led

import (
	"fmt"
	"os"
	"path/filepath"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs drives one LED through /sys/class/leds/<name>.
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

// Set writes the trigger and brightness for p. Blink hands the LED to the
// kernel heartbeat trigger, the other patterns use manual control.
func (s *sysfs) Set(p Pattern) error {
	dir := filepath.Join(s.root, s.name)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("LED %q not found at %s: %w", s.name, dir, err)
	}

	trigger, brightness := "none", "0"
	switch p {
	case Off:
	case Solid:
		brightness = "1"
	case Blink:
		trigger, brightness = "heartbeat", ""
	default:
		return fmt.Errorf("unknown LED pattern %q", p)
	}

	if err := os.WriteFile(filepath.Join(dir, "trigger"), []byte(trigger), 0o644); err != nil {
		return fmt.Errorf("set LED trigger: %w", err)
	}
	if brightness == "" {
		return nil
	}
	if err := os.WriteFile(filepath.Join(dir, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("set LED brightness: %w", err)
	}
	return nil
}
