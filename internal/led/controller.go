// Package led drives a board status LED from gate and recording state.
package led

// Pattern is a display mode for the status LED.
type Pattern string

// Supported patterns.
const (
	Off   Pattern = "off"
	Solid Pattern = "solid"
	Blink Pattern = "blink"
)

// Controller sets the status LED.
type Controller interface {
	Set(p Pattern) error
	Name() string
}
