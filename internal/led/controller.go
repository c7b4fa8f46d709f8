// Package led drives an on-air tally light from the branch output state.
package led

// Patterns understood by every Controller.
const (
	PatternOff   = "off"
	PatternSolid = "solid"
	PatternBlink = "blink"
)

// Controller drives a single indicator LED.
type Controller interface {
	// Set applies one of PatternOff, PatternSolid or PatternBlink.
	Set(pattern string) error

	// Name identifies the LED, empty when there is none.
	Name() string
}
