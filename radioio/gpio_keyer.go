package radioio

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/warthog618/go-gpiocdev"
)

// GPIOKeyer keys a transmitter's PTT line through a GPIO character device
// line, grounded on the teacher's own output-control abstraction for PTT/DCD
// signaling (ptt.go's OCTYPE_PTT concept), generalized to the one signal
// this core needs.
type GPIOKeyer struct {
	line       *gpiocdev.Line
	activeHigh bool
	logger     *log.Logger
}

// NewGPIOKeyer requests offset on chip (e.g. "gpiochip0") as an output line
// for keying PTT. activeHigh selects whether a logic-1 or logic-0 level
// asserts PTT, matching whatever keying circuit the rig interface expects.
func NewGPIOKeyer(chip string, offset int, activeHigh bool) (*GPIOKeyer, error) {
	initial := 0
	if !activeHigh {
		initial = 1
	}
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(initial))
	if err != nil {
		return nil, fmt.Errorf("radioio: requesting PTT line %s:%d: %w", chip, offset, err)
	}
	return &GPIOKeyer{line: line, activeHigh: activeHigh, logger: log.With("component", "radioio.gpio")}, nil
}

// SetFrequency is a no-op: this adapter only controls PTT. Compose with
// HamlibTuner for frequency control.
func (k *GPIOKeyer) SetFrequency(hz uint32) error { return nil }

// SetPTT asserts or releases the keying line.
func (k *GPIOKeyer) SetPTT(on bool) error {
	value := 0
	if on == k.activeHigh {
		value = 1
	}
	if err := k.line.SetValue(value); err != nil {
		return fmt.Errorf("radioio: set PTT %v: %w", on, err)
	}
	k.logger.Debug("ptt set", "on", on)
	return nil
}

// Close releases the GPIO line.
func (k *GPIOKeyer) Close() error {
	return k.line.Close()
}
