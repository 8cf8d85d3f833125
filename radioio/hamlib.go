// Package radioio provides concrete "radio boundary" adapters (spec.md §6)
// satisfying core.RadioController: CAT frequency control via Hamlib, and
// GPIO-keyed PTT, grounded on the teacher's own rig.h CAT integration and
// GPIO-based output control conventions.
package radioio

import (
	"fmt"

	"github.com/charmbracelet/log"
	hamlib "github.com/xylo04/goHamlib"
)

// HamlibTuner drives a rig's VFO frequency over Hamlib CAT control. It
// implements core.RadioController's SetFrequency; SetPTT is always a no-op
// (most HF setups key PTT via a separate GPIO line, see GPIOKeyer).
type HamlibTuner struct {
	rig    *hamlib.Rig
	vfo    hamlib.VFO
	logger *log.Logger
}

// NewHamlibTuner opens a Hamlib rig backend for modelID on the given serial
// device (e.g. "/dev/ttyUSB0"), matching the teacher's own
// `rig_set_debug`/CAT usage pattern referenced from its main program.
func NewHamlibTuner(modelID int, device string) (*HamlibTuner, error) {
	rig := hamlib.NewRig(modelID)
	rig.SetConf("rig_pathname", device)
	if err := rig.Open(); err != nil {
		return nil, fmt.Errorf("radioio: opening rig model %d on %s: %w", modelID, device, err)
	}
	return &HamlibTuner{rig: rig, vfo: hamlib.VFOCurrent, logger: log.With("component", "radioio.hamlib")}, nil
}

// SetFrequency tunes the rig's current VFO to hz.
func (t *HamlibTuner) SetFrequency(hz uint32) error {
	if err := t.rig.SetFreq(t.vfo, float64(hz)); err != nil {
		return fmt.Errorf("radioio: set frequency %d: %w", hz, err)
	}
	t.logger.Debug("frequency set", "hz", hz)
	return nil
}

// SetPTT is a no-op: this adapter only controls frequency. Compose with
// GPIOKeyer (or a rig that keys PTT over CAT, via rig.SetPTT) for
// transmit control.
func (t *HamlibTuner) SetPTT(on bool) error { return nil }

// Close releases the underlying rig handle.
func (t *HamlibTuner) Close() error {
	return t.rig.Close()
}
