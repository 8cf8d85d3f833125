package radioio

// Composite combines a frequency-control adapter and a PTT-control adapter
// into one core.RadioController, since most HF stations tune over CAT but
// key PTT over a separate GPIO line (spec.md §6: the radio boundary is one
// capability interface, but nothing requires one physical adapter to
// implement both halves).
type Composite struct {
	Tuner *HamlibTuner
	Keyer *GPIOKeyer
}

// SetFrequency delegates to Tuner.
func (c *Composite) SetFrequency(hz uint32) error {
	if c.Tuner == nil {
		return nil
	}
	return c.Tuner.SetFrequency(hz)
}

// SetPTT delegates to Keyer.
func (c *Composite) SetPTT(on bool) error {
	if c.Keyer == nil {
		return nil
	}
	return c.Keyer.SetPTT(on)
}
