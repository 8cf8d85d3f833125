package audioio

import (
	"github.com/go-audio/audio"
)

// FromIntBuffer converts an external capture pipeline's audio.IntBuffer
// (e.g. from a WAV reader or a different capture library) into the plain
// []int16 this core's hot path uses everywhere else (spec.md §3: the
// sample format boundary is []int16 at tone.SampleRate; conversion from
// other container types happens only at the edge).
func FromIntBuffer(buf *audio.IntBuffer) []int16 {
	out := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = int16(v)
	}
	return out
}

// ToIntBuffer wraps a []int16 back into an audio.IntBuffer with the given
// format, for handing transmit samples to an external sink that expects
// the go-audio container type rather than a bare slice.
func ToIntBuffer(samples []int16, format *audio.Format) *audio.IntBuffer {
	data := make([]int, len(samples))
	for i, v := range samples {
		data[i] = int(v)
	}
	return &audio.IntBuffer{Format: format, Data: data, SourceBitDepth: 16}
}
