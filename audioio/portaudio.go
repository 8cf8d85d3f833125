// Package audioio provides a concrete "audio boundary" adapter (spec.md
// §6) satisfying core.AudioPort: a PortAudio sample source/sink, grounded
// on the teacher's own audio.go soundcard I/O, generalized from its
// multi-channel/multi-rate device enumeration down to the single mono
// 8 kHz stream this core's physical layer requires.
package audioio

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"

	"github.com/hfale/pcale/tone"
)

// PortAudioDevice is a mono, 8 kHz, 16-bit PortAudio stream used as both
// the transmit sample sink and the receive sample source. Matching the
// teacher's audio_open/audio_close lifecycle, callers must Close it when
// done.
type PortAudioDevice struct {
	stream *portaudio.Stream
	out    chan int16
	in     chan int16
	logger *log.Logger
}

// Open initializes PortAudio and opens the default input/output devices at
// tone.SampleRate, mono, framesPerBuffer samples per callback.
func Open(framesPerBuffer int) (*PortAudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audioio: portaudio init: %w", err)
	}

	d := &PortAudioDevice{
		out:    make(chan int16, 65536),
		in:     make(chan int16, 65536),
		logger: log.With("component", "audioio.portaudio"),
	}

	inBuf := make([]int16, framesPerBuffer)
	outBuf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 1, float64(tone.SampleRate), framesPerBuffer, func(in, out []int16) {
		copy(inBuf, in)
		for _, s := range inBuf {
			select {
			case d.in <- s:
			default:
			}
		}
		for i := range outBuf {
			select {
			case outBuf[i] = <-d.out:
			default:
				outBuf[i] = 0
			}
		}
		copy(out, outBuf)
	})
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audioio: opening default stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audioio: starting stream: %w", err)
	}

	d.stream = stream
	return d, nil
}

// WriteSamples enqueues samples for playback, blocking if the internal
// buffer is full.
func (d *PortAudioDevice) WriteSamples(samples []int16) error {
	for _, s := range samples {
		d.out <- s
	}
	return nil
}

// ReadSamples drains up to len(buf) captured samples into buf without
// blocking past what is currently available.
func (d *PortAudioDevice) ReadSamples(buf []int16) (int, error) {
	n := 0
	for n < len(buf) {
		select {
		case s := <-d.in:
			buf[n] = s
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

// Close stops the stream and terminates the PortAudio session.
func (d *PortAudioDevice) Close() error {
	if err := d.stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}
