package audioio_test

import (
	"testing"

	"github.com/go-audio/audio"
	"github.com/stretchr/testify/require"

	"github.com/hfale/pcale/audioio"
)

func TestIntBufferRoundTrip(t *testing.T) {
	format := &audio.Format{NumChannels: 1, SampleRate: 8000}
	samples := []int16{0, 1, -1, 32767, -32768, 100}

	buf := audioio.ToIntBuffer(samples, format)
	require.Equal(t, format, buf.Format)
	require.Len(t, buf.Data, len(samples))

	back := audioio.FromIntBuffer(buf)
	require.Equal(t, samples, back)
}
