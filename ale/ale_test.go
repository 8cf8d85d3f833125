package ale_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hfale/pcale/ale"
	"github.com/hfale/pcale/word"
)

func newBookFor(self string) *word.AddressBook {
	ab := word.NewAddressBook()
	ab.SetSelfAddress(self)
	return ab
}

func feed(m *ale.Machine, preamble word.Preamble, addr string, nowMs int64) {
	for _, w := range word.EncodeAddress(preamble, addr) {
		m.ProcessWord(w, 30, 0, nowMs)
	}
}

func TestOutboundIndividualCallSequence(t *testing.T) {
	var transmitted []word.Word
	var linked bool
	ab := newBookFor("W1AW")
	m := ale.NewMachine(ale.DefaultConfig(), ab, []uint32{7100000}, ale.Callbacks{
		TransmitWord:    func(w word.Word) { transmitted = append(transmitted, w) },
		LinkEstablished: func(remote string, freq uint32) { linked = true; require.Equal(t, "K6KB", remote) },
	})

	m.RequestCall("K6KB", 7100000, 0)
	require.Equal(t, ale.StateCalling, m.State())
	require.NotEmpty(t, transmitted) // TO K6KB, FROM W1AW

	// Called station confirms with a standalone TIS K6KB.
	feed(m, word.TIS, "K6KB", 100)

	require.True(t, linked)
	require.Equal(t, ale.StateLinked, m.State())
}

func TestInboundCallResponse(t *testing.T) {
	var transmitted []word.Word
	var linked bool
	ab := newBookFor("K6KB")
	m := ale.NewMachine(ale.DefaultConfig(), ab, []uint32{7100000}, ale.Callbacks{
		TransmitWord:    func(w word.Word) { transmitted = append(transmitted, w) },
		LinkEstablished: func(remote string, freq uint32) { linked = true },
	})
	m.StartScan(0)
	require.Equal(t, ale.StateScanning, m.State())

	for _, w := range word.EncodeAddress(word.TO, "K6KB") {
		m.ProcessWord(w, 30, 0, 10)
	}
	for _, w := range word.EncodeAddress(word.FROM, "W1AW") {
		m.ProcessWord(w, 30, 0, 10)
	}
	require.Equal(t, ale.StateHandshake, m.State())
	require.NotEmpty(t, transmitted) // TIS K6KB reply

	feed(m, word.TWS, "K6KB", 20)
	require.True(t, linked)
	require.Equal(t, ale.StateLinked, m.State())
}

func TestCallTimeoutUnwindsToIdle(t *testing.T) {
	var reason error
	ab := newBookFor("W1AW")
	m := ale.NewMachine(ale.DefaultConfig(), ab, nil, ale.Callbacks{
		StateChanged: func(from, to ale.State, err error) {
			if to == ale.StateIdle {
				reason = err
			}
		},
	})
	m.RequestCall("K6KB", 7100000, 0)
	m.Update(30001)
	require.Equal(t, ale.StateIdle, m.State())
	require.Error(t, reason)
}

func TestLinkIdleTimeout(t *testing.T) {
	ab := newBookFor("W1AW")
	m := ale.NewMachine(ale.DefaultConfig(), ab, nil, ale.Callbacks{})
	m.RequestCall("K6KB", 7100000, 0)
	feed(m, word.TIS, "K6KB", 100)
	require.Equal(t, ale.StateLinked, m.State())

	m.Update(100 + ale.LinkIdleTimeoutMs + 1)
	require.Equal(t, ale.StateIdle, m.State())
}

func TestLqaFeedbackForwardedOnEveryWord(t *testing.T) {
	var samples []ale.LqaSample
	ab := newBookFor("W1AW")
	m := ale.NewMachine(ale.DefaultConfig(), ab, nil, ale.Callbacks{
		LqaFeedback: func(s ale.LqaSample) { samples = append(samples, s) },
	})
	m.ProcessWord(word.NewCharacterWord(word.TIS, 'A', 'B', 'C'), 21.5, 1, 0)
	require.Len(t, samples, 1)
	require.InDelta(t, 21.5, samples[0].SnrDb, 0.001)
}

func TestSendSoundingReturnsToPreviousState(t *testing.T) {
	var transmitted []word.Word
	ab := newBookFor("W1AW")
	m := ale.NewMachine(ale.DefaultConfig(), ab, nil, ale.Callbacks{
		TransmitWord: func(w word.Word) { transmitted = append(transmitted, w) },
	})
	m.StartScan(0)
	m.SendSounding(10)
	require.Equal(t, ale.StateScanning, m.State())
	require.NotEmpty(t, transmitted)
}
