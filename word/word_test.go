package word_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hfale/pcale/word"
)

func TestAddressRoundTrip(t *testing.T) {
	cases := []string{"K6KB", "W1AW", "ABC", "STATION1234567"}
	for _, addr := range cases {
		words := word.EncodeAddress(word.TO, addr)
		got := word.DecodeAddress(words)
		require.Equal(t, addr, got)
	}
}

func TestWordBitsRoundTrip(t *testing.T) {
	w := word.NewCharacterWord(word.TO, 'A', 'B', 'C')
	bits := w.Bits()
	parsed := word.ParseWord(bits)
	require.Equal(t, word.TO, parsed.Preamble)
	chars := parsed.Characters()
	require.Equal(t, [3]byte{'A', 'B', 'C'}, chars)
}

func TestAddressBookIsForMe(t *testing.T) {
	ab := word.NewAddressBook()
	ab.SetSelfAddress("K6KB")
	ab.AddNet("NET1", "emergency net")

	require.True(t, ab.IsForMe("K6KB"))
	require.True(t, ab.IsForMe("NET1"))
	require.False(t, ab.IsForMe("W1AW"))
	require.True(t, ab.IsForMe("K@KB"))
	require.True(t, ab.IsForMe("*"))
}

func TestMatchWildcard(t *testing.T) {
	require.True(t, word.MatchWildcard("K@KB", "K6KB"))
	require.True(t, word.MatchWildcard("K*B", "K6KB"))
	require.True(t, word.MatchWildcard("K?KB", "K6KB"))
	require.False(t, word.MatchWildcard("K6KB", "W1AW"))
}

func TestAssemblerIndividualCall(t *testing.T) {
	a := word.NewAssembler()
	now := int64(0)

	for _, w := range word.EncodeAddress(word.TO, "K6KB") {
		msg, err := a.Push(w, now)
		require.Nil(t, msg)
		require.NoError(t, err)
		now += 392
	}
	var msg *word.Message
	for _, w := range word.EncodeAddress(word.FROM, "W1AW") {
		if m, _ := a.Push(w, now); m != nil {
			msg = m
		}
		now += 392
	}

	require.NotNil(t, msg)
	require.Equal(t, word.IndividualCall, msg.Type)
}

func TestAssemblerAMDCall(t *testing.T) {
	a := word.NewAssembler()
	now := int64(0)
	for _, w := range word.EncodeAddress(word.TO, "K6KB") {
		a.Push(w, now)
		now += 392
	}
	a.Push(word.NewCharacterWord(word.DATA, 'H', 'I', ' '), now)
	now += 392

	var msg *word.Message
	for _, w := range word.EncodeAddress(word.FROM, "W1AW") {
		if m, _ := a.Push(w, now); m != nil {
			msg = m
		}
		now += 392
	}

	require.NotNil(t, msg)
	require.Equal(t, word.AMDCall, msg.Type)
	require.Equal(t, "HI", msg.AMD)
}

func TestAssemblerSounding(t *testing.T) {
	a := word.NewAssembler()
	msg, err := a.Push(word.NewCharacterWord(word.TIS, 'W', '1', 'A'), 0)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, word.Sounding, msg.Type)
}

func TestAssemblerTimeoutDropsPartial(t *testing.T) {
	a := word.NewAssembler()
	a.Push(word.NewCharacterWord(word.TO, 'K', '6', 'K'), 0)

	// FROM arrives well past the 5000ms default timeout.
	msg, err := a.Push(word.NewCharacterWord(word.FROM, 'W', '1', 'A'), 6000)
	require.Nil(t, msg, "closing word after timeout should not complete the stale message")
	require.Error(t, err, "a FROM with no live opener is a protocol violation")
	var protoErr *word.ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestAssemblerNetCall(t *testing.T) {
	a := word.NewAssembler()
	now := int64(0)
	for _, w := range word.EncodeAddress(word.TWS, "NET1") {
		a.Push(w, now)
		now += 392
	}
	var msg *word.Message
	for _, w := range word.EncodeAddress(word.FROM, "W1AW") {
		if m, _ := a.Push(w, now); m != nil {
			msg = m
		}
		now += 392
	}
	require.NotNil(t, msg)
	require.Equal(t, word.NetCall, msg.Type)
}

func TestAssemblerStrayDataProducesProtocolError(t *testing.T) {
	a := word.NewAssembler()
	msg, err := a.Push(word.NewCharacterWord(word.DATA, 'H', 'I', ' '), 0)
	require.Nil(t, msg)
	var protoErr *word.ProtocolError
	require.ErrorAs(t, err, &protoErr)
}
