package synchrophasor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPadAndTrimName(t *testing.T) {
	padded := padString("TEST")
	require.Len(t, padded, nameFieldLength)
	require.Equal(t, "TEST", trimName([]byte(padded)))
}

func TestPadStringTruncatesOverlong(t *testing.T) {
	padded := padString("THIS NAME IS DEFINITELY TOO LONG")
	require.Len(t, padded, nameFieldLength)
}

func TestBitSetAndBitField(t *testing.T) {
	var v uint16 = 0b1010_0000_0000_0101
	require.True(t, bitSet(v, 0))
	require.True(t, bitSet(v, 2))
	require.False(t, bitSet(v, 1))

	require.Equal(t, uint16(0b101), bitField(v, 13, 15))
}

func TestHexRoundTrip(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	hexStr := bytesToHex(data)
	require.Equal(t, "DEADBEEF", hexStr)

	back, err := hexToBytes(hexStr)
	require.NoError(t, err)
	require.Equal(t, data, back)
}
