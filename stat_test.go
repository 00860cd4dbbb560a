package synchrophasor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatDecodeEncodeRoundTrip(t *testing.T) {
	cases := []uint16{
		0x0000,
		0xFFFF,
		0x2000, // PmuSync bit set -> no-sync
		0x1234,
		0x8765,
	}
	for _, raw := range cases {
		s := decodeStat(raw)
		require.Equal(t, raw, s.encode(), "round trip for 0x%04X", raw)
	}
}

func TestStatDataErrorBits(t *testing.T) {
	// bits 15-14 = 11 -> DataErrorInvalid
	s := decodeStat(0xC000)
	require.Equal(t, DataErrorInvalid, s.DataError)
	require.Equal(t, "invalid", s.DataError.String())
}

func TestStatPmuSyncBit(t *testing.T) {
	synced := decodeStat(0x0000)
	require.True(t, synced.PmuSync)

	unsynced := decodeStat(1 << 13)
	require.False(t, unsynced.PmuSync)
}

func TestStatTriggerReasonNibble(t *testing.T) {
	s := decodeStat(0x000F)
	require.Equal(t, uint8(0x0F), s.TriggerReason)
}
