package synchrophasor

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFrameHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := FrameHeader{
		Sync:      (syncLeadByte << 8) | syncCfg2,
		FrameSize: 1234,
		IDCode:    7,
		SOC:       1700000000,
		TQ:        0,
		FracSec:   500000,
	}

	buf := new(bytes.Buffer)
	require.NoError(t, h.encode(buf))
	require.Equal(t, commonHeaderSize, buf.Len())

	got, err := decodeHeader(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, h.Sync, got.Sync)
	require.Equal(t, h.FrameSize, got.FrameSize)
	require.Equal(t, h.IDCode, got.IDCode)
	require.Equal(t, h.SOC, got.SOC)
	require.Equal(t, h.TQ, got.TQ)
	require.Equal(t, h.FracSec, got.FracSec)
}

func TestDecodeHeaderRejectsBadSync(t *testing.T) {
	data := make([]byte, commonHeaderSize)
	data[0] = 0x00
	_, err := decodeHeader(data)
	var corrupt *FrameCorruptError
	require.ErrorAs(t, err, &corrupt)
	require.Equal(t, ReasonBadSync, corrupt.Reason)
}

func TestDecodeHeaderRejectsShortInput(t *testing.T) {
	_, err := decodeHeader([]byte{0xAA, 0x31})
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestFrameTypeAt(t *testing.T) {
	h := FrameHeader{Sync: (syncLeadByte << 8) | syncCmd}
	buf := new(bytes.Buffer)
	require.NoError(t, h.encode(buf))

	ft, err := frameTypeAt(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, FrameTypeCmd, ft)
}

func TestSetTimeAndUtcRoundTrip(t *testing.T) {
	var h FrameHeader
	now := time.Date(2026, 3, 1, 12, 30, 0, 500000000, time.UTC)
	h.SetTime(now, 1000000)

	require.Less(t, h.FracSec, uint32(1000000))

	got := h.Utc(1000000)
	require.Equal(t, now.Unix(), got.Unix())
	fractionalMillis := got.Sub(got.Truncate(time.Second)).Milliseconds()
	require.InDelta(t, 500, fractionalMillis, 2)
}

func TestFrameTypeString(t *testing.T) {
	require.Equal(t, "CFG-2", FrameTypeCfg2.String())
	require.Equal(t, "UNKNOWN", FrameType(99).String())
}
