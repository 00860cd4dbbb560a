package synchrophasor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeTurnOnTxScenario(t *testing.T) {
	// Pinned scenario: TURN_ON_TX for idcode 7 yields an 18-byte frame
	// whose SYNC first byte is 0xAA, frame-type nibble is 4 (CMD), IDCODE
	// is 0x0007, CMD is 0x0002, and the trailing CRC re-verifies.
	raw, err := Encode(CmdTurnOnTx, 7, time.Now(), 1000000)
	require.NoError(t, err)
	require.Len(t, raw, 18)

	require.Equal(t, byte(0xAA), raw[0])
	frameTypeNibble := (raw[1] >> 4) & 0x07
	require.Equal(t, byte(4), frameTypeNibble)

	idCode := uint16(raw[4])<<8 | uint16(raw[5])
	require.Equal(t, uint16(7), idCode)

	cmd := uint16(raw[14])<<8 | uint16(raw[15])
	require.Equal(t, uint16(CmdTurnOnTx), cmd)

	crcData := raw[:len(raw)-2]
	wantCRC := uint16(raw[len(raw)-2])<<8 | uint16(raw[len(raw)-1])
	require.Equal(t, wantCRC, CalcCRC(crcData))
}

func TestCommandFrameDecodeRoundTrip(t *testing.T) {
	raw, err := Encode(CmdSendCfg2, 42, time.Now(), 1000000)
	require.NoError(t, err)

	c, err := DecodeCommand(raw)
	require.NoError(t, err)
	require.Equal(t, uint16(42), c.IDCode)
	require.Equal(t, uint16(CmdSendCfg2), c.CMD)
	require.Empty(t, c.ExtraFrame)
}

func TestCommandFracSecScaledByTimeBase(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 500000000, time.UTC) // exactly half a second
	raw, err := Encode(CmdTurnOffTx, 1, now, 1000000)
	require.NoError(t, err)

	c, err := DecodeCommand(raw)
	require.NoError(t, err)
	require.InDelta(t, 500000, c.FracSec, 1)
}

func TestDecodeCommandRejectsWrongFrameType(t *testing.T) {
	cfg := NewConfig2()
	cfg.TimeBase = 1000000
	raw, err := cfg.Pack()
	require.NoError(t, err)

	_, err = DecodeCommand(raw)
	require.ErrorIs(t, err, ErrUnexpectedFrameType)
}
