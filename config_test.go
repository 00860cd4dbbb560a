package synchrophasor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// buildMinimalCfg2 constructs the "minimal CFG2" scenario: one station
// named TEST with a single float-rectangular phasor channel, datarate 50,
// TIME_BASE 1,000,000.
func buildMinimalCfg2(t *testing.T) *Config {
	t.Helper()
	cfg := NewConfig2()
	cfg.IDCode = 1
	cfg.TimeBase = 1000000
	cfg.DataRate = 50

	st := &Station{
		STN:          "TEST",
		IDCode:       1,
		Phnmr:        1,
		Annmr:        0,
		Dgnmr:        0,
		ChannelNames: []string{"VA"},
		PhUnit:       []uint32{1},
		FNOM:         FreqNom60Hz,
	}
	st.SetFormat(false, false, true, false) // phasor float, rectangular
	cfg.AddStation(st)

	return cfg
}

func TestConfigPackDecodeMinimalCfg2(t *testing.T) {
	cfg := buildMinimalCfg2(t)

	raw, err := cfg.Pack()
	require.NoError(t, err)

	got, err := DecodeConfig(raw)
	require.NoError(t, err)

	require.Equal(t, 2, got.Version())
	require.Equal(t, 1, got.NumPMU())
	require.Equal(t, uint32(1000000), got.TimeBase)
	require.Equal(t, int16(50), got.DataRate)

	require.Len(t, got.Stations, 1)
	station := got.Stations[0]
	require.Equal(t, "TEST", station.STN)
	require.Equal(t, uint16(1), station.Phnmr)
	require.Equal(t, []string{"VA"}, station.PhasorNames())
	require.True(t, station.FormatPhasorFloat())
	require.False(t, station.FormatPhasorPolar())
}

func TestConfigPackDecodeCfg1(t *testing.T) {
	cfg := NewConfig1()
	cfg.IDCode = 1
	cfg.TimeBase = 1000000
	cfg.DataRate = 30
	cfg.AddStation(&Station{STN: "STATION1", IDCode: 1, ChannelNames: []string{}})

	raw, err := cfg.Pack()
	require.NoError(t, err)

	got, err := DecodeConfig(raw)
	require.NoError(t, err)
	require.Equal(t, 1, got.Version())
}

func TestDecodeConfigRejectsBadCRC(t *testing.T) {
	cfg := buildMinimalCfg2(t)
	raw, err := cfg.Pack()
	require.NoError(t, err)

	raw[len(raw)-1] ^= 0xFF
	_, err = DecodeConfig(raw)
	var corrupt *FrameCorruptError
	require.ErrorAs(t, err, &corrupt)
	require.Equal(t, ReasonBadCRC, corrupt.Reason)
}

func TestDecodeConfigRejectsWrongFrameType(t *testing.T) {
	data, err := Encode(CmdTurnOnTx, 1, time.Now(), 1000000)
	require.NoError(t, err)
	_, err = DecodeConfig(data)
	require.ErrorIs(t, err, ErrUnexpectedFrameType)
}

func TestIsTimeReliable(t *testing.T) {
	cfg := buildMinimalCfg2(t)
	cfg.TQ = 0
	require.True(t, cfg.IsTimeReliable())

	cfg.TQ = 0x0F
	require.False(t, cfg.IsTimeReliable())
}

func TestStationChannelNameLookup(t *testing.T) {
	st := &Station{
		Phnmr:        2,
		Annmr:        1,
		Dgnmr:        1,
		ChannelNames: []string{"VA", "VB", "WATTS", "BRK1", "BRK2", "BRK3", "BRK4", "BRK5", "BRK6", "BRK7", "BRK8", "BRK9", "BRK10", "BRK11", "BRK12", "BRK13", "BRK14", "BRK15", "BRK16"},
	}
	idx, ok := st.PhasorIndex("VB")
	require.True(t, ok)
	require.Equal(t, 1, idx)

	idx, ok = st.AnalogIndex("WATTS")
	require.True(t, ok)
	require.Equal(t, 0, idx)

	_, ok = st.DigitalIndex("NOPE")
	require.False(t, ok)
}
