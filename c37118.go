// Package synchrophasor implements a client-side codec and session driver
// for the IEEE C37.118-2005/2011 synchrophasor protocol: frame encode/decode,
// CRC-CCITT validation, and the negotiation/streaming state machine used to
// pull real-time phasor, frequency, analog, and digital samples from a PMU
// or PDC.
package synchrophasor

import (
	"bytes"
	"time"
)

// FrameType identifies the kind of a C37.118 frame, carried in bits 6-4 of
// the second SYNC byte.
type FrameType int

// Frame type values, per the SYNC word's frame-type nibble.
const (
	FrameTypeData FrameType = iota
	FrameTypeHeader
	FrameTypeCfg1
	FrameTypeCfg2
	FrameTypeCmd
	FrameTypeCfg3
)

func (t FrameType) String() string {
	switch t {
	case FrameTypeData:
		return "DATA"
	case FrameTypeHeader:
		return "HEADER"
	case FrameTypeCfg1:
		return "CFG-1"
	case FrameTypeCfg2:
		return "CFG-2"
	case FrameTypeCmd:
		return "CMD"
	case FrameTypeCfg3:
		return "CFG-3"
	default:
		return "UNKNOWN"
	}
}

// Sync byte constants. The high byte is always 0xAA; the low byte packs
// the frame-type nibble (bits 6-4) with a version nibble (bits 3-0).
const (
	syncLeadByte = 0xAA
	syncData     = 0x01
	syncHeader   = 0x11
	syncCfg1     = 0x21
	syncCfg2     = 0x31
	syncCmd      = 0x41
	syncCfg3     = 0x51
)

// Command codes for CommandFrame.CMD, per §4.6.
const (
	CmdTurnOffTx  = 0x01
	CmdTurnOnTx   = 0x02
	CmdSendHeader = 0x03
	CmdSendCfg1   = 0x04
	CmdSendCfg2   = 0x05
	CmdSendCfg3   = 0x06
	CmdSendExt    = 0x08
)

// Nominal frequency codes (Station.FNOM bit 0).
const (
	FreqNom60Hz = 0
	FreqNom50Hz = 1
)

// Phasor unit types (PhUnit high byte).
const (
	PhunitVoltage = 0
	PhunitCurrent = 1
)

// Analog unit types (AnUnit high byte). The standard leaves these device
// specific; these three are the conventional assignment carried over from
// the reference configuration generator.
const (
	AnunitPow  = 0
	AnunitRMS  = 1
	AnunitPeak = 2
)

const (
	commonHeaderSize = 14 // SYNC..FRACSEC, the common prefix before per-frame bodies
	maxFrameSize     = 65535
)

// FrameHeader is the common prefix shared by every C37.118 frame kind
// (§3 "Frame header", §4.2): SYNC, FRAMESIZE, IDCODE, SOC, TQ, FRACSEC, and
// the trailing CHK (read/written by each frame kind's own Pack/Unpack since
// it covers the whole frame, not just the header).
type FrameHeader struct {
	Sync      uint16
	FrameSize uint16
	IDCode    uint16
	SOC       uint32 // second-of-century, UNIX epoch seconds
	TQ        uint8  // time-quality byte; 15 means "unreliable"
	FracSec   uint32 // 24-bit FRACSEC numerator, 0 <= FracSec < TIME_BASE
	CHK       uint16
}

// Type reports the frame type encoded in the SYNC word's type nibble.
func (h *FrameHeader) Type() FrameType {
	return FrameType((h.Sync >> 4) & 0x07)
}

// encode writes the common header fields up to and including FRACSEC.
// The caller appends its own body and CRC afterward.
func (h *FrameHeader) encode(buf *bytes.Buffer) error {
	fracField := (uint32(h.TQ) << 24) | (h.FracSec & 0x00FFFFFF)
	return writeBinary(buf, h.Sync, h.FrameSize, h.IDCode, h.SOC, fracField)
}

// decodeHeader reads the 14-byte common header from the start of data.
func decodeHeader(data []byte) (FrameHeader, error) {
	var h FrameHeader
	if len(data) < commonHeaderSize {
		return h, ErrInvalidSize
	}
	if data[0] != syncLeadByte {
		return h, &FrameCorruptError{Reason: ReasonBadSync}
	}

	buf := bytes.NewReader(data)
	var fracField uint32
	if err := readBinary(buf, &h.Sync, &h.FrameSize, &h.IDCode, &h.SOC, &fracField); err != nil {
		return h, err
	}
	h.TQ = uint8(fracField >> 24)
	h.FracSec = fracField & 0x00FFFFFF
	return h, nil
}

// SetTime fills SOC and FracSec from now. timeBase is the denominator used
// to express now's fractional second as a FRACSEC numerator; per §9
// ("Command frame time fields") this divides by TIME_BASE rather than
// transmitting a raw microsecond count. TQ is left at zero (time reliable,
// no leap-second flags) unless the caller sets it separately.
func (h *FrameHeader) SetTime(now time.Time, timeBase uint32) {
	h.SOC = uint32(now.Unix())
	if timeBase == 0 {
		timeBase = 1000000
	}
	fractionOfSecond := float64(now.Nanosecond()) / 1e9
	h.FracSec = uint32(fractionOfSecond*float64(timeBase)) & 0x00FFFFFF
}

// Utc returns the UTC instant this header's SOC/FracSec/timeBase triple
// represents (§3 "Timestamp"): SOC + FracSec/timeBase.
func (h *FrameHeader) Utc(timeBase uint32) time.Time {
	if timeBase == 0 {
		timeBase = 1
	}
	seconds := float64(h.FracSec) / float64(timeBase)
	return time.Unix(int64(h.SOC), 0).Add(time.Duration(seconds * float64(time.Second)))
}

// frameTypeAt returns the frame type encoded in a byte span's SYNC word
// without fully decoding the header. Used by the negotiation drain-and-retry
// loop and by UnpackFrame's dispatch, both of which only need to know the
// type before committing to a full decode.
func frameTypeAt(data []byte) (FrameType, error) {
	if len(data) < 2 {
		return 0, ErrInvalidSize
	}
	if data[0] != syncLeadByte {
		return 0, &FrameCorruptError{Reason: ReasonBadSync}
	}
	return FrameType((data[1] >> 4) & 0x07), nil
}
