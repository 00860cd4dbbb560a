package synchrophasor

import (
	"bytes"
	"encoding/binary"
	"time"
)

// CommandFrame is the 18-byte frame (longer when ExtraFrame is set) a PDC
// client sends to control a
// PMU/PDC: data on/off, and requests for the header, CFG-1, CFG-2, and
// extended frames (§3 "Frame header", §4.6).
type CommandFrame struct {
	FrameHeader
	CMD        uint16
	ExtraFrame []byte
}

// NewCommandFrame creates a command frame with CMD set, ready for Pack.
func NewCommandFrame(idCode uint16, cmd uint16) *CommandFrame {
	return &CommandFrame{
		FrameHeader: FrameHeader{
			Sync:   (syncLeadByte << 8) | syncCmd,
			IDCode: idCode,
		},
		CMD: cmd,
	}
}

// Encode builds the command frame's wire bytes for idcode/cmd, stamping
// SOC/FRACSEC from now (§4.6, §9 "Command frame time fields": FRACSEC is
// filled as floor((now.subsec_nanos/1e9) * timeBase) rather than a raw
// microsecond count). timeBase of 0 defaults to 1,000,000, the
// conventional host denominator.
func Encode(cmd uint16, idCode uint16, now time.Time, timeBase uint32) ([]byte, error) {
	c := NewCommandFrame(idCode, cmd)
	c.SetTime(now, timeBase)
	return c.Pack()
}

// Pack serializes the command frame to bytes, including a valid CRC.
func (c *CommandFrame) Pack() ([]byte, error) {
	c.FrameSize = uint16(18 + len(c.ExtraFrame))

	buf := new(bytes.Buffer)
	if err := c.FrameHeader.encode(buf); err != nil {
		return nil, err
	}
	if err := writeBinary(buf, c.CMD); err != nil {
		return nil, err
	}
	if len(c.ExtraFrame) > 0 {
		buf.Write(c.ExtraFrame)
	}

	data := buf.Bytes()
	crc := CalcCRC(data)
	if err := writeBinary(buf, crc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeCommand parses a command frame's bytes, validating its CRC.
func DecodeCommand(data []byte) (*CommandFrame, error) {
	header, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	if header.Type() != FrameTypeCmd {
		return nil, ErrUnexpectedFrameType
	}
	if header.FrameSize < 18 || int(header.FrameSize) > len(data) {
		return nil, &FrameCorruptError{Reason: ReasonBadLength}
	}

	crcData := data[:header.FrameSize-2]
	wantCRC := binary.BigEndian.Uint16(data[header.FrameSize-2 : header.FrameSize])
	if CalcCRC(crcData) != wantCRC {
		return nil, &FrameCorruptError{Reason: ReasonBadCRC}
	}
	header.CHK = wantCRC

	c := &CommandFrame{FrameHeader: header}
	buf := bytes.NewReader(data[commonHeaderSize:])
	if err := readBinary(buf, &c.CMD); err != nil {
		return nil, err
	}

	extraSize := int(header.FrameSize) - 18
	if extraSize > 0 {
		c.ExtraFrame = make([]byte, extraSize)
		if _, err := buf.Read(c.ExtraFrame); err != nil {
			return nil, err
		}
	}

	return c, nil
}
