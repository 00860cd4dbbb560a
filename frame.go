package synchrophasor

import (
	"bytes"
	"encoding/binary"
)

// HeaderFrame carries a free-form ASCII description of the device, sent in
// response to CmdSendHeader. It plays no role in the negotiation state
// machine but is useful for device-identification logging.
type HeaderFrame struct {
	FrameHeader
	Data string
}

// NewHeaderFrame creates a header frame carrying info.
func NewHeaderFrame(idCode uint16, info string) *HeaderFrame {
	return &HeaderFrame{
		FrameHeader: FrameHeader{Sync: (syncLeadByte << 8) | syncHeader, IDCode: idCode},
		Data:        info,
	}
}

// Pack serializes the header frame to bytes, including a valid CRC.
func (h *HeaderFrame) Pack() ([]byte, error) {
	h.FrameSize = uint16(commonHeaderSize + 2 + len(h.Data))

	buf := new(bytes.Buffer)
	if err := h.FrameHeader.encode(buf); err != nil {
		return nil, err
	}
	buf.WriteString(h.Data)

	data := buf.Bytes()
	crc := CalcCRC(data)
	if err := writeBinary(buf, crc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeHeaderFrame parses a header frame's bytes, validating its CRC.
func DecodeHeaderFrame(data []byte) (*HeaderFrame, error) {
	header, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	if header.Type() != FrameTypeHeader {
		return nil, ErrUnexpectedFrameType
	}
	if int(header.FrameSize) > len(data) || header.FrameSize < commonHeaderSize+2 {
		return nil, &FrameCorruptError{Reason: ReasonBadLength}
	}

	crcData := data[:header.FrameSize-2]
	wantCRC := binary.BigEndian.Uint16(data[header.FrameSize-2 : header.FrameSize])
	if CalcCRC(crcData) != wantCRC {
		return nil, &FrameCorruptError{Reason: ReasonBadCRC}
	}
	header.CHK = wantCRC

	h := &HeaderFrame{FrameHeader: header}
	dataSize := int(header.FrameSize) - commonHeaderSize - 2
	h.Data = string(data[commonHeaderSize : commonHeaderSize+dataSize])
	return h, nil
}

// UnpackFrame dispatches a byte span to the right decoder based on its
// SYNC word's frame type. cfg is required (may be nil otherwise) only for
// Data frames, which cannot be decoded without a prior Configuration.
func UnpackFrame(data []byte, cfg *Config) (interface{}, error) {
	frameType, err := frameTypeAt(data)
	if err != nil {
		return nil, err
	}

	switch frameType {
	case FrameTypeData:
		if cfg == nil {
			return nil, ErrInvalidParameter
		}
		return Decode(data, cfg)
	case FrameTypeHeader:
		return DecodeHeaderFrame(data)
	case FrameTypeCfg1, FrameTypeCfg2:
		return DecodeConfig(data)
	case FrameTypeCfg3:
		return nil, ErrNotImplemented
	case FrameTypeCmd:
		return DecodeCommand(data)
	default:
		return nil, ErrInvalidFrame
	}
}
