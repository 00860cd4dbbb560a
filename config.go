package synchrophasor

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Station limits enforced purely to cap memory against a corrupt or
// malicious FRAMESIZE/NUM_PMU, per §4.3.
const (
	maxStations     = 1024
	maxPhasorCount  = 1000
	maxAnalogCount  = 1000
	maxDigitalWords = 100
)

// Station is a single PMU's configuration descriptor (§3 "Station
// descriptor", §4.3): name, identity, the FORMAT word's four numeric/coord
// selectors, channel counts, the channel-name table, and unit scaling.
type Station struct {
	STN    string
	IDCode uint16
	Format uint16 // only the low 4 bits are meaningful, see FORMAT accessors below

	Phnmr uint16
	Annmr uint16
	Dgnmr uint16

	// ChannelNames holds, in order, the phnmr phasor names, then the
	// annmr analog names, then 16*dgnmr digital-bit names - the layout
	// described in §3 "Relationships".
	ChannelNames []string

	PhUnit  []uint32 // 1 type byte (PhunitVoltage/PhunitCurrent) + 24-bit scale, per entry
	AnUnit  []uint32 // 1 type byte + 24-bit scale, per entry
	DigUnit []uint32 // two 16-bit mask words packed per entry: normal<<16 | valid

	FNOM   uint16 // low bit: FreqNom60Hz / FreqNom50Hz
	CfgCnt uint16
}

// FormatPhasorPolar reports whether this station's phasors are encoded in
// polar (magnitude, angle) form rather than rectangular (real, imag).
func (s *Station) FormatPhasorPolar() bool { return bitSet(s.Format, 3) }

// FormatPhasorFloat reports whether phasors are float32, as opposed to
// int16 counts.
func (s *Station) FormatPhasorFloat() bool { return bitSet(s.Format, 2) }

// FormatAnalogFloat reports whether analog values are float32.
func (s *Station) FormatAnalogFloat() bool { return bitSet(s.Format, 1) }

// FormatFreqFloat reports whether FREQ/DFREQ are float32.
func (s *Station) FormatFreqFloat() bool { return bitSet(s.Format, 0) }

// SetFormat packs the four FORMAT selectors (§4.3).
func (s *Station) SetFormat(freqFloat, analogFloat, phasorFloat, phasorPolar bool) {
	var f uint16
	if freqFloat {
		f |= 1 << 0
	}
	if analogFloat {
		f |= 1 << 1
	}
	if phasorFloat {
		f |= 1 << 2
	}
	if phasorPolar {
		f |= 1 << 3
	}
	s.Format = f
}

// NominalFrequency returns 50.0 or 60.0 Hz based on FNOM's low bit.
func (s *Station) NominalFrequency() float64 {
	if s.FNOM&0x01 == FreqNom50Hz {
		return 50.0
	}
	return 60.0
}

// PhasorNames returns the phnmr phasor channel names.
func (s *Station) PhasorNames() []string {
	return s.ChannelNames[:s.Phnmr]
}

// AnalogNames returns the annmr analog channel names.
func (s *Station) AnalogNames() []string {
	return s.ChannelNames[s.Phnmr : s.Phnmr+s.Annmr]
}

// DigitalNames returns the 16*dgnmr digital-bit channel names.
func (s *Station) DigitalNames() []string {
	return s.ChannelNames[s.Phnmr+s.Annmr:]
}

// PhasorIndex finds a phasor channel by name (trailing spaces ignored on
// both sides), mirroring the name-based channel lookup used by
// higher-level per-phase aggregation.
func (s *Station) PhasorIndex(name string) (int, bool) {
	want := trimName([]byte(name))
	for i, n := range s.PhasorNames() {
		if trimName([]byte(n)) == want {
			return i, true
		}
	}
	return 0, false
}

// AnalogIndex finds an analog channel by name.
func (s *Station) AnalogIndex(name string) (int, bool) {
	for i, n := range s.AnalogNames() {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// DigitalIndex finds a digital-bit channel by name.
func (s *Station) DigitalIndex(name string) (int, bool) {
	for i, n := range s.DigitalNames() {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// PhasorFactor returns the 24-bit scale stored in PhUnit[i], or 1 if out of
// range. The core exposes this but does not apply it: §4.4 point 2 leaves
// engineering-unit conversion to the caller.
func (s *Station) PhasorFactor(i int) uint32 {
	if i < 0 || i >= len(s.PhUnit) {
		return 1
	}
	return s.PhUnit[i] & 0x00FFFFFF
}

// Config is the decoded schema shared by CFG-1 and CFG-2 frames (§3
// "Configuration"): TIME_BASE, the ordered Station list, and DATARATE. A
// Config is immutable once decoded and is the schema every subsequent Data
// frame on the same session is decoded against - see Decode.
type Config struct {
	FrameHeader
	version  int // 1 or 2, which CFG frame produced this Config
	TimeBase uint32
	Stations []*Station
	DataRate int16
}

// NewConfig2 creates an empty CFG-2 configuration ready to have stations
// added to it.
func NewConfig2() *Config {
	return &Config{
		FrameHeader: FrameHeader{Sync: (syncLeadByte << 8) | syncCfg2},
		version:     2,
	}
}

// NewConfig1 creates an empty CFG-1 configuration.
func NewConfig1() *Config {
	return &Config{
		FrameHeader: FrameHeader{Sync: (syncLeadByte << 8) | syncCfg1},
		version:     1,
	}
}

// Version reports whether this Config came from (or will be packed as) a
// CFG-1 or CFG-2 frame.
func (c *Config) Version() int { return c.version }

// NumPMU is the number of stations in this configuration.
func (c *Config) NumPMU() int { return len(c.Stations) }

// AddStation appends a station and keeps NUM_PMU implicit in len(Stations).
func (c *Config) AddStation(s *Station) {
	c.Stations = append(c.Stations, s)
}

// StationByIDCode returns the station with the given IDCODE, if any.
func (c *Config) StationByIDCode(idCode uint16) *Station {
	for _, s := range c.Stations {
		if s.IDCode == idCode {
			return s
		}
	}
	return nil
}

// IsTimeReliable reports whether the configuration frame's own time
// quality marks the device clock as trustworthy (§6 "is_time_reliable").
func (c *Config) IsTimeReliable() bool {
	return c.TQ != 15
}

// Pack serializes the Config to its wire bytes, including a valid CRC.
func (c *Config) Pack() ([]byte, error) {
	if c.TimeBase == 0 {
		return nil, &InvalidConfigError{Field: "TIME_BASE"}
	}
	if len(c.Stations) > maxStations {
		return nil, &InvalidConfigError{Field: "NUM_PMU"}
	}

	buf := new(bytes.Buffer)
	if err := c.encode(buf); err != nil {
		return nil, err
	}

	data := buf.Bytes()
	c.FrameSize = uint16(len(data) + 2)
	// FrameSize is only known after the body is built; rewrite it now
	// that the final length is known, matching the byte offset the
	// header encode already reserved for it.
	binary.BigEndian.PutUint16(data[2:4], c.FrameSize)

	crc := CalcCRC(data)
	if err := binary.Write(buf, binary.BigEndian, crc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Config) encode(buf *bytes.Buffer) error {
	if err := c.FrameHeader.encode(buf); err != nil {
		return err
	}
	if err := writeBinary(buf, c.TimeBase, uint16(len(c.Stations))); err != nil {
		return err
	}
	for _, s := range c.Stations {
		buf.WriteString(padString(s.STN))
		if err := writeBinary(buf, s.IDCode, s.Format, s.Phnmr, s.Annmr, s.Dgnmr); err != nil {
			return err
		}
		for _, name := range s.ChannelNames {
			buf.WriteString(padString(name))
		}
		for _, u := range s.PhUnit {
			if err := writeBinary(buf, u); err != nil {
				return err
			}
		}
		for _, u := range s.AnUnit {
			if err := writeBinary(buf, u); err != nil {
				return err
			}
		}
		for _, u := range s.DigUnit {
			if err := writeBinary(buf, u); err != nil {
				return err
			}
		}
		if err := writeBinary(buf, s.FNOM, s.CfgCnt); err != nil {
			return err
		}
	}
	return writeBinary(buf, c.DataRate)
}

// DecodeConfig parses a CFG-1 or CFG-2 frame (§4.3). The frame kind is
// taken from the SYNC word; both kinds share the same body layout in this
// implementation, matching the standard's CFG-1/CFG-2 wire compatibility.
func DecodeConfig(data []byte) (*Config, error) {
	header, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}

	var version int
	switch header.Type() {
	case FrameTypeCfg1:
		version = 1
	case FrameTypeCfg2:
		version = 2
	default:
		return nil, ErrUnexpectedFrameType
	}

	if int(header.FrameSize) > len(data) {
		return nil, &FrameCorruptError{Reason: ReasonBadLength}
	}
	if header.FrameSize < 24 {
		return nil, ErrInvalidSize
	}

	crcData := data[:header.FrameSize-2]
	wantCRC := binary.BigEndian.Uint16(data[header.FrameSize-2 : header.FrameSize])
	if CalcCRC(crcData) != wantCRC {
		return nil, &FrameCorruptError{Reason: ReasonBadCRC}
	}
	header.CHK = wantCRC

	cfg := &Config{FrameHeader: header, version: version}

	buf := bytes.NewReader(data[commonHeaderSize:])
	if err := readBinary(buf, &cfg.TimeBase); err != nil {
		return nil, err
	}
	if cfg.TimeBase&0x00FFFFFF == 0 {
		return nil, &InvalidConfigError{Field: "TIME_BASE"}
	}
	cfg.TimeBase &= 0x00FFFFFF

	var numPMU uint16
	if err := readBinary(buf, &numPMU); err != nil {
		return nil, err
	}
	if numPMU > maxStations {
		return nil, &InvalidConfigError{Field: "NUM_PMU"}
	}

	for i := 0; i < int(numPMU); i++ {
		s, err := decodeStation(buf)
		if err != nil {
			return nil, err
		}
		cfg.AddStation(s)
	}

	if err := readBinary(buf, &cfg.DataRate); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decodeStation(buf *bytes.Reader) (*Station, error) {
	s := &Station{}

	nameBytes := make([]byte, nameFieldLength)
	if _, err := io.ReadFull(buf, nameBytes); err != nil {
		return nil, err
	}
	s.STN = trimName(nameBytes)

	if err := readBinary(buf, &s.IDCode, &s.Format, &s.Phnmr, &s.Annmr, &s.Dgnmr); err != nil {
		return nil, err
	}

	if s.Phnmr > maxPhasorCount || s.Annmr > maxAnalogCount || s.Dgnmr > maxDigitalWords {
		return nil, &InvalidConfigError{Field: "PHNMR/ANNMR/DGNMR"}
	}

	totalNames := int(s.Phnmr) + int(s.Annmr) + 16*int(s.Dgnmr)
	s.ChannelNames = make([]string, totalNames)
	for i := 0; i < totalNames; i++ {
		nb := make([]byte, nameFieldLength)
		if _, err := io.ReadFull(buf, nb); err != nil {
			return nil, err
		}
		s.ChannelNames[i] = trimName(nb)
	}

	s.PhUnit = make([]uint32, s.Phnmr)
	for i := range s.PhUnit {
		if err := readBinary(buf, &s.PhUnit[i]); err != nil {
			return nil, err
		}
	}
	s.AnUnit = make([]uint32, s.Annmr)
	for i := range s.AnUnit {
		if err := readBinary(buf, &s.AnUnit[i]); err != nil {
			return nil, err
		}
	}
	s.DigUnit = make([]uint32, s.Dgnmr)
	for i := range s.DigUnit {
		if err := readBinary(buf, &s.DigUnit[i]); err != nil {
			return nil, err
		}
	}

	if err := readBinary(buf, &s.FNOM, &s.CfgCnt); err != nil {
		return nil, err
	}

	return s, nil
}
