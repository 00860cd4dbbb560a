package synchrophasor

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

// Phasor is the semantic (magnitude, angle) / (real, imag) quadruple for a
// synchrophasor sample (§3 "Phasor value"), independent of whatever
// encoding carried it on the wire. Decoding always fills all four fields
// consistently: rect -> mag=hypot(re,im), rad=atan2(im,re); polar ->
// re=mag*cos(rad), im=mag*sin(rad).
type Phasor struct {
	Real float64
	Imag float64
	Mag  float64
	Rad  float64
}

// Deg returns the phasor angle in degrees.
func (p Phasor) Deg() float64 {
	return p.Rad * 180 / math.Pi
}

func phasorFromRect(re, im float64) Phasor {
	return Phasor{Real: re, Imag: im, Mag: math.Hypot(re, im), Rad: math.Atan2(im, re)}
}

// phasorFromPolar computes Cartesian components from (mag, rad) using the
// mathematically correct identity real = mag*cos(rad), imag = mag*sin(rad).
//
// The original espmu implementation instead computes mag*cos(deg) - degrees
// substituted for radians - which is wrong. That bug is deliberately not
// reproduced here (§4.4 point 2, §9 "Open question - polar->Cartesian").
func phasorFromPolar(mag, rad float64) Phasor {
	return Phasor{Real: mag * math.Cos(rad), Imag: mag * math.Sin(rad), Mag: mag, Rad: rad}
}

// PmuData is one station's measurement block within a Data frame (§3 "PMU
// data block"). StationIndex is the back-reference into the Stations of the
// Config the frame was decoded against, resolved by the caller rather than carried
// as a pointer (§9 "Back-reference PMU->Station" - avoids lifetime/cycle
// concerns).
type PmuData struct {
	StationIndex int
	Stat         Stat
	Phasors      []Phasor
	Freq         float64
	DFreq        float64 // ROCOF, Hz/s
	Analogs      []float64
	Digitals     []bool // 16*dgnmr raw bits, name order matches Station.DigitalNames()
}

// DigitalSample pairs a named digital channel with its decoded bit.
type DigitalSample struct {
	Name  string
	Value bool
}

// DigitalSamples zips this block's raw Digitals bits with the owning
// station's channel-name table (§4.4 point 6).
func (p *PmuData) DigitalSamples(station *Station) []DigitalSample {
	names := station.DigitalNames()
	out := make([]DigitalSample, 0, len(p.Digitals))
	for i, v := range p.Digitals {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		out = append(out, DigitalSample{Name: name, Value: v})
	}
	return out
}

// DataFrame is one decoded C37.118 Data frame: the common header plus one
// PmuData block per station in the Config it was decoded against (§3 "Data
// decoder"). A DataFrame stores only values, never the schema itself - see
// Config for ownership.
type DataFrame struct {
	FrameHeader
	PMUs []PmuData
}

// NewDataFrame creates an empty Data frame with the Data SYNC word set.
func NewDataFrame() *DataFrame {
	return &DataFrame{FrameHeader: FrameHeader{Sync: (syncLeadByte << 8) | syncData}}
}

// Timestamp returns the UTC instant this frame represents, fusing SOC,
// FracSec, and the config's TIME_BASE (§3 "Timestamp").
func (d *DataFrame) Timestamp(cfg *Config) time.Time {
	return d.FrameHeader.Utc(cfg.TimeBase)
}

// Decode parses a Data frame's bytes against a previously captured Config
// (§4.4). The Config dependency is explicit in this signature rather than
// cached in global or package state (§9 "Config-parameterised decode").
func Decode(data []byte, cfg *Config) (*DataFrame, error) {
	if cfg == nil {
		return nil, ErrInvalidParameter
	}

	header, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	if header.Type() != FrameTypeData {
		return nil, ErrUnexpectedFrameType
	}
	if int(header.FrameSize) > len(data) {
		return nil, &FrameCorruptError{Reason: ReasonBadLength}
	}

	expected := expectedDataFrameSize(cfg)
	if header.FrameSize != expected {
		return nil, ErrSchemaMismatch
	}

	crcData := data[:header.FrameSize-2]
	wantCRC := binary.BigEndian.Uint16(data[header.FrameSize-2 : header.FrameSize])
	if CalcCRC(crcData) != wantCRC {
		return nil, &FrameCorruptError{Reason: ReasonBadCRC}
	}
	header.CHK = wantCRC

	df := &DataFrame{FrameHeader: header}
	buf := bytes.NewReader(data[commonHeaderSize : header.FrameSize-2])

	for i, station := range cfg.Stations {
		pmu := PmuData{StationIndex: i}

		var rawStat uint16
		if err := readBinary(buf, &rawStat); err != nil {
			return nil, err
		}
		pmu.Stat = decodeStat(rawStat)

		pmu.Phasors = make([]Phasor, station.Phnmr)
		for j := range pmu.Phasors {
			phasor, err := decodePhasor(buf, station, j)
			if err != nil {
				return nil, err
			}
			pmu.Phasors[j] = phasor
		}

		if station.FormatFreqFloat() {
			var freq, dfreq float32
			if err := readBinary(buf, &freq, &dfreq); err != nil {
				return nil, err
			}
			pmu.Freq = float64(freq)
			pmu.DFreq = float64(dfreq)
		} else {
			var freqDev, dfreqRaw int16
			if err := readBinary(buf, &freqDev, &dfreqRaw); err != nil {
				return nil, err
			}
			pmu.Freq = station.NominalFrequency() + float64(freqDev)/1000.0
			pmu.DFreq = float64(dfreqRaw) / 100.0
		}

		pmu.Analogs = make([]float64, station.Annmr)
		for j := range pmu.Analogs {
			if station.FormatAnalogFloat() {
				var v float32
				if err := readBinary(buf, &v); err != nil {
					return nil, err
				}
				pmu.Analogs[j] = float64(v)
			} else {
				var v int16
				if err := readBinary(buf, &v); err != nil {
					return nil, err
				}
				pmu.Analogs[j] = float64(v)
			}
		}

		pmu.Digitals = make([]bool, 0, 16*int(station.Dgnmr))
		for j := 0; j < int(station.Dgnmr); j++ {
			var word uint16
			if err := readBinary(buf, &word); err != nil {
				return nil, err
			}
			for k := 0; k < 16; k++ {
				pmu.Digitals = append(pmu.Digitals, bitSet(word, uint(k)))
			}
		}

		df.PMUs = append(df.PMUs, pmu)
	}

	return df, nil
}

func decodePhasor(buf *bytes.Reader, station *Station, _ int) (Phasor, error) {
	if station.FormatPhasorFloat() {
		var v1, v2 float32
		if err := readBinary(buf, &v1, &v2); err != nil {
			return Phasor{}, err
		}
		if station.FormatPhasorPolar() {
			return phasorFromPolar(float64(v1), float64(v2)), nil
		}
		return phasorFromRect(float64(v1), float64(v2)), nil
	}

	if station.FormatPhasorPolar() {
		var mag uint16
		var ang int16
		if err := readBinary(buf, &mag, &ang); err != nil {
			return Phasor{}, err
		}
		// int16 polar angle is scaled by 1/10000 to obtain radians (§4.4 point 2).
		return phasorFromPolar(float64(mag), float64(ang)/10000.0), nil
	}

	var re, im int16
	if err := readBinary(buf, &re, &im); err != nil {
		return Phasor{}, err
	}
	// Rectangular int16 components are raw counts; engineering-unit
	// conversion is left to the caller via Station.PhasorFactor.
	return phasorFromRect(float64(re), float64(im)), nil
}

// Pack serializes a DataFrame against cfg, the same Config it (or a frame
// like it) should later be decoded with.
func (d *DataFrame) Pack(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, ErrInvalidParameter
	}
	if len(d.PMUs) != len(cfg.Stations) {
		return nil, ErrSchemaMismatch
	}

	buf := new(bytes.Buffer)
	if err := d.FrameHeader.encode(buf); err != nil {
		return nil, err
	}

	for i, station := range cfg.Stations {
		pmu := d.PMUs[i]
		if err := writeBinary(buf, pmu.Stat.encode()); err != nil {
			return nil, err
		}

		for j := 0; j < int(station.Phnmr); j++ {
			if j >= len(pmu.Phasors) {
				return nil, ErrSchemaMismatch
			}
			if err := encodePhasor(buf, station, pmu.Phasors[j]); err != nil {
				return nil, err
			}
		}

		if station.FormatFreqFloat() {
			if err := writeBinary(buf, float32(pmu.Freq), float32(pmu.DFreq)); err != nil {
				return nil, err
			}
		} else {
			freqDev := int16((pmu.Freq - station.NominalFrequency()) * 1000)
			dfreqRaw := int16(pmu.DFreq * 100)
			if err := writeBinary(buf, freqDev, dfreqRaw); err != nil {
				return nil, err
			}
		}

		for j := 0; j < int(station.Annmr); j++ {
			if j >= len(pmu.Analogs) {
				return nil, ErrSchemaMismatch
			}
			if station.FormatAnalogFloat() {
				if err := writeBinary(buf, float32(pmu.Analogs[j])); err != nil {
					return nil, err
				}
			} else {
				if err := writeBinary(buf, int16(pmu.Analogs[j])); err != nil {
					return nil, err
				}
			}
		}

		for j := 0; j < int(station.Dgnmr); j++ {
			var word uint16
			for k := 0; k < 16; k++ {
				idx := j*16 + k
				if idx < len(pmu.Digitals) && pmu.Digitals[idx] {
					word |= 1 << uint(k)
				}
			}
			if err := writeBinary(buf, word); err != nil {
				return nil, err
			}
		}
	}

	data := buf.Bytes()
	binary.BigEndian.PutUint16(data[2:4], uint16(len(data)+2))
	crc := CalcCRC(data)
	if err := writeBinary(buf, crc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodePhasor(buf *bytes.Buffer, station *Station, p Phasor) error {
	if station.FormatPhasorFloat() {
		if station.FormatPhasorPolar() {
			return writeBinary(buf, float32(p.Mag), float32(p.Rad))
		}
		return writeBinary(buf, float32(p.Real), float32(p.Imag))
	}
	if station.FormatPhasorPolar() {
		return writeBinary(buf, uint16(p.Mag), int16(p.Rad*10000))
	}
	return writeBinary(buf, int16(p.Real), int16(p.Imag))
}

// expectedDataFrameSize computes the FRAMESIZE a Data frame must have for
// the given Config, used to detect a device configuration change the
// driver missed (§7 "SchemaMismatch").
func expectedDataFrameSize(cfg *Config) uint16 {
	size := uint32(commonHeaderSize)
	for _, s := range cfg.Stations {
		size += 2 // STAT
		if s.FormatPhasorFloat() {
			size += 8 * uint32(s.Phnmr)
		} else {
			size += 4 * uint32(s.Phnmr)
		}
		if s.FormatFreqFloat() {
			size += 8
		} else {
			size += 4
		}
		if s.FormatAnalogFloat() {
			size += 4 * uint32(s.Annmr)
		} else {
			size += 2 * uint32(s.Annmr)
		}
		size += 2 * uint32(s.Dgnmr)
	}
	size += 2 // CHK
	return uint16(size)
}
