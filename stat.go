package synchrophasor

// DataError classifies the §4.5 bits 15-14 data-error sub-field.
type DataError int

const (
	DataErrorGood DataError = iota
	DataErrorOld
	DataErrorBad
	DataErrorInvalid
)

func (e DataError) String() string {
	switch e {
	case DataErrorGood:
		return "good"
	case DataErrorOld:
		return "old"
	case DataErrorBad:
		return "bad"
	case DataErrorInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Stat decodes the 16-bit STAT word carried in every PMU data block
// (§4.5). Fields are pulled directly from the raw bits, not through a
// hex/binary string intermediate.
type Stat struct {
	DataError     DataError
	PmuSync       bool // true = sync, false = no-sync
	DataSortedByArrival bool // true = by arrival, false = by timestamp
	PmuTrigger    bool
	ConfigChanged bool
	DataModified  bool
	TimeQuality   uint8 // 3-bit UTC offset quality code
	UnlockedTime  uint8 // 2-bit "time since last lock" code
	TriggerReason uint8 // 4-bit device-specific code
}

// decodeStat unpacks the raw 16-bit STAT word into its named sub-fields.
func decodeStat(raw uint16) Stat {
	return Stat{
		DataError:           DataError(bitField(raw, 14, 15)),
		PmuSync:             !bitSet(raw, 13),
		DataSortedByArrival: bitSet(raw, 12),
		PmuTrigger:          bitSet(raw, 11),
		ConfigChanged:       bitSet(raw, 10),
		DataModified:        bitSet(raw, 9),
		TimeQuality:         uint8(bitField(raw, 6, 8)),
		UnlockedTime:        uint8(bitField(raw, 4, 5)),
		TriggerReason:       uint8(bitField(raw, 0, 3)),
	}
}

// encode packs Stat back into its raw 16-bit wire representation.
func (s Stat) encode() uint16 {
	var raw uint16
	raw |= uint16(s.DataError) << 14
	if !s.PmuSync {
		raw |= 1 << 13
	}
	if s.DataSortedByArrival {
		raw |= 1 << 12
	}
	if s.PmuTrigger {
		raw |= 1 << 11
	}
	if s.ConfigChanged {
		raw |= 1 << 10
	}
	if s.DataModified {
		raw |= 1 << 9
	}
	raw |= uint16(s.TimeQuality&0x07) << 6
	raw |= uint16(s.UnlockedTime&0x03) << 4
	raw |= uint16(s.TriggerReason & 0x0F)
	return raw
}
