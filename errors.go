package synchrophasor

import (
	"errors"
	"fmt"
)

// Sentinel errors for the frame codec and session driver.
var (
	// ErrInvalidFrame is returned by UnpackFrame when the SYNC word's
	// frame-type bits name no known frame kind. A missing 0xAA lead byte
	// is reported as a *FrameCorruptError with ReasonBadSync instead.
	ErrInvalidFrame = errors.New("synchrophasor: invalid frame")
	// ErrInvalidParameter is returned for calls made with a nil or
	// otherwise unusable argument, such as decoding a Data frame with no
	// Config.
	ErrInvalidParameter = errors.New("synchrophasor: invalid parameter")
	// ErrInvalidSize is returned when a byte span is too short to hold the
	// common header, or when a declared FRAMESIZE is below the minimum for
	// its frame kind. A span shorter than its declared FRAMESIZE is
	// reported as a *FrameCorruptError with ReasonBadLength instead.
	ErrInvalidSize = errors.New("synchrophasor: invalid size")
	// ErrNotImplemented is returned for frame kinds this codec does not
	// decode (CFG-3).
	ErrNotImplemented = errors.New("synchrophasor: not implemented")

	// ErrTransportClosed means the peer closed the connection; the
	// owning Session moves to StateFailed and must be reconnected.
	ErrTransportClosed = errors.New("synchrophasor: transport closed")
	// ErrTimeout means a read or write exceeded the configured deadline;
	// the operation may be retried without changing session state.
	ErrTimeout = errors.New("synchrophasor: timeout")
	// ErrUnexpectedFrameType is returned by a frame decoder when the SYNC
	// word names a different frame kind than the one being decoded. During
	// negotiation the session driver discards frames of the wrong type
	// before decoding, so Session callers do not normally observe it.
	ErrUnexpectedFrameType = errors.New("synchrophasor: unexpected frame type")
	// ErrSchemaMismatch means a decoded Data frame's derived length,
	// computed from the active Config, does not match FRAMESIZE -
	// most often a sign the device issued a new Config the driver
	// never re-negotiated.
	ErrSchemaMismatch = errors.New("synchrophasor: data frame does not match configuration schema")
	// ErrNegotiationFailed is returned when the session driver exhausts
	// its retry budget while waiting for a valid response during
	// negotiation.
	ErrNegotiationFailed = errors.New("synchrophasor: negotiation failed after maximum retries")
)

// CorruptReason classifies why a frame failed validation.
type CorruptReason int

const (
	// ReasonBadSync means the byte span does not start with 0xAA.
	ReasonBadSync CorruptReason = iota
	// ReasonBadLength means FRAMESIZE disagrees with the bytes available.
	ReasonBadLength
	// ReasonBadCRC means the trailing CRC-CCITT does not verify.
	ReasonBadCRC
)

func (r CorruptReason) String() string {
	switch r {
	case ReasonBadSync:
		return "bad_sync"
	case ReasonBadLength:
		return "bad_length"
	case ReasonBadCRC:
		return "bad_crc"
	default:
		return "unknown"
	}
}

// FrameCorruptError reports a frame that failed structural or CRC
// validation. Use errors.As to recover the Reason.
type FrameCorruptError struct {
	Reason CorruptReason
}

func (e *FrameCorruptError) Error() string {
	return fmt.Sprintf("synchrophasor: frame corrupt: %s", e.Reason)
}

// InvalidConfigError reports a Configuration field with an impossible
// value (zero TIME_BASE, NUM_PMU over the cap, ...).
type InvalidConfigError struct {
	Field string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("synchrophasor: invalid configuration field %q", e.Field)
}
