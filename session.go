package synchrophasor

import (
	"encoding/binary"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// State is a Session's position in the negotiation/streaming state machine
// (§4.8).
type State int

const (
	StateIdle State = iota
	StateConnected
	StateSilenced
	StateAwaitCfg
	StateReadCfg
	StateReady
	StateStreaming
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnected:
		return "CONNECTED"
	case StateSilenced:
		return "SILENCED"
	case StateAwaitCfg:
		return "AWAIT_CFG"
	case StateReadCfg:
		return "READ_CFG"
	case StateReady:
		return "READY"
	case StateStreaming:
		return "STREAMING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// defaultMaxRetries bounds the drain-and-retry loop during negotiation
// (§7 "bounded retry (default 16 attempts)").
const defaultMaxRetries = 16

// StationInfo is the read-only view of a negotiated station exposed to
// callers that don't need the full Station descriptor (§6 "Session.stations").
type StationInfo struct {
	Name         string
	PhasorNames  []string
	AnalogNames  []string
	DigitalNames []string
	DataRate     int16
	NominalFreq  float64
}

// Session drives one PMU/PDC connection through the negotiation and
// streaming state machine (§4.8): connect, silence, request CFG-2,
// validate, enable streaming, decode. A Session owns exactly one Transport
// and one Config; exclusive access is the caller's responsibility (§5).
type Session struct {
	transport  Transport
	idCode     uint16
	state      State
	config     *Config
	timeBase   uint32
	maxRetries int

	logger  *log.Logger
	metrics MetricsRecorder
}

// NewSession creates a Session for the device identified by idCode. Call
// Connect to drive it through negotiation before streaming.
func NewSession(idCode uint16) *Session {
	return &Session{
		idCode:     idCode,
		state:      StateIdle,
		timeBase:   1000000,
		maxRetries: defaultMaxRetries,
	}
}

// SetLogger installs a structured logger; without one, a default logrus
// logger is used lazily, matching the teacher's log() accessor pattern.
func (s *Session) SetLogger(logger *log.Logger) { s.logger = logger }

// SetMetrics installs a metrics sink. Nil (the default) disables metrics
// recording entirely.
func (s *Session) SetMetrics(m MetricsRecorder) { s.metrics = m }

// SetMaxRetries overrides the default 16-attempt negotiation retry budget.
func (s *Session) SetMaxRetries(n int) { s.maxRetries = n }

func (s *Session) log() *log.Logger {
	if s.logger == nil {
		s.logger = log.New()
	}
	return s.logger
}

// State returns the session's current state machine position.
func (s *Session) State() State { return s.state }

// IsTimeReliable reports whether the negotiated configuration's time
// quality marks the device clock as trustworthy (TQ != 15).
func (s *Session) IsTimeReliable() bool {
	return s.config != nil && s.config.IsTimeReliable()
}

// Stations summarizes the negotiated configuration's stations.
func (s *Session) Stations() []StationInfo {
	if s.config == nil {
		return nil
	}
	out := make([]StationInfo, 0, len(s.config.Stations))
	for _, st := range s.config.Stations {
		out = append(out, StationInfo{
			Name:         st.STN,
			PhasorNames:  st.PhasorNames(),
			AnalogNames:  st.AnalogNames(),
			DigitalNames: st.DigitalNames(),
			DataRate:     s.config.DataRate,
			NominalFreq:  st.NominalFrequency(),
		})
	}
	return out
}

// Config returns the negotiated configuration, or nil before Connect
// succeeds.
func (s *Session) Config() *Config { return s.config }

// Connect drives CONNECTED -> SILENCED -> AWAIT_CFG -> READ_CFG -> READY
// (§4.8): it silences any in-progress stream, requests CFG-2, and absorbs
// stray bytes (old Data frames, wrong frame types, bad sync) until a valid
// CFG-2 response arrives or the retry budget is exhausted.
func (s *Session) Connect(t Transport) error {
	s.transport = t
	s.state = StateConnected

	if err := s.sendCommand(CmdTurnOffTx); err != nil {
		s.state = StateFailed
		return err
	}
	s.state = StateSilenced

	if err := s.sendCommand(CmdSendCfg2); err != nil {
		s.state = StateFailed
		return err
	}
	s.state = StateAwaitCfg

	cfg, err := s.negotiateConfig(FrameTypeCfg2)
	if err != nil {
		if errors.Is(err, ErrTransportClosed) {
			s.state = StateFailed
		}
		s.log().WithError(err).Warn("negotiation failed")
		return err
	}
	s.state = StateReadCfg
	s.config = cfg
	s.state = StateReady

	s.log().WithFields(log.Fields{
		"id_code":   s.idCode,
		"num_pmu":   cfg.NumPMU(),
		"time_base": cfg.TimeBase,
		"data_rate": cfg.DataRate,
	}).Info("session ready")
	return nil
}

// RequestConfig re-requests CFG-1 or CFG-2 outside of initial negotiation
// (e.g. after STAT's config-changed bit was observed) and replaces the
// session's active Config on success. version must be 1 or 2.
func (s *Session) RequestConfig(version int) (*Config, error) {
	if s.state != StateReady {
		return nil, ErrInvalidParameter
	}
	cmd := uint16(CmdSendCfg2)
	want := FrameTypeCfg2
	if version == 1 {
		cmd = CmdSendCfg1
		want = FrameTypeCfg1
	}
	if err := s.sendCommand(cmd); err != nil {
		return nil, err
	}
	cfg, err := s.negotiateConfig(want)
	if err != nil {
		return nil, err
	}
	s.config = cfg
	return cfg, nil
}

// Header requests and returns the device's free-form header frame.
func (s *Session) Header() (*HeaderFrame, error) {
	if err := s.sendCommand(CmdSendHeader); err != nil {
		return nil, err
	}
	raw, err := s.awaitFrameBytes(FrameTypeHeader)
	if err != nil {
		return nil, err
	}
	return DecodeHeaderFrame(raw)
}

// Start transitions READY -> STREAMING, sending DATA_ON.
func (s *Session) Start() error {
	if s.state != StateReady {
		return ErrInvalidParameter
	}
	if err := s.sendCommand(CmdTurnOnTx); err != nil {
		return err
	}
	s.state = StateStreaming
	return nil
}

// Stop transitions STREAMING -> READY, sending DATA_OFF.
func (s *Session) Stop() error {
	if s.state != StateStreaming {
		return ErrInvalidParameter
	}
	if err := s.sendCommand(CmdTurnOffTx); err != nil {
		return err
	}
	s.state = StateReady
	return nil
}

// NextFrame decodes and returns the next Data frame (§4.8 "STREAMING --
// next(): decode one Data frame --> STREAMING"). Frames are yielded in the
// exact order received from the transport (§5 "Ordering guarantees").
// Protocol errors are surfaced verbatim to the caller; only a closed
// transport moves the session to FAILED.
func (s *Session) NextFrame() (*DataFrame, error) {
	if s.state != StateStreaming {
		return nil, ErrInvalidParameter
	}

	raw, err := s.readOneDataFrame()
	if err != nil {
		if errors.Is(err, ErrTransportClosed) {
			s.state = StateFailed
		}
		if s.metrics != nil && !errors.Is(err, ErrTimeout) {
			s.metrics.RecordFrameError("read_error")
		}
		return nil, err
	}

	df, err := Decode(raw, s.config)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordFrameError("decode_error")
		}
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordBytesReceived(len(raw))
	}
	return df, nil
}

// Disconnect closes the transport and returns the session to IDLE,
// discarding any bytes buffered mid-frame.
func (s *Session) Disconnect() {
	if s.transport != nil {
		_ = s.transport.Close()
		s.transport = nil
	}
	s.state = StateIdle
}

// readOneDataFrame reads exactly one Data frame's raw bytes, dispatching on
// the transport's IsDatagram capability rather than any runtime string
// comparison (§9 "getDataSample dispatch": the reference client branches on
// a __class__ string that can never match; a clean design dispatches on a
// declared capability instead, so any conforming Transport - including a
// test double - works, not just the two concrete kinds this package ships).
func (s *Session) readOneDataFrame() ([]byte, error) {
	if s.transport.IsDatagram() {
		return s.transport.ReadDatagram()
	}

	head, err := s.transport.ReadExact(4)
	if err != nil {
		return nil, err
	}
	frameSize := binary.BigEndian.Uint16(head[2:4])
	if int(frameSize) < commonHeaderSize {
		return nil, &FrameCorruptError{Reason: ReasonBadLength}
	}
	rest, err := s.transport.ReadExact(int(frameSize) - 4)
	if err != nil {
		return nil, err
	}
	return append(head, rest...), nil
}

// readOneCandidateFrame reads one frame-shaped byte span from the
// transport and reports whether its SYNC/type matched want. A false result
// with a nil error means "drain and retry" (§4.8's AWAIT_CFG arcs): bad
// sync byte, wrong frame type, or an implausible FRAMESIZE. On a stream
// transport a bad sync byte costs one byte, while a frame of the wrong type
// is read through its FRAMESIZE and discarded whole.
func (s *Session) readOneCandidateFrame(want FrameType) ([]byte, bool, error) {
	if s.transport.IsDatagram() {
		raw, err := s.transport.ReadDatagram()
		if err != nil {
			return nil, false, err
		}
		frameType, err := frameTypeAt(raw)
		if err != nil || frameType != want {
			s.log().Debug("drain: datagram did not match expected frame, retrying")
			return nil, false, nil
		}
		return raw, true, nil
	}

	syncByte, err := s.transport.ReadExact(1)
	if err != nil {
		return nil, false, err
	}
	if syncByte[0] != syncLeadByte {
		s.log().Debug("drain: non-sync byte, retrying")
		return nil, false, nil
	}
	typeByte, err := s.transport.ReadExact(1)
	if err != nil {
		return nil, false, err
	}
	frameType := FrameType((typeByte[0] >> 4) & 0x07)
	sizeBytes, err := s.transport.ReadExact(2)
	if err != nil {
		return nil, false, err
	}
	frameSize := binary.BigEndian.Uint16(sizeBytes)
	if int(frameSize) < commonHeaderSize || int(frameSize) > maxFrameSize {
		s.log().Debug("drain: implausible frame size, retrying")
		return nil, false, nil
	}
	remaining, err := s.transport.ReadExact(int(frameSize) - 4)
	if err != nil {
		return nil, false, err
	}
	if frameType != want {
		s.log().WithField("frame_type", frameType).Debug("drain: unexpected frame type, frame discarded, retrying")
		return nil, false, nil
	}
	raw := make([]byte, 0, frameSize)
	raw = append(raw, syncByte[0], typeByte[0])
	raw = append(raw, sizeBytes...)
	raw = append(raw, remaining...)
	return raw, true, nil
}

// negotiateConfig absorbs stray bytes until a structurally valid,
// CRC-verified frame of type want arrives, or the retry budget is spent
// (§7 "protocol errors during negotiation are absorbed with bounded
// retry").
func (s *Session) negotiateConfig(want FrameType) (*Config, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		raw, ok, err := s.readOneCandidateFrame(want)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		cfg, err := DecodeConfig(raw)
		if err != nil {
			var corrupt *FrameCorruptError
			if errors.As(err, &corrupt) {
				continue
			}
			return nil, err
		}
		return cfg, nil
	}
	return nil, ErrNegotiationFailed
}

// awaitFrameBytes is negotiateConfig's sibling for frame kinds that don't
// need schema validation beyond CRC (currently HeaderFrame).
func (s *Session) awaitFrameBytes(want FrameType) ([]byte, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		raw, ok, err := s.readOneCandidateFrame(want)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		return raw, nil
	}
	return nil, ErrNegotiationFailed
}

func (s *Session) sendCommand(cmd uint16) error {
	data, err := Encode(cmd, s.idCode, time.Now(), s.timeBase)
	if err != nil {
		return err
	}
	if err := s.transport.WriteAll(data); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordCommand(cmdName(cmd))
	}
	return nil
}

func cmdName(cmd uint16) string {
	switch cmd {
	case CmdTurnOffTx:
		return "DATA_OFF"
	case CmdTurnOnTx:
		return "DATA_ON"
	case CmdSendHeader:
		return "SEND_HEADER"
	case CmdSendCfg1:
		return "SEND_CFG1"
	case CmdSendCfg2:
		return "SEND_CFG2"
	case CmdSendCfg3:
		return "SEND_CFG3"
	case CmdSendExt:
		return "SEND_EXT"
	default:
		return "UNKNOWN"
	}
}
