package synchrophasor

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport double: writes are captured in
// Sent, reads are served from an internal buffer fed by feed/feedDatagram.
// It satisfies Transport without touching a real socket, matching §4.7's
// requirement that the codec depend on the interface, not net.Conn.
type fakeTransport struct {
	Sent      [][]byte
	readBuf   *bytes.Buffer
	datagrams [][]byte
	closed    bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{readBuf: new(bytes.Buffer)}
}

func (f *fakeTransport) feed(b []byte) { f.readBuf.Write(b) }

func (f *fakeTransport) feedDatagram(b []byte) {
	f.datagrams = append(f.datagrams, b)
}

func (f *fakeTransport) ReadExact(n int) ([]byte, error) {
	if f.closed {
		return nil, ErrTransportClosed
	}
	buf := make([]byte, n)
	_, err := io.ReadFull(f.readBuf, buf)
	if err != nil {
		return nil, ErrTransportClosed
	}
	return buf, nil
}

func (f *fakeTransport) ReadDatagram() ([]byte, error) {
	if f.closed {
		return nil, ErrTransportClosed
	}
	if len(f.datagrams) == 0 {
		return nil, ErrTransportClosed
	}
	next := f.datagrams[0]
	f.datagrams = f.datagrams[1:]
	return next, nil
}

func (f *fakeTransport) WriteAll(data []byte) error {
	if f.closed {
		return ErrTransportClosed
	}
	f.Sent = append(f.Sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) SetReadTimeout(d time.Duration) {}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

// IsDatagram implements Transport: this double behaves like a stream
// transport (ReadExact over a buffered byte stream), matching how it is
// fed in these tests.
func (f *fakeTransport) IsDatagram() bool { return false }

func TestSessionConnectNegotiatesConfig(t *testing.T) {
	transport := newFakeTransport()
	cfg := buildMinimalCfg2(t)
	raw, err := cfg.Pack()
	require.NoError(t, err)
	transport.feed(raw)

	s := NewSession(1)
	err = s.Connect(transport)
	require.NoError(t, err)
	require.Equal(t, StateReady, s.State())
	require.Equal(t, 1, s.Config().NumPMU())

	// Two commands sent during negotiation: DATA_OFF, then SEND_CFG2.
	require.Len(t, transport.Sent, 2)
}

func TestSessionConnectDrainsStrayBytesBeforeConfig(t *testing.T) {
	transport := newFakeTransport()

	// Prepend garbage non-sync bytes, matching the drain-and-retry
	// invariant: any number of stray bytes before a valid response must
	// still reach READY, given enough retry budget to consume them one
	// at a time.
	const strayBytes = 12
	transport.feed(bytes.Repeat([]byte{0x00}, strayBytes))

	cfg := buildMinimalCfg2(t)
	raw, err := cfg.Pack()
	require.NoError(t, err)
	transport.feed(raw)

	s := NewSession(1)
	s.SetMaxRetries(strayBytes + 4)
	require.NoError(t, s.Connect(transport))
	require.Equal(t, StateReady, s.State())
}

func TestSessionConnectDrainsStaleDataFrameBeforeConfig(t *testing.T) {
	transport := newFakeTransport()

	staleCfg := buildMinimalCfg2(t)
	df := NewDataFrame()
	df.IDCode = 1
	df.PMUs = []PmuData{{
		StationIndex: 0,
		Phasors:      []Phasor{phasorFromRect(0, 0)},
		Analogs:      []float64{0},
		Digitals:     make([]bool, 16),
	}}
	staleRaw, err := df.Pack(staleCfg)
	require.NoError(t, err)
	transport.feed(staleRaw)

	cfgRaw, err := staleCfg.Pack()
	require.NoError(t, err)
	transport.feed(cfgRaw)

	s := NewSession(1)
	require.NoError(t, s.Connect(transport))
	require.Equal(t, StateReady, s.State())
}

func TestSessionConnectFailsOnClosedTransport(t *testing.T) {
	transport := newFakeTransport()
	s := NewSession(1)
	s.SetMaxRetries(2)

	// No bytes fed at all: ReadExact always fails closed, so negotiation
	// should surface the transport error immediately rather than loop.
	err := s.Connect(transport)
	require.Error(t, err)
	require.Equal(t, StateFailed, s.State())
}

func TestSessionStartStopNextFrame(t *testing.T) {
	transport := newFakeTransport()
	cfg := buildMinimalCfg2(t)
	cfgRaw, err := cfg.Pack()
	require.NoError(t, err)
	transport.feed(cfgRaw)

	s := NewSession(1)
	require.NoError(t, s.Connect(transport))
	require.NoError(t, s.Start())
	require.Equal(t, StateStreaming, s.State())

	df := NewDataFrame()
	df.IDCode = 1
	df.PMUs = []PmuData{{
		StationIndex: 0,
		Phasors:      []Phasor{phasorFromRect(3, 4)},
		Freq:         60.0,
		Analogs:      []float64{0},
		Digitals:     make([]bool, 16),
	}}
	dataRaw, err := df.Pack(s.Config())
	require.NoError(t, err)
	transport.feed(dataRaw)

	got, err := s.NextFrame()
	require.NoError(t, err)
	require.Len(t, got.PMUs, 1)
	require.InDelta(t, 5.0, got.PMUs[0].Phasors[0].Mag, 1e-6)

	require.NoError(t, s.Stop())
	require.Equal(t, StateReady, s.State())
}

func TestSessionNextFrameRequiresStreaming(t *testing.T) {
	s := NewSession(1)
	_, err := s.NextFrame()
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestSessionHeaderRequest(t *testing.T) {
	transport := newFakeTransport()
	hdr := NewHeaderFrame(1, "unit test device")
	raw, err := hdr.Pack()
	require.NoError(t, err)
	transport.feed(raw)

	s := NewSession(1)
	s.transport = transport // Header() only needs a transport, not a full Connect

	got, err := s.Header()
	require.NoError(t, err)
	require.Equal(t, "unit test device", got.Data)
}
