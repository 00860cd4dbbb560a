package synchrophasor

import (
	"errors"
	"io"
	"net"
	"time"
)

// Transport is the capability set the codec and session driver depend on
// (§4.7): a byte-stream or datagram source with exact reads, whole-datagram
// reads, whole-buffer writes, a read deadline, and a close. Any socket
// wrapper - TCP, UDP, Unix stream or datagram - that can satisfy this is a
// usable collaborator; the codec never reaches for net.Conn directly.
type Transport interface {
	// ReadExact returns exactly n bytes or fails with ErrTransportClosed
	// or ErrTimeout.
	ReadExact(n int) ([]byte, error)
	// ReadDatagram returns one whole datagram. Stream transports do not
	// implement this meaningfully; DatagramTransport does.
	ReadDatagram() ([]byte, error)
	// WriteAll sends every byte of data or fails with ErrTransportClosed.
	WriteAll(data []byte) error
	// SetReadTimeout bounds how long ReadExact/ReadDatagram may block.
	SetReadTimeout(d time.Duration)
	// Close releases the underlying socket.
	Close() error
	// IsDatagram reports whether this transport delivers exactly one PMU
	// frame per logical read (ReadDatagram) rather than an undelimited
	// byte stream (ReadExact). The session driver dispatches on this
	// capability rather than on the transport's concrete type, so any
	// conforming Transport - including a test double - works (§4.7).
	IsDatagram() bool
}

// DefaultReadTimeout is the read deadline a new StreamTransport or
// DatagramTransport starts with until SetReadTimeout changes it (§5 "All
// I/O is synchronous...").
const DefaultReadTimeout = 5 * time.Second

// classifyNetError maps a net.Conn error into the Transport error
// taxonomy: a timeout is recoverable, anything else (EOF, closed,
// reset) is treated as a closed transport.
func classifyNetError(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, io.EOF) {
		return ErrTransportClosed
	}
	return ErrTransportClosed
}

// StreamTransport is the reliable byte-stream transport (TCP, or a
// stream-mode Unix socket) required by §4.7.
type StreamTransport struct {
	conn    net.Conn
	timeout time.Duration
}

// NewStreamTransport wraps an already-connected stream socket.
func NewStreamTransport(conn net.Conn) *StreamTransport {
	return &StreamTransport{conn: conn, timeout: DefaultReadTimeout}
}

// DialStream opens a TCP connection to address and wraps it.
func DialStream(address string) (*StreamTransport, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, err
	}
	return NewStreamTransport(conn), nil
}

// SetReadTimeout implements Transport.
func (t *StreamTransport) SetReadTimeout(d time.Duration) {
	t.timeout = d
}

// ReadExact implements Transport: it assembles partial reads until n bytes
// have arrived (§4.8 "Partial reads are assembled until complete") and
// returns either all n bytes or an error. A timeout or other error partway
// through discards the bytes already read; they are not returned to the
// caller.
func (t *StreamTransport) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	read := 0
	for read < n {
		if t.timeout > 0 {
			if err := t.conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
				return nil, err
			}
		}
		m, err := t.conn.Read(buf[read:])
		read += m
		if err != nil {
			if read == n {
				break
			}
			return nil, classifyNetError(err)
		}
	}
	return buf, nil
}

// ReadDatagram is not meaningful on a stream transport; callers that need
// the streaming re-framer's datagram path must use DatagramTransport.
func (t *StreamTransport) ReadDatagram() ([]byte, error) {
	return nil, ErrInvalidParameter
}

// WriteAll implements Transport.
func (t *StreamTransport) WriteAll(data []byte) error {
	_, err := t.conn.Write(data)
	if err != nil {
		return classifyNetError(err)
	}
	return nil
}

// Close implements Transport.
func (t *StreamTransport) Close() error {
	return t.conn.Close()
}

// IsDatagram implements Transport: a StreamTransport is never a datagram
// transport.
func (t *StreamTransport) IsDatagram() bool { return false }

// DatagramTransport is the datagram transport (UDP, or a datagram-mode
// Unix socket) required by §4.7. The codec assumes exactly one PMU frame
// per datagram, matching the protocol's standard UDP use.
type DatagramTransport struct {
	conn    net.PacketConn
	remote  net.Addr
	timeout time.Duration
	buf     []byte
}

// NewDatagramTransport wraps an already-bound packet connection. remote is
// the single peer WriteAll sends to (a client talking to one PMU/PDC). With
// a nil remote the transport can only read: WriteAll returns
// ErrInvalidParameter.
func NewDatagramTransport(conn net.PacketConn, remote net.Addr) *DatagramTransport {
	return &DatagramTransport{conn: conn, remote: remote, timeout: DefaultReadTimeout, buf: make([]byte, maxFrameSize)}
}

// DialDatagram resolves address and wraps a locally-bound, unconnected UDP
// socket with remote set to address. The socket is deliberately left
// unconnected (net.ListenUDP, not net.Dial): WriteTo on a pre-connected UDP
// socket fails with ErrWriteToConnected, so WriteAll's use of WriteTo
// requires an unconnected conn here.
func DialDatagram(address string) (*DatagramTransport, error) {
	remoteAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, err
	}
	return NewDatagramTransport(conn, remoteAddr), nil
}

// SetReadTimeout implements Transport.
func (t *DatagramTransport) SetReadTimeout(d time.Duration) {
	t.timeout = d
}

// ReadExact is not meaningful on a datagram transport: a datagram carries
// exactly one frame and boundaries are not byte-addressable the way a
// stream's are.
func (t *DatagramTransport) ReadExact(n int) ([]byte, error) {
	return nil, ErrInvalidParameter
}

// ReadDatagram implements Transport, returning one whole datagram.
func (t *DatagramTransport) ReadDatagram() ([]byte, error) {
	if t.timeout > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
			return nil, err
		}
	}
	n, _, err := t.conn.ReadFrom(t.buf)
	if err != nil {
		return nil, classifyNetError(err)
	}
	out := make([]byte, n)
	copy(out, t.buf[:n])
	return out, nil
}

// WriteAll implements Transport.
func (t *DatagramTransport) WriteAll(data []byte) error {
	var err error
	if t.remote != nil {
		_, err = t.conn.WriteTo(data, t.remote)
	} else {
		return ErrInvalidParameter
	}
	if err != nil {
		return classifyNetError(err)
	}
	return nil
}

// Close implements Transport.
func (t *DatagramTransport) Close() error {
	return t.conn.Close()
}

// IsDatagram implements Transport: a DatagramTransport always is one.
func (t *DatagramTransport) IsDatagram() bool { return true }
