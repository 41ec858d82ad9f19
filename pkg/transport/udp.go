// Package transport moves CoAP datagrams between a PacketConn and the
// exchange layer.
//
// CoAP over UDP maps one message onto one datagram (RFC 7252 Section 3), so
// the transport never frames or reassembles: each ReadFrom yields at most one
// message for the exchange to decode. A message must fit an unfragmented IPv6
// datagram (Section 4.6); anything longer than message.MaxMessageSize is
// refused on send and discarded on receive.
//
// Sockets come from a Factory so tests can swap real UDP for the in-memory
// Pipe.
package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/coap/pkg/message"
)

// DefaultPort is the default CoAP port (RFC 7252 Section 6.1).
const DefaultPort = 5683

// UDP carries the datagrams of one exchange binding. The exchange sends its
// request, empty ACKs and RSTs through Send; the read loop hands every
// inbound datagram that fits a CoAP message to the handler, which runs on the
// loop goroutine.
type UDP struct {
	conn    net.PacketConn
	handler MessageHandler
	closeCh chan struct{}
	wg      sync.WaitGroup
	log     logging.LeveledLogger

	mu      sync.RWMutex
	started bool
	closed  bool
}

// UDPConfig configures the UDP transport.
type UDPConfig struct {
	// Conn is an already bound socket, typically from a Factory. If nil, a
	// UDP socket is opened on ListenAddr.
	Conn net.PacketConn

	// ListenAddr is used when Conn is nil. Empty binds an ephemeral port,
	// which is what a client wants: responses come back to the source port
	// of the request.
	ListenAddr string

	// MessageHandler receives every datagram of at most
	// message.MaxMessageSize bytes. Required.
	MessageHandler MessageHandler

	// LoggerFactory creates the "transport-udp" logger. Nil disables logging.
	LoggerFactory logging.LoggerFactory
}

// NewUDP creates a UDP transport. The read loop does not run until Start.
func NewUDP(config UDPConfig) (*UDP, error) {
	if config.MessageHandler == nil {
		return nil, ErrNoHandler
	}

	u := &UDP{
		conn:    config.Conn,
		handler: config.MessageHandler,
		closeCh: make(chan struct{}),
	}

	if config.LoggerFactory != nil {
		u.log = config.LoggerFactory.NewLogger("transport-udp")
	}

	if u.conn == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return nil, err
		}
		u.conn = conn
	}

	return u, nil
}

// Start launches the read loop.
func (u *UDP) Start() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed
	}
	if u.started {
		u.mu.Unlock()
		return ErrAlreadyStarted
	}
	u.started = true
	u.mu.Unlock()

	if u.log != nil {
		u.log.Debugf("listening on %s", u.conn.LocalAddr())
	}

	u.wg.Add(1)
	go u.readLoop()

	return nil
}

// Stop closes the socket and waits for the read loop to return, so no handler
// call is in flight once it returns. A second call returns ErrClosed.
func (u *UDP) Stop() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed
	}
	u.closed = true
	u.mu.Unlock()

	if u.log != nil {
		u.log.Debugf("closing %s", u.conn.LocalAddr())
	}

	close(u.closeCh)

	// Unblock a pending ReadFrom before closing.
	_ = u.conn.SetReadDeadline(time.Now())
	err := u.conn.Close()
	u.wg.Wait()

	return err
}

// Send writes data as a single datagram to addr. Data longer than
// message.MaxMessageSize fails with ErrMessageTooLarge without touching the
// socket.
func (u *UDP) Send(data []byte, addr net.Addr) error {
	u.mu.RLock()
	closed := u.closed
	u.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	if addr == nil {
		return ErrInvalidAddress
	}
	if len(data) > message.MaxMessageSize {
		return ErrMessageTooLarge
	}

	if u.log != nil {
		u.log.Tracef("send %d bytes to %v", len(data), addr)
	}

	if _, err := u.conn.WriteTo(data, addr); err != nil {
		if u.log != nil {
			u.log.Warnf("send to %v failed: %v", addr, err)
		}
		return err
	}
	return nil
}

// LocalAddr returns the bound address of the socket.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

func (u *UDP) readLoop() {
	defer u.wg.Done()

	// One spare byte tells a full-size message from a truncated larger one.
	buf := make([]byte, message.MaxMessageSize+1)

	for {
		n, addr, err := u.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-u.closeCh:
				return
			default:
			}
			if u.log != nil {
				u.log.Warnf("read failed: %v", err)
			}
			if isPermanent(err) {
				return
			}
			continue
		}

		if n == 0 {
			continue
		}
		if n > message.MaxMessageSize {
			if u.log != nil {
				u.log.Debugf("discarding oversized datagram from %v", addr)
			}
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		if u.log != nil {
			u.log.Tracef("recv %d bytes from %v", n, addr)
		}

		u.handler(&ReceivedMessage{Data: data, Addr: addr})
	}
}

// isPermanent reports read errors after which the socket is unusable.
func isPermanent(err error) bool {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return false
	}
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}
