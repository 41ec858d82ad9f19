package exchange

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/backkem/coap/pkg/message"
	"github.com/backkem/coap/pkg/metrics"
	"github.com/backkem/coap/pkg/option"
	"github.com/backkem/coap/pkg/transport"
)

// Config configures an Exchange.
type Config struct {
	// Factory opens the socket and resolves destinations.
	// Default: transport.UDPFactory{}.
	Factory transport.Factory

	// LocalPort is the local UDP port. Zero picks an ephemeral port.
	LocalPort int

	// Delegate receives responses and errors. Nil discards them.
	Delegate Delegate

	// LoggerFactory creates the "exchange" logger. Nil disables logging.
	LoggerFactory logging.LoggerFactory

	// Metrics records exchange counters. Optional.
	Metrics *metrics.Metrics

	// Clock schedules timers. Default: RealClock.
	Clock Clock

	// Random jitters the first retransmission timeout.
	// Default: DefaultRandomSource.
	Random RandomSource

	// Params overrides the RFC 7252 transmission parameters.
	Params Params

	// MaxBodySize bounds a Block2 body in bytes. A transfer that exceeds it
	// fails with BodyTooLarge. Default: DefaultMaxBodySize.
	MaxBodySize int
}

// binding is one bound socket and the driver goroutine consuming its events.
type binding struct {
	udp    *transport.UDP
	events chan event
	done   chan struct{}
}

// observation is the Observe bookkeeping of the current request.
type observation struct {
	// requested is set when the request carried Observe=0.
	requested bool
	state     ObserveState
	seq       uint32
	at        time.Time
}

// blockTransfer accumulates a Block2 body.
type blockTransfer struct {
	next    uint32
	payload []byte

	// notification and seq describe the Observe option of block 0.
	notification bool
	seq          uint32
}

// Exchange is one client request and everything that follows from it:
// retransmissions, the response, Observe notifications and Block2 follow-up
// requests. It is safe for concurrent use.
type Exchange struct {
	id            uuid.UUID
	factory       transport.Factory
	localPort     int
	delegate      Delegate
	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger
	metrics       *metrics.Metrics
	clock         Clock
	params        Params
	backoff       *BackoffCalculator
	maxBodySize   int

	mu         sync.Mutex
	state      State
	bind       *binding
	remote     net.Addr
	userClosed bool

	// request is the caller's message; pending is what was last transmitted
	// and awaits an ACK or response. They differ during a Block2 transfer.
	request     *message.Message
	pending     *message.Message
	pendingData []byte
	acked       bool
	lastMID     uint16

	retransmit      *retransmitEntry
	retransmitGen   uint64
	retransmissions int
	maxWait         Timer
	maxWaitGen      uint64

	observe observation
	block   *blockTransfer
	recent  recentIDs
}

// New creates an idle exchange. No socket is opened until Send.
func New(config Config) *Exchange {
	if config.Factory == nil {
		config.Factory = transport.UDPFactory{}
	}
	if config.Clock == nil {
		config.Clock = RealClock
	}
	params := config.Params.withDefaults()
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}

	e := &Exchange{
		id:            uuid.New(),
		factory:       config.Factory,
		localPort:     config.LocalPort,
		delegate:      config.Delegate,
		loggerFactory: config.LoggerFactory,
		metrics:       config.Metrics,
		clock:         config.Clock,
		params:        params,
		backoff:       NewBackoffCalculator(params, config.Random),
		maxBodySize:   config.MaxBodySize,
		state:         StateIdle,
	}

	if config.LoggerFactory != nil {
		e.log = config.LoggerFactory.NewLogger("exchange")
	}

	return e
}

// Dial creates an exchange and sends msg to host:port.
func Dial(config Config, msg *message.Message, host string, port int) (*Exchange, error) {
	e := New(config)
	if err := e.Send(msg, host, port); err != nil {
		return nil, err
	}
	return e, nil
}

// ID identifies the exchange in logs.
func (e *Exchange) ID() uuid.UUID {
	return e.id
}

// Send transmits msg to host:port, replacing any message still in flight.
// Timers, Observe and Block2 state are reset. The socket is bound on the
// first call. Send returns once the message is written; results arrive
// through the Delegate.
//
// Send may be called again after the exchange resolved or while it observes.
// It fails with ErrClosed once the exchange is closed.
func (e *Exchange) Send(msg *message.Message, host string, port int) error {
	if msg == nil {
		return ErrInvalidMessage
	}
	req := msg.Clone()
	if req.Type == message.Acknowledgement || req.Type == message.Reset {
		return fmt.Errorf("%w: cannot send %s", ErrInvalidMessage, req.Type)
	}
	data, err := req.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.state = StateSending

	if e.bind == nil {
		if err := e.bindLocked(); err != nil {
			return e.failSocketLocked(err)
		}
	}
	remote, err := e.factory.ResolveUDPAddr(host, port)
	if err != nil {
		return e.failSocketLocked(err)
	}

	e.stopTimersLocked()
	e.remote = remote
	e.request = req
	e.pending = req
	e.pendingData = data
	e.acked = false
	e.lastMID = req.MessageID
	e.retransmissions = 0
	e.block = nil
	e.recent.reset()

	e.observe = observation{}
	if v, ok, err := option.Observe(req.Options); ok && err == nil && v == option.Register {
		e.observe.requested = true
	}

	if req.Type == message.Confirmable {
		e.startRetransmitLocked(e.backoff.Initial())
	}
	e.startMaxWaitLocked()
	e.state = StateAwaitingResponse

	if e.log != nil {
		e.log.Debugf("[%s] send %s to %s", e.id, req, remote)
	}
	e.transmitLocked(data, req.Type)
	e.mu.Unlock()

	return nil
}

// failSocketLocked closes the exchange after a bind or resolve failure,
// reports it and returns it. It releases e.mu.
func (e *Exchange) failSocketLocked(cause error) error {
	err := newError(UDPSocketError, cause)
	if e.log != nil {
		e.log.Warnf("[%s] %v", e.id, err)
	}
	udp := e.teardownLocked(StateClosed)
	e.mu.Unlock()

	if udp != nil {
		_ = udp.Stop()
	}
	e.dispatch([]notification{{kind: notifyError, err: err}})
	return err
}

// bindLocked opens the socket and starts its driver goroutine.
func (e *Exchange) bindLocked() error {
	conn, err := e.factory.CreateUDPConn(e.localPort)
	if err != nil {
		return err
	}

	b := &binding{
		events: make(chan event, eventQueueSize),
		done:   make(chan struct{}),
	}
	udp, err := transport.NewUDP(transport.UDPConfig{
		Conn: conn,
		MessageHandler: func(rm *transport.ReceivedMessage) {
			e.enqueue(b, event{kind: eventDatagram, data: rm.Data, addr: rm.Addr})
		},
		LoggerFactory: e.loggerFactory,
	})
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := udp.Start(); err != nil {
		_ = udp.Stop()
		return err
	}
	b.udp = udp
	e.bind = b

	go e.run(b)

	if e.log != nil {
		e.log.Debugf("[%s] bound %s", e.id, udp.LocalAddr())
	}
	return nil
}

// CancelObserve ends an observation. The request is re-sent once with
// Observe=1 so the server drops the registration, then the exchange closes.
// It returns ErrNotObserving if the request never registered.
func (e *Exchange) CancelObserve() error {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return ErrClosed
	}
	if !e.observe.requested || e.request == nil {
		e.mu.Unlock()
		return ErrNotObserving
	}

	dereg := e.request.Clone()
	dereg.Options = option.SetObserve(dereg.Options.Remove(message.Block2), option.Deregister)
	dereg.MessageID = e.nextMessageIDLocked()
	if e.bind != nil && e.remote != nil {
		if data, err := dereg.Encode(); err == nil {
			e.transmitLocked(data, dereg.Type)
		}
	}

	if e.log != nil {
		e.log.Debugf("[%s] observation cancelled", e.id)
	}
	e.observe.state = ObserveCancelled
	e.userClosed = true
	udp := e.teardownLocked(StateClosed)
	e.mu.Unlock()

	if udp != nil {
		_ = udp.Stop()
	}
	return nil
}

// Close stops all timers, releases the socket and moves the exchange to
// StateClosed. No Delegate callback runs after Close returns, except one
// already in progress. Close is idempotent.
func (e *Exchange) Close() error {
	e.mu.Lock()
	e.userClosed = true
	if e.state == StateClosed {
		e.mu.Unlock()
		return nil
	}
	udp := e.teardownLocked(StateClosed)
	e.mu.Unlock()

	if udp != nil {
		_ = udp.Stop()
	}
	if e.log != nil {
		e.log.Debugf("[%s] closed", e.id)
	}
	return nil
}

// State returns the lifecycle state.
func (e *Exchange) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// InBlockContinuation reports whether a Block2 body is being assembled.
func (e *Exchange) InBlockContinuation() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.block != nil
}

// InTransmission reports whether a further message from the server is
// expected: no response yet, a separate response announced by an empty ACK,
// more blocks to come, or an active observation.
func (e *Exchange) InTransmission() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateAwaitingResponse || e.state == StateObserving
}

// Retransmissions returns how often the pending message was retransmitted.
func (e *Exchange) Retransmissions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retransmissions
}

// ObserveState returns the state of the observation, if any.
func (e *Exchange) ObserveState() ObserveState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observe.state
}

// Pending returns a copy of the message awaiting resolution, or nil.
func (e *Exchange) Pending() *message.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return nil
	}
	return e.pending.Clone()
}

// LocalAddr returns the bound local address, or nil when no socket is open.
func (e *Exchange) LocalAddr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bind == nil {
		return nil
	}
	return e.bind.udp.LocalAddr()
}

// RemoteAddr returns the destination of the last Send.
func (e *Exchange) RemoteAddr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remote
}

func (e *Exchange) String() string {
	return fmt.Sprintf("exchange %s (%s)", e.id, e.State())
}
