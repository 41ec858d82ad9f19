package transport

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

// NetworkCondition simulates a lossy link on a Pipe.
type NetworkCondition struct {
	// DropRate is the probability of dropping a datagram (0.0 - 1.0).
	DropRate float64

	// DelayMin and DelayMax bound a uniform per-datagram delay.
	DelayMin time.Duration
	DelayMax time.Duration

	// DuplicateRate is the probability of delivering a datagram twice.
	DuplicateRate float64
}

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess delivers queued datagrams from a background goroutine.
	AutoProcess bool

	// ProcessInterval is the delivery tick. Default: 1ms.
	ProcessInterval time.Duration

	// Seed fixes the simulation RNG. Zero seeds from the clock.
	Seed int64
}

// DefaultPipeConfig returns a config with auto-processing on.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: time.Millisecond,
	}
}

// Pipe is an in-memory datagram link between two endpoints, built on pion's
// test.Bridge. It lets exchange tests run without sockets and inject loss,
// delay and duplication.
type Pipe struct {
	bridge *test.Bridge

	mu              sync.RWMutex
	condition       NetworkCondition
	closed          bool
	rng             *rand.Rand
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	p := &Pipe{
		bridge:          test.NewBridge(),
		rng:             rand.New(rand.NewSource(seed)),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}
	if p.processInterval == 0 {
		p.processInterval = time.Millisecond
	}

	if p.autoProcess {
		p.startAutoProcess()
	}
	return p
}

func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.bridge.Tick()
			}
		}
	}()
}

// SetAutoProcess toggles background delivery. With it off, call Tick or
// Process to move datagrams.
func (p *Pipe) SetAutoProcess(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.autoProcess == enabled {
		return
	}
	p.autoProcess = enabled

	if enabled {
		p.stopCh = make(chan struct{})
		p.startAutoProcess()
		return
	}
	close(p.stopCh)
	p.wg.Wait()
}

// AutoProcess reports whether background delivery is on.
func (p *Pipe) AutoProcess() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autoProcess
}

// SetCondition applies cond to both directions.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// Condition returns the current simulation settings.
func (p *Pipe) Condition() NetworkCondition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.condition
}

// Tick delivers at most one datagram per direction.
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers everything queued.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			return count
		}
		count += n
	}
}

// Close stops delivery and closes both endpoints.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	err0 := p.bridge.GetConn0().Close()
	err1 := p.bridge.GetConn1().Close()
	if err0 != nil {
		return err0
	}
	return err1
}

// decide returns how many copies of a datagram to deliver and how long to
// hold it first.
func (p *Pipe) decide() (int, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cond := p.condition
	if cond.DropRate > 0 && p.rng.Float64() < cond.DropRate {
		return 0, 0
	}

	var delay time.Duration
	if cond.DelayMax > 0 {
		delay = cond.DelayMin
		if cond.DelayMax > cond.DelayMin {
			delay += time.Duration(p.rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
		}
	}

	copies := 1
	if cond.DuplicateRate > 0 && p.rng.Float64() < cond.DuplicateRate {
		copies = 2
	}
	return copies, delay
}

func (p *Pipe) conn(id int) net.Conn {
	if id == 0 {
		return p.bridge.GetConn0()
	}
	return p.bridge.GetConn1()
}

// PipeAddr is the net.Addr of a pipe endpoint.
type PipeAddr struct {
	ID   int
	Port int
}

func (a PipeAddr) Network() string { return "pipe" }

func (a PipeAddr) String() string { return fmt.Sprintf("pipe:%d:%d", a.ID, a.Port) }

// PipePacketConn adapts one pipe endpoint to net.PacketConn.
// Every read reports the opposite endpoint as its source.
type PipePacketConn struct {
	conn     net.Conn
	pipe     *Pipe
	local    PipeAddr
	peerAddr PipeAddr

	mu     sync.Mutex
	closed bool
}

// ReadFrom reads the next datagram from the peer.
func (c *PipePacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, err := c.conn.Read(b)
	return n, c.peerAddr, err
}

// WriteTo sends b to the peer, subject to the pipe's NetworkCondition.
// addr is ignored; a pipe has one peer.
func (c *PipePacketConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	copies, delay := c.pipe.decide()
	if copies == 0 {
		return len(b), nil
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	for i := 0; i < copies; i++ {
		if _, err := c.conn.Write(b); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// Close closes this endpoint. A pipe endpoint cannot be reopened.
func (c *PipePacketConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *PipePacketConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *PipePacketConn) LocalAddr() net.Addr { return c.local }

func (c *PipePacketConn) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

func (c *PipePacketConn) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

func (c *PipePacketConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

var _ net.PacketConn = (*PipePacketConn)(nil)

// PipeFactory hands out one endpoint of a Pipe.
//
//	client, server := transport.NewPipeFactoryPair()
//	ex := exchange.New(exchange.Config{Factory: client})
//	peer, _ := server.CreateUDPConn(transport.DefaultPort)
type PipeFactory struct {
	pipe    *Pipe
	localID int

	mu   sync.Mutex
	conn *PipePacketConn
}

// NewPipeFactoryPair creates two factories joined by an auto-processing Pipe.
func NewPipeFactoryPair() (*PipeFactory, *PipeFactory) {
	return NewPipeFactoryPairWithConfig(DefaultPipeConfig())
}

// NewPipeFactoryPairWithConfig creates two factories joined by a Pipe built
// from config.
func NewPipeFactoryPairWithConfig(config PipeConfig) (*PipeFactory, *PipeFactory) {
	pipe := NewPipeWithConfig(config)
	return &PipeFactory{pipe: pipe, localID: 0}, &PipeFactory{pipe: pipe, localID: 1}
}

// Pipe returns the shared pipe for simulation and manual delivery.
func (f *PipeFactory) Pipe() *Pipe {
	return f.pipe
}

// PeerAddr returns the address of the opposite endpoint.
func (f *PipeFactory) PeerAddr() net.Addr {
	return PipeAddr{ID: 1 - f.localID, Port: DefaultPort}
}

// CreateUDPConn returns this side's endpoint. Repeated calls return the same
// endpoint until it is closed; after that ErrClosed.
func (f *PipeFactory) CreateUDPConn(port int) (net.PacketConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn != nil {
		if f.conn.isClosed() {
			return nil, ErrClosed
		}
		return f.conn, nil
	}

	if port == 0 {
		port = DefaultPort
	}
	f.conn = &PipePacketConn{
		conn:     f.pipe.conn(f.localID),
		pipe:     f.pipe,
		local:    PipeAddr{ID: f.localID, Port: port},
		peerAddr: PipeAddr{ID: 1 - f.localID, Port: DefaultPort},
	}
	return f.conn, nil
}

// ResolveUDPAddr returns the peer endpoint for any non-empty host.
func (f *PipeFactory) ResolveUDPAddr(host string, port int) (net.Addr, error) {
	if host == "" {
		return nil, fmt.Errorf("%w: empty host", ErrInvalidAddress)
	}
	if err := ValidatePort(port); err != nil {
		return nil, err
	}
	return PipeAddr{ID: 1 - f.localID, Port: port}, nil
}

var _ Factory = (*PipeFactory)(nil)
