package exchange

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"github.com/backkem/coap/pkg/message"
	"github.com/backkem/coap/pkg/option"
	"github.com/backkem/coap/pkg/transport"
)

const eventQueueSize = 16

type eventKind int

const (
	eventDatagram eventKind = iota
	eventRetransmit
	eventMaxWait
)

// event is one unit of work for the driver goroutine.
type event struct {
	kind eventKind

	// gen identifies the timer that fired; stale fires are ignored.
	gen uint64

	data []byte
	addr net.Addr
}

// effects collects what a handler decided under the lock and what must run
// after it is released.
type effects struct {
	notes   []notification
	release *transport.UDP
}

func (fx *effects) message(msg *message.Message) {
	fx.notes = append(fx.notes, notification{kind: notifyMessage, msg: msg})
}

func (fx *effects) err(err error) {
	fx.notes = append(fx.notes, notification{kind: notifyError, err: err})
}

func (fx *effects) retransmit(msg *message.Message, count int, final bool) {
	fx.notes = append(fx.notes, notification{kind: notifyRetransmit, msg: msg, count: count, final: final})
}

// enqueue hands ev to the driver of b. It gives up once b is torn down.
func (e *Exchange) enqueue(b *binding, ev event) {
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

// run is the driver goroutine of one binding.
func (e *Exchange) run(b *binding) {
	for {
		select {
		case <-b.done:
			return
		case ev := <-b.events:
			e.handleEvent(b, ev)
		}
	}
}

func (e *Exchange) handleEvent(b *binding, ev event) {
	var fx effects

	e.mu.Lock()
	if e.bind != b {
		e.mu.Unlock()
		return
	}
	switch ev.kind {
	case eventDatagram:
		e.handleDatagramLocked(ev.data, ev.addr, &fx)
	case eventRetransmit:
		e.handleRetransmitLocked(ev.gen, &fx)
	case eventMaxWait:
		e.handleMaxWaitLocked(ev.gen, &fx)
	}
	e.mu.Unlock()

	if fx.release != nil {
		_ = fx.release.Stop()
	}
	e.dispatch(fx.notes)
}

// dispatch runs Delegate callbacks. Nothing is delivered after the caller
// closed the exchange.
func (e *Exchange) dispatch(notes []notification) {
	if e.delegate == nil {
		return
	}
	for _, n := range notes {
		e.mu.Lock()
		closed := e.userClosed
		e.mu.Unlock()
		if closed {
			return
		}

		switch n.kind {
		case notifyMessage:
			e.delegate.OnMessage(e, n.msg)
		case notifyError:
			e.delegate.OnError(e, n.err)
		case notifyRetransmit:
			e.delegate.OnRetransmit(e, n.msg, n.count, n.final)
		}
	}
}

func (e *Exchange) handleRetransmitLocked(gen uint64, fx *effects) {
	if gen != e.retransmitGen || e.retransmit == nil {
		return
	}

	e.retransmissions++
	final := e.retransmissions >= e.params.MaxRetransmit
	e.metrics.Retransmission()

	if e.log != nil {
		e.log.Debugf("[%s] retransmission %d/%d of %s", e.id, e.retransmissions, e.params.MaxRetransmit, e.pending)
	}
	e.transmitLocked(e.pendingData, e.pending.Type)

	if final {
		e.retransmit.stop()
		e.retransmit = nil
	} else {
		e.scheduleRetransmitLocked(e.retransmit.interval * 2)
	}
	fx.retransmit(e.pending.Clone(), e.retransmissions, final)
}

func (e *Exchange) handleMaxWaitLocked(gen uint64, fx *effects) {
	if gen != e.maxWaitGen || e.maxWait == nil {
		return
	}

	e.metrics.Timeout()
	err := newError(NoResponseExpected, nil)
	if e.log != nil {
		e.log.Infof("[%s] %v", e.id, err)
	}
	fx.release = e.teardownLocked(StateClosed)
	fx.err(err)
}

func (e *Exchange) handleDatagramLocked(data []byte, from net.Addr, fx *effects) {
	if !e.state.canReceive() {
		return
	}

	msg, err := message.Decode(data)
	if err != nil {
		e.metrics.DecodeError()
		if e.log != nil {
			e.log.Debugf("[%s] dropping datagram from %s: %v", e.id, from, err)
		}
		return
	}
	e.metrics.MessageReceived(msg.Type.String())

	if e.log != nil {
		e.log.Tracef("[%s] recv %s from %s", e.id, msg, from)
	}

	switch msg.Type {
	case message.Acknowledgement, message.Reset:
		e.handleAckLocked(msg, fx)
	default:
		e.handleInboundLocked(msg, from, fx)
	}
}

// handleAckLocked matches an ACK or RST against the pending message ID.
func (e *Exchange) handleAckLocked(msg *message.Message, fx *effects) {
	if e.pending == nil || e.acked || msg.MessageID != e.pending.MessageID {
		if e.log != nil {
			e.log.Debugf("[%s] unmatched %s", e.id, msg)
		}
		return
	}

	if msg.Type == message.Reset {
		e.acked = true
		if e.observe.state == ObserveActive {
			e.observe.state = ObserveCancelled
		}
		fx.message(msg)
		fx.release = e.teardownLocked(StateClosed)
		return
	}

	if msg.IsEmpty() {
		// Separate response follows; max-wait keeps running.
		e.acked = true
		e.stopRetransmitLocked()
		return
	}

	if !bytes.Equal(msg.Token, e.pending.Token) {
		if e.log != nil {
			e.log.Debugf("[%s] piggybacked response with foreign token %x", e.id, msg.Token)
		}
		return
	}
	e.acked = true
	e.stopRetransmitLocked()
	e.handleResponseLocked(msg, fx)
}

// handleInboundLocked processes a CON or NON from the server: a separate
// response or a notification.
func (e *Exchange) handleInboundLocked(msg *message.Message, from net.Addr, fx *effects) {
	if e.request == nil || !msg.Code.IsResponse() || !bytes.Equal(msg.Token, e.request.Token) {
		if msg.Type == message.Confirmable {
			e.replyLocked(message.Reset, msg.MessageID, from)
		}
		return
	}

	if e.recent.contains(msg.MessageID) {
		e.metrics.Duplicate()
		if msg.Type == message.Confirmable {
			e.replyLocked(message.Acknowledgement, msg.MessageID, from)
		}
		return
	}
	e.recent.add(msg.MessageID)

	if msg.Type == message.Confirmable {
		e.replyLocked(message.Acknowledgement, msg.MessageID, from)
	}
	e.acked = true
	e.stopRetransmitLocked()
	e.handleResponseLocked(msg, fx)
}

// handleResponseLocked applies Observe ordering and Block2 assembly to a
// matched response.
func (e *Exchange) handleResponseLocked(msg *message.Message, fx *effects) {
	blk, hasBlock, err := option.Block2(msg.Options)
	if err != nil {
		if e.log != nil {
			e.log.Debugf("[%s] dropping response: %v", e.id, err)
		}
		return
	}

	if e.block == nil || (hasBlock && blk.Num == 0) {
		if hasBlock && blk.Num != 0 {
			if e.log != nil {
				e.log.Debugf("[%s] dropping block %s, expected 0", e.id, blk)
			}
			return
		}
		seq, notification, ok := e.checkObserveLocked(msg)
		if !ok {
			return
		}
		if hasBlock && blk.More {
			if len(msg.Payload) > e.maxBodySize {
				e.abortBlockLocked(len(msg.Payload), fx)
				return
			}
			e.block = &blockTransfer{
				payload:      append([]byte(nil), msg.Payload...),
				notification: notification,
				seq:          seq,
			}
			e.metrics.BlockReceived()
			e.requestNextBlockLocked(blk)
			return
		}
		e.block = nil
		e.finishLocked(msg, seq, notification, fx)
		return
	}

	if !hasBlock || blk.Num != e.block.next {
		if e.log != nil {
			e.log.Debugf("[%s] dropping out-of-sequence block (want %d)", e.id, e.block.next)
		}
		return
	}
	if size := len(e.block.payload) + len(msg.Payload); size > e.maxBodySize {
		e.abortBlockLocked(size, fx)
		return
	}
	e.block.payload = append(e.block.payload, msg.Payload...)
	e.metrics.BlockReceived()
	if blk.More {
		e.requestNextBlockLocked(blk)
		return
	}

	assembled := msg.Clone()
	assembled.Payload = e.block.payload
	assembled.Options = assembled.Options.Remove(message.Block2)
	if e.block.notification {
		assembled.Options = option.SetObserve(assembled.Options, e.block.seq)
	}
	seq, notification := e.block.seq, e.block.notification
	e.block = nil
	e.finishLocked(assembled, seq, notification, fx)
}

// abortBlockLocked fails the exchange once a Block2 body would reach size
// bytes, past the configured limit.
func (e *Exchange) abortBlockLocked(size int, fx *effects) {
	err := newError(BodyTooLarge, fmt.Errorf("%d bytes exceeds limit of %d", size, e.maxBodySize))
	if e.log != nil {
		e.log.Warnf("[%s] %v", e.id, err)
	}
	if e.observe.state == ObserveActive {
		e.observe.state = ObserveCancelled
	}
	fx.release = e.teardownLocked(StateClosed)
	fx.err(err)
}

// checkObserveLocked classifies msg against the observation. ok is false for
// notifications that must be dropped.
func (e *Exchange) checkObserveLocked(msg *message.Message) (seq uint32, notification, ok bool) {
	if !e.observe.requested || msg.Code.Class() != 2 {
		return 0, false, true
	}
	seq, present, err := option.Observe(msg.Options)
	if err != nil {
		if e.log != nil {
			e.log.Debugf("[%s] dropping notification: %v", e.id, err)
		}
		return 0, false, false
	}
	if !present {
		return 0, false, true
	}
	if e.observe.state == ObserveActive &&
		!option.ObserveIsFresher(e.observe.seq, seq, e.clock.Now().Sub(e.observe.at)) {
		e.metrics.ObserveStale()
		if e.log != nil {
			e.log.Debugf("[%s] stale notification %d after %d", e.id, seq, e.observe.seq)
		}
		return seq, true, false
	}
	return seq, true, true
}

// requestNextBlockLocked asks for the block after blk with the request's
// token and options, minus Observe.
func (e *Exchange) requestNextBlockLocked(blk option.Block) {
	next := e.request.Clone()
	next.Options = next.Options.Remove(message.Observe)
	next.Options = option.SetBlock2(next.Options, blk.Next())
	next.MessageID = e.nextMessageIDLocked()
	next.Payload = nil

	data, err := next.Encode()
	if err != nil {
		if e.log != nil {
			e.log.Warnf("[%s] encoding block request: %v", e.id, err)
		}
		return
	}

	e.block.next = blk.Num + 1
	e.stopTimersLocked()
	e.pending = next
	e.pendingData = data
	e.acked = false
	e.retransmissions = 0

	if next.Type == message.Confirmable {
		e.startRetransmitLocked(e.backoff.Initial())
	}
	e.startMaxWaitLocked()
	e.state = StateAwaitingResponse

	if e.log != nil {
		e.log.Debugf("[%s] requesting block %s", e.id, blk.Next())
	}
	e.transmitLocked(data, next.Type)
}

// finishLocked delivers a complete response. Notifications keep the exchange
// observing; anything else resolves it.
func (e *Exchange) finishLocked(msg *message.Message, seq uint32, notification bool, fx *effects) {
	if notification {
		e.observe.state = ObserveActive
		e.observe.seq = seq
		e.observe.at = e.clock.Now()
		e.metrics.ObserveNotification()

		e.stopRetransmitLocked()
		e.pending = e.request
		e.acked = true
		e.startMaxWaitLocked()
		e.state = StateObserving
		fx.message(msg)
		return
	}

	if e.observe.state == ObserveActive {
		e.observe.state = ObserveCancelled
	}
	fx.message(msg)
	fx.release = e.teardownLocked(StateResolved)
}

// replyLocked sends an empty ACK or RST for messageID.
func (e *Exchange) replyLocked(typ message.Type, messageID uint16, to net.Addr) {
	reply := &message.Message{Type: typ, Code: message.Empty, MessageID: messageID}
	data, err := reply.Encode()
	if err != nil {
		return
	}
	if e.bind == nil || to == nil {
		return
	}
	if err := e.bind.udp.Send(data, to); err != nil {
		e.metrics.SendError()
		return
	}
	e.metrics.MessageSent(typ.String())
}

// transmitLocked writes data to the remote. Failures are counted and left to
// the next retransmission.
func (e *Exchange) transmitLocked(data []byte, typ message.Type) {
	if e.bind == nil {
		return
	}
	if err := e.bind.udp.Send(data, e.remote); err != nil {
		e.metrics.SendError()
		if e.log != nil {
			e.log.Warnf("[%s] send failed: %v", e.id, err)
		}
		return
	}
	e.metrics.MessageSent(typ.String())
}

func (e *Exchange) nextMessageIDLocked() uint16 {
	e.lastMID++
	return e.lastMID
}

func (e *Exchange) startRetransmitLocked(interval time.Duration) {
	e.stopRetransmitLocked()
	e.retransmit = &retransmitEntry{}
	e.scheduleRetransmitLocked(interval)
}

// scheduleRetransmitLocked arms the retransmission timer of the current entry.
func (e *Exchange) scheduleRetransmitLocked(interval time.Duration) {
	e.retransmitGen++
	gen := e.retransmitGen
	b := e.bind

	e.retransmit.interval = interval
	e.retransmit.timer = e.clock.AfterFunc(interval, func() {
		e.enqueue(b, event{kind: eventRetransmit, gen: gen})
	})
}

func (e *Exchange) stopRetransmitLocked() {
	if e.retransmit != nil {
		e.retransmit.stop()
		e.retransmit = nil
	}
	e.retransmitGen++
}

func (e *Exchange) startMaxWaitLocked() {
	e.stopMaxWaitLocked()
	e.maxWaitGen++
	gen := e.maxWaitGen
	b := e.bind

	e.maxWait = e.clock.AfterFunc(e.params.MaxTransmitWait, func() {
		e.enqueue(b, event{kind: eventMaxWait, gen: gen})
	})
}

func (e *Exchange) stopMaxWaitLocked() {
	if e.maxWait != nil {
		e.maxWait.Stop()
		e.maxWait = nil
	}
	e.maxWaitGen++
}

func (e *Exchange) stopTimersLocked() {
	e.stopRetransmitLocked()
	e.stopMaxWaitLocked()
}

// teardownLocked stops timers, drops block state and detaches the binding.
// The returned transport must be stopped after e.mu is released.
func (e *Exchange) teardownLocked(next State) *transport.UDP {
	e.stopTimersLocked()
	e.block = nil
	e.state = next

	b := e.bind
	e.bind = nil
	if b == nil {
		return nil
	}
	close(b.done)
	return b.udp
}
