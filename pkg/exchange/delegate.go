package exchange

import "github.com/backkem/coap/pkg/message"

// Delegate receives the results of an exchange. Callbacks run on the
// exchange's driver goroutine, one at a time.
type Delegate interface {
	// OnMessage delivers a response, an accepted notification, an assembled
	// block-wise body or a matching RST.
	OnMessage(ex *Exchange, msg *message.Message)

	// OnError reports an *Error. The exchange is closed when it is called.
	OnError(ex *Exchange, err error)

	// OnRetransmit reports retransmission count of msg. final is set on the
	// last retransmission; no further retransmission follows it.
	OnRetransmit(ex *Exchange, msg *message.Message, count int, final bool)
}

// DelegateFuncs adapts plain functions to Delegate. Nil fields are skipped.
type DelegateFuncs struct {
	Message    func(ex *Exchange, msg *message.Message)
	Error      func(ex *Exchange, err error)
	Retransmit func(ex *Exchange, msg *message.Message, count int, final bool)
}

func (d DelegateFuncs) OnMessage(ex *Exchange, msg *message.Message) {
	if d.Message != nil {
		d.Message(ex, msg)
	}
}

func (d DelegateFuncs) OnError(ex *Exchange, err error) {
	if d.Error != nil {
		d.Error(ex, err)
	}
}

func (d DelegateFuncs) OnRetransmit(ex *Exchange, msg *message.Message, count int, final bool) {
	if d.Retransmit != nil {
		d.Retransmit(ex, msg, count, final)
	}
}

var _ Delegate = DelegateFuncs{}

// notification is a Delegate call queued under the lock and run after it is
// released.
type notification struct {
	msg   *message.Message
	err   error
	count int
	final bool
	kind  notificationKind
}

type notificationKind int

const (
	notifyMessage notificationKind = iota
	notifyError
	notifyRetransmit
)
