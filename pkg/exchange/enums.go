// Package exchange implements the client side of one CoAP request: sending
// it, retransmitting a Confirmable request with exponential backoff, matching
// the response, and following Observe notifications (RFC 7641) and Block2
// continuations (RFC 7959).
//
// An Exchange owns one socket and one driver goroutine. Inbound datagrams,
// retransmission timeouts and the max-wait timeout are queued as events and
// handled in order on the driver goroutine, which also runs the Delegate
// callbacks. Callbacks run without the exchange lock held, so a Delegate may
// call Send, CancelObserve or Close.
//
// Lifecycle:
//
//	Idle -> Sending -> AwaitingResponse -> Resolved | Observing | Closed
//
// Resolved and Observing exchanges may be reused by calling Send again.
// Closed is terminal.
package exchange

// State is the lifecycle state of an Exchange.
type State int

const (
	// StateIdle is a new exchange that has not sent anything.
	StateIdle State = iota

	// StateSending is set while the socket is bound and the request encoded.
	StateSending

	// StateAwaitingResponse waits for an ACK, a response or the next block.
	StateAwaitingResponse

	// StateObserving follows an accepted observation.
	StateObserving

	// StateResolved has delivered a final response. Timers are stopped and
	// the socket is released.
	StateResolved

	// StateClosed is terminal.
	StateClosed
)

// String returns the display name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSending:
		return "Sending"
	case StateAwaitingResponse:
		return "AwaitingResponse"
	case StateObserving:
		return "Observing"
	case StateResolved:
		return "Resolved"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the state is a defined value.
func (s State) IsValid() bool {
	return s >= StateIdle && s <= StateClosed
}

// canReceive reports states in which inbound datagrams are processed.
func (s State) canReceive() bool {
	return s == StateSending || s == StateAwaitingResponse || s == StateObserving
}

// ObserveState tracks an observation registered by the request.
type ObserveState int

const (
	// ObserveNone means no observation was accepted.
	ObserveNone ObserveState = iota

	// ObserveActive means notifications are being delivered.
	ObserveActive

	// ObserveCancelled means the observation ended, by CancelObserve or by a
	// response without an Observe option.
	ObserveCancelled
)

func (o ObserveState) String() string {
	switch o {
	case ObserveNone:
		return "None"
	case ObserveActive:
		return "Active"
	case ObserveCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// ErrorCode classifies errors reported through Delegate.OnError.
type ErrorCode int

const (
	// NoResponseExpected is reported when MaxTransmitWait elapses without a
	// resolving response.
	NoResponseExpected ErrorCode = iota + 1

	// UDPSocketError is reported when the socket cannot be bound or the
	// destination cannot be resolved.
	UDPSocketError

	// BodyTooLarge is reported when a Block2 transfer grows past
	// Config.MaxBodySize. The transfer is abandoned.
	BodyTooLarge
)

func (c ErrorCode) String() string {
	switch c {
	case NoResponseExpected:
		return "NoResponseExpected"
	case UDPSocketError:
		return "UDPSocketError"
	case BodyTooLarge:
		return "BodyTooLarge"
	default:
		return "Unknown"
	}
}
