package exchange

import (
	"errors"
	"fmt"
)

// Errors returned by the exchange package.
var (
	// ErrNoResponseExpected is matched by errors.Is for NoResponseExpected errors.
	ErrNoResponseExpected = errors.New("exchange: no response within max transmit wait")

	// ErrUDPSocketError is matched by errors.Is for UDPSocketError errors.
	ErrUDPSocketError = errors.New("exchange: udp socket error")

	// ErrBodyTooLarge is matched by errors.Is for BodyTooLarge errors.
	ErrBodyTooLarge = errors.New("exchange: block-wise body too large")

	// ErrClosed is returned by Send and CancelObserve on a closed exchange.
	ErrClosed = errors.New("exchange: exchange is closed")

	// ErrNotObserving is returned by CancelObserve when the request did not
	// register an observation.
	ErrNotObserving = errors.New("exchange: not observing")

	// ErrInvalidMessage is returned by Send for nil messages, ACK/RST types
	// or messages that fail to encode.
	ErrInvalidMessage = errors.New("exchange: invalid message")
)

// Error is delivered to Delegate.OnError and returned by Send when the socket
// cannot be set up.
type Error struct {
	Code ErrorCode

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exchange: %s", e.Code)
	}
	return fmt.Sprintf("exchange: %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's code.
func (e *Error) Is(target error) bool {
	switch e.Code {
	case NoResponseExpected:
		return target == ErrNoResponseExpected
	case UDPSocketError:
		return target == ErrUDPSocketError
	case BodyTooLarge:
		return target == ErrBodyTooLarge
	default:
		return false
	}
}

func newError(code ErrorCode, err error) *Error {
	return &Error{Code: code, Err: err}
}
