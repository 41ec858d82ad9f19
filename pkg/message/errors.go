package message

import (
	"errors"
	"fmt"
)

// Message layer errors.
var (
	// Decoding errors. Decode wraps these in a *DecodeError.
	ErrMalformedHeader        = errors.New("message: malformed header")
	ErrTruncatedOptions       = errors.New("message: truncated options")
	ErrUnexpectedEndOfPayload = errors.New("message: payload marker without payload")
	ErrInvalidOption          = errors.New("message: invalid option encoding")

	// Validation errors
	ErrInvalidTokenLength = errors.New("message: token longer than 8 bytes")
	ErrInvalidType        = errors.New("message: invalid message type")
	ErrInvalidCode        = errors.New("message: invalid code")
	ErrInvalidMessageID   = errors.New("message: message ID out of range")
	ErrOptionValueTooLong = errors.New("message: option value too long")
)

// DecodeError reports why and where a datagram failed to decode.
type DecodeError struct {
	// Kind is one of ErrMalformedHeader, ErrTruncatedOptions,
	// ErrUnexpectedEndOfPayload or ErrInvalidOption.
	Kind error

	// Offset is the byte offset at which decoding stopped.
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v at offset %d", e.Kind, e.Offset)
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

func decodeError(kind error, offset int) error {
	return &DecodeError{Kind: kind, Offset: offset}
}

// Wire format constants (RFC 7252 Section 3).
const (
	// Version is the only protocol version (Ver field, bits 7-6).
	Version uint8 = 1

	// HeaderSize is the fixed header size: Ver/T/TKL (1) + Code (1) + Message ID (2).
	HeaderSize = 4

	// MaxTokenSize is the largest token the TKL nibble may advertise.
	MaxTokenSize = 8

	// PayloadMarker separates options from the payload.
	PayloadMarker byte = 0xFF

	// MaxOptionValueSize is the largest value the extended length form can carry.
	MaxOptionValueSize = 0xFFFF + extend16Base

	// MaxMessageSize bounds datagrams read from the transport.
	// This is the IPv6 minimum MTU.
	MaxMessageSize = 1280
)

// Option header nibble escapes.
const (
	// nibbleExtend8 signals one extra byte holding (value - 13).
	nibbleExtend8 = 13

	// nibbleExtend16 signals two extra bytes holding (value - 269), big-endian.
	nibbleExtend16 = 14

	// nibbleReserved is only legal as part of the payload marker.
	nibbleReserved = 15

	extend8Base  = 13
	extend16Base = 269
)
