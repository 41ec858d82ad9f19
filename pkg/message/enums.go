package message

import (
	"fmt"

	"github.com/plgd-dev/go-coap/v3/message/codes"
)

// Type is the 2-bit message type (RFC 7252 Section 3).
// It governs whether the peer must acknowledge the message.
type Type uint8

const (
	// Confirmable messages require an ACK and are retransmitted until one arrives.
	Confirmable Type = 0

	// NonConfirmable messages are sent once and never acknowledged.
	NonConfirmable Type = 1

	// Acknowledgement confirms receipt of a Confirmable message, optionally
	// carrying a piggybacked response.
	Acknowledgement Type = 2

	// Reset indicates a message was received but could not be processed.
	Reset Type = 3
)

// String returns the short display name used in traces ("CON", "NON", ...).
func (t Type) String() string {
	switch t {
	case Confirmable:
		return "CON"
	case NonConfirmable:
		return "NON"
	case Acknowledgement:
		return "ACK"
	case Reset:
		return "RST"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// IsValid returns true if the type fits the 2-bit field.
func (t Type) IsValid() bool {
	return t <= Reset
}

// Code is the 8-bit request method or response status, packed as
// class (3 bits) and detail (5 bits).
type Code uint8

// Request methods (class 0).
const (
	Empty  Code = 0x00
	GET    Code = 0x01
	POST   Code = 0x02
	PUT    Code = 0x03
	DELETE Code = 0x04
	FETCH  Code = 0x05
	PATCH  Code = 0x06
	IPATCH Code = 0x07
)

// Response codes (classes 2, 4 and 5).
const (
	Created                 Code = 0x41 // 2.01
	Deleted                 Code = 0x42 // 2.02
	Valid                   Code = 0x43 // 2.03
	Changed                 Code = 0x44 // 2.04
	Content                 Code = 0x45 // 2.05
	Continue                Code = 0x5F // 2.31
	BadRequest              Code = 0x80 // 4.00
	Unauthorized            Code = 0x81 // 4.01
	BadOption               Code = 0x82 // 4.02
	Forbidden               Code = 0x83 // 4.03
	NotFound                Code = 0x84 // 4.04
	MethodNotAllowed        Code = 0x85 // 4.05
	NotAcceptable           Code = 0x86 // 4.06
	RequestEntityIncomplete Code = 0x88 // 4.08
	PreconditionFailed      Code = 0x8C // 4.12
	RequestEntityTooLarge   Code = 0x8D // 4.13
	UnsupportedMediaType    Code = 0x8F // 4.15
	InternalServerError     Code = 0xA0 // 5.00
	NotImplemented          Code = 0xA1 // 5.01
	BadGateway              Code = 0xA2 // 5.02
	ServiceUnavailable      Code = 0xA3 // 5.03
	GatewayTimeout          Code = 0xA4 // 5.04
	ProxyingNotSupported    Code = 0xA5 // 5.05
)

// CodeFromClassDetail builds a code from its dotted parts, e.g. (2, 5) for 2.05.
// Negative or overflowing parts are rejected.
func CodeFromClassDetail(class, detail int) (Code, error) {
	if class < 0 || class > 7 || detail < 0 || detail > 31 {
		return 0, ErrInvalidCode
	}
	return Code(class<<5 | detail), nil
}

// Class returns the 3-bit class (0 = request, 2 = success, 4 = client error,
// 5 = server error).
func (c Code) Class() uint8 {
	return uint8(c) >> 5
}

// Detail returns the 5-bit detail.
func (c Code) Detail() uint8 {
	return uint8(c) & 0x1F
}

// IsEmpty returns true for code 0.00, used by empty ACK/RST and pings.
func (c Code) IsEmpty() bool {
	return c == Empty
}

// IsRequest returns true for method codes (0.01 - 0.31).
func (c Code) IsRequest() bool {
	return c.Class() == 0 && c.Detail() != 0
}

// IsResponse returns true for status codes (classes 2 - 5).
func (c Code) IsResponse() bool {
	class := c.Class()
	return class >= 2 && class <= 5
}

// String renders the code in dotted "c.dd" notation.
func (c Code) String() string {
	return fmt.Sprintf("%d.%02d", c.Class(), c.Detail())
}

// Name returns the registered name of the code ("GET", "Content", ...).
func (c Code) Name() string {
	return codes.Code(c).String()
}

// OptionID is an option number (RFC 7252 Section 5.10, RFC 7641, RFC 7959).
type OptionID uint16

const (
	IfMatch       OptionID = 1
	URIHost       OptionID = 3
	ETag          OptionID = 4
	IfNoneMatch   OptionID = 5
	Observe       OptionID = 6
	URIPort       OptionID = 7
	LocationPath  OptionID = 8
	URIPath       OptionID = 11
	ContentFormat OptionID = 12
	MaxAge        OptionID = 14
	URIQuery      OptionID = 15
	Accept        OptionID = 17
	LocationQuery OptionID = 20
	Block2        OptionID = 23
	Block1        OptionID = 27
	Size2         OptionID = 28
	ProxyURI      OptionID = 35
	ProxyScheme   OptionID = 39
	Size1         OptionID = 60
)

// MediaType is a Content-Format identifier.
type MediaType uint16

const (
	TextPlain     MediaType = 0
	AppLinkFormat MediaType = 40
	AppXML        MediaType = 41
	AppOctets     MediaType = 42
	AppExi        MediaType = 47
	AppJSON       MediaType = 50
	AppCBOR       MediaType = 60
)

// String returns the media type as an Internet media type string.
func (m MediaType) String() string {
	switch m {
	case TextPlain:
		return "text/plain;charset=utf-8"
	case AppLinkFormat:
		return "application/link-format"
	case AppXML:
		return "application/xml"
	case AppOctets:
		return "application/octet-stream"
	case AppExi:
		return "application/exi"
	case AppJSON:
		return "application/json"
	case AppCBOR:
		return "application/cbor"
	default:
		return fmt.Sprintf("MediaType(%d)", uint16(m))
	}
}
