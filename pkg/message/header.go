package message

import (
	"encoding/binary"
)

// Header is the fixed 4-byte message header plus the advertised token length.
type Header struct {
	Type        Type
	TokenLength uint8
	Code        Code
	MessageID   uint16
}

// Header bit layout (first byte).
const (
	versionShift = 6
	typeShift    = 4
	typeMask     = 0x03
	tokenLenMask = 0x0F
	versionMask  = 0x03
)

// EncodeTo serializes the header into buf, which must hold HeaderSize bytes.
// Returns the number of bytes written.
func (h *Header) EncodeTo(buf []byte) int {
	buf[0] = Version<<versionShift | uint8(h.Type)&typeMask<<typeShift | h.TokenLength&tokenLenMask
	buf[1] = uint8(h.Code)
	binary.BigEndian.PutUint16(buf[2:], h.MessageID)
	return HeaderSize
}

// Decode parses the fixed header and checks that the token fits in data.
// Returns the number of bytes consumed (always HeaderSize on success).
func (h *Header) Decode(data []byte) (int, error) {
	if len(data) < HeaderSize {
		return 0, decodeError(ErrMalformedHeader, len(data))
	}

	first := data[0]
	if (first>>versionShift)&versionMask != Version {
		return 0, decodeError(ErrMalformedHeader, 0)
	}

	h.Type = Type((first >> typeShift) & typeMask)
	h.TokenLength = first & tokenLenMask
	if h.TokenLength > MaxTokenSize {
		return 0, decodeError(ErrMalformedHeader, 0)
	}

	h.Code = Code(data[1])
	h.MessageID = binary.BigEndian.Uint16(data[2:])

	if len(data)-HeaderSize < int(h.TokenLength) {
		return 0, decodeError(ErrMalformedHeader, HeaderSize)
	}

	return HeaderSize, nil
}
