// Package message implements the CoAP message model and its wire codec
// (RFC 7252 Section 3).
//
// A Message is a plain value: type, code, message ID, token, options and
// payload. Options are kept sorted by number; the delta encoding used on the
// wire is derived at Encode time and never stored.
package message

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/jinzhu/copier"
)

// Message is one CoAP message.
type Message struct {
	Type      Type
	Code      Code
	MessageID uint16
	Token     []byte
	Options   Options
	Payload   []byte
}

// New creates a message, validating the token length and type.
func New(typ Type, code Code, messageID uint16, token []byte) (*Message, error) {
	m := &Message{
		Type:      typ,
		Code:      code,
		MessageID: messageID,
		Token:     token,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewRequest creates a request with a random message ID and a 4-byte random
// token, addressed to path.
func NewRequest(typ Type, code Code, path string) (*Message, error) {
	m, err := New(typ, code, RandomMessageID(), RandomToken(4))
	if err != nil {
		return nil, err
	}
	m.Options = m.Options.SetPath(path)
	return m, nil
}

// MessageIDFromInt converts an int into a message ID, rejecting values that
// do not fit 16 bits.
func MessageIDFromInt(v int) (uint16, error) {
	if v < 0 || v > 0xFFFF {
		return 0, ErrInvalidMessageID
	}
	return uint16(v), nil
}

// Validate checks the invariants Encode relies on.
func (m *Message) Validate() error {
	if !m.Type.IsValid() {
		return ErrInvalidType
	}
	if len(m.Token) > MaxTokenSize {
		return ErrInvalidTokenLength
	}
	for _, opt := range m.Options {
		if len(opt.Value) > MaxOptionValueSize {
			return ErrOptionValueTooLong
		}
	}
	return nil
}

// Matches reports whether other carries the same message ID and token.
// It is used to correlate messages, not to compare them structurally.
func (m *Message) Matches(other *Message) bool {
	if other == nil {
		return false
	}
	return m.MessageID == other.MessageID && bytes.Equal(m.Token, other.Token)
}

// Clone returns a deep copy that shares no memory with m.
func (m *Message) Clone() *Message {
	c := &Message{}
	if err := copier.CopyWithOption(c, m, copier.Option{DeepCopy: true}); err != nil {
		// unreachable: source and destination share a type
		panic(fmt.Sprintf("message: clone: %v", err))
	}
	return c
}

// IsEmpty returns true for messages with code 0.00 (empty ACK, RST, ping).
func (m *Message) IsEmpty() bool {
	return m.Code.IsEmpty()
}

// ContentFormat returns the Content-Format option, if present.
func (m *Message) ContentFormat() (MediaType, bool) {
	v, ok, err := m.Options.GetUint(ContentFormat)
	if !ok || err != nil {
		return 0, false
	}
	return MediaType(v), true
}

// String renders a one-line trace of the message.
func (m *Message) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s mid=%d token=%x", m.Type, m.Code, m.MessageID, m.Token)
	if path := m.Options.Path(); len(m.Options.Get(URIPath)) > 0 {
		fmt.Fprintf(&b, " path=%s", path)
	}
	if len(m.Payload) > 0 {
		fmt.Fprintf(&b, " payload=%dB", len(m.Payload))
	}
	return b.String()
}

// RandomMessageID returns a random starting message ID.
func RandomMessageID() uint16 {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return binary.BigEndian.Uint16(buf[:])
}

// RandomToken returns n random bytes, capped at MaxTokenSize.
func RandomToken(n int) []byte {
	if n > MaxTokenSize {
		n = MaxTokenSize
	}
	if n <= 0 {
		return nil
	}
	token := make([]byte, n)
	if _, err := rand.Read(token); err != nil {
		return nil
	}
	return token
}
