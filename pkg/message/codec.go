package message

import (
	"encoding/binary"
)

// Size returns the encoded size of the message in bytes.
func (m *Message) Size() int {
	size := HeaderSize + len(m.Token)

	prev := OptionID(0)
	for _, opt := range m.sortedOptions() {
		delta := int(opt.ID - prev)
		size += 1 + extendedSize(delta) + extendedSize(len(opt.Value)) + len(opt.Value)
		prev = opt.ID
	}

	if len(m.Payload) > 0 {
		size += 1 + len(m.Payload)
	}

	return size
}

// Encode serializes the message to its wire form.
// It only fails if the message does not pass Validate.
func (m *Message) Encode() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, m.Size())

	header := Header{
		Type:        m.Type,
		TokenLength: uint8(len(m.Token)),
		Code:        m.Code,
		MessageID:   m.MessageID,
	}
	offset := header.EncodeTo(buf)

	offset += copy(buf[offset:], m.Token)

	prev := OptionID(0)
	for _, opt := range m.sortedOptions() {
		offset += encodeOption(buf[offset:], int(opt.ID-prev), opt.Value)
		prev = opt.ID
	}

	if len(m.Payload) > 0 {
		buf[offset] = PayloadMarker
		offset++
		offset += copy(buf[offset:], m.Payload)
	}

	return buf[:offset], nil
}

// encodeOption writes one option header, its extended fields and its value.
// Returns the number of bytes written.
func encodeOption(buf []byte, delta int, value []byte) int {
	deltaNibble, deltaExt := optionNibble(delta)
	lengthNibble, lengthExt := optionNibble(len(value))

	buf[0] = deltaNibble<<4 | lengthNibble
	offset := 1
	offset += putExtended(buf[offset:], deltaNibble, deltaExt)
	offset += putExtended(buf[offset:], lengthNibble, lengthExt)
	offset += copy(buf[offset:], value)
	return offset
}

// optionNibble maps a delta or length onto its 4-bit class and the value to
// carry in the extended bytes.
func optionNibble(v int) (uint8, int) {
	switch {
	case v < extend8Base:
		return uint8(v), 0
	case v < extend16Base:
		return nibbleExtend8, v - extend8Base
	default:
		return nibbleExtend16, v - extend16Base
	}
}

func putExtended(buf []byte, nibble uint8, ext int) int {
	switch nibble {
	case nibbleExtend8:
		buf[0] = uint8(ext)
		return 1
	case nibbleExtend16:
		binary.BigEndian.PutUint16(buf, uint16(ext))
		return 2
	default:
		return 0
	}
}

func extendedSize(v int) int {
	switch {
	case v < extend8Base:
		return 0
	case v < extend16Base:
		return 1
	default:
		return 2
	}
}

// Decode parses a datagram into a Message.
//
// Option numbers are reconstructed by accumulating deltas in wire order.
// Unknown options are kept as raw values. Failures are reported as
// *DecodeError wrapping ErrMalformedHeader, ErrTruncatedOptions,
// ErrUnexpectedEndOfPayload or ErrInvalidOption.
func Decode(data []byte) (*Message, error) {
	var header Header
	offset, err := header.Decode(data)
	if err != nil {
		return nil, err
	}

	m := &Message{
		Type:      header.Type,
		Code:      header.Code,
		MessageID: header.MessageID,
	}

	if header.TokenLength > 0 {
		m.Token = make([]byte, header.TokenLength)
		copy(m.Token, data[offset:])
		offset += int(header.TokenLength)
	}

	number := 0
	for offset < len(data) {
		if data[offset] == PayloadMarker {
			offset++
			if offset == len(data) {
				return nil, decodeError(ErrUnexpectedEndOfPayload, offset)
			}
			m.Payload = make([]byte, len(data)-offset)
			copy(m.Payload, data[offset:])
			break
		}

		start := offset
		deltaNibble := data[offset] >> 4
		lengthNibble := data[offset] & 0x0F
		offset++

		if deltaNibble == nibbleReserved || lengthNibble == nibbleReserved {
			return nil, decodeError(ErrInvalidOption, start)
		}

		delta, n, err := readExtended(data[offset:], deltaNibble)
		if err != nil {
			return nil, decodeError(err, offset)
		}
		offset += n

		length, n, err := readExtended(data[offset:], lengthNibble)
		if err != nil {
			return nil, decodeError(err, offset)
		}
		offset += n

		number += delta
		if number > 0xFFFF {
			return nil, decodeError(ErrInvalidOption, start)
		}

		if len(data)-offset < length {
			return nil, decodeError(ErrTruncatedOptions, offset)
		}

		value := make([]byte, length)
		copy(value, data[offset:offset+length])
		offset += length

		// Wire order is already ascending; append keeps repeated options in
		// the order they arrived.
		m.Options = append(m.Options, Option{ID: OptionID(number), Value: value})
	}

	return m, nil
}

// readExtended resolves a delta or length nibble, consuming any extended bytes.
func readExtended(data []byte, nibble uint8) (int, int, error) {
	switch nibble {
	case nibbleExtend8:
		if len(data) < 1 {
			return 0, 0, ErrTruncatedOptions
		}
		return int(data[0]) + extend8Base, 1, nil
	case nibbleExtend16:
		if len(data) < 2 {
			return 0, 0, ErrTruncatedOptions
		}
		return int(binary.BigEndian.Uint16(data)) + extend16Base, 2, nil
	default:
		return int(nibble), 0, nil
	}
}

// sortedOptions returns the options in ascending order. Options built through
// Add are already sorted; a hand-built slice is reordered so deltas never go
// negative.
func (m *Message) sortedOptions() Options {
	if isSorted(m.Options) {
		return m.Options
	}
	return sortedCopy(m.Options)
}

func isSorted(opts Options) bool {
	for i := 1; i < len(opts); i++ {
		if opts[i].ID < opts[i-1].ID {
			return false
		}
	}
	return true
}

func sortedCopy(opts Options) Options {
	out := make(Options, 0, len(opts))
	for _, opt := range opts {
		out = out.Add(opt.ID, opt.Value)
	}
	return out
}
