// Package option holds the CoAP option registry and the semantics of the
// options the exchange layer interprets: Observe (RFC 7641) and the block-wise
// transfer options (RFC 7959).
//
// Option values travel as raw bytes in message.Options; this package decodes
// them on demand.
package option

import (
	"fmt"

	coapmsg "github.com/plgd-dev/go-coap/v3/message"

	"github.com/backkem/coap/pkg/message"
)

// Format is the value format of an option (RFC 7252 Section 3.2).
type Format uint8

const (
	FormatEmpty Format = iota
	FormatOpaque
	FormatUint
	FormatString
)

func (f Format) String() string {
	switch f {
	case FormatEmpty:
		return "empty"
	case FormatOpaque:
		return "opaque"
	case FormatUint:
		return "uint"
	case FormatString:
		return "string"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// Def describes a registered option.
type Def struct {
	Name       string
	Format     Format
	MinLen     int
	MaxLen     int
	Repeatable bool
}

// registry is RFC 7252 Table 4 plus Observe and the block options.
var registry = map[message.OptionID]Def{
	message.IfMatch:       {"If-Match", FormatOpaque, 0, 8, true},
	message.URIHost:       {"Uri-Host", FormatString, 1, 255, false},
	message.ETag:          {"ETag", FormatOpaque, 1, 8, true},
	message.IfNoneMatch:   {"If-None-Match", FormatEmpty, 0, 0, false},
	message.Observe:       {"Observe", FormatUint, 0, 3, false},
	message.URIPort:       {"Uri-Port", FormatUint, 0, 2, false},
	message.LocationPath:  {"Location-Path", FormatString, 0, 255, true},
	message.URIPath:       {"Uri-Path", FormatString, 0, 255, true},
	message.ContentFormat: {"Content-Format", FormatUint, 0, 2, false},
	message.MaxAge:        {"Max-Age", FormatUint, 0, 4, false},
	message.URIQuery:      {"Uri-Query", FormatString, 0, 255, true},
	message.Accept:        {"Accept", FormatUint, 0, 2, false},
	message.LocationQuery: {"Location-Query", FormatString, 0, 255, true},
	message.Block2:        {"Block2", FormatUint, 0, 3, false},
	message.Block1:        {"Block1", FormatUint, 0, 3, false},
	message.Size2:         {"Size2", FormatUint, 0, 4, false},
	message.ProxyURI:      {"Proxy-Uri", FormatString, 1, 1034, false},
	message.ProxyScheme:   {"Proxy-Scheme", FormatString, 1, 255, false},
	message.Size1:         {"Size1", FormatUint, 0, 4, false},
}

// Lookup returns the definition of a registered option.
func Lookup(id message.OptionID) (Def, bool) {
	def, ok := registry[id]
	return def, ok
}

// Name returns the display name of an option number. Numbers outside the
// registry fall back to the go-coap name table, which renders unknown numbers
// as "Option(n)".
func Name(id message.OptionID) string {
	if def, ok := registry[id]; ok {
		return def.Name
	}
	return coapmsg.OptionID(id).String()
}

// IsCritical reports whether an endpoint must understand the option
// (odd option numbers).
func IsCritical(id message.OptionID) bool {
	return id&0x01 != 0
}

// IsUnsafe reports whether a proxy that does not understand the option must
// not forward it.
func IsUnsafe(id message.OptionID) bool {
	return id&0x02 != 0
}

// IsNoCacheKey reports whether the option is excluded from the cache key.
func IsNoCacheKey(id message.OptionID) bool {
	return id&0x1E == 0x1C
}

// Validate checks registered options against their length bounds and
// repeatability. Unregistered options are not checked.
func Validate(opts message.Options) error {
	var prev message.OptionID
	for i, opt := range opts {
		def, ok := registry[opt.ID]
		if !ok {
			prev = opt.ID
			continue
		}
		if len(opt.Value) < def.MinLen || len(opt.Value) > def.MaxLen {
			return fmt.Errorf("%w: %s has %d bytes", ErrInvalidLength, def.Name, len(opt.Value))
		}
		if i > 0 && prev == opt.ID && !def.Repeatable {
			return fmt.Errorf("%w: %s", ErrNotRepeatable, def.Name)
		}
		prev = opt.ID
	}
	return nil
}

// FormatValue renders an option value for display according to its registered
// format.
func FormatValue(id message.OptionID, value []byte) string {
	def, ok := registry[id]
	if !ok {
		return fmt.Sprintf("%x", value)
	}
	switch def.Format {
	case FormatEmpty:
		return ""
	case FormatString:
		return string(value)
	case FormatUint:
		if id == message.Block1 || id == message.Block2 {
			if b, err := ParseBlock(value); err == nil {
				return b.String()
			}
		}
		if v, err := message.DecodeUint(value); err == nil {
			if id == message.ContentFormat || id == message.Accept {
				return message.MediaType(v).String()
			}
			return fmt.Sprintf("%d", v)
		}
		return fmt.Sprintf("%x", value)
	default:
		return fmt.Sprintf("%x", value)
	}
}
