package output

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"

	"github.com/backkem/coap/pkg/discovery"
	"github.com/backkem/coap/pkg/message"
	"github.com/backkem/coap/pkg/option"
)

// Payload rendering modes.
const (
	PayloadAuto = "auto"
	PayloadText = "text"
	PayloadHex  = "hex"
	PayloadCBOR = "cbor"
)

// PayloadModes lists the accepted payload rendering modes.
var PayloadModes = []string{PayloadAuto, PayloadText, PayloadHex, PayloadCBOR}

// Message is the display form of a CoAP message.
type Message struct {
	Type      string   `json:"type" yaml:"type"`
	Code      string   `json:"code" yaml:"code"`
	MessageID uint16   `json:"message_id" yaml:"message_id"`
	Token     string   `json:"token,omitempty" yaml:"token,omitempty"`
	Options   []Option `json:"options,omitempty" yaml:"options,omitempty"`
	Payload   string   `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// Option is the display form of one option.
type Option struct {
	Number uint16 `json:"number" yaml:"number"`
	Name   string `json:"name" yaml:"name"`
	Value  string `json:"value" yaml:"value"`
}

func (o Option) String() string {
	if o.Value == "" {
		return o.Name
	}
	return o.Name + ": " + o.Value
}

// NewMessage converts m for display, rendering its payload per mode.
func NewMessage(m *message.Message, mode string) Message {
	view := Message{
		Type:      m.Type.String(),
		Code:      m.Code.String() + " " + m.Code.Name(),
		MessageID: m.MessageID,
		Token:     hex.EncodeToString(m.Token),
	}
	for _, opt := range m.Options {
		view.Options = append(view.Options, Option{
			Number: uint16(opt.ID),
			Name:   option.Name(opt.ID),
			Value:  option.FormatValue(opt.ID, opt.Value),
		})
	}
	cf, hasCF := m.ContentFormat()
	view.Payload = RenderPayload(m.Payload, cf, hasCF, mode)
	return view
}

// RenderPayload renders a payload as text, hex or CBOR diagnostic notation.
// In auto mode a CBOR Content-Format selects diagnostic notation, valid
// UTF-8 prints as text and anything else as hex.
func RenderPayload(payload []byte, cf message.MediaType, hasCF bool, mode string) string {
	if len(payload) == 0 {
		return ""
	}
	switch strings.ToLower(mode) {
	case PayloadText:
		return string(payload)
	case PayloadHex:
		return hex.EncodeToString(payload)
	case PayloadCBOR:
		return diagnose(payload)
	}

	if hasCF && cf == message.AppCBOR {
		return diagnose(payload)
	}
	if utf8.Valid(payload) {
		return string(payload)
	}
	return hex.EncodeToString(payload)
}

func diagnose(payload []byte) string {
	diag, err := cbor.Diagnose(payload)
	if err != nil {
		return fmt.Sprintf("%x (invalid CBOR: %v)", payload, err)
	}
	return diag
}

// ValidPayloadMode reports whether mode is a payload rendering mode.
func ValidPayloadMode(mode string) bool {
	for _, m := range PayloadModes {
		if strings.EqualFold(m, mode) {
			return true
		}
	}
	return false
}

// Service is the display form of a discovered endpoint.
type Service struct {
	Instance  string   `json:"instance" yaml:"instance"`
	Host      string   `json:"host" yaml:"host"`
	Port      int      `json:"port" yaml:"port"`
	Addresses []string `json:"addresses" yaml:"addresses"`
	URI       string   `json:"uri" yaml:"uri"`
}

// NewService converts a resolved service for display.
func NewService(s discovery.ResolvedService) Service {
	addrs := make([]string, 0, len(s.IPs))
	for _, ip := range s.IPs {
		addrs = append(addrs, ip.String())
	}
	return Service{
		Instance:  s.InstanceName,
		Host:      s.HostName,
		Port:      s.Port,
		Addresses: addrs,
		URI:       s.URI(),
	}
}
