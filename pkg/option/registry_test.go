package option

import (
	"errors"
	"testing"

	"github.com/backkem/coap/pkg/message"
)

func TestName(t *testing.T) {
	tests := []struct {
		id   message.OptionID
		want string
	}{
		{message.URIPath, "Uri-Path"},
		{message.Observe, "Observe"},
		{message.Block2, "Block2"},
		{message.ContentFormat, "Content-Format"},
		{message.OptionID(65000), "Option(65000)"},
	}
	for _, tc := range tests {
		if got := Name(tc.id); got != tc.want {
			t.Errorf("Name(%d) = %q, want %q", tc.id, got, tc.want)
		}
	}
}

func TestNumberRules(t *testing.T) {
	tests := []struct {
		id         message.OptionID
		critical   bool
		unsafe     bool
		noCacheKey bool
	}{
		{message.IfMatch, true, false, false},
		{message.ETag, false, false, false},
		{message.Observe, false, true, false},
		{message.URIPath, true, true, false},
		{message.MaxAge, false, true, false},
		{message.Block2, true, true, false},
		{message.Size1, false, false, true},
		{message.Size2, false, false, true},
	}
	for _, tc := range tests {
		name := Name(tc.id)
		if got := IsCritical(tc.id); got != tc.critical {
			t.Errorf("IsCritical(%s) = %v, want %v", name, got, tc.critical)
		}
		if got := IsUnsafe(tc.id); got != tc.unsafe {
			t.Errorf("IsUnsafe(%s) = %v, want %v", name, got, tc.unsafe)
		}
		if got := IsNoCacheKey(tc.id); got != tc.noCacheKey {
			t.Errorf("IsNoCacheKey(%s) = %v, want %v", name, got, tc.noCacheKey)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    message.Options
		wantErr error
	}{
		{
			name: "valid request",
			opts: message.Options{}.SetPath("a/b").SetUint(message.Observe, 0).AddQuery("x=1"),
		},
		{
			name: "unknown option unchecked",
			opts: message.Options{}.Add(65000, make([]byte, 2000)),
		},
		{
			name:    "observe too long",
			opts:    message.Options{}.Add(message.Observe, []byte{1, 2, 3, 4}),
			wantErr: ErrInvalidLength,
		},
		{
			name:    "empty uri-host",
			opts:    message.Options{}.Add(message.URIHost, nil),
			wantErr: ErrInvalidLength,
		},
		{
			name:    "repeated content-format",
			opts:    message.Options{}.AddUint(message.ContentFormat, 0).AddUint(message.ContentFormat, 50),
			wantErr: ErrNotRepeatable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.opts)
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		id    message.OptionID
		value []byte
		want  string
	}{
		{message.URIPath, []byte("temp"), "temp"},
		{message.Observe, []byte{0x01, 0x00}, "256"},
		{message.ContentFormat, []byte{50}, message.AppJSON.String()},
		{message.Block2, []byte{0x1A}, "1/true/64"},
		{message.IfNoneMatch, nil, ""},
		{message.ETag, []byte{0xBE, 0xEF}, "beef"},
		{message.OptionID(9999), []byte{0x01}, "01"},
	}
	for _, tc := range tests {
		if got := FormatValue(tc.id, tc.value); got != tc.want {
			t.Errorf("FormatValue(%s, %x) = %q, want %q", Name(tc.id), tc.value, got, tc.want)
		}
	}
}
