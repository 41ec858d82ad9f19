package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backkem/coap/pkg/exchange"
	"github.com/backkem/coap/pkg/message"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "table", cfg.Output)
	assert.Equal(t, "auto", cfg.Payload)
	assert.Equal(t, exchange.DefaultParams(), cfg.Params())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("COAP_OUTPUT", "yaml")
	t.Setenv("COAP_NON", "true")
	t.Setenv("COAP_ACK_TIMEOUT", "500ms")
	t.Setenv("COAP_MAX_RETRANSMIT", "2")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.Output)
	assert.True(t, cfg.NonConfirmable)
	assert.Equal(t, 500*time.Millisecond, cfg.Params().AckTimeout)
	assert.Equal(t, 2, cfg.Params().MaxRetransmit)

	root := NewRootCmd()
	assert.Equal(t, "yaml", root.PersistentFlags().Lookup("output").DefValue)
	assert.Equal(t, "true", root.PersistentFlags().Lookup("non").DefValue)
}

func TestLoadConfig_InvalidEnvironment(t *testing.T) {
	t.Setenv("COAP_MAX_RETRANSMIT", "many")

	_, err := LoadConfig()
	require.Error(t, err)

	_, err = execute(t, "get", "coap://127.0.0.1/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse environment")
}

func TestConfigValidate(t *testing.T) {
	valid, err := LoadConfig()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"output", func(c *Config) { c.Output = "csv" }},
		{"payload", func(c *Config) { c.Payload = "raw" }},
		{"local port", func(c *Config) { c.LocalPort = 70000 }},
		{"max retransmit", func(c *Config) { c.MaxRetransmit = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		raw     string
		want    target
		wantErr bool
	}{
		{"coap://127.0.0.1/a/b", target{Host: "127.0.0.1", Port: 5683, Path: "/a/b"}, false},
		{"coap://[::1]:61616/", target{Host: "::1", Port: 61616, Path: "/"}, false},
		{"coap://host/q?a=1&b=two%20words", target{Host: "host", Port: 5683, Path: "/q", Queries: []string{"a=1", "b=two words"}}, false},
		{"coap://host:0/", target{}, true},
		{"coap://host:99999/", target{}, true},
		{"mqtt://host/", target{}, true},
		{"coap://", target{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := parseURI(tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseContentFormat(t *testing.T) {
	cf, err := parseContentFormat("CBOR")
	require.NoError(t, err)
	assert.Equal(t, message.AppCBOR, cf)

	cf, err = parseContentFormat("11542")
	require.NoError(t, err)
	assert.Equal(t, message.MediaType(11542), cf)

	_, err = parseContentFormat("-1")
	assert.Error(t, err)
}
