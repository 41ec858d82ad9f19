package output

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewFormatter(t *testing.T) {
	assert.IsType(t, &TableFormatter{}, NewFormatter(""))
	assert.IsType(t, &TableFormatter{}, NewFormatter("table"))
	assert.IsType(t, &JSONFormatter{}, NewFormatter("JSON"))
	assert.IsType(t, &YAMLFormatter{}, NewFormatter("yaml"))

	assert.True(t, ValidFormat("Yaml"))
	assert.False(t, ValidFormat("xml"))
}

func TestTableFormatter_Struct(t *testing.T) {
	out := NewFormatter("table").Format(Message{
		Type:      "ACK",
		Code:      "2.05 Content",
		MessageID: 4096,
		Options: []Option{
			{Number: 12, Name: "Content-Format", Value: "text/plain;charset=utf-8"},
			{Number: 14, Name: "Max-Age", Value: "60"},
		},
		Payload: "22.5 C",
	})

	assert.Contains(t, out, "Code:")
	assert.Contains(t, out, "2.05 Content")
	assert.Contains(t, out, "Options:\n")
	assert.Contains(t, out, "  Max-Age: 60\n")
	assert.Contains(t, out, "22.5 C")
}

func TestTableFormatter_Slice(t *testing.T) {
	out := NewFormatter("table").Format([]Service{
		{Instance: "lamp", Host: "lamp.local.", Port: 5683, Addresses: []string{"fe80::1", "192.168.1.7"}, URI: "coap://[fe80::1]:5683/"},
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "INSTANCE"))
	assert.Contains(t, lines[1], "fe80::1,192.168.1.7")

	assert.Equal(t, "No results.\n", NewFormatter("table").Format([]Service{}))
}

func TestJSONFormatter(t *testing.T) {
	out := NewFormatter("json").Format(Message{Type: "CON", Code: "0.01 GET", MessageID: 7})

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "CON", got["type"])
	assert.Equal(t, float64(7), got["message_id"])
	assert.NotContains(t, got, "payload")
}

func TestYAMLFormatter(t *testing.T) {
	out := NewFormatter("yaml").Format(Service{Instance: "lamp", Port: 5683})

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "lamp", got["instance"])
	assert.Equal(t, 5683, got["port"])
}
