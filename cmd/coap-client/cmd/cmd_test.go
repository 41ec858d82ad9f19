package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backkem/coap/cmd/coap-client/output"
	"github.com/backkem/coap/pkg/discovery"
	"github.com/backkem/coap/pkg/exchange"
	"github.com/backkem/coap/pkg/message"
	"github.com/backkem/coap/pkg/option"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append(args, "--log-level", "disabled"))
	err := root.Execute()
	return buf.String(), err
}

// decodeMessages reads every JSON message view printed by a command.
func decodeMessages(t *testing.T, out string) []output.Message {
	t.Helper()
	var views []output.Message
	dec := json.NewDecoder(strings.NewReader(out))
	for {
		var v output.Message
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return views
		}
		require.NoError(t, err)
		views = append(views, v)
	}
}

// testServer answers each request with the messages reply returns.
type testServer struct {
	conn     net.PacketConn
	requests chan *message.Message
}

func newTestServer(t *testing.T, reply func(req *message.Message) []*message.Message) *testServer {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &testServer{conn: conn, requests: make(chan *message.Message, 16)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, message.MaxMessageSize)
		for {
			n, from, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			req, err := message.Decode(buf[:n])
			if err != nil {
				continue
			}
			s.requests <- req
			if reply == nil {
				continue
			}
			for _, m := range reply(req) {
				data, err := m.Encode()
				if err != nil {
					continue
				}
				_, _ = conn.WriteTo(data, from)
			}
		}
	}()

	t.Cleanup(func() {
		conn.Close()
		<-done
	})
	return s
}

func (s *testServer) uri(path string) string {
	return fmt.Sprintf("coap://%s%s", s.conn.LocalAddr(), path)
}

func (s *testServer) request(t *testing.T) *message.Message {
	t.Helper()
	select {
	case req := <-s.requests:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for request")
		return nil
	}
}

func piggyback(req *message.Message, code message.Code, payload string) *message.Message {
	return &message.Message{
		Type:      message.Acknowledgement,
		Code:      code,
		MessageID: req.MessageID,
		Token:     req.Token,
		Payload:   []byte(payload),
	}
}

func TestGetCommand(t *testing.T) {
	srv := newTestServer(t, func(req *message.Message) []*message.Message {
		resp := piggyback(req, message.Content, "22.5")
		resp.Options = resp.Options.SetUint(message.ContentFormat, uint32(message.TextPlain))
		return []*message.Message{resp}
	})

	out, err := execute(t, "get", srv.uri("/sensors/temp?unit=c"), "-o", "json")
	require.NoError(t, err)

	views := decodeMessages(t, out)
	require.Len(t, views, 1)
	assert.Equal(t, "ACK", views[0].Type)
	assert.Equal(t, "2.05 Content", views[0].Code)
	assert.Equal(t, "22.5", views[0].Payload)

	req := srv.request(t)
	assert.Equal(t, message.Confirmable, req.Type)
	assert.Equal(t, message.GET, req.Code)
	assert.Equal(t, "/sensors/temp", req.Options.Path())
	assert.Equal(t, []string{"unit=c"}, req.Options.Queries())
}

func TestGetCommand_Table(t *testing.T) {
	srv := newTestServer(t, func(req *message.Message) []*message.Message {
		return []*message.Message{piggyback(req, message.NotFound, "")}
	})

	out, err := execute(t, "get", srv.uri("/missing"), "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "4.04 NotFound")
}

func TestGetCommand_NonConfirmable(t *testing.T) {
	srv := newTestServer(t, func(req *message.Message) []*message.Message {
		resp := piggyback(req, message.Content, "x")
		resp.Type = message.NonConfirmable
		resp.MessageID = req.MessageID + 1
		return []*message.Message{resp}
	})

	out, err := execute(t, "get", srv.uri("/x"), "--non", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, message.NonConfirmable, srv.request(t).Type)
	require.Len(t, decodeMessages(t, out), 1)
}

func TestPostCommand(t *testing.T) {
	srv := newTestServer(t, func(req *message.Message) []*message.Message {
		return []*message.Message{piggyback(req, message.Created, "")}
	})

	out, err := execute(t, "post", srv.uri("/lights"), "-d", `{"on":true}`, "--content-format", "json", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "2.01 Created")

	req := srv.request(t)
	assert.Equal(t, message.POST, req.Code)
	assert.Equal(t, `{"on":true}`, string(req.Payload))
	cf, ok := req.ContentFormat()
	require.True(t, ok)
	assert.Equal(t, message.AppJSON, cf)
}

func TestGetCommand_Reset(t *testing.T) {
	srv := newTestServer(t, func(req *message.Message) []*message.Message {
		return []*message.Message{{Type: message.Reset, Code: message.Empty, MessageID: req.MessageID}}
	})

	out, err := execute(t, "get", srv.uri("/x"), "-o", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reset the request")

	views := decodeMessages(t, out)
	require.Len(t, views, 1)
	assert.Equal(t, "RST", views[0].Type)
}

func TestGetCommand_NoResponse(t *testing.T) {
	srv := newTestServer(t, nil)

	_, err := execute(t, "get", srv.uri("/x"),
		"--ack-timeout", "10ms", "--max-retransmit", "1", "--max-transmit-wait", "100ms")
	require.Error(t, err)
	assert.True(t, errors.Is(err, exchange.ErrNoResponseExpected), "err = %v", err)

	// initial transmission plus one retransmission
	srv.request(t)
	srv.request(t)
}

func TestGetCommand_Timeout(t *testing.T) {
	srv := newTestServer(t, nil)

	_, err := execute(t, "get", srv.uri("/x"), "--timeout", "50ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadline exceeded")
}

func TestObserveCommand(t *testing.T) {
	srv := newTestServer(t, func(req *message.Message) []*message.Message {
		if seq, ok, _ := option.Observe(req.Options); !ok || seq != option.Register {
			return []*message.Message{piggyback(req, message.Content, "")}
		}
		first := piggyback(req, message.Content, "a")
		first.Options = option.SetObserve(first.Options, 1)

		var msgs []*message.Message
		msgs = append(msgs, first)
		for i, payload := range []string{"b", "c"} {
			n := &message.Message{
				Type:      message.NonConfirmable,
				Code:      message.Content,
				MessageID: 0x4000 + uint16(i),
				Token:     req.Token,
				Payload:   []byte(payload),
			}
			n.Options = option.SetObserve(n.Options, uint32(i+2))
			msgs = append(msgs, n)
		}
		return msgs
	})

	out, err := execute(t, "observe", srv.uri("/light"), "--count", "3", "-o", "json")
	require.NoError(t, err)

	views := decodeMessages(t, out)
	require.Len(t, views, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, views[i].Payload)
	}

	reg := srv.request(t)
	seq, ok, err := option.Observe(reg.Options)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, option.Register, seq)

	dereg := srv.request(t)
	seq, ok, err = option.Observe(dereg.Options)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, option.Deregister, seq)
	assert.Equal(t, reg.Token, dereg.Token)
}

func TestObserveCommand_NotObservable(t *testing.T) {
	srv := newTestServer(t, func(req *message.Message) []*message.Message {
		return []*message.Message{piggyback(req, message.Content, "static")}
	})

	out, err := execute(t, "observe", srv.uri("/static"), "-o", "json")
	require.NoError(t, err)

	views := decodeMessages(t, out)
	require.Len(t, views, 1)
	assert.Equal(t, "static", views[0].Payload)

	srv.request(t)
	select {
	case req := <-srv.requests:
		t.Fatalf("unexpected request after plain response: %v", req)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDiscoverCommand(t *testing.T) {
	mock := discovery.NewMockMDNSResolver()
	mock.RegisterService(discovery.ServiceCoAP, discovery.MockCoAPService("thermostat", 5683, "/temp", net.ParseIP("192.168.1.20")))
	mock.RegisterService(discovery.ServiceCoAP, discovery.MockCoAPService("lamp", 61616, "", net.ParseIP("fe80::1"), net.ParseIP("192.168.1.7")))

	mdnsResolver = mock
	t.Cleanup(func() { mdnsResolver = nil })

	t.Run("browse", func(t *testing.T) {
		out, err := execute(t, "discover", "-o", "json", "--browse-timeout", "200ms")
		require.NoError(t, err)

		var services []output.Service
		require.NoError(t, json.Unmarshal([]byte(out), &services))
		require.Len(t, services, 2)
		assert.Equal(t, "lamp", services[0].Instance)
		assert.Equal(t, []string{"fe80::1", "192.168.1.7"}, services[0].Addresses)
		assert.Equal(t, "coap://192.168.1.20:5683/temp", services[1].URI)
	})

	t.Run("lookup", func(t *testing.T) {
		out, err := execute(t, "discover", "thermostat", "-o", "table")
		require.NoError(t, err)
		assert.Contains(t, out, "thermostat.local.")
	})

	t.Run("secure browse finds nothing", func(t *testing.T) {
		out, err := execute(t, "discover", "--secure", "--browse-timeout", "50ms")
		require.NoError(t, err)
		assert.Equal(t, "No results.\n", out)
	})
}

func TestInvalidInvocations(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"http scheme", []string{"get", "http://example.com/"}, "scheme must be coap"},
		{"coaps", []string{"get", "coaps://example.com/"}, "coaps is not supported"},
		{"missing host", []string{"get", "coap:///x"}, "missing host"},
		{"bad output", []string{"get", "coap://127.0.0.1/", "-o", "xml"}, "invalid output format"},
		{"bad payload mode", []string{"get", "coap://127.0.0.1/", "--payload", "base64"}, "invalid payload mode"},
		{"bad content format", []string{"put", "coap://127.0.0.1/", "--content-format", "yaml"}, "invalid content format"},
		{"missing uri", []string{"get"}, "accepts 1 arg"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
