package cmd

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/backkem/coap/cmd/coap-client/output"
	"github.com/backkem/coap/pkg/message"
	"github.com/backkem/coap/pkg/transport"
)

var methods = map[string]message.Code{
	"get":    message.GET,
	"post":   message.POST,
	"put":    message.PUT,
	"delete": message.DELETE,
}

// contentFormats maps the short names accepted by --content-format.
var contentFormats = map[string]message.MediaType{
	"text":   message.TextPlain,
	"link":   message.AppLinkFormat,
	"xml":    message.AppXML,
	"octets": message.AppOctets,
	"exi":    message.AppExi,
	"json":   message.AppJSON,
	"cbor":   message.AppCBOR,
}

// target is a parsed coap:// URI.
type target struct {
	Host    string
	Port    int
	Path    string
	Queries []string
}

func parseURI(raw string) (target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return target{}, fmt.Errorf("invalid URI %q: %w", raw, err)
	}
	switch u.Scheme {
	case "coap":
	case "coaps":
		return target{}, fmt.Errorf("invalid URI %q: coaps is not supported", raw)
	default:
		return target{}, fmt.Errorf("invalid URI %q: scheme must be coap", raw)
	}

	t := target{
		Host: u.Hostname(),
		Port: transport.DefaultPort,
		Path: u.Path,
	}
	if t.Host == "" {
		return target{}, fmt.Errorf("invalid URI %q: missing host", raw)
	}
	if p := u.Port(); p != "" {
		t.Port, err = strconv.Atoi(p)
		if err != nil {
			return target{}, fmt.Errorf("invalid URI %q: bad port", raw)
		}
		if err := transport.ValidatePort(t.Port); err != nil {
			return target{}, err
		}
	}
	if u.RawQuery != "" {
		for _, q := range strings.Split(u.RawQuery, "&") {
			v, err := url.QueryUnescape(q)
			if err != nil {
				return target{}, fmt.Errorf("invalid URI %q: %w", raw, err)
			}
			t.Queries = append(t.Queries, v)
		}
	}
	return t, nil
}

func parseContentFormat(s string) (message.MediaType, error) {
	if mt, ok := contentFormats[strings.ToLower(s)]; ok {
		return mt, nil
	}
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid content format %q", s)
	}
	return message.MediaType(v), nil
}

// requestOptions are the per-command request flags.
type requestOptions struct {
	data          string
	contentFormat string
}

// newRequest builds the message for code addressed to t.
func (a *app) newRequest(code message.Code, t target, opts requestOptions) (*message.Message, error) {
	typ := message.Confirmable
	if a.cfg.NonConfirmable {
		typ = message.NonConfirmable
	}

	msg, err := message.NewRequest(typ, code, t.Path)
	if err != nil {
		return nil, err
	}
	for _, q := range t.Queries {
		msg.Options = msg.Options.AddQuery(q)
	}
	if opts.contentFormat != "" {
		cf, err := parseContentFormat(opts.contentFormat)
		if err != nil {
			return nil, err
		}
		msg.Options = msg.Options.SetUint(message.ContentFormat, uint32(cf))
	}
	if opts.data != "" {
		msg.Payload = []byte(opts.data)
	}
	return msg, nil
}

func newRequestCmd(a *app, method string) *cobra.Command {
	var opts requestOptions
	code := methods[method]

	cmd := &cobra.Command{
		Use:   method + " <uri>",
		Short: fmt.Sprintf("Send a %s request and print the response", code.Name()),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseURI(args[0])
			if err != nil {
				return err
			}
			msg, err := a.newRequest(code, t, opts)
			if err != nil {
				return err
			}

			return a.run(cmd.Context(), func(ctx context.Context) error {
				ctx, cancel := a.withTimeout(ctx)
				defer cancel()

				s, err := a.dial(ctx, msg, t.Host, t.Port)
				if err != nil {
					return err
				}
				defer s.close()

				resp, err := s.next(ctx)
				if err != nil {
					return err
				}
				a.print(cmd, output.NewMessage(resp, a.cfg.Payload))
				if resp.Type == message.Reset {
					return fmt.Errorf("%s reset the request", s.ex.RemoteAddr())
				}
				return nil
			})
		},
	}

	if code == message.POST || code == message.PUT {
		cmd.Flags().StringVarP(&opts.data, "data", "d", "", "request payload")
		cmd.Flags().StringVar(&opts.contentFormat, "content-format", "",
			"Content-Format: text, link, xml, octets, exi, json, cbor or a number")
	}
	return cmd
}
