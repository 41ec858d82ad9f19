package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backkem/coap/cmd/coap-client/output"
	"github.com/backkem/coap/pkg/exchange"
	"github.com/backkem/coap/pkg/message"
	"github.com/backkem/coap/pkg/option"
)

func newObserveCmd(a *app) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "observe <uri>",
		Short: "Register with a resource and print its notifications",
		Long: `observe sends a GET with Observe=0 and prints the response and every
notification that follows. On interrupt, --timeout or after --count
notifications the registration is cancelled with Observe=1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseURI(args[0])
			if err != nil {
				return err
			}
			msg, err := a.newRequest(message.GET, t, requestOptions{})
			if err != nil {
				return err
			}
			msg.Options = option.SetObserve(msg.Options, option.Register)

			return a.run(cmd.Context(), func(ctx context.Context) error {
				return a.observe(ctx, cmd, msg, t, count)
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "stop after this many messages (0 runs until interrupted)")
	return cmd
}

func (a *app) observe(ctx context.Context, cmd *cobra.Command, msg *message.Message, t target, count int) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	s, err := a.dial(ctx, msg, t.Host, t.Port)
	if err != nil {
		return err
	}
	defer s.close()

	for received := 0; count == 0 || received < count; {
		m, err := s.next(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if err != nil {
			return err
		}
		received++
		a.print(cmd, output.NewMessage(m, a.cfg.Payload))

		if m.Type == message.Reset {
			return fmt.Errorf("%s reset the observation", s.ex.RemoteAddr())
		}
		if s.ex.ObserveState() != exchange.ObserveActive {
			a.log.Infof("[%s] observation ended by server", s.ex.ID())
			return nil
		}
	}

	if err := s.ex.CancelObserve(); err != nil &&
		!errors.Is(err, exchange.ErrNotObserving) && !errors.Is(err, exchange.ErrClosed) {
		return err
	}
	a.log.Infof("[%s] observation cancelled", s.ex.ID())
	return nil
}
