package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/backkem/coap/pkg/exchange"
	"github.com/backkem/coap/pkg/message"
	"github.com/backkem/coap/pkg/metrics"
)

const shutdownTimeout = 5 * time.Second

// run executes fn until it returns or the process is interrupted. The metrics
// endpoint, when configured, is served for the lifetime of fn.
func (a *app) run(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           metrics.Handler(a.registry),
			ReadHeaderTimeout: shutdownTimeout,
		}
		g.Go(func() error {
			a.log.Infof("serving metrics on %s", a.cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return fn(ctx)
	})
	return g.Wait()
}

// session is a dialed exchange whose Delegate callbacks are turned into
// channel receives.
type session struct {
	ex     *exchange.Exchange
	msgs   chan *message.Message
	errs   chan error
	cancel context.CancelFunc
}

// dial sends msg to host:port and returns the session that collects what
// comes back.
func (a *app) dial(ctx context.Context, msg *message.Message, host string, port int) (*session, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &session{
		msgs:   make(chan *message.Message),
		errs:   make(chan error, 1),
		cancel: cancel,
	}

	delegate := exchange.DelegateFuncs{
		Message: func(_ *exchange.Exchange, m *message.Message) {
			select {
			case s.msgs <- m:
			case <-ctx.Done():
			}
		},
		Error: func(_ *exchange.Exchange, err error) {
			select {
			case s.errs <- err:
			default:
			}
		},
		Retransmit: func(ex *exchange.Exchange, m *message.Message, count int, final bool) {
			if final {
				a.log.Warnf("[%s] final retransmission %d of %s", ex.ID(), count, m)
				return
			}
			a.log.Infof("[%s] retransmission %d of %s", ex.ID(), count, m)
		},
	}

	ex, err := exchange.Dial(exchange.Config{
		Factory:       transportFactory,
		LocalPort:     a.cfg.LocalPort,
		Delegate:      delegate,
		LoggerFactory: a.logger,
		Metrics:       a.metrics,
		Params:        a.cfg.Params(),
	}, msg, host, port)
	if err != nil {
		cancel()
		return nil, err
	}
	s.ex = ex
	a.log.Debugf("[%s] sent %s to %s", ex.ID(), msg, ex.RemoteAddr())
	return s, nil
}

// next waits for the next delivered message or the exchange's error.
func (s *session) next(ctx context.Context) (*message.Message, error) {
	select {
	case m := <-s.msgs:
		return m, nil
	case err := <-s.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// close unblocks a pending delivery and closes the exchange.
func (s *session) close() {
	s.cancel()
	_ = s.ex.Close()
}

// withTimeout applies the configured overall deadline, if any.
func (a *app) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, a.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}
