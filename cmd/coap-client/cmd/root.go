// Package cmd implements the coap-client command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/backkem/coap/cmd/coap-client/output"
	"github.com/backkem/coap/internal/zaplog"
	"github.com/backkem/coap/pkg/discovery"
	"github.com/backkem/coap/pkg/metrics"
	"github.com/backkem/coap/pkg/transport"
)

// Replaced in tests.
var (
	transportFactory transport.Factory = transport.UDPFactory{}
	mdnsResolver     discovery.MDNSResolver
)

// app is the state shared by all commands of one invocation.
type app struct {
	cfg    Config
	cfgErr error

	formatter output.Formatter
	logger    *zaplog.Factory
	log       logging.LeveledLogger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
}

// NewRootCmd builds the command tree. Flag defaults come from the COAP_*
// environment.
func NewRootCmd() *cobra.Command {
	a := &app{}
	a.cfg, a.cfgErr = LoadConfig()

	root := &cobra.Command{
		Use:   "coap-client",
		Short: "CoAP client for requests, observation and discovery",
		Long: `coap-client talks to CoAP (RFC 7252) servers over UDP.
It retransmits confirmable requests, follows Block2 transfers and keeps
Observe registrations alive, printing every response it accepts.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfg.Output, "output", "o", a.cfg.Output, "output format: table, json, yaml")
	flags.StringVar(&a.cfg.Payload, "payload", a.cfg.Payload, "payload rendering: auto, text, hex, cbor")
	flags.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level: trace, debug, info, warn, error, disabled")
	flags.StringVar(&a.cfg.LogFormat, "log-format", a.cfg.LogFormat, "log format: console, json")
	flags.StringVar(&a.cfg.MetricsAddr, "metrics-addr", a.cfg.MetricsAddr, "serve Prometheus metrics on this address while running")
	flags.IntVar(&a.cfg.LocalPort, "local-port", a.cfg.LocalPort, "local UDP port (0 picks one)")
	flags.BoolVar(&a.cfg.NonConfirmable, "non", a.cfg.NonConfirmable, "send requests non-confirmable")
	flags.DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "overall deadline (0 lets the exchange time out on its own)")
	flags.DurationVar(&a.cfg.AckTimeout, "ack-timeout", a.cfg.AckTimeout, "ACK_TIMEOUT transmission parameter")
	flags.Float64Var(&a.cfg.AckRandomFactor, "ack-random-factor", a.cfg.AckRandomFactor, "ACK_RANDOM_FACTOR transmission parameter")
	flags.IntVar(&a.cfg.MaxRetransmit, "max-retransmit", a.cfg.MaxRetransmit, "MAX_RETRANSMIT transmission parameter")
	flags.DurationVar(&a.cfg.MaxTransmitWait, "max-transmit-wait", a.cfg.MaxTransmitWait, "MAX_TRANSMIT_WAIT transmission parameter")

	root.AddCommand(
		newRequestCmd(a, "get"),
		newRequestCmd(a, "post"),
		newRequestCmd(a, "put"),
		newRequestCmd(a, "delete"),
		newObserveCmd(a),
		newDiscoverCmd(a),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.cfgErr != nil {
		return a.cfgErr
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	logger, err := zaplog.New(a.cfg.LogLevel, a.cfg.LogFormat)
	if err != nil {
		return err
	}
	a.logger = logger
	a.log = logger.NewLogger("coap-client")

	a.formatter = output.NewFormatter(a.cfg.Output)
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
	return nil
}

func (a *app) print(cmd *cobra.Command, data any) {
	fmt.Fprint(cmd.OutOrStdout(), a.formatter.Format(data))
}
