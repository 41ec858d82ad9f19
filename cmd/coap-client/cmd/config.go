package cmd

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/backkem/coap/cmd/coap-client/output"
	"github.com/backkem/coap/pkg/exchange"
)

// Config holds the client configuration. Environment variables set the
// defaults; command-line flags override them.
type Config struct {
	// Output
	Output  string `env:"COAP_OUTPUT"  envDefault:"table"`
	Payload string `env:"COAP_PAYLOAD" envDefault:"auto"`

	// Observability
	LogLevel    string `env:"COAP_LOG_LEVEL"    envDefault:"warn"`
	LogFormat   string `env:"COAP_LOG_FORMAT"   envDefault:"console"`
	MetricsAddr string `env:"COAP_METRICS_ADDR"`

	// Exchange
	LocalPort      int           `env:"COAP_LOCAL_PORT" envDefault:"0"`
	NonConfirmable bool          `env:"COAP_NON"`
	Timeout        time.Duration `env:"COAP_TIMEOUT"    envDefault:"0s"`

	// Transmission parameters
	AckTimeout      time.Duration `env:"COAP_ACK_TIMEOUT"        envDefault:"2s"`
	AckRandomFactor float64       `env:"COAP_ACK_RANDOM_FACTOR"  envDefault:"1.5"`
	MaxRetransmit   int           `env:"COAP_MAX_RETRANSMIT"     envDefault:"4"`
	MaxTransmitWait time.Duration `env:"COAP_MAX_TRANSMIT_WAIT"  envDefault:"93s"`

	// Discovery
	BrowseTimeout time.Duration `env:"COAP_BROWSE_TIMEOUT" envDefault:"5s"`
}

// LoadConfig reads .env (if present) and the COAP_* environment.
func LoadConfig() (Config, error) {
	// .env file is optional
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks values that flags and the environment cannot constrain.
func (c Config) Validate() error {
	if !output.ValidFormat(c.Output) {
		return fmt.Errorf("invalid output format %q (want one of %v)", c.Output, output.Formats)
	}
	if !output.ValidPayloadMode(c.Payload) {
		return fmt.Errorf("invalid payload mode %q (want one of %v)", c.Payload, output.PayloadModes)
	}
	if c.LocalPort < 0 || c.LocalPort > 0xFFFF {
		return fmt.Errorf("invalid local port %d", c.LocalPort)
	}
	if c.MaxRetransmit < 0 {
		return fmt.Errorf("invalid max retransmit %d", c.MaxRetransmit)
	}
	return nil
}

// Params returns the exchange transmission parameters.
func (c Config) Params() exchange.Params {
	return exchange.Params{
		AckTimeout:      c.AckTimeout,
		AckRandomFactor: c.AckRandomFactor,
		MaxRetransmit:   c.MaxRetransmit,
		MaxTransmitWait: c.MaxTransmitWait,
	}
}
