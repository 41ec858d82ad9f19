package exchange

import "time"

// Transmission parameters (RFC 7252 Section 4.8).
const (
	// AckTimeout is the base wait before the first retransmission.
	AckTimeout = 2 * time.Second

	// AckRandomFactor scales AckTimeout to randomize the first wait into
	// [AckTimeout, AckTimeout*AckRandomFactor).
	AckRandomFactor = 1.5

	// MaxRetransmit is the number of retransmissions after the initial send.
	MaxRetransmit = 4

	// MaxTransmitWait bounds the time from the first transmission until the
	// exchange gives up waiting for a response.
	MaxTransmitWait = 93 * time.Second

	// DefaultMaxBodySize caps the body assembled from Block2 responses.
	DefaultMaxBodySize = 1 << 20
)

// Params overrides the transmission parameters for one exchange.
// Zero fields take the RFC defaults above.
type Params struct {
	AckTimeout      time.Duration
	AckRandomFactor float64
	MaxRetransmit   int
	MaxTransmitWait time.Duration
}

// DefaultParams returns the RFC 7252 defaults.
func DefaultParams() Params {
	return Params{
		AckTimeout:      AckTimeout,
		AckRandomFactor: AckRandomFactor,
		MaxRetransmit:   MaxRetransmit,
		MaxTransmitWait: MaxTransmitWait,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.AckTimeout <= 0 {
		p.AckTimeout = d.AckTimeout
	}
	if p.AckRandomFactor < 1 {
		p.AckRandomFactor = d.AckRandomFactor
	}
	if p.MaxRetransmit <= 0 {
		p.MaxRetransmit = d.MaxRetransmit
	}
	if p.MaxTransmitWait <= 0 {
		p.MaxTransmitWait = d.MaxTransmitWait
	}
	return p
}

// MaxTransmitSpan is the longest time from the first transmission to the
// last retransmission: AckTimeout * (2^MaxRetransmit - 1) * AckRandomFactor.
func (p Params) MaxTransmitSpan() time.Duration {
	p = p.withDefaults()
	return time.Duration(float64(p.AckTimeout) * float64(int(1)<<p.MaxRetransmit-1) * p.AckRandomFactor)
}
