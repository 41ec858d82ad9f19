package exchange

import (
	"math/rand"
	"time"
)

// RandomSource provides the jitter for the initial retransmission timeout.
// Tests inject a fixed source.
type RandomSource interface {
	// Float64 returns a random float64 in [0.0, 1.0).
	Float64() float64
}

type defaultRandomSource struct{}

func (defaultRandomSource) Float64() float64 {
	return rand.Float64()
}

// DefaultRandomSource draws from math/rand.
var DefaultRandomSource RandomSource = defaultRandomSource{}

// BackoffCalculator computes retransmission timeouts (RFC 7252 Section 4.2).
//
// The first timeout is picked uniformly from
//
//	[AckTimeout, AckTimeout * AckRandomFactor)
//
// and every later timeout doubles the previous one.
type BackoffCalculator struct {
	params Params
	random RandomSource
}

// NewBackoffCalculator creates a calculator. A nil random uses
// DefaultRandomSource.
func NewBackoffCalculator(params Params, random RandomSource) *BackoffCalculator {
	if random == nil {
		random = DefaultRandomSource
	}
	return &BackoffCalculator{params: params.withDefaults(), random: random}
}

// Initial draws the timeout that precedes the first retransmission.
func (b *BackoffCalculator) Initial() time.Duration {
	r := b.random.Float64()
	return time.Duration(float64(b.params.AckTimeout) * (1 + r*(b.params.AckRandomFactor-1)))
}

// Calculate returns the timeout preceding retransmission n+1, given the
// initial timeout. Calculate(initial, 0) == initial.
func (b *BackoffCalculator) Calculate(initial time.Duration, n int) time.Duration {
	if n <= 0 {
		return initial
	}
	return initial << uint(n)
}

// CalculateMin is Calculate with the smallest possible initial timeout.
func (b *BackoffCalculator) CalculateMin(n int) time.Duration {
	return b.Calculate(b.params.AckTimeout, n)
}

// CalculateMax is the exclusive upper bound of Calculate for attempt n.
func (b *BackoffCalculator) CalculateMax(n int) time.Duration {
	upper := time.Duration(float64(b.params.AckTimeout) * b.params.AckRandomFactor)
	return b.Calculate(upper, n)
}
