package option

import (
	"fmt"
	"time"

	"github.com/backkem/coap/pkg/message"
)

// Observe option values (RFC 7641 Section 2).
const (
	// Register is sent in a GET to start an observation.
	Register uint32 = 0

	// Deregister is sent in a GET to cancel an observation.
	Deregister uint32 = 1

	// MaxObserveSequence is the largest value a 3-byte Observe option holds.
	MaxObserveSequence uint32 = 1<<24 - 1

	// ObserveFreshness is how long a notification is considered newer
	// regardless of its sequence number.
	ObserveFreshness = 128 * time.Second

	observeHalfRange uint32 = 1 << 23
	maxObserveLen           = 3
)

// Observe returns the Observe option of opts as a 24-bit sequence number.
func Observe(opts message.Options) (uint32, bool, error) {
	value, ok := opts.GetFirst(message.Observe)
	if !ok {
		return 0, false, nil
	}
	if len(value) > maxObserveLen {
		return 0, true, fmt.Errorf("%w: %d-byte value", ErrInvalidObserve, len(value))
	}
	v, err := message.DecodeUint(value)
	if err != nil {
		return 0, true, err
	}
	return v, true, nil
}

// SetObserve replaces the Observe option of opts with v.
func SetObserve(opts message.Options, v uint32) message.Options {
	return opts.SetUint(message.Observe, v&MaxObserveSequence)
}

// ObserveIsFresher reports whether a notification carrying next should replace
// one carrying last, received elapsed earlier.
//
// Sequence numbers are compared in 24-bit serial arithmetic (RFC 7641
// Section 3.4). A notification arriving more than ObserveFreshness after the
// last one is always fresher. A repeated sequence number is not.
func ObserveIsFresher(last, next uint32, elapsed time.Duration) bool {
	if elapsed > ObserveFreshness {
		return true
	}
	last &= MaxObserveSequence
	next &= MaxObserveSequence
	switch {
	case last == next:
		return false
	case last < next:
		return next-last < observeHalfRange
	default:
		return last-next > observeHalfRange
	}
}
