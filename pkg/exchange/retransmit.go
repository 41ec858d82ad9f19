package exchange

import (
	"time"
)

// retransmitEntry tracks the Confirmable message awaiting its ACK.
// An exchange has at most one.
type retransmitEntry struct {
	// interval is the timeout currently scheduled; it doubles on every fire.
	interval time.Duration

	timer Timer
}

func (r *retransmitEntry) stop() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// recentWindow is the number of inbound message IDs remembered for
// duplicate detection.
const recentWindow = 32

// recentIDs remembers the message IDs of the last recentWindow Confirmable
// and Non-confirmable messages accepted from the peer.
type recentIDs struct {
	ids  [recentWindow]uint16
	n    int
	next int
}

func (r *recentIDs) contains(id uint16) bool {
	for i := 0; i < r.n; i++ {
		if r.ids[i] == id {
			return true
		}
	}
	return false
}

func (r *recentIDs) add(id uint16) {
	r.ids[r.next] = id
	r.next = (r.next + 1) % recentWindow
	if r.n < recentWindow {
		r.n++
	}
}

func (r *recentIDs) reset() {
	r.n = 0
	r.next = 0
}
