package partyclient

import "sync/atomic"

// seqGate enforces playback event ordering on the receiving side. Delivery
// gives no ordering guarantee, so any event whose sequence number is not
// newer than the last admitted one is a duplicate or a stale reordering and
// must be dropped, never applied twice.
type seqGate struct {
	last atomic.Int64
}

func (g *seqGate) Admit(seq int64) bool {
	for {
		last := g.last.Load()
		if seq <= last {
			return false
		}
		if g.last.CompareAndSwap(last, seq) {
			return true
		}
	}
}

func (g *seqGate) Reset() {
	g.last.Store(0)
}
