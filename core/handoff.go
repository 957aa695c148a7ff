package core

import "sync/atomic"

// handoffReady marks the packed handoff word as holding an unconsumed value.
const handoffReady = 1 << 16

// Handoff bridges the transfer-complete interrupt to the foreground loop.
//
// The value and its ready flag share one atomic word, so Publish and Take are
// each a single atomic operation with sequentially consistent ordering. The
// interrupt side only ever calls Publish and the foreground only ever calls
// Take.
type Handoff struct {
	word    atomic.Uint32
	dropped atomic.Uint32 // values overwritten before Take
}

// Publish stores raw and marks it ready. It never blocks. An unconsumed
// value is overwritten and counted as dropped.
func (h *Handoff) Publish(raw uint16) {
	old := h.word.Swap(uint32(raw) | handoffReady)
	if old&handoffReady != 0 {
		h.dropped.Add(1)
	}
}

// Take returns the pending value and clears the ready flag. ok is false when
// nothing was published since the last Take.
func (h *Handoff) Take() (raw uint16, ok bool) {
	if h.word.Load()&handoffReady == 0 {
		return 0, false
	}
	v := h.word.Swap(0)
	return uint16(v), v&handoffReady != 0
}

// Pending reports whether a value is waiting.
func (h *Handoff) Pending() bool {
	return h.word.Load()&handoffReady != 0
}

// Dropped returns how many published values were overwritten unread.
func (h *Handoff) Dropped() uint32 {
	return h.dropped.Load()
}

// Reset clears the pending value and the drop counter. Call only while the
// transfer channel is disabled.
func (h *Handoff) Reset() {
	h.word.Store(0)
	h.dropped.Store(0)
}
