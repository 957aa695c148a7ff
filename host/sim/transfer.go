package sim

import (
	"sync"
	"sync/atomic"

	"adcpipe/core"
)

// Transfer is a single-destination DMA channel. Each data request stores
// the value into dst, latches the completion flag and runs the completion
// handler in the requesting goroutine.
type Transfer struct {
	mu         sync.Mutex
	dst        *uint32
	circular   bool
	onComplete func()
	enabled    bool

	complete  atomic.Bool
	fault     atomic.Bool
	transfers atomic.Uint32
}

// NewTransfer creates a disabled channel
func NewTransfer() *Transfer {
	return &Transfer{}
}

func (t *Transfer) Configure(dst *uint32, circular bool, onComplete func()) error {
	if dst == nil || onComplete == nil {
		return core.NewFault(core.ErrInvalidParam, "transfer.configure", nil)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enabled {
		return core.NewFault(core.ErrTransferFailed, "transfer.configure", nil)
	}
	t.dst = dst
	t.circular = circular
	t.onComplete = onComplete
	t.complete.Store(false)
	t.fault.Store(false)
	return nil
}

func (t *Transfer) Enable() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dst == nil {
		return core.NewFault(core.ErrTransferFailed, "transfer.enable", nil)
	}
	t.enabled = true
	return nil
}

func (t *Transfer) Disable() error {
	t.mu.Lock()
	t.enabled = false
	t.mu.Unlock()
	return nil
}

func (t *Transfer) Acknowledge() bool {
	return t.complete.Swap(false)
}

func (t *Transfer) Faulted() bool {
	return t.fault.Swap(false)
}

// InjectFault latches a transfer error as a bus fault would
func (t *Transfer) InjectFault() {
	t.fault.Store(true)
}

// Transfers returns the number of completed transfers
func (t *Transfer) Transfers() uint32 {
	return t.transfers.Load()
}

// request is the converter's data request line
func (t *Transfer) request(raw uint16) {
	t.mu.Lock()
	if !t.enabled {
		t.mu.Unlock()
		return
	}
	dst, handler := t.dst, t.onComplete
	if !t.circular {
		// One-shot: the channel disarms after a single transfer
		t.enabled = false
	}
	t.mu.Unlock()

	atomic.StoreUint32(dst, uint32(raw))
	t.transfers.Add(1)
	t.complete.Store(true)
	handler()
}
