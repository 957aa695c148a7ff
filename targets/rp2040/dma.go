//go:build rp2040

package main

import (
	"device/rp"
	"runtime/interrupt"
	"runtime/volatile"
	"sync/atomic"
	"unsafe"

	"adcpipe/core"
)

// DMA CTRL_TRIG fields
const (
	dmaCtrlEn         = 1 << 0
	dmaCtrlSizeWord   = 2 << 2
	dmaCtrlChainToPos = 11
	dmaCtrlTreqPos    = 15
	dmaCtrlWriteError = 1 << 29
	dmaCtrlReadError  = 1 << 30
	dmaCtrlAHBError   = 1 << 31

	dreqADC = 36
)

// dmaChannel overlays one channel's register block. Each block is 0x40
// bytes. Writing CTRL_TRIG starts the channel; AL1_CTRL is the same
// register without the trigger.
type dmaChannel struct {
	READ_ADDR   volatile.Register32
	WRITE_ADDR  volatile.Register32
	TRANS_COUNT volatile.Register32
	CTRL_TRIG   volatile.Register32
	AL1_CTRL    volatile.Register32
	_           [11]volatile.Register32 // remaining alias views
}

var dmaChannels = (*[12]dmaChannel)(unsafe.Pointer(rp.DMA))

// Completion state shared with the DMA ISR
var (
	dmaComplete   atomic.Bool
	dmaFault      atomic.Bool
	dmaOnComplete func()
	dmaMask       uint32
)

// DMATransfer moves each ADC FIFO entry into a single word. In circular
// mode two channels chain to each other so one is always armed without
// software re-arming.
type DMATransfer struct {
	primary, secondary uint8
	circular           bool
}

// NewDMATransfer uses channels primary and secondary; secondary is only
// used in circular mode.
func NewDMATransfer(primary, secondary uint8) *DMATransfer {
	return &DMATransfer{primary: primary, secondary: secondary}
}

func (t *DMATransfer) Configure(dst *uint32, circular bool, onComplete func()) error {
	if dst == nil || onComplete == nil {
		return core.NewFault(core.ErrInvalidParam, "transfer.configure", nil)
	}
	t.circular = circular

	a, b := t.primary, t.primary
	if circular {
		b = t.secondary
	}
	t.setup(a, b, dst)
	if circular {
		t.setup(b, a, dst)
	}

	dmaOnComplete = onComplete
	dmaMask = 1<<a | 1<<b
	dmaComplete.Store(false)
	dmaFault.Store(false)
	return nil
}

// setup programs ch without starting it. Chaining a channel to itself
// disables chaining.
func (t *DMATransfer) setup(ch, chainTo uint8, dst *uint32) {
	c := &dmaChannels[ch]
	c.READ_ADDR.Set(uint32(uintptr(unsafe.Pointer(&rp.ADC.FIFO))))
	c.WRITE_ADDR.Set(uint32(uintptr(unsafe.Pointer(dst))))
	c.TRANS_COUNT.Set(1)
	c.AL1_CTRL.Set(dmaCtrlSizeWord |
		uint32(chainTo)<<dmaCtrlChainToPos |
		dreqADC<<dmaCtrlTreqPos)
}

func (t *DMATransfer) Enable() error {
	if dmaOnComplete == nil {
		return core.NewFault(core.ErrTransferFailed, "transfer.enable", nil)
	}
	rp.DMA.INTS0.Set(dmaMask)
	rp.DMA.INTE0.SetBits(dmaMask)
	irq := interrupt.New(rp.IRQ_DMA_IRQ_0, dmaISR)
	irq.Enable()

	if t.circular {
		// Enabled but idle until the primary chains to it
		dmaChannels[t.secondary].AL1_CTRL.SetBits(dmaCtrlEn)
	}
	p := &dmaChannels[t.primary]
	p.CTRL_TRIG.Set(p.AL1_CTRL.Get() | dmaCtrlEn)
	return nil
}

func (t *DMATransfer) Disable() error {
	rp.DMA.INTE0.ClearBits(dmaMask)
	rp.DMA.CHAN_ABORT.Set(dmaMask)
	for rp.DMA.CHAN_ABORT.Get()&dmaMask != 0 {
	}
	dmaChannels[t.primary].AL1_CTRL.ClearBits(dmaCtrlEn)
	dmaChannels[t.secondary].AL1_CTRL.ClearBits(dmaCtrlEn)
	rp.DMA.INTS0.Set(dmaMask)
	return nil
}

func (t *DMATransfer) Acknowledge() bool {
	return dmaComplete.Swap(false)
}

func (t *DMATransfer) Faulted() bool {
	return dmaFault.Swap(false)
}

// dmaISR clears the channel interrupt, latches bus errors for the
// foreground and hands the completion to the pipeline.
func dmaISR(interrupt.Interrupt) {
	pending := rp.DMA.INTS0.Get() & dmaMask
	if pending == 0 {
		return
	}
	rp.DMA.INTS0.Set(pending)

	for ch := uint8(0); ch < 12; ch++ {
		if pending&(1<<ch) == 0 {
			continue
		}
		if dmaChannels[ch].CTRL_TRIG.Get()&(dmaCtrlAHBError|dmaCtrlReadError|dmaCtrlWriteError) != 0 {
			// Write-one-to-clear; AL1_CTRL so the channel is not retriggered
			dmaChannels[ch].AL1_CTRL.SetBits(dmaCtrlReadError | dmaCtrlWriteError)
			dmaFault.Store(true)
		}
	}

	dmaComplete.Store(true)
	if dmaOnComplete != nil {
		dmaOnComplete()
	}
}
