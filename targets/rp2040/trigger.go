//go:build rp2040

package main

import (
	"device/rp"
	"machine"
	"runtime/interrupt"
	"sync/atomic"

	"adcpipe/core"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// PIO instruction encodings
const (
	pioPullBlock   = 0x80a0 // pull block
	pioPullNoBlock = 0x8080 // pull noblock (OSR <- X when the FIFO is empty)
	pioOutX32      = 0x6020 // out x, 32
	pioOutY32      = 0x6040 // out y, 32
	pioJmpYDec     = 0x0080 // jmp y--, <addr>
	pioIRQSet      = 0xc000 // irq nowait <flag>
)

const (
	triggerPIOOrigin = 0 // jump targets below assume offset 0
	triggerIRQFlag   = 0

	// Cycles per period spent outside the delay loop: pull, out, irq and
	// the final jmp fall-through.
	triggerLoopOverhead = 4

	// Largest integer PIO clock divider
	maxPIOClkDiv = 65535
	maxLoopCount = 1 << 30
)

// Trigger program. X holds the reload value across periods: the noblock
// pull copies it into OSR whenever no new value was queued.
//
//	0: pull block
//	1: out x, 32
//	.wrap_target
//	2: pull noblock
//	3: out y, 32
//	4: jmp y--, 4
//	5: irq nowait 0
//	.wrap
var triggerProgram = []uint16{
	pioPullBlock,
	pioOutX32,
	pioPullNoBlock,
	pioOutY32,
	pioJmpYDec | 4,
	pioIRQSet | triggerIRQFlag,
}

// convertOnEdge is set while the converter is armed on the trigger
var convertOnEdge atomic.Bool

// PIOTrigger paces conversions with a PIO state machine: the clock divider
// is divider_a and the delay loop runs divider_b cycles, raising PIO IRQ 0
// once per period.
type PIOTrigger struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	cfg    rp2pio.StateMachineConfig
	offset uint8
	loaded bool

	a, b uint32
}

// NewPIOTrigger claims state machine smNum of PIO0
func NewPIOTrigger(smNum uint8) *PIOTrigger {
	return &PIOTrigger{
		pio: rp2pio.PIO0,
		sm:  rp2pio.PIO0.StateMachine(smNum),
	}
}

func (t *PIOTrigger) Configure(frequencyHz uint32) error {
	a, b, err := core.SolveDividers(machine.CPUFrequency(), frequencyHz, maxPIOClkDiv, maxLoopCount)
	if err != nil {
		return err
	}
	if b <= triggerLoopOverhead {
		return core.NewFault(core.ErrInvalidParam, "trigger.configure", nil)
	}

	if !t.loaded {
		t.sm.TryClaim()
		offset, err := t.pio.AddProgram(triggerProgram, triggerPIOOrigin)
		if err != nil {
			return core.NewFault(core.ErrTriggerFailed, "trigger.configure", err)
		}
		t.offset = offset
		t.loaded = true
	}

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetWrap(t.offset+uint8(len(triggerProgram))-1, t.offset+2)
	cfg.SetClkDivIntFrac(uint16(a), 0)
	t.cfg = cfg
	t.a, t.b = a, b
	return nil
}

func (t *PIOTrigger) Start() error {
	if !t.loaded {
		return core.NewFault(core.ErrTriggerFailed, "trigger.start", nil)
	}

	rp.PIO0.IRQ.Set(1 << triggerIRQFlag)
	rp.PIO0.IRQ0_INTE.SetBits(rp.PIO0_IRQ0_INTE_SM0 << triggerIRQFlag)
	irq := interrupt.New(rp.IRQ_PIO0_IRQ_0, pioTriggerISR)
	irq.Enable()

	t.sm.Init(t.offset, t.cfg)
	t.sm.TxPut(t.b - triggerLoopOverhead)
	t.sm.SetEnabled(true)
	return nil
}

func (t *PIOTrigger) Stop() error {
	t.sm.SetEnabled(false)
	t.sm.ClearFIFOs()
	rp.PIO0.IRQ0_INTE.ClearBits(rp.PIO0_IRQ0_INTE_SM0 << triggerIRQFlag)
	rp.PIO0.IRQ.Set(1 << triggerIRQFlag)
	return nil
}

// pioTriggerISR acknowledges the PIO flag and starts one conversion. The
// result reaches memory through the ADC FIFO and DMA.
func pioTriggerISR(interrupt.Interrupt) {
	rp.PIO0.IRQ.Set(1 << triggerIRQFlag)
	if convertOnEdge.Load() {
		rp.ADC.CS.SetBits(rp.ADC_CS_START_ONCE)
	}
}
