package sim

import (
	"strconv"
	"sync/atomic"

	"adcpipe/core"
)

// LED is an Indicator that only counts
type LED struct {
	on      atomic.Bool
	toggles atomic.Uint32
}

func (l *LED) Toggle() {
	for {
		old := l.on.Load()
		if l.on.CompareAndSwap(old, !old) {
			break
		}
	}
	l.toggles.Add(1)
}

func (l *LED) Set(on bool) {
	l.on.Store(on)
}

// On reports the current LED state
func (l *LED) On() bool {
	return l.on.Load()
}

// Toggles returns how often the LED changed state through Toggle
func (l *LED) Toggles() uint32 {
	return l.toggles.Load()
}

// BoardConfig describes the simulated board
type BoardConfig struct {
	BaseClockHz    uint32
	ResolutionBits uint8
	ReferenceMV    uint32
	Signal         Signal
	SignalMV       uint32
	Manual         bool // edges only via Trigger.Fire
}

// Board wires a trigger, converter and transfer channel together
type Board struct {
	Trigger   *Trigger
	Converter *Converter
	Transfer  *Transfer
	LED       *LED
}

// NewBoard creates the simulated peripherals, already connected
func NewBoard(cfg BoardConfig) *Board {
	b := &Board{
		Trigger:   NewTrigger(cfg.BaseClockHz, cfg.Manual),
		Converter: NewConverter(cfg.ResolutionBits, cfg.ReferenceMV, cfg.Signal, cfg.SignalMV),
		Transfer:  NewTransfer(),
		LED:       &LED{},
	}
	b.Converter.Connect(b.Transfer)
	return b
}

// Hardware returns the board as pipeline capabilities
func (b *Board) Hardware() core.Hardware {
	return core.Hardware{
		Trigger:   b.Trigger,
		Converter: b.Converter,
		Transfer:  b.Transfer,
		Indicator: b.LED,
	}
}

func itoa(n uint32) string {
	return strconv.FormatUint(uint64(n), 10)
}
