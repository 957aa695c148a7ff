package sim

import (
	"math"
	"sync"

	"adcpipe/core"
)

// Signal names the waveform presented at the simulated analog input
type Signal string

const (
	SignalSine     Signal = "sine"
	SignalRamp     Signal = "ramp"
	SignalConstant Signal = "constant"
)

// samplesPerCycle sets the period of the sine and ramp waveforms
const samplesPerCycle = 100

// ParseSignal validates a configured waveform name
func ParseSignal(s string) (Signal, error) {
	switch Signal(s) {
	case SignalSine, SignalRamp, SignalConstant:
		return Signal(s), nil
	case "":
		return SignalSine, nil
	}
	return "", core.NewFault(core.ErrInvalidParam, "config.signal", nil)
}

// Converter produces one conversion per trigger edge and raises a data
// request to the transfer channel, like an ADC with its DMA request line
// enabled.
type Converter struct {
	bits        uint8
	referenceMV uint32
	signal      Signal
	amplitudeMV uint32

	mu      sync.Mutex
	trigger *Trigger
	dreq    func(raw uint16)
	n       uint32
}

// NewConverter creates a converter of the given width. amplitudeMV is the
// peak of the input waveform and is clamped to referenceMV.
func NewConverter(bits uint8, referenceMV uint32, signal Signal, amplitudeMV uint32) *Converter {
	if amplitudeMV > referenceMV {
		amplitudeMV = referenceMV
	}
	return &Converter{
		bits:        bits,
		referenceMV: referenceMV,
		signal:      signal,
		amplitudeMV: amplitudeMV,
	}
}

// Connect routes conversion results to a transfer channel
func (c *Converter) Connect(t *Transfer) {
	c.mu.Lock()
	c.dreq = t.request
	c.mu.Unlock()
}

func (c *Converter) ConfigureContinuous(ts core.TriggerSource) error {
	t, ok := ts.(*Trigger)
	if !ok {
		return core.NewFault(core.ErrInvalidParam, "converter.configure", nil)
	}
	c.mu.Lock()
	if c.trigger != nil && c.trigger != t {
		c.trigger.attach(nil)
	}
	c.trigger = t
	c.n = 0
	c.mu.Unlock()

	t.attach(c.convert)
	return nil
}

func (c *Converter) Resolution() uint8 {
	return c.bits
}

func (c *Converter) Stop() error {
	c.mu.Lock()
	t := c.trigger
	c.trigger = nil
	c.mu.Unlock()

	if t != nil {
		t.attach(nil)
	}
	return nil
}

func (c *Converter) convert() {
	c.mu.Lock()
	raw := c.sample(c.n)
	c.n++
	dreq := c.dreq
	c.mu.Unlock()

	if dreq != nil {
		dreq(raw)
	}
}

// sample returns the raw code for the n-th conversion
func (c *Converter) sample(n uint32) uint16 {
	var mv uint32
	switch c.signal {
	case SignalRamp:
		mv = c.amplitudeMV * (n % samplesPerCycle) / (samplesPerCycle - 1)
	case SignalConstant:
		mv = c.amplitudeMV
	default:
		phase := 2 * math.Pi * float64(n%samplesPerCycle) / samplesPerCycle
		mv = uint32(float64(c.amplitudeMV) * (1 + math.Sin(phase)) / 2)
	}

	maxCount := core.MaxCount(c.bits)
	if c.referenceMV == 0 {
		return 0
	}
	raw := uint64(mv) * uint64(maxCount) / uint64(c.referenceMV)
	if raw > uint64(maxCount) {
		raw = uint64(maxCount)
	}
	return uint16(raw)
}
