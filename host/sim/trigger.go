// Package sim provides software stand-ins for the acquisition hardware so
// the pipeline can run on a development machine.
package sim

import (
	"sync"
	"time"

	"adcpipe/core"
)

// Divider limits of the simulated timer: a 16-bit prescaler and a 16-bit
// auto-reload counter, both programmed as value-1.
const (
	MaxPrescaler = 65536
	MaxReload    = 65536
)

// Trigger is a periodic event source driven by a time.Ticker. Each edge
// runs the attached conversion in the ticker goroutine, which plays the
// part of interrupt context.
type Trigger struct {
	baseClock uint32
	manual    bool

	mu      sync.Mutex
	a, b    uint32
	period  time.Duration
	edge    func()
	stop    chan struct{}
	done    chan struct{}
	running bool
	edges   uint32
}

// NewTrigger creates a trigger dividing baseClock. A manual trigger never
// ticks on its own; tests drive it with Fire.
func NewTrigger(baseClock uint32, manual bool) *Trigger {
	return &Trigger{baseClock: baseClock, manual: manual}
}

func (t *Trigger) Configure(frequencyHz uint32) error {
	a, b, err := core.SolveDividers(t.baseClock, frequencyHz, MaxPrescaler, MaxReload)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.a, t.b = a, b
	t.period = time.Duration(uint64(a) * uint64(b) * uint64(time.Second) / uint64(t.baseClock))
	core.LogVerbose("sim trigger: a=", itoa(a), " b=", itoa(b))
	return nil
}

// Dividers returns the prescaler and reload chosen by Configure
func (t *Trigger) Dividers() (a, b uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.a, t.b
}

// Period returns the interval between edges
func (t *Trigger) Period() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.period
}

func (t *Trigger) attach(edge func()) {
	t.mu.Lock()
	t.edge = edge
	t.mu.Unlock()
}

func (t *Trigger) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return nil
	}
	if t.period == 0 {
		return core.NewFault(core.ErrTriggerFailed, "trigger.start", nil)
	}
	t.running = true
	if t.manual {
		return nil
	}

	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(t.period, t.stop, t.done)
	return nil
}

func (t *Trigger) run(period time.Duration, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.Fire()
		}
	}
}

// Fire delivers one trigger edge. It is a no-op while stopped.
func (t *Trigger) Fire() {
	t.mu.Lock()
	edge := t.edge
	running := t.running
	if running {
		t.edges++
	}
	t.mu.Unlock()

	if running && edge != nil {
		edge()
	}
}

// Edges returns how many edges fired since creation
func (t *Trigger) Edges() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.edges
}

// Stop halts the ticker and waits for an in-flight edge to finish.
func (t *Trigger) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}
