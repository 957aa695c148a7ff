package core

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
)

const mockBaseClock = 16000000

type mockTrigger struct {
	calls    []string
	a, b     uint32
	running  bool
	startErr error
}

func (m *mockTrigger) Configure(hz uint32) error {
	m.calls = append(m.calls, "trigger.configure")
	a, b, err := SolveDividers(mockBaseClock, hz, 65536, 65536)
	if err != nil {
		return err
	}
	m.a, m.b = a, b
	return nil
}

func (m *mockTrigger) Start() error {
	m.calls = append(m.calls, "trigger.start")
	if m.startErr != nil {
		return m.startErr
	}
	m.running = true
	return nil
}

func (m *mockTrigger) Stop() error {
	m.running = false
	return nil
}

type mockConverter struct {
	trigger *mockTrigger
	bits    uint8
	armed   bool
}

func (m *mockConverter) ConfigureContinuous(ts TriggerSource) error {
	m.trigger.calls = append(m.trigger.calls, "converter.continuous")
	m.armed = ts == TriggerSource(m.trigger)
	return nil
}

func (m *mockConverter) Resolution() uint8 { return m.bits }

func (m *mockConverter) Stop() error {
	m.armed = false
	return nil
}

type mockTransfer struct {
	trigger    *mockTrigger
	dst        *uint32
	circular   bool
	onComplete func()
	enabled    bool
	disableErr error
	complete   atomic.Bool
	fault      atomic.Bool
}

func (m *mockTransfer) Configure(dst *uint32, circular bool, onComplete func()) error {
	m.trigger.calls = append(m.trigger.calls, "transfer.configure")
	m.dst, m.circular, m.onComplete = dst, circular, onComplete
	return nil
}

func (m *mockTransfer) Enable() error {
	m.trigger.calls = append(m.trigger.calls, "transfer.enable")
	m.enabled = true
	return nil
}

func (m *mockTransfer) Disable() error {
	m.enabled = false
	return m.disableErr
}

func (m *mockTransfer) Acknowledge() bool {
	return m.complete.Swap(false)
}

func (m *mockTransfer) Faulted() bool {
	return m.fault.Swap(false)
}

// fire emulates one conversion landing in the destination slot followed by
// the completion interrupt.
func (m *mockTransfer) fire(raw uint16) {
	atomic.StoreUint32(m.dst, uint32(raw))
	m.complete.Store(true)
	m.onComplete()
}

type mockIndicator struct {
	toggles int
	on      bool
}

func (m *mockIndicator) Toggle()     { m.toggles++; m.on = !m.on }
func (m *mockIndicator) Set(on bool) { m.on = on }

type captureSink struct {
	lines []string
	err   error
}

func (c *captureSink) Send(p []byte) error {
	if c.err != nil {
		return c.err
	}
	c.lines = append(c.lines, string(p))
	return nil
}

type rig struct {
	trigger   *mockTrigger
	converter *mockConverter
	transfer  *mockTransfer
	indicator *mockIndicator
	sink      *captureSink
	p         *Pipeline
}

func newRig(t *testing.T, cfg Config) *rig {
	t.Helper()
	tr := &mockTrigger{}
	r := &rig{
		trigger:   tr,
		converter: &mockConverter{trigger: tr, bits: cfg.ResolutionBits},
		transfer:  &mockTransfer{trigger: tr},
		indicator: &mockIndicator{},
		sink:      &captureSink{},
	}
	p, err := NewPipeline(cfg, Hardware{
		Trigger:   r.trigger,
		Converter: r.converter,
		Transfer:  r.transfer,
		Indicator: r.indicator,
	}, r.sink)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	r.p = p
	return r
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.StatsIntervalMS = 0
	cfg.RingCapacity = 8
	return cfg
}

func TestPipelineStartOrder(t *testing.T) {
	r := newRig(t, testConfig())
	if err := r.p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.p.Stop()

	want := []string{"trigger.configure", "converter.continuous", "transfer.configure", "transfer.enable", "trigger.start"}
	if strings.Join(r.trigger.calls, ",") != strings.Join(want, ",") {
		t.Errorf("Expected call order %v, got %v", want, r.trigger.calls)
	}
	if r.trigger.a*r.trigger.b != mockBaseClock/100 {
		t.Errorf("Dividers %d*%d do not give 100 Hz", r.trigger.a, r.trigger.b)
	}
	if !r.converter.armed || !r.transfer.circular || !r.transfer.enabled {
		t.Error("Converter must be armed on the trigger and transfer enabled in circular mode")
	}
	if !r.p.Status().Running {
		t.Error("Status should report running")
	}
}

func TestPipelineLines(t *testing.T) {
	r := newRig(t, testConfig())
	if err := r.p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.p.Stop()

	for _, raw := range []uint16{0, 4095, 2048} {
		r.transfer.fire(raw)
		if !r.p.Poll() {
			t.Fatalf("Poll did not consume raw=%d", raw)
		}
	}
	if r.p.Poll() {
		t.Error("Poll without a new completion must not consume")
	}

	want := []string{
		"Smp 00000 | ADC:    0 | V: 0.000 V\r\n",
		"Smp 00001 | ADC: 4095 | V: 3.300 V\r\n",
		"Smp 00002 | ADC: 2048 | V: 1.650 V\r\n",
	}
	if len(r.sink.lines) != len(want) {
		t.Fatalf("Expected %d lines, got %d: %q", len(want), len(r.sink.lines), r.sink.lines)
	}
	for i := range want {
		if r.sink.lines[i] != want[i] {
			t.Errorf("Line %d: expected %q, got %q", i, want[i], r.sink.lines[i])
		}
	}

	history := r.p.History(nil)
	if len(history) != 3 || history[2].MilliVolts != 1650 {
		t.Errorf("Unexpected history %+v", history)
	}
	if r.indicator.toggles != 3 {
		t.Errorf("Expected 3 indicator toggles, got %d", r.indicator.toggles)
	}
	if st := r.p.Status(); st.Consumed != 3 || st.Dropped != 0 || st.Errors != 0 {
		t.Errorf("Unexpected status %+v", st)
	}
}

func TestPipelineSpuriousCompletion(t *testing.T) {
	r := newRig(t, testConfig())
	r.p.Start()
	defer r.p.Stop()

	// Interrupt without the completion indicator set
	r.transfer.onComplete()
	if r.p.Poll() {
		t.Error("Spurious interrupt must not publish a sample")
	}
}

func TestPipelineOverrun(t *testing.T) {
	cfg := testConfig()
	cfg.ReportOverruns = true
	r := newRig(t, cfg)
	r.p.Start()
	defer r.p.Stop()

	r.transfer.fire(100)
	r.transfer.fire(200)
	r.p.Poll()

	if len(r.sink.lines) != 1 || !strings.Contains(r.sink.lines[0], "ADC:  200") {
		t.Errorf("Expected one line with the newest sample, got %q", r.sink.lines)
	}
	st := r.p.Status()
	if st.Dropped != 1 {
		t.Errorf("Expected 1 dropped, got %d", st.Dropped)
	}
	if st.LastError.Code != ErrTriggerFailed || st.LastError.Severity != SeverityWarning {
		t.Errorf("Expected TriggerFailed warning, got %+v", st.LastError)
	}
}

func TestPipelineOverrunSilentByDefault(t *testing.T) {
	r := newRig(t, testConfig())
	r.p.Start()
	defer r.p.Stop()

	r.transfer.fire(1)
	r.transfer.fire(2)
	r.p.Poll()
	if st := r.p.Status(); st.Dropped != 1 || st.Errors != 0 {
		t.Errorf("Expected silent drop, got %+v", st)
	}
}

func TestPipelineOutputFailure(t *testing.T) {
	r := newRig(t, testConfig())
	r.p.Start()
	defer r.p.Stop()

	r.sink.err = errors.New("uart stalled")
	r.transfer.fire(10)
	r.p.Poll()

	st := r.p.Status()
	if st.Errors != 1 || st.LastError.Code != ErrOutputFailed {
		t.Errorf("Expected one OutputFailed record, got %+v", st)
	}
	if st.Critical {
		t.Error("Output failure is not critical")
	}
	if st.Retained != 1 {
		t.Error("Sample should still be retained when output fails")
	}
}

func TestPipelineInvalidFrequency(t *testing.T) {
	cfg := testConfig()
	cfg.TriggerHz = 7
	r := newRig(t, cfg)

	err := r.p.Start()
	if !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("Expected ErrInvalidParam, got %v", err)
	}
	if !r.p.IsCritical() || !r.indicator.on {
		t.Error("Start failure should be critical and light the indicator")
	}
	if r.p.Status().Running {
		t.Error("Pipeline must not be running")
	}
	if r.p.Status().LastError.Code != ErrInvalidParam {
		t.Errorf("Expected InvalidParam record, got %+v", r.p.Status().LastError)
	}

	r.p.ClearErrors()
	if r.p.IsCritical() || r.indicator.on || r.p.Status().Errors != 0 {
		t.Error("ClearErrors should reset critical, indicator and count")
	}
}

func TestPipelineRejectPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.RingCapacity = 2
	cfg.Policy = RetainReject
	r := newRig(t, cfg)
	r.p.Start()
	defer r.p.Stop()

	for _, raw := range []uint16{1, 2, 3} {
		r.transfer.fire(raw)
		r.p.Poll()
	}

	history := r.p.History(nil)
	if len(history) != 2 || history[0].Raw != 1 || history[1].Raw != 2 {
		t.Errorf("Expected [1 2] retained, got %+v", history)
	}
	if r.p.Status().LastError.Code != ErrBufferOverflow {
		t.Errorf("Expected BufferOverflow, got %+v", r.p.Status().LastError)
	}
	if len(r.sink.lines) != 3 {
		t.Errorf("Rejected retention must not stop output, got %d lines", len(r.sink.lines))
	}
}

func TestPipelineRetainNone(t *testing.T) {
	cfg := testConfig()
	cfg.Policy = RetainNone
	cfg.RingCapacity = 0
	r := newRig(t, cfg)
	r.p.Start()
	defer r.p.Stop()

	r.transfer.fire(5)
	r.p.Poll()
	if len(r.p.History(nil)) != 0 || r.p.Stats().Count != 0 {
		t.Error("RetainNone must not keep history")
	}
	if len(r.sink.lines) != 1 {
		t.Error("RetainNone must still output")
	}
}

func TestPipelineTransferFault(t *testing.T) {
	r := newRig(t, testConfig())
	r.p.Start()
	defer r.p.Stop()

	r.transfer.fault.Store(true)
	r.p.Poll()
	if r.p.Status().LastError.Code != ErrTransferFailed {
		t.Errorf("Expected TransferFailed, got %+v", r.p.Status().LastError)
	}
	r.p.Poll()
	if r.p.Status().Errors != 1 {
		t.Error("Latched fault must be reported once")
	}
}

func TestPipelineStatsLine(t *testing.T) {
	SetTime(0)
	defer SetTime(0)

	cfg := testConfig()
	cfg.StatsIntervalMS = 100
	r := newRig(t, cfg)
	r.p.Start()
	defer r.p.Stop()

	for _, raw := range []uint16{0, 4095} {
		r.transfer.fire(raw)
		r.p.Service()
	}
	if len(r.sink.lines) != 2 {
		t.Fatalf("Stats line emitted early: %q", r.sink.lines)
	}

	SetTime(100)
	r.p.Service()
	if len(r.sink.lines) != 3 {
		t.Fatalf("Expected stats line at 100 ms, got %q", r.sink.lines)
	}
	want := "Stats n=2 | min: 0.000 V | max: 3.300 V | avg: 1.650 V\r\n"
	if r.sink.lines[2] != want {
		t.Errorf("Expected %q, got %q", want, r.sink.lines[2])
	}

	// Not due again until 200 ms
	SetTime(150)
	r.p.Service()
	if len(r.sink.lines) != 3 {
		t.Errorf("Stats line repeated early: %q", r.sink.lines)
	}
}

func TestPipelineStop(t *testing.T) {
	r := newRig(t, testConfig())
	r.p.Start()
	if err := r.p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if r.trigger.running || r.converter.armed || r.transfer.enabled {
		t.Error("Stop must halt trigger, converter and transfer")
	}
	if r.p.Status().Running {
		t.Error("Status should report stopped")
	}
}

func TestNewPipelineValidation(t *testing.T) {
	cfg := testConfig()
	tr := &mockTrigger{}
	hw := Hardware{
		Trigger:   tr,
		Converter: &mockConverter{trigger: tr, bits: 10},
		Transfer:  &mockTransfer{trigger: tr},
	}
	if _, err := NewPipeline(cfg, hw, &captureSink{}); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("Resolution mismatch: expected ErrInvalidParam, got %v", err)
	}

	hw.Converter = &mockConverter{trigger: tr, bits: 12}
	if _, err := NewPipeline(cfg, hw, nil); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("Nil sink: expected ErrInvalidParam, got %v", err)
	}

	cfg.ErrorCapacity = 0
	if _, err := NewPipeline(cfg, hw, &captureSink{}); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("Zero error capacity: expected ErrInvalidParam, got %v", err)
	}
}

func TestPipelineStartFailureUndoesStages(t *testing.T) {
	r := newRig(t, testConfig())
	r.trigger.startErr = errors.New("pio busy")
	r.transfer.disableErr = errors.New("abort timed out")

	err := r.p.Start()
	if !errors.Is(err, ErrTriggerFailed) {
		t.Fatalf("Expected ErrTriggerFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "abort timed out") {
		t.Errorf("Cleanup error should be joined, got %q", err.Error())
	}
	if r.converter.armed || r.transfer.enabled {
		t.Error("Converter and transfer must be stopped after a failed start")
	}
	st := r.p.Status()
	if st.Running || !st.Critical || st.LastError.Code != ErrTriggerFailed {
		t.Errorf("Unexpected status %+v", st)
	}
}

func TestPipelineClearDuringCriticalReport(t *testing.T) {
	r := newRig(t, testConfig())

	prev := DebugLevel()
	SetDebugLevel(DebugErrors)
	SetDebugWriter(func(s string) {
		if strings.HasPrefix(s, "[ERROR] ") {
			r.p.ClearErrors()
		}
	})
	defer func() {
		SetDebugWriter(nil)
		SetDebugLevel(prev)
	}()

	r.p.Report(ErrUnknown, SeverityCritical, "watchdog")

	st := r.p.Status()
	if r.p.IsCritical() != st.Critical {
		t.Errorf("IsCritical()=%v disagrees with Status().Critical=%v", r.p.IsCritical(), st.Critical)
	}
	if st.Critical || st.Errors != 0 || r.indicator.on {
		t.Errorf("Clear after the report should win: critical=%v errors=%d led=%v",
			st.Critical, st.Errors, r.indicator.on)
	}

	SetDebugWriter(nil)
	r.p.Report(ErrUnknown, SeverityCritical, "watchdog")
	if !r.p.IsCritical() || !r.p.Status().Critical || !r.indicator.on {
		t.Error("Critical report should set the flag and the indicator")
	}
}

func TestPipelineCriticalSuppressesToggle(t *testing.T) {
	r := newRig(t, testConfig())
	r.p.Start()
	defer r.p.Stop()

	r.p.Report(ErrUnknown, SeverityCritical, "halt")
	r.transfer.fire(1)
	r.p.Poll()
	if r.indicator.toggles != 0 || !r.indicator.on {
		t.Errorf("Indicator should stay on while critical, toggles=%d on=%v", r.indicator.toggles, r.indicator.on)
	}
}

func TestPipelineUptime(t *testing.T) {
	SetTime(500)
	TimerInit()
	defer func() {
		SetTime(0)
		TimerInit()
	}()

	r := newRig(t, testConfig())
	SetTime(1750)
	if up := r.p.Status().UptimeMS; up != 1250 {
		t.Errorf("Expected uptime 1250 ms, got %d", up)
	}
}

func TestPipelineCriticalDumpsOwnEvents(t *testing.T) {
	lines, restore := captureDebug(DebugOff)
	defer restore()

	r := newRig(t, testConfig())
	r.p.Start()
	defer r.p.Stop()
	r.transfer.fire(7)
	r.p.Poll()

	r.p.Report(ErrUnknown, SeverityCritical, "halt")
	out := strings.Join(*lines, "\n")
	for _, want := range []string{"[EVENTS] START", "[EVENTS] CONSUMED", "[EVENTS] CRITICAL!"} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump missing %q: %q", want, out)
		}
	}

	other := newRig(t, testConfig())
	*lines = (*lines)[:0]
	other.p.Report(ErrUnknown, SeverityCritical, "halt")
	if out := strings.Join(*lines, "\n"); strings.Contains(out, "CONSUMED") {
		t.Errorf("A second pipeline must not see the first one's events: %q", out)
	}
}
