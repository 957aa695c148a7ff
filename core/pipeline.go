package core

import (
	"errors"
	"sync/atomic"

	"adcpipe/protocol"
)

// RetainPolicy selects how consumed samples are kept in the history buffer
type RetainPolicy uint8

const (
	// RetainOverwrite keeps the newest samples, silently dropping the oldest.
	RetainOverwrite RetainPolicy = iota
	// RetainReject stops retaining once full and reports ErrBufferOverflow.
	RetainReject
	// RetainNone skips the history buffer.
	RetainNone
)

func (p RetainPolicy) String() string {
	switch p {
	case RetainOverwrite:
		return "overwrite"
	case RetainReject:
		return "reject"
	case RetainNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseRetainPolicy maps a config string to a RetainPolicy
func ParseRetainPolicy(s string) (RetainPolicy, error) {
	switch s {
	case "", "overwrite":
		return RetainOverwrite, nil
	case "reject":
		return RetainReject, nil
	case "none":
		return RetainNone, nil
	}
	return 0, NewFault(ErrInvalidParam, "config.history_policy", nil)
}

// Config holds the start-up values of a pipeline. None of them change while
// it runs.
type Config struct {
	TriggerHz       uint32
	ReferenceMV     uint32
	ResolutionBits  uint8
	RingCapacity    int
	ErrorCapacity   int
	Policy          RetainPolicy
	ReportOverruns  bool   // report single-slot overwrites as ErrTriggerFailed
	StatsIntervalMS uint32 // 0 disables the periodic stats line
}

// DefaultConfig mirrors the reference board: 100 Hz, 3.3 V, 12 bits.
func DefaultConfig() Config {
	return Config{
		TriggerHz:       100,
		ReferenceMV:     3300,
		ResolutionBits:  12,
		RingCapacity:    1024,
		ErrorCapacity:   DefaultErrorHistory,
		Policy:          RetainOverwrite,
		StatsIntervalMS: 1000,
	}
}

// Validate checks ranges. Divider feasibility is checked by the trigger.
func (c Config) Validate() error {
	switch {
	case c.TriggerHz == 0:
		return NewFault(ErrInvalidParam, "config.trigger_hz", nil)
	case c.ReferenceMV == 0:
		return NewFault(ErrInvalidParam, "config.reference_mv", nil)
	case c.ResolutionBits == 0 || c.ResolutionBits > 16:
		return NewFault(ErrInvalidParam, "config.resolution_bits", nil)
	case c.RingCapacity <= 0 && c.Policy != RetainNone:
		return NewFault(ErrInvalidParam, "config.ring_capacity", nil)
	case c.ErrorCapacity <= 0:
		return NewFault(ErrInvalidParam, "config.error_capacity", nil)
	case c.Policy > RetainNone:
		return NewFault(ErrInvalidParam, "config.history_policy", nil)
	}
	return nil
}

// Hardware bundles the capability drivers a pipeline runs on. Indicator
// may be nil.
type Hardware struct {
	Trigger   TriggerSource
	Converter Converter
	Transfer  AutonomousTransfer
	Indicator Indicator
}

// Status is a point-in-time view of a pipeline
type Status struct {
	Running   bool
	UptimeMS  uint32
	Consumed  uint32 // samples taken by the foreground
	Dropped   uint32 // samples overwritten in the single slot before being taken
	Retained  int
	Capacity  int
	Errors    uint32
	Critical  bool
	LastError ErrorRecord
}

// Pipeline owns all acquisition state. Its interrupt entry point is
// OnTransferComplete; every other method runs in the foreground.
type Pipeline struct {
	cfg   Config
	hw    Hardware
	sink  protocol.Sink
	scale Scale

	// slot is the transfer channel's destination. Hardware writes it
	// directly; software accesses it atomically.
	slot    uint32
	handoff Handoff

	history *RingBuffer
	errors  *ErrorHistory
	line    *protocol.ScratchOutput

	index       uint32
	consumed    atomic.Uint32
	lastDropped uint32
	running     atomic.Bool

	events     EventRing
	statsTimer Timer
}

// NewPipeline allocates a pipeline. Nothing touches the hardware until Start.
func NewPipeline(cfg Config, hw Hardware, sink protocol.Sink) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hw.Trigger == nil || hw.Converter == nil || hw.Transfer == nil || sink == nil {
		return nil, NewFault(ErrInvalidParam, "pipeline.new", nil)
	}
	if bits := hw.Converter.Resolution(); bits != cfg.ResolutionBits {
		return nil, NewFault(ErrInvalidParam, "pipeline.new", nil)
	}

	ringCap := cfg.RingCapacity
	if cfg.Policy == RetainNone {
		ringCap = 1
	}

	return &Pipeline{
		cfg:     cfg,
		hw:      hw,
		sink:    sink,
		scale:   NewScale(cfg.ReferenceMV, cfg.ResolutionBits),
		history: NewRingBuffer(ringCap),
		errors:  NewErrorHistory(cfg.ErrorCapacity),
		line:    protocol.NewScratchOutput(),
	}, nil
}

// Start configures trigger, converter and transfer channel, in that order,
// then starts the trigger. A failure is recorded as critical and returned.
func (p *Pipeline) Start() error {
	if p.running.Load() {
		return nil
	}
	p.handoff.Reset()
	p.lastDropped = 0

	if err := p.hw.Trigger.Configure(p.cfg.TriggerHz); err != nil {
		return p.startFailed(err, ErrTriggerFailed)
	}
	if err := p.hw.Converter.ConfigureContinuous(p.hw.Trigger); err != nil {
		return p.startFailed(err, ErrAcquisitionFailed)
	}
	if err := p.hw.Transfer.Configure(&p.slot, true, p.OnTransferComplete); err != nil {
		return p.startFailed(err, ErrTransferFailed, p.hw.Converter.Stop())
	}
	if err := p.hw.Transfer.Enable(); err != nil {
		return p.startFailed(err, ErrTransferFailed, p.hw.Converter.Stop())
	}
	if err := p.hw.Trigger.Start(); err != nil {
		return p.startFailed(err, ErrTriggerFailed, p.hw.Transfer.Disable(), p.hw.Converter.Stop())
	}

	p.running.Store(true)
	p.events.Record(EvtStart, p.cfg.TriggerHz, uint32(p.cfg.ResolutionBits))
	LogInfo("acquisition started at ", utoa(p.cfg.TriggerHz), " Hz")

	if p.cfg.StatsIntervalMS > 0 {
		p.statsTimer.Next = nil
		p.statsTimer.WakeTime = GetTime() + TimerFromMS(p.cfg.StatsIntervalMS)
		p.statsTimer.Handler = p.statsHandler
		ScheduleTimer(&p.statsTimer)
	}
	return nil
}

// startFailed records err as critical. Errors from undoing the stages
// that already succeeded are joined to it.
func (p *Pipeline) startFailed(err error, code ErrorCode, cleanup ...error) error {
	var f *Fault
	if !errors.As(err, &f) {
		err = NewFault(code, "pipeline.start", err)
	}
	if c := errors.Join(cleanup...); c != nil {
		err = errors.Join(err, c)
	}
	p.reportFault(err, SeverityCritical)
	return err
}

// Stop halts the trigger, then the converter and the transfer channel. It
// must not be called from interrupt context.
func (p *Pipeline) Stop() error {
	if !p.running.Load() {
		return nil
	}
	CancelTimer(&p.statsTimer)

	var first error
	if err := p.hw.Trigger.Stop(); err != nil {
		first = err
	}
	if err := p.hw.Converter.Stop(); err != nil && first == nil {
		first = err
	}
	if err := p.hw.Transfer.Disable(); err != nil && first == nil {
		first = err
	}

	p.running.Store(false)
	p.events.Record(EvtStop, p.consumed.Load(), p.handoff.Dropped())
	LogInfo("acquisition stopped after ", utoa(p.consumed.Load()), " samples")
	return first
}

// OnTransferComplete is the transfer channel's completion handler. It runs
// in interrupt context: it acknowledges the hardware and publishes the
// slot, nothing else.
func (p *Pipeline) OnTransferComplete() {
	if !p.hw.Transfer.Acknowledge() {
		return
	}
	p.handoff.Publish(uint16(atomic.LoadUint32(&p.slot)))
}

// Poll runs one foreground iteration. It returns true when a sample was
// consumed.
func (p *Pipeline) Poll() bool {
	if p.hw.Transfer.Faulted() {
		p.events.Record(EvtTransferFault, p.consumed.Load(), 0)
		p.report(ErrTransferFailed, SeverityError, "transfer error latched")
	}

	raw, ok := p.handoff.Take()
	if !ok {
		return false
	}
	p.consume(raw)
	return true
}

// Service polls once and then runs due foreground timers. Targets call it
// in their main loop.
func (p *Pipeline) Service() bool {
	consumed := p.Poll()
	ProcessTimers()
	return consumed
}

func (p *Pipeline) consume(raw uint16) {
	if uint32(raw) > p.scale.MaxCount {
		p.report(ErrAcquisitionFailed, SeverityWarning, "sample out of converter range")
	}
	s := p.scale.Sample(raw)

	if dropped := p.handoff.Dropped(); dropped != p.lastDropped {
		p.events.Record(EvtSampleDropped, dropped, dropped-p.lastDropped)
		p.lastDropped = dropped
		if p.cfg.ReportOverruns {
			p.report(ErrTriggerFailed, SeverityWarning, "sample overrun")
		}
	}

	switch p.cfg.Policy {
	case RetainOverwrite:
		state := disableInterrupts()
		p.history.Write(s)
		restoreInterrupts(state)
	case RetainReject:
		state := disableInterrupts()
		ok := p.history.TryWrite(s)
		restoreInterrupts(state)
		if !ok {
			p.report(ErrBufferOverflow, SeverityWarning, "sample history full")
		}
	}

	p.line.Reset()
	protocol.AppendSampleLine(p.line, p.index, s.Raw, s.MilliVolts)
	if err := p.sink.Send(p.line.Result()); err != nil {
		p.events.Record(EvtOutputFault, p.index, 0)
		p.report(ErrOutputFailed, SeverityError, err.Error())
	}

	if p.hw.Indicator != nil {
		state := disableInterrupts()
		if !p.errors.IsCritical() {
			p.hw.Indicator.Toggle()
		}
		restoreInterrupts(state)
	}

	p.events.Record(EvtSampleConsumed, p.index, uint32(raw))
	p.index = (p.index + 1) % protocol.SampleIndexModulo
	p.consumed.Add(1)
}

// report records a fault and handles the first transition to critical.
func (p *Pipeline) report(code ErrorCode, severity Severity, message string) {
	state := disableInterrupts()
	wasCritical := p.errors.IsCritical()
	p.errors.Report(code, severity, message)
	p.recorded(state, wasCritical)
}

// reportFault is report for an error value, keeping its Fault code.
func (p *Pipeline) reportFault(err error, severity Severity) {
	state := disableInterrupts()
	wasCritical := p.errors.IsCritical()
	p.errors.ReportFault(err, severity)
	p.recorded(state, wasCritical)
}

// recorded finishes a report started under state. The indicator follows
// the tracker inside the critical section; logging happens after it.
func (p *Pipeline) recorded(state State, wasCritical bool) {
	rec := p.errors.Last()
	count := p.errors.Count()
	became := !wasCritical && p.errors.IsCritical()
	if became && p.hw.Indicator != nil {
		p.hw.Indicator.Set(true)
	}
	restoreInterrupts(state)

	if rec.Severity >= SeverityError {
		LogError(rec.Code.String(), ": ", rec.Message)
	} else {
		LogInfo(rec.Code.String(), ": ", rec.Message)
	}

	if became {
		p.events.Record(EvtCritical, count, uint32(rec.Code))
		p.events.Dump()
	}
}

// Report records a fault detected outside the pipeline, for example by the
// target's main loop.
func (p *Pipeline) Report(code ErrorCode, severity Severity, message string) {
	p.report(code, severity, message)
}

func (p *Pipeline) statsHandler(t *Timer) uint8 {
	if !p.running.Load() {
		return SF_DONE
	}

	st := p.Stats()
	if st.Count > 0 {
		p.line.Reset()
		protocol.AppendStatsLine(p.line, uint32(st.Count), st.MinMV, st.MaxMV, st.MeanMV)
		if err := p.sink.Send(p.line.Result()); err != nil {
			p.report(ErrOutputFailed, SeverityError, err.Error())
		}
	}

	interval := TimerFromMS(p.cfg.StatsIntervalMS)
	t.WakeTime += interval
	if timeBefore(t.WakeTime, GetTime()+1) {
		// Fell behind; skip the missed periods
		t.WakeTime = GetTime() + interval
	}
	return SF_RESCHEDULE
}

// Stats summarises the retained history
func (p *Pipeline) Stats() Stats {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	if p.cfg.Policy == RetainNone {
		return Stats{}
	}
	return ComputeStats(p.history)
}

// History copies the retained samples, oldest first, into dst.
func (p *Pipeline) History(dst []Sample) []Sample {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	if p.cfg.Policy == RetainNone {
		return dst[:0]
	}
	return p.history.Snapshot(dst)
}

// Errors copies the retained fault records, oldest first, into dst.
func (p *Pipeline) Errors(dst []ErrorRecord) []ErrorRecord {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return p.errors.Records(dst)
}

// ClearErrors resets the fault history and the critical flag.
func (p *Pipeline) ClearErrors() {
	state := disableInterrupts()
	wasCritical := p.errors.IsCritical()
	p.errors.Clear()
	if wasCritical && p.hw.Indicator != nil {
		p.hw.Indicator.Set(false)
	}
	restoreInterrupts(state)
}

// IsCritical reports whether a critical fault was recorded since the last
// ClearErrors.
func (p *Pipeline) IsCritical() bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return p.errors.IsCritical()
}

// Status returns a snapshot of counters and fault state
func (p *Pipeline) Status() Status {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	st := Status{
		Running:  p.running.Load(),
		UptimeMS: GetUptime(),
		Consumed: p.consumed.Load(),
		Dropped:  p.handoff.Dropped(),
		Errors:   p.errors.Count(),
		Critical: p.errors.IsCritical(),
	}
	if st.Errors > 0 {
		st.LastError = p.errors.Last()
	}
	if p.cfg.Policy != RetainNone {
		st.Retained = p.history.Count()
		st.Capacity = p.history.Capacity()
	}
	return st
}

// Config returns the start-up configuration
func (p *Pipeline) Config() Config {
	return p.cfg
}
