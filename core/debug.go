package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Debug levels, matching the firmware DEBUG_LEVEL setting
const (
	DebugOff     uint8 = 0
	DebugErrors  uint8 = 1
	DebugInfo    uint8 = 2
	DebugVerbose uint8 = 3
)

// PipelineEvent captures a pipeline event for post-mortem analysis
type PipelineEvent struct {
	EventType uint8  // Event type code
	Clock     uint32 // Core clock (ms) at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtStart          = 1 // pipeline started
	EvtStop           = 2 // pipeline stopped
	EvtSampleConsumed = 3 // sample taken from the handoff (v1=index, v2=raw)
	EvtSampleDropped  = 4 // single-slot overwrite observed (v1=total dropped)
	EvtTransferFault  = 5 // transfer channel latched an error
	EvtOutputFault    = 6 // sink rejected a line (v1=index)
	EvtCritical       = 7 // error tracker went critical (v1=error count)
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	debugLevel = DebugInfo
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, stdout etc.
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		writer = func(string) {}
	}
	debugPrintln = writer
}

// SetDebugLevel selects which messages reach the writer. Levels above
// DebugVerbose are treated as DebugVerbose.
func SetDebugLevel(level uint8) {
	if level > DebugVerbose {
		level = DebugVerbose
	}
	debugLevel = level
}

// DebugLevel returns the active level
func DebugLevel() uint8 {
	return debugLevel
}

func logAt(level uint8, prefix string, parts []string) {
	if debugLevel < level {
		return
	}
	msg := prefix
	for _, p := range parts {
		msg += p
	}
	debugPrintln(msg)
}

// LogError writes the concatenated parts at DebugErrors.
func LogError(parts ...string) {
	logAt(DebugErrors, "[ERROR] ", parts)
}

// LogInfo writes the concatenated parts at DebugInfo.
func LogInfo(parts ...string) {
	logAt(DebugInfo, "[INFO] ", parts)
}

// LogVerbose writes the concatenated parts at DebugVerbose.
func LogVerbose(parts ...string) {
	logAt(DebugVerbose, "[DEBUG] ", parts)
}

// EventRing keeps the most recent pipeline events. It never blocks or
// allocates; record from the foreground loop only.
type EventRing struct {
	events [EventRingSize]PipelineEvent
	head   uint8
}

// Record captures an event, overwriting the oldest once full.
func (r *EventRing) Record(eventType uint8, value1, value2 uint32) {
	idx := r.head
	r.events[idx] = PipelineEvent{
		EventType: eventType,
		Clock:     GetTime(),
		Value1:    value1,
		Value2:    value2,
	}
	r.head = (idx + 1) % EventRingSize
}

// Events copies the captured events, oldest first, into dst.
func (r *EventRing) Events(dst []PipelineEvent) []PipelineEvent {
	dst = dst[:0]
	start := r.head
	for i := uint8(0); i < EventRingSize; i++ {
		evt := r.events[(start+i)%EventRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		dst = append(dst, evt)
	}
	return dst
}

func eventName(t uint8) string {
	switch t {
	case EvtStart:
		return "START"
	case EvtStop:
		return "STOP"
	case EvtSampleConsumed:
		return "CONSUMED"
	case EvtSampleDropped:
		return "DROPPED"
	case EvtTransferFault:
		return "XFER_FAULT!"
	case EvtOutputFault:
		return "OUT_FAULT"
	case EvtCritical:
		return "CRITICAL!"
	default:
		return "UNKNOWN"
	}
}

// Dump writes the ring through the debug writer regardless of level
func (r *EventRing) Dump() {
	debugPrintln("[EVENTS] === Event Ring Dump ===")
	var buf [EventRingSize]PipelineEvent
	for _, evt := range r.Events(buf[:0]) {
		debugPrintln("[EVENTS] " + eventName(evt.EventType) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[EVENTS] === End Dump ===")
}

// Clear empties the ring
func (r *EventRing) Clear() {
	*r = EventRing{}
}
