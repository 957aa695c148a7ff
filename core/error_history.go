package core

import (
	"errors"
	"math"
)

// DefaultErrorHistory is the number of records kept when no capacity is
// configured.
const DefaultErrorHistory = 10

// ErrorRecord is one reported fault
type ErrorRecord struct {
	Code      ErrorCode
	Severity  Severity
	Message   string
	Timestamp uint32 // core clock (ms) at report time
}

// ErrorHistory is a bounded circular log of fault records with a sticky
// critical indicator. It is owned by the foreground loop; the interrupt
// path never reports into it directly.
type ErrorHistory struct {
	records  []ErrorRecord
	index    int
	total    uint32
	critical bool
}

// NewErrorHistory allocates a history holding the last capacity records.
func NewErrorHistory(capacity int) *ErrorHistory {
	if capacity <= 0 {
		capacity = DefaultErrorHistory
	}
	return &ErrorHistory{records: make([]ErrorRecord, capacity)}
}

// Report stores a record at the current slot and advances the slot. The
// total count keeps growing after the slots wrap and saturates at MaxUint32.
func (h *ErrorHistory) Report(code ErrorCode, severity Severity, message string) {
	h.records[h.index] = ErrorRecord{
		Code:      code,
		Severity:  severity,
		Message:   message,
		Timestamp: GetTime(),
	}
	h.index = (h.index + 1) % len(h.records)

	if h.total < math.MaxUint32 {
		h.total++
	}
	if severity >= SeverityCritical {
		h.critical = true
	}
}

// ReportFault records err, using the code of the first Fault or ErrorCode
// in its chain.
func (h *ErrorHistory) ReportFault(err error, severity Severity) {
	if err == nil {
		return
	}
	code := ErrUnknown
	var f *Fault
	var c ErrorCode
	if errors.As(err, &f) {
		code = f.Code
	} else if errors.As(err, &c) {
		code = c
	}
	h.Report(code, severity, err.Error())
}

// Last returns the most recently written slot. Before any report it is the
// zero record.
func (h *ErrorHistory) Last() ErrorRecord {
	last := h.index - 1
	if last < 0 {
		last = len(h.records) - 1
	}
	return h.records[last]
}

// Records copies the retained records, oldest first, into dst.
func (h *ErrorHistory) Records(dst []ErrorRecord) []ErrorRecord {
	dst = dst[:0]
	n := len(h.records)
	stored := n
	if h.total < uint32(n) {
		stored = int(h.total)
	}
	start := (h.index - stored + n) % n
	for i := 0; i < stored; i++ {
		dst = append(dst, h.records[(start+i)%n])
	}
	return dst
}

// Clear zeroes the history, the total count and the critical flag.
func (h *ErrorHistory) Clear() {
	for i := range h.records {
		h.records[i] = ErrorRecord{}
	}
	h.index = 0
	h.total = 0
	h.critical = false
}

// IsCritical reports whether a severity >= 3 record was seen since the last Clear.
func (h *ErrorHistory) IsCritical() bool {
	return h.critical
}

// Count returns the number of reports since the last Clear, including the
// ones whose slots were overwritten.
func (h *ErrorHistory) Count() uint32 {
	return h.total
}

// Capacity returns the number of retained slots.
func (h *ErrorHistory) Capacity() int {
	return len(h.records)
}
