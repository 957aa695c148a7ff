package core

// ErrorCode classifies a pipeline fault. Values are bit-distinct so they can
// also be OR-ed into a fault mask by targets that latch several at once.
type ErrorCode uint8

const (
	ErrNone              ErrorCode = 0x00
	ErrAcquisitionFailed ErrorCode = 0x01
	ErrTransferFailed    ErrorCode = 0x02
	ErrOutputFailed      ErrorCode = 0x04
	ErrTriggerFailed     ErrorCode = 0x08
	ErrBufferOverflow    ErrorCode = 0x10
	ErrBufferUnderflow   ErrorCode = 0x20
	ErrInvalidParam      ErrorCode = 0x40
	ErrTimeout           ErrorCode = 0x80
	ErrUnknown           ErrorCode = 0xFF
)

// String returns the static description of the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrNone:
		return "No error"
	case ErrAcquisitionFailed:
		return "ADC conversion failed"
	case ErrTransferFailed:
		return "DMA transfer failed"
	case ErrOutputFailed:
		return "Output communication failed"
	case ErrTriggerFailed:
		return "Trigger failed"
	case ErrBufferOverflow:
		return "Buffer overflow"
	case ErrBufferUnderflow:
		return "Buffer underflow"
	case ErrInvalidParam:
		return "Invalid parameter"
	case ErrTimeout:
		return "Operation timeout"
	default:
		return "Unknown error"
	}
}

// Error lets a bare ErrorCode be used as an error value and as an
// errors.Is target.
func (c ErrorCode) Error() string {
	return c.String()
}

// Severity of a reported fault
type Severity uint8

const (
	SeverityInfo     Severity = 0
	SeverityWarning  Severity = 1
	SeverityError    Severity = 2
	SeverityCritical Severity = 3
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "critical"
	}
}

// Fault is the error returned by pipeline operations. It carries the
// taxonomy code so callers can match with errors.Is(err, ErrInvalidParam).
type Fault struct {
	Code ErrorCode
	Op   string // operation that failed, e.g. "trigger.configure"
	Err  error  // underlying cause, may be nil
}

// NewFault builds a Fault for op with an optional cause.
func NewFault(code ErrorCode, op string, err error) *Fault {
	return &Fault{Code: code, Op: op, Err: err}
}

func (f *Fault) Error() string {
	msg := f.Op + ": " + f.Code.String()
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Is matches another Fault or a bare ErrorCode by code.
func (f *Fault) Is(target error) bool {
	switch t := target.(type) {
	case ErrorCode:
		return f.Code == t
	case *Fault:
		return f.Code == t.Code
	}
	return false
}
