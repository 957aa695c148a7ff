package core

// TriggerSource is a periodic event generator that paces conversions.
// Once started it re-arms itself until Stop.
type TriggerSource interface {
	// Configure selects dividers for frequencyHz. Fails with ErrInvalidParam
	// when no exact factorization of the base clock exists.
	Configure(frequencyHz uint32) error

	Start() error
	Stop() error
}

// Converter is the acquisition engine: one conversion per trigger event,
// with results routed to the transfer channel rather than polled.
type Converter interface {
	// ConfigureContinuous arms one conversion per event of trigger.
	ConfigureContinuous(trigger TriggerSource) error

	// Resolution returns the sample width in bits.
	Resolution() uint8

	Stop() error
}

// AutonomousTransfer moves each completed conversion into dst without
// foreground involvement. In circular mode it re-arms itself after every
// transfer. onComplete runs in interrupt context once per transfer and must
// call Acknowledge before returning.
type AutonomousTransfer interface {
	Configure(dst *uint32, circular bool, onComplete func()) error
	Enable() error
	Disable() error

	// Acknowledge clears the completion indicator and reports whether it
	// was set.
	Acknowledge() bool

	// Faulted reports and clears a latched transfer error.
	Faulted() bool
}

// Indicator is an optional activity output toggled once per consumed
// sample (an LED on boards that have one).
type Indicator interface {
	Toggle()
	Set(on bool)
}
