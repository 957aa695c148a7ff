// Package protocol formats pipeline output lines and queues them for the
// byte sink.
package protocol

// Version represents the adcpipe firmware version
const Version = "0.1.0"

// Output constants
const (
	MessageMax = 128 // Scratch line buffer size; a sample line is 36 bytes

	// SampleIndexModulo keeps the sample index within its 5-digit field.
	SampleIndexModulo = 100000

	LineTerminator = "\r\n"
)
