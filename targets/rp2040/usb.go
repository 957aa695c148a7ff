//go:build rp2040

package main

import (
	"machine"
)

// InitUSB initializes USB serial communication
// TinyGo automatically sets up USB CDC-ACM on RP2040
func InitUSB() {
	err := machine.Serial.Configure(machine.UARTConfig{})
	if err != nil {
		return
	}
}

// usbWriter is the byte sink behind the output queue
type usbWriter struct{}

func (usbWriter) Write(data []byte) (int, error) {
	return machine.Serial.Write(data)
}

// ledIndicator toggles the on-board LED per sample and holds it on once
// the pipeline goes critical.
type ledIndicator struct {
	pin machine.Pin
	on  bool
}

func newLEDIndicator(pin machine.Pin) *ledIndicator {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Low()
	return &ledIndicator{pin: pin}
}

func (l *ledIndicator) Toggle() {
	l.Set(!l.on)
}

func (l *ledIndicator) Set(on bool) {
	l.on = on
	l.pin.Set(on)
}
