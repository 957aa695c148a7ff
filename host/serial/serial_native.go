package serial

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

// NativePort wraps the tarm/serial implementation
type NativePort struct {
	port *serial.Port
}

// openPort is replaced in tests
var openPort = func(c *serial.Config) (Port, error) {
	p, err := serial.OpenPort(c)
	if err != nil {
		return nil, err
	}
	return &NativePort{port: p}, nil
}

// Open opens a native serial port. A board that is still enumerating is
// retried with exponential backoff until cfg.OpenTimeout elapses.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	serialConfig := &serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	}

	maxElapsed := cfg.OpenTimeout
	if maxElapsed <= 0 {
		// Zero would retry forever
		maxElapsed = 3 * time.Second
	}

	var port Port
	op := func() error {
		p, err := openPort(serialConfig)
		if err != nil {
			return err
		}
		port = p
		return nil
	}

	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      maxElapsed,
		Clock:               backoff.SystemClock})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return port, nil
}

// Read reads data from the serial port
func (p *NativePort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

// Write writes data to the serial port
func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port
func (p *NativePort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Flush discards data the driver has buffered but not yet transmitted
func (p *NativePort) Flush() error {
	return p.port.Flush()
}
