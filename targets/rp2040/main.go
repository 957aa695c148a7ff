//go:build rp2040

package main

import (
	"machine"
	"time"

	"adcpipe/core"
	"adcpipe/protocol"
)

// Build-time settings
const (
	triggerHz       = 100
	referenceMV     = 3300
	adcChannel      = 0 // GPIO26
	ringCapacity    = 256
	statsIntervalMS = 1000
	txBufferSize    = 256
	debugLevel      = core.DebugErrors
)

var (
	pipeline *core.Pipeline
	adc      *ADCConverter

	// Debug counters
	loopPanics uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	UpdateSystemTime()
	core.TimerInit()

	core.SetDebugLevel(debugLevel)
	core.SetDebugWriter(func(s string) {
		machine.Serial.Write([]byte(s + protocol.LineTerminator))
	})

	led := newLEDIndicator(machine.LED)
	adc = NewADCConverter(adcChannel)

	cfg := core.DefaultConfig()
	cfg.TriggerHz = triggerHz
	cfg.ReferenceMV = referenceMV
	cfg.RingCapacity = ringCapacity
	cfg.StatsIntervalMS = statsIntervalMS

	hw := core.Hardware{
		Trigger:   NewPIOTrigger(0),
		Converter: adc,
		Transfer:  NewDMATransfer(0, 1),
		Indicator: led,
	}
	sink := protocol.NewBufferedSink(usbWriter{}, txBufferSize)

	pipeline, err = core.NewPipeline(cfg, hw, sink)
	if err != nil {
		// Nothing to run; hold the LED on
		led.Set(true)
		for {
			time.Sleep(time.Second)
		}
	}

	// A failed start is recorded as critical and lights the LED. The loop
	// keeps running so queued output still drains.
	pipeline.Start()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					loopPanics++
					pipeline.Report(core.ErrUnknown, core.SeverityError, "main loop panic")
				}
			}()

			UpdateSystemTime()

			if adc.Overrun() {
				pipeline.Report(core.ErrAcquisitionFailed, core.SeverityWarning, "adc fifo overrun")
			}
			if pipeline.Service() {
				return
			}
			sink.Flush()
		}()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}
