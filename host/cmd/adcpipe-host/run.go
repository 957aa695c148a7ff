package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"adcpipe/core"
	"adcpipe/host/config"
	"adcpipe/host/serial"
	"adcpipe/host/sim"
	"adcpipe/host/status"
	"adcpipe/protocol"
)

// idleSleep is how long the foreground loop rests when no sample is ready
const idleSleep = 200 * time.Microsecond

// openOutput returns the configured byte link. out overrides the
// configured destination when not nil.
func openOutput(ctx context.Context, c config.Config, out io.Writer) (io.Writer, func() error, error) {
	closer := func() error { return nil }
	w := out
	switch {
	case w != nil:
	case c.Output == config.OutputStdout:
		w = os.Stdout
	default:
		scfg := serial.DefaultConfig(c.Output)
		scfg.Baud = c.Baud
		port, err := serial.Open(scfg)
		if err != nil {
			return nil, nil, err
		}
		// A real UART paces itself
		return port, port.Close, nil
	}

	if c.Throttle {
		w = serial.NewThrottledWriter(ctx, w, serial.BytesPerSecond(c.Baud))
	}
	return w, closer, nil
}

// runPipeline acquires samples until ctx is done or c.Samples have been
// consumed, and returns the final status.
func runPipeline(ctx context.Context, c config.Config, out io.Writer) (core.Status, error) {
	core.SetDebugLevel(c.DebugLevel)
	core.SetDebugWriter(func(s string) { log.Println(s) })

	cc, err := c.Core()
	if err != nil {
		return core.Status{}, err
	}

	w, closeOutput, err := openOutput(ctx, c, out)
	if err != nil {
		return core.Status{}, err
	}
	defer closeOutput()
	sink := protocol.NewBufferedSink(w, c.TxBuffer)

	board := sim.NewBoard(c.Board())
	p, err := core.NewPipeline(cc, board.Hardware(), sink)
	if err != nil {
		return core.Status{}, err
	}

	if c.HTTPAddr != "" {
		srv := &http.Server{Addr: c.HTTPAddr, Handler: status.NewRouter(p)}
		go func() {
			log.Println("now listening for requests at ", c.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Println("status server:", err)
			}
		}()
		defer srv.Close()
	}

	start := time.Now()
	core.SetTime(0)
	core.TimerInit()
	if err := p.Start(); err != nil {
		return p.Status(), fmt.Errorf("failed to start acquisition: %w", err)
	}

	for ctx.Err() == nil {
		core.SetTime(uint32(time.Since(start) / time.Millisecond))
		if !p.Service() {
			time.Sleep(idleSleep)
		}
		if c.Samples > 0 && p.Status().Consumed >= c.Samples {
			break
		}
	}

	if err := p.Stop(); err != nil {
		p.Report(core.ErrTriggerFailed, core.SeverityError, err.Error())
	}
	if err := sink.Flush(); err != nil {
		p.Report(core.ErrOutputFailed, core.SeverityError, err.Error())
	}
	return p.Status(), nil
}
