package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/knadh/koanf"

	"adcpipe/host/config"
	"adcpipe/protocol"
)

var (
	configFile = flag.String("config", config.FileName, "Configuration file")
	k          *koanf.Koanf
)

func root() {
	str := `adcpipe-host runs the sample acquisition pipeline against simulated
hardware and writes one line per sample to stdout or a serial port.

Usage:
	adcpipe-host [-config file] <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `adcpipe-host reads its settings from a YAML file (adcpipe.yml unless
-config says otherwise). Missing keys keep their defaults; "mkconf" writes the
full set to the file.

Keys:
	trigger_hz         conversions per second; must divide base_clock_hz exactly
	base_clock_hz      simulated timer clock
	reference_mv       converter reference voltage in millivolts
	resolution_bits    converter width, 1..16
	ring_capacity      retained samples
	error_capacity     retained fault records
	history_policy     overwrite, reject or none
	report_overruns    record a fault when a sample is overwritten before use
	stats_interval_ms  period of the statistics line, 0 disables
	debug_level        0 off, 1 errors, 2 info, 3 verbose
	output             "stdout" or a serial device such as /dev/ttyUSB0
	baud               serial rate; also the pacing rate when throttle is set
	tx_buffer          output queue size in bytes
	throttle           pace stdout like a UART at baud
	signal             sine, ramp or constant
	signal_mv          peak of the simulated input
	http_addr          serve /status, /errors and /history, e.g. ":8000"
	samples            stop after this many samples, 0 runs until interrupted

The process exits with status 1 if a critical fault was recorded.`
	fmt.Println(str)
}

func mkconf() {
	c, err := config.Unmarshal(k)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(*configFile)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := c.Write(f); err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c, err := config.Unmarshal(k)
	if err != nil {
		log.Fatal(err)
	}
	if err := c.Write(os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("adcpipe-host version %v\n", protocol.Version)
}

func run() {
	c, err := config.Unmarshal(k)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, err := runPipeline(ctx, c, nil)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("consumed %d samples, dropped %d, %d errors", st.Consumed, st.Dropped, st.Errors)
	if st.Critical {
		log.Printf("critical: %s", st.LastError.Message)
		os.Exit(1)
	}
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		root()
		return
	}

	k = config.New()
	if err := config.LoadFile(k, *configFile); err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	switch strings.ToLower(flag.Arg(0)) {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "run":
		run()
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
}
