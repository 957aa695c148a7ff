// Package config loads the host simulator settings from defaults and an
// optional YAML file.
package config

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	yml "gopkg.in/yaml.v2"

	"adcpipe/core"
	"adcpipe/host/sim"
)

// FileName is the default configuration file
const FileName = "adcpipe.yml"

// OutputStdout selects standard output as the byte sink
const OutputStdout = "stdout"

// Config holds every host setting
type Config struct {
	// acquisition
	TriggerHz      uint32 `koanf:"trigger_hz" yaml:"trigger_hz"`
	BaseClockHz    uint32 `koanf:"base_clock_hz" yaml:"base_clock_hz"`
	ReferenceMV    uint32 `koanf:"reference_mv" yaml:"reference_mv"`
	ResolutionBits uint8  `koanf:"resolution_bits" yaml:"resolution_bits"`

	// retention and faults
	RingCapacity    int    `koanf:"ring_capacity" yaml:"ring_capacity"`
	ErrorCapacity   int    `koanf:"error_capacity" yaml:"error_capacity"`
	HistoryPolicy   string `koanf:"history_policy" yaml:"history_policy"`
	ReportOverruns  bool   `koanf:"report_overruns" yaml:"report_overruns"`
	StatsIntervalMS uint32 `koanf:"stats_interval_ms" yaml:"stats_interval_ms"`
	DebugLevel      uint8  `koanf:"debug_level" yaml:"debug_level"`

	// output
	Output   string `koanf:"output" yaml:"output"`
	Baud     int    `koanf:"baud" yaml:"baud"`
	TxBuffer int    `koanf:"tx_buffer" yaml:"tx_buffer"`
	Throttle bool   `koanf:"throttle" yaml:"throttle"`

	// simulated input
	Signal   string `koanf:"signal" yaml:"signal"`
	SignalMV uint32 `koanf:"signal_mv" yaml:"signal_mv"`

	// HTTPAddr serves the status endpoint when not empty, e.g. ":8000"
	HTTPAddr string `koanf:"http_addr" yaml:"http_addr"`

	// Samples stops the run after this many samples; 0 runs until interrupted
	Samples uint32 `koanf:"samples" yaml:"samples"`
}

// Defaults matches the reference board: 100 Hz from a 16 MHz timer clock,
// 12-bit conversions against 3.3 V.
func Defaults() Config {
	def := core.DefaultConfig()
	return Config{
		TriggerHz:       def.TriggerHz,
		BaseClockHz:     16000000,
		ReferenceMV:     def.ReferenceMV,
		ResolutionBits:  def.ResolutionBits,
		RingCapacity:    def.RingCapacity,
		ErrorCapacity:   def.ErrorCapacity,
		HistoryPolicy:   def.Policy.String(),
		StatsIntervalMS: def.StatsIntervalMS,
		DebugLevel:      core.DebugInfo,
		Output:          OutputStdout,
		Baud:            115200,
		TxBuffer:        256,
		Signal:          string(sim.SignalSine),
		SignalMV:        3300,
	}
}

// New returns a koanf instance preloaded with Defaults
func New() *koanf.Koanf {
	k := koanf.New(".")
	k.Load(structs.Provider(Defaults(), "koanf"), nil)
	return k
}

// LoadFile merges a YAML file over the values in k. A missing file is not
// an error.
func LoadFile(k *koanf.Koanf, path string) error {
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if errors.Is(err, os.ErrNotExist) || strings.Contains(err.Error(), "no such") {
			return nil
		}
		return err
	}
	return nil
}

// Load returns Defaults overlaid with the file at path, validated.
func Load(path string) (Config, error) {
	k := New()
	if err := LoadFile(k, path); err != nil {
		return Config{}, err
	}
	return Unmarshal(k)
}

// Unmarshal decodes and validates the values held by k
func Unmarshal(k *koanf.Koanf) (Config, error) {
	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks ranges the pipeline and simulator cannot check later
func (c Config) Validate() error {
	if _, err := c.Core(); err != nil {
		return err
	}
	if c.BaseClockHz == 0 {
		return core.NewFault(core.ErrInvalidParam, "config.base_clock_hz", nil)
	}
	if _, _, err := core.SolveDividers(c.BaseClockHz, c.TriggerHz, sim.MaxPrescaler, sim.MaxReload); err != nil {
		return core.NewFault(core.ErrInvalidParam, "config.trigger_hz", err)
	}
	if c.DebugLevel > core.DebugVerbose {
		return core.NewFault(core.ErrInvalidParam, "config.debug_level", nil)
	}
	if c.Output == "" {
		return core.NewFault(core.ErrInvalidParam, "config.output", nil)
	}
	if c.Baud <= 0 {
		return core.NewFault(core.ErrInvalidParam, "config.baud", nil)
	}
	if c.TxBuffer <= 0 {
		return core.NewFault(core.ErrInvalidParam, "config.tx_buffer", nil)
	}
	if _, err := sim.ParseSignal(c.Signal); err != nil {
		return err
	}
	return nil
}

// Core maps the acquisition settings onto a pipeline configuration
func (c Config) Core() (core.Config, error) {
	policy, err := core.ParseRetainPolicy(c.HistoryPolicy)
	if err != nil {
		return core.Config{}, err
	}
	cc := core.Config{
		TriggerHz:       c.TriggerHz,
		ReferenceMV:     c.ReferenceMV,
		ResolutionBits:  c.ResolutionBits,
		RingCapacity:    c.RingCapacity,
		ErrorCapacity:   c.ErrorCapacity,
		Policy:          policy,
		ReportOverruns:  c.ReportOverruns,
		StatsIntervalMS: c.StatsIntervalMS,
	}
	if err := cc.Validate(); err != nil {
		return core.Config{}, err
	}
	return cc, nil
}

// Board maps the simulator settings onto a board configuration
func (c Config) Board() sim.BoardConfig {
	signal, _ := sim.ParseSignal(c.Signal)
	return sim.BoardConfig{
		BaseClockHz:    c.BaseClockHz,
		ResolutionBits: c.ResolutionBits,
		ReferenceMV:    c.ReferenceMV,
		Signal:         signal,
		SignalMV:       c.SignalMV,
	}
}

// Write encodes c as YAML
func (c Config) Write(w io.Writer) error {
	return yml.NewEncoder(w).Encode(c)
}
