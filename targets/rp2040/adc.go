//go:build rp2040

package main

import (
	"device/rp"
	"machine"

	"adcpipe/core"
)

// ADCConverter drives the on-chip 12-bit SAR ADC. Conversions are started
// by the trigger ISR and land in the ADC FIFO, whose DREQ paces the DMA
// channel.
type ADCConverter struct {
	channel uint8
	pin     machine.ADC
}

// NewADCConverter selects an external input, 0-3 (GPIO26-GPIO29)
func NewADCConverter(channel uint8) *ADCConverter {
	pins := [...]machine.Pin{machine.ADC0, machine.ADC1, machine.ADC2, machine.ADC3}
	return &ADCConverter{
		channel: channel,
		pin:     machine.ADC{Pin: pins[channel&3]},
	}
}

func (c *ADCConverter) ConfigureContinuous(trigger core.TriggerSource) error {
	if _, ok := trigger.(*PIOTrigger); !ok {
		return core.NewFault(core.ErrInvalidParam, "converter.configure", nil)
	}

	machine.InitADC()
	if err := c.pin.Configure(machine.ADCConfig{}); err != nil {
		return core.NewFault(core.ErrAcquisitionFailed, "converter.configure", err)
	}

	rp.ADC.CS.ReplaceBits(
		uint32(c.channel)<<rp.ADC_CS_AINSEL_Pos,
		rp.ADC_CS_AINSEL_Msk,
		0,
	)

	// FIFO on, DREQ at one entry, full 12-bit results
	rp.ADC.FCS.Set(rp.ADC_FCS_EN | rp.ADC_FCS_DREQ_EN | 1<<rp.ADC_FCS_THRESH_Pos)
	c.drain()
	rp.ADC.FCS.SetBits(rp.ADC_FCS_OVER | rp.ADC_FCS_UNDER)

	convertOnEdge.Store(true)
	return nil
}

func (c *ADCConverter) Resolution() uint8 {
	return 12
}

func (c *ADCConverter) Stop() error {
	convertOnEdge.Store(false)
	// Let an in-flight conversion finish before dropping the FIFO
	for !rp.ADC.CS.HasBits(rp.ADC_CS_READY) {
	}
	rp.ADC.FCS.Set(0)
	c.drain()
	return nil
}

// Overrun reports and clears the sticky FIFO overflow flag. It is set when
// a result arrived before DMA emptied the previous one.
func (c *ADCConverter) Overrun() bool {
	if !rp.ADC.FCS.HasBits(rp.ADC_FCS_OVER) {
		return false
	}
	rp.ADC.FCS.SetBits(rp.ADC_FCS_OVER)
	return true
}

func (c *ADCConverter) drain() {
	for !rp.ADC.FCS.HasBits(rp.ADC_FCS_EMPTY) {
		rp.ADC.FIFO.Get()
	}
}
