//go:build stm32f4

package main

import (
	"machine"

	"tinygo.org/x/drivers/flash"
)

// m25Identifier adds the Micron M25P16 fitted on the board to the driver's
// known devices
var m25Identifier = flash.DeviceIdentifierFunc(func(id flash.JedecID) flash.Attrs {
	if id.Uint32() == 0x202015 {
		return flash.Attrs{
			TotalSize:        1 << 21, // 2 MiB
			JedecID:          id,
			MaxClockSpeedMHz: 50,
			SupportsFastRead: true,
			SingleStatusByte: true,
		}
	}
	return flash.DefaultDeviceIdentifier(id)
})

// spiFlash is the FPGA configuration flash on SPI1. It shares the bus with
// the FPGA, so it is only configured once the FPGA is held in reset.
type spiFlash struct {
	dev        *flash.Device
	cs         machine.Pin
	configured bool
}

func newSPIFlash() *spiFlash {
	cs := machine.PA4
	return &spiFlash{
		dev: flash.NewSPI(machine.SPI1, machine.SPI1_SDO_PIN, machine.SPI1_SDI_PIN, machine.SPI1_SCK_PIN, cs),
		cs:  cs,
	}
}

func (f *spiFlash) Activate() error {
	if err := f.dev.Configure(&flash.DeviceConfig{Identifier: m25Identifier}); err != nil {
		return err
	}
	f.configured = true
	return nil
}

// Deactivate floats the bus pins so the FPGA can drive them
func (f *spiFlash) Deactivate() {
	if !f.configured {
		return
	}
	f.configured = false
	for _, pin := range []machine.Pin{machine.SPI1_SCK_PIN, machine.SPI1_SDO_PIN, machine.SPI1_SDI_PIN, f.cs} {
		pin.Configure(machine.PinConfig{Mode: machine.PinInput})
	}
}

func (f *spiFlash) Size() uint32 {
	return uint32(f.dev.Size())
}

// SectorSize is the M25P erase unit, which the driver calls a block
func (f *spiFlash) SectorSize() uint32 {
	return flash.BlockSize
}

func (f *spiFlash) ReadAt(p []byte, addr uint32) error {
	_, err := f.dev.ReadAt(p, int64(addr))
	return err
}

func (f *spiFlash) WriteAt(p []byte, addr uint32) error {
	_, err := f.dev.WriteAt(p, int64(addr))
	return err
}

func (f *spiFlash) EraseSector(sector uint32) error {
	return f.dev.EraseBlock(sector)
}
