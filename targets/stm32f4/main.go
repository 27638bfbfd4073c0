//go:build stm32f4

package main

import (
	"machine"
	"piksiboot/core"
	"piksiboot/protocol"
)

const (
	hostBaud = 1000000
	fpgaPin  = machine.PC12
)

func main() {
	// Only UART carries the binary link; debug output stays off
	core.SetDebugEnabled(false)

	link := newUARTLink(machine.UART1, hostBaud)
	link.endpoint.Transport().SetSender(protocol.DeviceSender)

	board := &core.Board{
		Flash:    NewSTM32F4FlashDriver(),
		Transfer: cortexTransfer{},
		FPGA:     newFPGAProgram(fpgaPin),
		LEDs:     newPinLEDs(machine.LED_GREEN, machine.LED_RED),
		ID:       uniqueID{},
		ExtFlash: newSPIFlash(),
	}

	m, err := core.NewMachine(core.DefaultBootConfig(), core.STM32F4MemoryMap(), board, link, core.SpinWait)
	if err != nil {
		// Nothing to boot into; show a solid red LED
		machine.LED_RED.Configure(machine.PinConfig{Mode: machine.PinOutput})
		machine.LED_RED.High()
		for {
		}
	}

	m.Run()

	// Transfer does not return on hardware
	for {
	}
}
