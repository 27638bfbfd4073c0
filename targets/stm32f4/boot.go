//go:build stm32f4

package main

import (
	"device/arm"
	"machine"
	"piksiboot/core"
	"runtime/volatile"
	"unsafe"
)

const (
	scbVTOR = 0xE000ED08
	// 96-bit unique device ID
	uidBase = 0x1FFF7A10
)

var regVTOR = (*volatile.Register32)(unsafe.Pointer(uintptr(scbVTOR)))

// cortexTransfer hands the core to the application
type cortexTransfer struct{}

func (cortexTransfer) SetVectorTable(base uint32) {
	regVTOR.Set(base)
}

// Transfer loads MSP and branches to the reset handler. Does not return.
func (cortexTransfer) Transfer(stackPointer, entry uint32) {
	arm.AsmFull(`
		msr msp, {sp}
		bx {entry}
	`, map[string]interface{}{
		"sp":    stackPointer,
		"entry": entry,
	})
}

// uniqueID reads the factory programmed device identifier
type uniqueID struct{}

func (uniqueID) UniqueID() [12]byte {
	var id [12]byte
	for i := range id {
		id[i] = (*volatile.Register8)(unsafe.Pointer(uintptr(uidBase + i))).Get()
	}
	return id
}

// pinLEDs drives the two status LEDs
type pinLEDs struct {
	green machine.Pin
	red   machine.Pin
	state [2]bool
}

func newPinLEDs(green, red machine.Pin) *pinLEDs {
	green.Configure(machine.PinConfig{Mode: machine.PinOutput})
	red.Configure(machine.PinConfig{Mode: machine.PinOutput})
	green.Low()
	red.Low()
	return &pinLEDs{green: green, red: red}
}

func (l *pinLEDs) pin(led core.LED) machine.Pin {
	if led == core.LEDGreen {
		return l.green
	}
	return l.red
}

func (l *pinLEDs) Toggle(led core.LED) {
	l.state[led] = !l.state[led]
	l.pin(led).Set(l.state[led])
}

func (l *pinLEDs) Off(led core.LED) {
	l.state[led] = false
	l.pin(led).Low()
}

// fpgaProgram drives the FPGA's active-low PROGRAM_B line
type fpgaProgram struct {
	pin machine.Pin
}

func newFPGAProgram(pin machine.Pin) *fpgaProgram {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.High()
	return &fpgaProgram{pin: pin}
}

func (f *fpgaProgram) Hold() {
	f.pin.Low()
}

func (f *fpgaProgram) Release() {
	f.pin.High()
}
