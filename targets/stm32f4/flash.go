//go:build stm32f4

package main

import (
	"piksiboot/core"
	"runtime/volatile"
	"unsafe"
)

// STM32F4 embedded flash interface registers (RM0090 section 3.8)
const (
	flashBase    = 0x40023C00
	flashKEYR    = flashBase + 0x04
	flashOPTKEYR = flashBase + 0x08
	flashSR      = flashBase + 0x0C
	flashCR      = flashBase + 0x10
	flashOPTCR   = flashBase + 0x14

	flashKey1    = 0x45670123
	flashKey2    = 0xCDEF89AB
	flashOptKey1 = 0x08192A3B
	flashOptKey2 = 0x4C5D6E7F

	srBSY = 1 << 16
	// PGSERR, PGPERR, PGAERR, WRPERR, OPERR, EOP
	srClearMask = 0xF3

	crPG        = 1 << 0
	crSER       = 1 << 1
	crSNBShift  = 3
	crSNBMask   = 0xF << crSNBShift
	crPSIZEPos  = 8
	crPSIZEMask = 0x3 << crPSIZEPos
	crSTRT      = 1 << 16
	crLOCK      = 1 << 31

	optcrOPTLOCK  = 1 << 0
	optcrOPTSTRT  = 1 << 1
	optcrNWRPBase = 16
)

var (
	regKEYR    = (*volatile.Register32)(unsafe.Pointer(uintptr(flashKEYR)))
	regOPTKEYR = (*volatile.Register32)(unsafe.Pointer(uintptr(flashOPTKEYR)))
	regSR      = (*volatile.Register32)(unsafe.Pointer(uintptr(flashSR)))
	regCR      = (*volatile.Register32)(unsafe.Pointer(uintptr(flashCR)))
	regOPTCR   = (*volatile.Register32)(unsafe.Pointer(uintptr(flashOPTCR)))
)

// STM32F4FlashDriver implements core.FlashDriver on the flash interface
// registers
type STM32F4FlashDriver struct{}

// NewSTM32F4FlashDriver creates the flash driver
func NewSTM32F4FlashDriver() *STM32F4FlashDriver {
	return &STM32F4FlashDriver{}
}

func (d *STM32F4FlashDriver) Busy() bool {
	return regSR.HasBits(srBSY)
}

func (d *STM32F4FlashDriver) UnlockOptionBytes() {
	if regOPTCR.HasBits(optcrOPTLOCK) {
		regOPTKEYR.Set(flashOptKey1)
		regOPTKEYR.Set(flashOptKey2)
	}
}

// SetWriteProtect clears the nWRP bit to protect a sector
func (d *STM32F4FlashDriver) SetWriteProtect(sector uint8, protect bool) {
	bit := uint32(1) << (optcrNWRPBase + uint32(sector))
	if protect {
		regOPTCR.ClearBits(bit)
	} else {
		regOPTCR.SetBits(bit)
	}
}

func (d *STM32F4FlashDriver) CommitOptionBytes() {
	regOPTCR.SetBits(optcrOPTSTRT)
}

func (d *STM32F4FlashDriver) WriteProtected(sector uint8) bool {
	return !regOPTCR.HasBits(uint32(1) << (optcrNWRPBase + uint32(sector)))
}

func (d *STM32F4FlashDriver) Unlock() {
	if regCR.HasBits(crLOCK) {
		regKEYR.Set(flashKey1)
		regKEYR.Set(flashKey2)
	}
	regSR.Set(srClearMask)
}

func (d *STM32F4FlashDriver) Lock() {
	regCR.SetBits(crLOCK)
}

func (d *STM32F4FlashDriver) StartErase(sector uint8, width core.ProgramWidth) {
	regCR.ReplaceBits(uint32(width), 0x3, crPSIZEPos)
	regCR.ReplaceBits(uint32(sector), 0xF, crSNBShift)
	regCR.SetBits(crSER)
	regCR.SetBits(crSTRT)
}

func (d *STM32F4FlashDriver) BeginProgram(width core.ProgramWidth) {
	regCR.ReplaceBits(uint32(width), 0x3, crPSIZEPos)
	regCR.SetBits(crPG)
}

func (d *STM32F4FlashDriver) ProgramByte(address uint32, value byte) {
	(*volatile.Register8)(unsafe.Pointer(uintptr(address))).Set(value)
}

func (d *STM32F4FlashDriver) EndOperation() {
	regCR.ClearBits(crPG | crSER | crSNBMask | crPSIZEMask)
}

func (d *STM32F4FlashDriver) ReadWord(address uint32) uint32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(address))).Get()
}
