package core

import "errors"

// ErrBoardIncomplete is returned when a required board driver is missing
var ErrBoardIncomplete = errors.New("board driver not configured")

// LED identifies a status indicator
type LED uint8

const (
	LEDGreen LED = iota
	LEDRed
)

// Indicator drives the status LEDs
type Indicator interface {
	Toggle(led LED)
	Off(led LED)
}

// FPGAConfig controls the FPGA's configuration line. Holding it keeps the
// FPGA in configuration reset and off the shared SPI bus; releasing it lets
// the FPGA configure itself from the off-chip flash.
type FPGAConfig interface {
	Hold()
	Release()
}

// BootTransfer is the privileged, instruction-set specific part of the jump.
// Transfer must load the main stack pointer and branch to entry; on real
// hardware it never returns.
type BootTransfer interface {
	SetVectorTable(base uint32)
	Transfer(stackPointer, entry uint32)
}

// UniqueIDSource reads the factory programmed device identifier
type UniqueIDSource interface {
	UniqueID() [12]byte
}

// ExternalFlash is the off-chip SPI NOR flash holding the FPGA bitstream
type ExternalFlash interface {
	// Activate brings up the SPI bus and the flash device
	Activate() error
	// Deactivate releases the bus so the FPGA can use it
	Deactivate()
	// Size returns the device capacity in bytes
	Size() uint32
	// SectorSize returns the erase unit in bytes
	SectorSize() uint32
	ReadAt(p []byte, addr uint32) error
	WriteAt(p []byte, addr uint32) error
	EraseSector(sector uint32) error
}

// Board gathers the hardware collaborators of one target.
// Flash, Transfer, FPGA, LEDs and ID are required; ExtFlash is optional.
type Board struct {
	Flash    FlashDriver
	Transfer BootTransfer
	FPGA     FPGAConfig
	LEDs     Indicator
	ID       UniqueIDSource
	ExtFlash ExternalFlash
}

// Validate checks that every required driver is present
func (b *Board) Validate() error {
	if b.Flash == nil || b.Transfer == nil || b.FPGA == nil || b.LEDs == nil || b.ID == nil {
		return ErrBoardIncomplete
	}
	return nil
}
