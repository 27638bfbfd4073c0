package core

import "errors"

// ErrHardwareTimeout is returned by a bounded BusyWait when the hardware
// never reports completion
var ErrHardwareTimeout = errors.New("flash controller busy timeout")

// FlashDriver is the register-level interface to the internal flash
// controller. Implementations only poke registers; sequencing, busy waits
// and validation live in Guard and Engine.
type FlashDriver interface {
	// Busy reports the controller's busy flag
	Busy() bool

	// UnlockOptionBytes writes the option-byte key sequence
	UnlockOptionBytes()

	// SetWriteProtect stages the protection bit of one sector
	SetWriteProtect(sector uint8, protect bool)

	// CommitOptionBytes starts programming the staged option bytes
	CommitOptionBytes()

	// WriteProtected reads the current protection bit of one sector
	WriteProtected(sector uint8) bool

	// Unlock writes the main controller key sequence
	Unlock()

	// Lock re-locks the main controller
	Lock()

	// StartErase starts a sector erase
	StartErase(sector uint8, width ProgramWidth)

	// BeginProgram enables programming at the given width
	BeginProgram(width ProgramWidth)

	// ProgramByte writes one byte; BeginProgram must be active
	ProgramByte(address uint32, value byte)

	// EndOperation clears the erase/program enable bits
	EndOperation()

	// ReadWord reads a 32-bit word from the flash array
	ReadWord(address uint32) uint32
}

// BusyWait blocks until busy reports false. This hardware has no concurrent
// operation support, so every flash step is bracketed by a wait.
type BusyWait func(busy func() bool) error

// SpinWait polls forever. A controller that never clears its busy flag
// hangs the system.
func SpinWait(busy func() bool) error {
	for busy() {
	}
	return nil
}

// BoundedWait polls at most limit times before giving up with
// ErrHardwareTimeout
func BoundedWait(limit uint32) BusyWait {
	return func(busy func() bool) error {
		for i := uint32(0); i < limit; i++ {
			if !busy() {
				return nil
			}
		}
		if busy() {
			return ErrHardwareTimeout
		}
		return nil
	}
}
