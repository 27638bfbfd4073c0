//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts so no bootloader ISR runs once the
// vector table points at the application
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts is only reached when the transfer returns
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
