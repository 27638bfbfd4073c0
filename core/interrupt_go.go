//go:build !tinygo

package core

// State is a placeholder for interrupt state on regular Go
type State uintptr

// interruptsMasked tracks the emulated mask so tests can observe it
var interruptsMasked bool

// disableInterrupts masks the emulated interrupts
func disableInterrupts() State {
	prev := State(0)
	if interruptsMasked {
		prev = 1
	}
	interruptsMasked = true
	return prev
}

// restoreInterrupts restores the emulated mask
func restoreInterrupts(state State) {
	interruptsMasked = state != 0
}
