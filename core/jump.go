package core

// Quiescer stops the message link for good
type Quiescer interface {
	Disable()
}

// Jumper hands control to the application. It runs at most once; the steps
// are ordered so that nothing of the bootloader is still live when the
// application's reset handler starts.
type Jumper struct {
	link  Quiescer
	board *Board
	mm    *MemoryMap
	fired bool
}

// NewJumper creates the jump sequencer
func NewJumper(link Quiescer, board *Board, mm *MemoryMap) *Jumper {
	return &Jumper{
		link:  link,
		board: board,
		mm:    mm,
	}
}

// Fired reports whether the jump sequence has started
func (j *Jumper) Fired() bool {
	return j.fired
}

// Jump runs the jump sequence. On hardware it does not return. Where the
// transfer is emulated it returns true the first time and false on any
// later call, which does nothing.
func (j *Jumper) Jump() bool {
	if j.fired {
		return false
	}
	j.fired = true

	// 1. No more inbound messages
	j.link.Disable()

	// 2. Release the SPI bus
	if j.board.ExtFlash != nil {
		j.board.ExtFlash.Deactivate()
	}

	// 3. Let the FPGA configure from its flash
	j.board.FPGA.Release()

	// Nothing of ours may run against the application's vector table
	state := disableInterrupts()
	defer restoreInterrupts(state)

	// 4. Vector table
	j.board.Transfer.SetVectorTable(j.mm.AppAddress & j.mm.VectorMask)

	// 5, 6. Stack pointer and reset vector
	sp := j.board.Flash.ReadWord(j.mm.AppAddress)
	entry := j.board.Flash.ReadWord(j.mm.AppAddress + 4)
	RecordEvent(EvtJump, sp, entry)
	DebugPrintln("[BOOT] jump sp=" + hex32(sp) + " entry=" + hex32(entry))
	j.board.Transfer.Transfer(sp, entry)

	return true
}
