package core

// Engine erases and programs the internal code flash. Every request is
// validated before the first register write, so a rejected request leaves
// flash untouched.
type Engine struct {
	drv   FlashDriver
	wait  BusyWait
	guard *Guard
	mm    *MemoryMap
}

// NewEngine creates an engine sharing the guard's driver and wait primitive
func NewEngine(guard *Guard, mm *MemoryMap) *Engine {
	return &Engine{
		drv:   guard.drv,
		wait:  guard.wait,
		guard: guard,
		mm:    mm,
	}
}

// EraseSector erases one sector at the map's erase width. It returns after
// the hardware reports completion.
func (e *Engine) EraseSector(sector uint8) (Status, error) {
	if !e.guard.Valid(sector) {
		return StatusInvalidSector, nil
	}

	e.drv.Unlock()
	defer e.drv.Lock()

	if err := e.wait(e.drv.Busy); err != nil {
		return StatusOK, err
	}
	e.drv.StartErase(sector, e.mm.EraseWidth)
	err := e.wait(e.drv.Busy)
	e.drv.EndOperation()
	if err != nil {
		return StatusOK, err
	}

	RecordEvent(EvtErase, uint32(sector), e.mm.Sectors[sector].Start)
	return StatusOK, nil
}

// CheckRange validates a program request without touching the hardware
func (e *Engine) CheckRange(address uint32, length int) Status {
	if address < e.mm.MinAddr {
		return StatusInvalidAddress
	}
	if address > e.mm.MaxAddr {
		return StatusInvalidAddress
	}
	// 64-bit so address+length cannot wrap
	if int64(address)+int64(length)-1 > int64(e.mm.MaxAddr) {
		return StatusInvalidRange
	}
	return StatusOK
}

// Program writes data starting at address.
//
// The target bytes must already be erased. Flash programming can only clear
// bits, so writing over programmed data leaves the AND of old and new
// contents; this is not detected or reported.
func (e *Engine) Program(address uint32, data []byte) (Status, error) {
	if status := e.CheckRange(address, len(data)); status != StatusOK {
		return status, nil
	}

	e.drv.Unlock()
	defer e.drv.Lock()

	if err := e.wait(e.drv.Busy); err != nil {
		return StatusOK, err
	}
	e.drv.BeginProgram(WidthX8)
	for i, b := range data {
		e.drv.ProgramByte(address+uint32(i), b)
		if err := e.wait(e.drv.Busy); err != nil {
			e.drv.EndOperation()
			return StatusOK, err
		}
	}
	e.drv.EndOperation()

	RecordEvent(EvtProgram, uint32(len(data)), address)
	return StatusOK, nil
}

// ReadWord reads a word of the flash array
func (e *Engine) ReadWord(address uint32) uint32 {
	return e.drv.ReadWord(address)
}
