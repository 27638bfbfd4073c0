// Package sim emulates the bootloader's board on a host: internal flash
// with option-byte write protection, LEDs, the FPGA line, the off-chip flash
// and the jump. It runs the same core.Machine as the firmware.
package sim

import (
	"encoding/binary"
	"sync"

	"piksiboot/core"
)

// Flash emulates the STM32F4 flash interface. Erased bytes read 0xFF and
// programming can only clear bits, as on the real array.
type Flash struct {
	mu sync.Mutex

	mm   core.MemoryMap
	base uint32
	mem  []byte

	crLocked  bool
	optLocked bool
	program   bool

	// One write-protect flag per sector; staged holds OPTCR before OPTSTRT
	wrp    []bool
	staged []bool

	busyLatency int
	busyLeft    int

	wrpErrors  int
	seqErrors  int
	operations int
}

// NewFlash creates an erased flash covering every sector of mm
func NewFlash(mm core.MemoryMap) *Flash {
	first := mm.Sectors[0].Start
	last := mm.Sectors[len(mm.Sectors)-1].End
	mem := make([]byte, last-first+1)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &Flash{
		mm:        mm,
		base:      first,
		mem:       mem,
		crLocked:  true,
		optLocked: true,
		wrp:       make([]bool, len(mm.Sectors)),
		staged:    make([]bool, len(mm.Sectors)),
	}
}

// SetBusyLatency sets how many Busy polls each operation takes
func (f *Flash) SetBusyLatency(polls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busyLatency = polls
}

func (f *Flash) startBusy() {
	f.operations++
	f.busyLeft = f.busyLatency
}

func (f *Flash) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busyLeft > 0 {
		f.busyLeft--
		return true
	}
	return false
}

func (f *Flash) UnlockOptionBytes() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optLocked = false
	copy(f.staged, f.wrp)
}

func (f *Flash) SetWriteProtect(sector uint8, protect bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.optLocked || int(sector) >= len(f.staged) {
		f.seqErrors++
		return
	}
	f.staged[sector] = protect
}

func (f *Flash) CommitOptionBytes() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.optLocked {
		f.seqErrors++
		return
	}
	copy(f.wrp, f.staged)
	f.optLocked = true
	f.startBusy()
}

func (f *Flash) WriteProtected(sector uint8) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.protected(int(sector))
}

func (f *Flash) protected(sector int) bool {
	return sector < len(f.wrp) && f.wrp[sector]
}

func (f *Flash) Unlock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.crLocked = false
}

func (f *Flash) Lock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.crLocked = true
	f.program = false
}

func (f *Flash) StartErase(sector uint8, width core.ProgramWidth) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.crLocked || int(sector) >= len(f.mm.Sectors) {
		f.seqErrors++
		return
	}
	if f.protected(int(sector)) {
		f.wrpErrors++
		return
	}
	s := f.mm.Sectors[sector]
	for i := s.Start - f.base; i <= s.End-f.base; i++ {
		f.mem[i] = 0xFF
	}
	f.startBusy()
}

func (f *Flash) BeginProgram(width core.ProgramWidth) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.crLocked {
		f.seqErrors++
		return
	}
	f.program = true
}

func (f *Flash) ProgramByte(address uint32, value byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.crLocked || !f.program || !f.contains(address) {
		f.seqErrors++
		return
	}
	if sector, ok := f.mm.SectorOf(address); ok && f.protected(int(sector)) {
		f.wrpErrors++
		return
	}
	f.mem[address-f.base] &= value
	f.startBusy()
}

func (f *Flash) EndOperation() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.program = false
}

// ReadWord reads little-endian; addresses outside the array read as erased
func (f *Flash) ReadWord(address uint32) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.contains(address) || !f.contains(address+3) {
		return 0xFFFFFFFF
	}
	off := address - f.base
	return binary.LittleEndian.Uint32(f.mem[off : off+4])
}

func (f *Flash) contains(address uint32) bool {
	return address >= f.base && address-f.base < uint32(len(f.mem))
}

// Read copies flash contents starting at address into p
func (f *Flash) Read(p []byte, address uint32) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.contains(address) {
		return 0
	}
	return copy(p, f.mem[address-f.base:])
}

// Load writes data directly into the array, bypassing the controller
func (f *Flash) Load(address uint32, data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(data) == 0 {
		return true
	}
	if !f.contains(address) || !f.contains(address+uint32(len(data))-1) {
		return false
	}
	copy(f.mem[address-f.base:], data)
	return true
}

// Errors returns writes refused by write protection and writes issued out
// of sequence (controller locked, wrong mode, outside the array)
func (f *Flash) Errors() (wrp, sequence int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wrpErrors, f.seqErrors
}

// Operations returns how many erase, program and commit operations ran
func (f *Flash) Operations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.operations
}
