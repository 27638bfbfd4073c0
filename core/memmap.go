package core

import "errors"

// ErrInvalidMemoryMap is returned by MemoryMap.Validate
var ErrInvalidMemoryMap = errors.New("invalid memory map")

// ProgramWidth selects the parallelism of erase/program operations.
// Wider widths need a higher supply voltage on STM32F4 parts.
type ProgramWidth uint8

const (
	WidthX8 ProgramWidth = iota
	WidthX16
	WidthX32
	WidthX64
)

// SectorRange is an inclusive address range of one flash sector
type SectorRange struct {
	Start uint32
	End   uint32
}

// Contains reports whether addr falls inside the sector
func (r SectorRange) Contains(addr uint32) bool {
	return addr >= r.Start && addr <= r.End
}

// MemoryMap describes the internal flash layout of a target.
// It is fixed at build time; nothing modifies it at runtime.
type MemoryMap struct {
	// AppAddress is where the application's vector table starts
	AppAddress uint32
	// StackAddress is the initial stack pointer a valid application carries
	// in its first vector table word
	StackAddress uint32
	// MinAddr and MaxAddr bound the range PROGRAM may touch
	MinAddr uint32
	MaxAddr uint32
	// Sectors partitions the flash, index order
	Sectors []SectorRange
	// EraseWidth is the widest width the board's supply allows
	EraseWidth ProgramWidth
	// VectorMask limits the vector table base to the addressable region
	VectorMask uint32
}

// STM32F4MemoryMap returns the layout of the 1 MiB STM32F405 on the board.
// Sector 0 holds this bootloader; the application starts at sector 1.
func STM32F4MemoryMap() MemoryMap {
	return MemoryMap{
		AppAddress:   0x08004000,
		StackAddress: 0x10010000, // top of 64K CCM RAM
		MinAddr:      0x08004000,
		MaxAddr:      0x080FFFFF,
		Sectors: []SectorRange{
			{0x08000000, 0x08003FFF}, // 16K
			{0x08004000, 0x08007FFF}, // 16K
			{0x08008000, 0x0800BFFF}, // 16K
			{0x0800C000, 0x0800FFFF}, // 16K
			{0x08010000, 0x0801FFFF}, // 64K
			{0x08020000, 0x0803FFFF}, // 128K
			{0x08040000, 0x0805FFFF},
			{0x08060000, 0x0807FFFF},
			{0x08080000, 0x0809FFFF},
			{0x080A0000, 0x080BFFFF},
			{0x080C0000, 0x080DFFFF},
			{0x080E0000, 0x080FFFFF},
		},
		EraseWidth: WidthX32,
		VectorMask: 0x1FFFFF00,
	}
}

// SectorCount returns the number of sectors in the map
func (m *MemoryMap) SectorCount() int {
	return len(m.Sectors)
}

// SectorOf returns the index of the sector holding addr
func (m *MemoryMap) SectorOf(addr uint32) (uint8, bool) {
	for i, s := range m.Sectors {
		if s.Contains(addr) {
			return uint8(i), true
		}
	}
	return 0, false
}

// Validate checks that the sector table is an ordered, non-overlapping
// partition and that the program window and application fit inside it
func (m *MemoryMap) Validate() error {
	if len(m.Sectors) == 0 || len(m.Sectors) > 256 {
		return ErrInvalidMemoryMap
	}
	for i, s := range m.Sectors {
		if s.End < s.Start {
			return ErrInvalidMemoryMap
		}
		if i > 0 && s.Start <= m.Sectors[i-1].End {
			return ErrInvalidMemoryMap
		}
	}
	if m.MinAddr > m.MaxAddr {
		return ErrInvalidMemoryMap
	}
	if _, ok := m.SectorOf(m.MinAddr); !ok {
		return ErrInvalidMemoryMap
	}
	if _, ok := m.SectorOf(m.MaxAddr); !ok {
		return ErrInvalidMemoryMap
	}
	// Need both the stack word and the reset vector
	if _, ok := m.SectorOf(m.AppAddress + 4); !ok {
		return ErrInvalidMemoryMap
	}
	return nil
}
