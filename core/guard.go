package core

// Sector is one entry of the guard's sector table
type Sector struct {
	Index  uint8
	Start  uint32
	End    uint32
	Locked bool
}

// Guard tracks and changes the write protection of flash sectors through
// the option-byte registers
type Guard struct {
	drv     FlashDriver
	wait    BusyWait
	sectors []Sector
}

// NewGuard builds the sector table from mm and reads the current
// protection state from the hardware
func NewGuard(drv FlashDriver, mm *MemoryMap, wait BusyWait) *Guard {
	if wait == nil {
		wait = SpinWait
	}
	g := &Guard{
		drv:     drv,
		wait:    wait,
		sectors: make([]Sector, len(mm.Sectors)),
	}
	for i, r := range mm.Sectors {
		g.sectors[i] = Sector{
			Index:  uint8(i),
			Start:  r.Start,
			End:    r.End,
			Locked: drv.WriteProtected(uint8(i)),
		}
	}
	return g
}

// SectorCount returns the number of sectors under guard
func (g *Guard) SectorCount() int {
	return len(g.sectors)
}

// Valid reports whether sector names a real sector
func (g *Guard) Valid(sector uint8) bool {
	return int(sector) < len(g.sectors)
}

// Sector returns a copy of one sector entry
func (g *Guard) Sector(sector uint8) (Sector, bool) {
	if !g.Valid(sector) {
		return Sector{}, false
	}
	return g.sectors[sector], true
}

// Sectors returns a copy of the whole table
func (g *Guard) Sectors() []Sector {
	out := make([]Sector, len(g.sectors))
	copy(out, g.sectors)
	return out
}

// Lock write-protects a sector. Locking an already locked sector is a no-op
// that still returns StatusOK.
func (g *Guard) Lock(sector uint8) (Status, error) {
	return g.setProtection(sector, true)
}

// Unlock removes write protection from a sector
func (g *Guard) Unlock(sector uint8) (Status, error) {
	return g.setProtection(sector, false)
}

// setProtection must not touch the hardware for an invalid sector.
// On error the returned Status is meaningless.
func (g *Guard) setProtection(sector uint8, protect bool) (Status, error) {
	if !g.Valid(sector) {
		return StatusInvalidSector, nil
	}

	g.drv.UnlockOptionBytes()
	if err := g.wait(g.drv.Busy); err != nil {
		return StatusOK, err
	}
	g.drv.SetWriteProtect(sector, protect)
	g.drv.CommitOptionBytes()
	if err := g.wait(g.drv.Busy); err != nil {
		return StatusOK, err
	}

	g.sectors[sector].Locked = protect
	RecordEvent(protectEvent(protect), uint32(sector), g.sectors[sector].Start)
	return StatusOK, nil
}

func protectEvent(protect bool) uint8 {
	if protect {
		return EvtLock
	}
	return EvtUnlock
}
