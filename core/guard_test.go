package core

import "testing"

func newTestGuard(flash *fakeFlash) *Guard {
	mm := STM32F4MemoryMap()
	return NewGuard(flash, &mm, nil)
}

func TestGuardInvalidSector(t *testing.T) {
	flash := newFakeFlash()
	g := newTestGuard(flash)

	for sector := 12; sector < 256; sector++ {
		status, err := g.Lock(uint8(sector))
		if err != nil || status != StatusInvalidSector {
			t.Fatalf("Lock(%d) = %v, %v; expected invalid_sector", sector, status, err)
		}
		status, err = g.Unlock(uint8(sector))
		if err != nil || status != StatusInvalidSector {
			t.Fatalf("Unlock(%d) = %v, %v; expected invalid_sector", sector, status, err)
		}
	}

	if flash.mutations != 0 {
		t.Errorf("Invalid sectors caused %d hardware writes", flash.mutations)
	}
}

func TestGuardLockUnlock(t *testing.T) {
	flash := newFakeFlash()
	g := newTestGuard(flash)

	status, err := g.Lock(3)
	if err != nil || status != StatusOK {
		t.Fatalf("Lock(3) = %v, %v", status, err)
	}
	if !flash.WriteProtected(3) {
		t.Error("Sector 3 should be write protected in hardware")
	}
	if s, _ := g.Sector(3); !s.Locked {
		t.Error("Sector 3 bookkeeping should say locked")
	}

	// Only the requested sector changes
	for i := uint8(0); i < 12; i++ {
		if i != 3 && flash.WriteProtected(i) {
			t.Errorf("Sector %d changed unexpectedly", i)
		}
	}

	status, err = g.Unlock(3)
	if err != nil || status != StatusOK {
		t.Fatalf("Unlock(3) = %v, %v", status, err)
	}
	if flash.WriteProtected(3) {
		t.Error("Sector 3 should be writable again")
	}
}

func TestGuardLockIdempotent(t *testing.T) {
	flash := newFakeFlash()
	g := newTestGuard(flash)

	for i := 0; i < 2; i++ {
		status, err := g.Lock(7)
		if err != nil || status != StatusOK {
			t.Fatalf("Lock #%d = %v, %v", i+1, status, err)
		}
	}
	if !flash.WriteProtected(7) {
		t.Error("Locking twice must leave the sector locked")
	}
}

func TestGuardReadsInitialState(t *testing.T) {
	flash := newFakeFlash()
	flash.wrp = 1 << 0
	g := newTestGuard(flash)

	sectors := g.Sectors()
	if len(sectors) != 12 {
		t.Fatalf("Expected 12 sectors, got %d", len(sectors))
	}
	if !sectors[0].Locked || sectors[1].Locked {
		t.Errorf("Initial lock state not read from hardware: %+v", sectors[:2])
	}
	if sectors[4].Start != 0x08010000 || sectors[4].End != 0x0801FFFF {
		t.Errorf("Sector 4 range mismatch: %+v", sectors[4])
	}
}

func TestGuardBoundedWaitTimeout(t *testing.T) {
	flash := newFakeFlash()
	flash.stuck = true
	mm := STM32F4MemoryMap()
	g := NewGuard(flash, &mm, BoundedWait(100))

	_, err := g.Lock(2)
	if err != ErrHardwareTimeout {
		t.Fatalf("Expected ErrHardwareTimeout, got %v", err)
	}
	if s, _ := g.Sector(2); s.Locked {
		t.Error("Bookkeeping must not change when the hardware timed out")
	}
}

func TestBoundedWaitCompletes(t *testing.T) {
	polls := 0
	err := BoundedWait(10)(func() bool {
		polls++
		return polls < 5
	})
	if err != nil {
		t.Errorf("Expected completion, got %v", err)
	}
}
