package sim

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"piksiboot/core"
)

// LEDs counts toggles and tracks the lit state of the status LEDs
type LEDs struct {
	mu      sync.Mutex
	lit     [2]bool
	toggles [2]int
}

func (l *LEDs) Toggle(led core.LED) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lit[led] = !l.lit[led]
	l.toggles[led]++
}

func (l *LEDs) Off(led core.LED) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lit[led] = false
}

// State returns whether led is lit and how often it toggled
func (l *LEDs) State(led core.LED) (lit bool, toggles int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lit[led], l.toggles[led]
}

// FPGA tracks the configuration line
type FPGA struct {
	mu       sync.Mutex
	held     bool
	releases int
	log      logrus.FieldLogger
}

func (f *FPGA) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = true
	f.log.Debug("fpga held in configuration reset")
}

func (f *FPGA) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
	f.releases++
	f.log.Debug("fpga released")
}

// Held reports whether the FPGA is held in reset
func (f *FPGA) Held() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held
}

// ErrExtFlashInactive is returned by ExtFlash accesses while the bus is
// released to the FPGA
var ErrExtFlashInactive = errors.New("external flash not active")

// ExtFlash is a RAM backed SPI NOR flash
type ExtFlash struct {
	mu         sync.Mutex
	mem        []byte
	sectorSize uint32
	active     bool
}

// NewExtFlash creates an erased device of size bytes
func NewExtFlash(size, sectorSize uint32) *ExtFlash {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &ExtFlash{mem: mem, sectorSize: sectorSize}
}

func (e *ExtFlash) Activate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = true
	return nil
}

func (e *ExtFlash) Deactivate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = false
}

// Active reports whether the bootloader owns the bus
func (e *ExtFlash) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *ExtFlash) Size() uint32       { return uint32(len(e.mem)) }
func (e *ExtFlash) SectorSize() uint32 { return e.sectorSize }

func (e *ExtFlash) ReadAt(p []byte, addr uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return ErrExtFlashInactive
	}
	copy(p, e.mem[addr:])
	return nil
}

func (e *ExtFlash) WriteAt(p []byte, addr uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return ErrExtFlashInactive
	}
	for i, b := range p {
		e.mem[addr+uint32(i)] &= b
	}
	return nil
}

func (e *ExtFlash) EraseSector(sector uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return ErrExtFlashInactive
	}
	start := sector * e.sectorSize
	for i := start; i < start+e.sectorSize; i++ {
		e.mem[i] = 0xFF
	}
	return nil
}

// UniqueID is a fixed device identifier
type UniqueID [12]byte

func (u UniqueID) UniqueID() [12]byte { return u }

// JumpRecord is what the application would have been started with
type JumpRecord struct {
	VectorTable  uint32
	StackPointer uint32
	Entry        uint32
}

// Transfer records the jump instead of performing it. Done is closed when
// the application would start.
type Transfer struct {
	mu     sync.Mutex
	record JumpRecord
	calls  int
	done   chan struct{}
	log    logrus.FieldLogger
}

func newTransfer(log logrus.FieldLogger) *Transfer {
	return &Transfer{done: make(chan struct{}), log: log}
}

func (t *Transfer) SetVectorTable(base uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record.VectorTable = base
}

func (t *Transfer) Transfer(stackPointer, entry uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record.StackPointer = stackPointer
	t.record.Entry = entry
	t.calls++
	if t.calls == 1 {
		close(t.done)
	}
	t.log.WithFields(logrus.Fields{
		"vtor":  hexField(t.record.VectorTable),
		"sp":    hexField(stackPointer),
		"entry": hexField(entry),
	}).Info("application started")
}

// Done is closed once the jump has happened
func (t *Transfer) Done() <-chan struct{} {
	return t.done
}

// Record returns the jump parameters and how many times the jump ran
func (t *Transfer) Record() (JumpRecord, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record, t.calls
}
