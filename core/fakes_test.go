package core

import (
	"strings"
	"testing"
)

// callLog records hardware calls across fakes so tests can check ordering
type callLog struct {
	calls []string
}

func (l *callLog) add(call string) {
	l.calls = append(l.calls, call)
}

func (l *callLog) index(prefix string) int {
	for i, c := range l.calls {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

func (l *callLog) count(prefix string) int {
	n := 0
	for _, c := range l.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// fakeFlash emulates the controller closely enough to check sequencing
type fakeFlash struct {
	words     map[uint32]uint32
	programed map[uint32]byte
	erased    []uint8
	wrp       uint32 // bit set = write protected
	staged    uint32
	unlocked  bool
	optOpen   bool
	busyFor   int // polls each operation stays busy
	busyLeft  int
	stuck     bool
	mutations int
	reads     []uint32
}

func newFakeFlash() *fakeFlash {
	return &fakeFlash{
		words:     make(map[uint32]uint32),
		programed: make(map[uint32]byte),
		busyFor:   2,
	}
}

func (f *fakeFlash) startBusy() {
	f.busyLeft = f.busyFor
}

func (f *fakeFlash) Busy() bool {
	if f.stuck {
		return true
	}
	if f.busyLeft > 0 {
		f.busyLeft--
		return true
	}
	return false
}

func (f *fakeFlash) UnlockOptionBytes() {
	f.mutations++
	f.optOpen = true
	f.staged = f.wrp
}

func (f *fakeFlash) SetWriteProtect(sector uint8, protect bool) {
	f.mutations++
	if protect {
		f.staged |= 1 << sector
	} else {
		f.staged &^= 1 << sector
	}
}

func (f *fakeFlash) CommitOptionBytes() {
	f.mutations++
	if f.optOpen {
		f.wrp = f.staged
	}
	f.startBusy()
}

func (f *fakeFlash) WriteProtected(sector uint8) bool {
	return f.wrp&(1<<sector) != 0
}

func (f *fakeFlash) Unlock() {
	f.mutations++
	f.unlocked = true
}

func (f *fakeFlash) Lock() {
	f.mutations++
	f.unlocked = false
}

func (f *fakeFlash) StartErase(sector uint8, width ProgramWidth) {
	f.mutations++
	f.erased = append(f.erased, sector)
	f.startBusy()
}

func (f *fakeFlash) BeginProgram(width ProgramWidth) {
	f.mutations++
}

func (f *fakeFlash) ProgramByte(address uint32, value byte) {
	f.mutations++
	f.programed[address] = value
	f.startBusy()
}

func (f *fakeFlash) EndOperation() {
	f.mutations++
}

func (f *fakeFlash) ReadWord(address uint32) uint32 {
	f.reads = append(f.reads, address)
	return f.words[address]
}

type inbound struct {
	msgType uint16
	payload []byte
}

type sent struct {
	msgType uint16
	payload []byte
}

// fakeLink delivers scripted messages on given poll numbers
type fakeLink struct {
	t        *testing.T
	log      *callLog
	script   map[int][]inbound
	polls    int
	maxPolls int
	sent     []sent
	disabled bool
}

func newFakeLink(t *testing.T, log *callLog) *fakeLink {
	return &fakeLink{
		t:        t,
		log:      log,
		script:   make(map[int][]inbound),
		maxPolls: 1000000,
	}
}

// at queues a message for the poll with the given zero-based number
func (l *fakeLink) at(poll int, msgType uint16, payload []byte) {
	l.script[poll] = append(l.script[poll], inbound{msgType, payload})
}

func (l *fakeLink) Poll(dispatch func(msgType uint16, payload []byte)) {
	n := l.polls
	l.polls++
	if l.polls > l.maxPolls {
		l.t.Fatalf("link polled more than %d times without a jump", l.maxPolls)
	}
	if l.disabled {
		return
	}
	for _, msg := range l.script[n] {
		if l.disabled {
			return
		}
		dispatch(msg.msgType, msg.payload)
	}
}

func (l *fakeLink) Send(msgType uint16, payload []byte) error {
	if l.disabled {
		return nil
	}
	l.sent = append(l.sent, sent{msgType, append([]byte(nil), payload...)})
	return nil
}

func (l *fakeLink) Disable() {
	l.disabled = true
	l.log.add("link.disable")
}

func (l *fakeLink) sentOf(msgType uint16) []sent {
	var out []sent
	for _, s := range l.sent {
		if s.msgType == msgType {
			out = append(out, s)
		}
	}
	return out
}

type fakeFPGA struct{ log *callLog }

func (f *fakeFPGA) Hold()    { f.log.add("fpga.hold") }
func (f *fakeFPGA) Release() { f.log.add("fpga.release") }

type fakeLEDs struct {
	toggles map[LED]int
	offs    int
}

func (f *fakeLEDs) Toggle(led LED) { f.toggles[led]++ }
func (f *fakeLEDs) Off(led LED)    { f.offs++ }

type fakeTransfer struct {
	log   *callLog
	vtor  uint32
	sp    uint32
	entry uint32
	calls int
}

func (f *fakeTransfer) SetVectorTable(base uint32) {
	f.vtor = base
	f.log.add("transfer.vtor")
}

func (f *fakeTransfer) Transfer(stackPointer, entry uint32) {
	f.sp = stackPointer
	f.entry = entry
	f.calls++
	f.log.add("transfer.branch")
}

type fakeID struct{}

func (fakeID) UniqueID() [12]byte {
	return [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
}

type fakeExtFlash struct {
	log    *callLog
	mem    []byte
	active bool
}

func newFakeExtFlash(log *callLog, size int) *fakeExtFlash {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &fakeExtFlash{log: log, mem: mem}
}

func (f *fakeExtFlash) Activate() error {
	f.active = true
	f.log.add("ext.activate")
	return nil
}

func (f *fakeExtFlash) Deactivate() {
	f.active = false
	f.log.add("ext.deactivate")
}

func (f *fakeExtFlash) Size() uint32       { return uint32(len(f.mem)) }
func (f *fakeExtFlash) SectorSize() uint32 { return 0x100 }

func (f *fakeExtFlash) ReadAt(p []byte, addr uint32) error {
	copy(p, f.mem[addr:])
	return nil
}

func (f *fakeExtFlash) WriteAt(p []byte, addr uint32) error {
	for i, b := range p {
		f.mem[int(addr)+i] &= b
	}
	return nil
}

func (f *fakeExtFlash) EraseSector(sector uint32) error {
	start := sector * f.SectorSize()
	for i := start; i < start+f.SectorSize(); i++ {
		f.mem[i] = 0xFF
	}
	return nil
}

// rig is a fully wired machine over fakes
type rig struct {
	log      *callLog
	flash    *fakeFlash
	link     *fakeLink
	fpga     *fakeFPGA
	leds     *fakeLEDs
	transfer *fakeTransfer
	ext      *fakeExtFlash
	mm       MemoryMap
	machine  *Machine
}

func testConfig() BootConfig {
	return BootConfig{
		WaitIterations:  20,
		IndicatorPeriod: 4,
		HandshakeEvery:  2,
	}
}

func newRig(t *testing.T, cfg BootConfig, appValid bool) *rig {
	t.Helper()
	log := &callLog{}
	r := &rig{
		log:      log,
		flash:    newFakeFlash(),
		link:     newFakeLink(t, log),
		fpga:     &fakeFPGA{log: log},
		leds:     &fakeLEDs{toggles: make(map[LED]int)},
		transfer: &fakeTransfer{log: log},
		ext:      newFakeExtFlash(log, 0x1000),
		mm:       STM32F4MemoryMap(),
	}
	if appValid {
		r.flash.words[r.mm.AppAddress] = r.mm.StackAddress
	} else {
		r.flash.words[r.mm.AppAddress] = 0xFFFFFFFF
	}
	r.flash.words[r.mm.AppAddress+4] = 0x08004189

	board := &Board{
		Flash:    r.flash,
		Transfer: r.transfer,
		FPGA:     r.fpga,
		LEDs:     r.leds,
		ID:       fakeID{},
		ExtFlash: r.ext,
	}
	m, err := NewMachine(cfg, r.mm, board, r.link, nil)
	if err != nil {
		t.Fatalf("NewMachine failed: %v", err)
	}
	r.machine = m
	ClearEvents()
	return r
}
