package core

import "piksiboot/protocol"

// BootState is the state of the boot decision machine
type BootState uint8

const (
	Probing BootState = iota
	WaitingForHost
	Bootloading
	Booting

	stateCount
)

func (s BootState) String() string {
	switch s {
	case Probing:
		return "probing"
	case WaitingForHost:
		return "waiting_for_host"
	case Bootloading:
		return "bootloading"
	case Booting:
		return "booting"
	default:
		return "state_" + utoa(uint32(s))
	}
}

// BootContext holds the facts the boot decision is made from. It belongs to
// the Machine and only its transition logic writes it.
type BootContext struct {
	HostWantsBootload bool
	CurrentAppValid   bool
}

// BootConfig sets the loop timing, counted in main loop iterations
type BootConfig struct {
	// WaitIterations bounds the WaitingForHost state
	WaitIterations uint32
	// IndicatorPeriod is how often LEDs toggle (and, while waiting, how
	// often a handshake is broadcast)
	IndicatorPeriod uint32
	// HandshakeEvery is how many indicator periods pass between handshakes
	// while bootloading
	HandshakeEvery uint32
}

// DefaultBootConfig returns the timing used on the board
func DefaultBootConfig() BootConfig {
	return BootConfig{
		WaitIterations:  200000,
		IndicatorPeriod: 3000,
		HandshakeEvery:  10,
	}
}

func (c *BootConfig) applyDefaults() {
	def := DefaultBootConfig()
	if c.IndicatorPeriod == 0 {
		c.IndicatorPeriod = def.IndicatorPeriod
	}
	if c.HandshakeEvery == 0 {
		c.HandshakeEvery = def.HandshakeEvery
	}
}

// Machine is the boot decision state machine. Run it from the main loop;
// it owns the BootContext, the state and the per-state handler tables.
type Machine struct {
	cfg    BootConfig
	mm     MemoryMap
	board  *Board
	disp   *Dispatcher
	guard  *Guard
	engine *Engine
	jumper *Jumper

	ctx    BootContext
	state  BootState
	tables [stateCount]*HandlerTable

	escalations   int
	handshakeSeen bool
	waited        uint32 // WaitingForHost iterations run
	iteration     uint32 // Bootloading iterations run
}

// NewMachine wires the machine to a board and a link. wait may be nil for
// the default SpinWait.
func NewMachine(cfg BootConfig, mm MemoryMap, board *Board, link Link, wait BusyWait) (*Machine, error) {
	if err := mm.Validate(); err != nil {
		return nil, err
	}
	if err := board.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	m := &Machine{
		cfg:   cfg,
		mm:    mm,
		board: board,
		disp:  NewDispatcher(link),
		state: Probing,
	}
	m.guard = NewGuard(board.Flash, &m.mm, wait)
	m.engine = NewEngine(m.guard, &m.mm)
	m.jumper = NewJumper(m.disp, board, &m.mm)
	m.buildTables()
	m.disp.Activate(m.tables[Probing])
	return m, nil
}

// buildTables fixes the capability set of every state up front. Flash
// access exists only in the Bootloading table.
func (m *Machine) buildTables() {
	for s := BootState(0); s < stateCount; s++ {
		m.tables[s] = NewHandlerTable(s)
	}

	// Probing never polls the link, so its table stays empty

	wait := m.tables[WaitingForHost]
	wait.Register(protocol.MsgHandshake, m.handleHandshake)
	wait.Register(protocol.MsgJumpToApp, m.handleJumpToApp)

	boot := m.tables[Bootloading]
	boot.Register(protocol.MsgHandshake, m.handleHandshake)
	boot.Register(protocol.MsgJumpToApp, m.handleJumpToApp)
	boot.Register(protocol.MsgLockSector, m.handleLockSector)
	boot.Register(protocol.MsgUnlockSector, m.handleUnlockSector)
	boot.Register(protocol.MsgEraseSector, m.handleEraseSector)
	boot.Register(protocol.MsgProgram, m.handleProgram)
	boot.Register(protocol.MsgReadUniqueID, m.handleReadUniqueID)
	if m.board.ExtFlash != nil {
		boot.Register(protocol.MsgExtFlashErase, m.handleExtFlashErase)
		boot.Register(protocol.MsgExtFlashProgram, m.handleExtFlashProgram)
		boot.Register(protocol.MsgExtFlashRead, m.handleExtFlashRead)
	}

	// Booting accepts nothing
}

// State returns the current state
func (m *Machine) State() BootState {
	return m.state
}

// Context returns a copy of the boot context
func (m *Machine) Context() BootContext {
	return m.ctx
}

// Dispatcher exposes the machine's dispatcher
func (m *Machine) Dispatcher() *Dispatcher {
	return m.disp
}

// Guard exposes the sector guard
func (m *Machine) Guard() *Guard {
	return m.guard
}

// Engine exposes the program/erase engine
func (m *Machine) Engine() *Engine {
	return m.engine
}

// Escalations returns how many times the Bootloading handlers were installed
func (m *Machine) Escalations() int {
	return m.escalations
}

// Jumped reports whether the jump sequence has run
func (m *Machine) Jumped() bool {
	return m.jumper.Fired()
}

// Run drives the machine until the application is started. On hardware
// the jump never returns, so neither does Run.
func (m *Machine) Run() {
	for !m.jumper.Fired() {
		m.Step()
	}
}

// Step performs one unit of work of the current state: the whole probe,
// one iteration of the host wait, one bootloading iteration or the jump.
func (m *Machine) Step() {
	switch m.state {
	case Probing:
		m.probe()
		m.transition(WaitingForHost)
	case WaitingForHost:
		if next, done := m.waitIteration(); done {
			m.transition(next)
		}
	case Bootloading:
		m.bootloadIteration()
	case Booting:
		m.jumper.Jump()
	}
}

// probe forces the FPGA to reconfigure after a warm reset and checks that
// the application starts with the expected stack pointer
func (m *Machine) probe() {
	m.board.FPGA.Hold()
	m.board.FPGA.Release()

	m.ctx.CurrentAppValid = m.board.Flash.ReadWord(m.mm.AppAddress) == m.mm.StackAddress
	DebugPrintln("[BOOT] app valid=" + boolString(m.ctx.CurrentAppValid))
}

// waitIteration runs one iteration of the bounded host wait and reports
// the next state once the wait is over. The host request is checked before
// the bound, so a handshake that lands in the last iteration still wins
// over a valid application.
func (m *Machine) waitIteration() (BootState, bool) {
	if m.waited < m.cfg.WaitIterations {
		if m.waited%m.cfg.IndicatorPeriod == 0 {
			m.board.LEDs.Toggle(LEDRed)
			m.broadcastHandshake()
		}
		m.waited++

		m.disp.PollAndDispatch()

		if m.jumper.Fired() {
			return WaitingForHost, true
		}
		if m.handshakeSeen {
			m.ctx.HostWantsBootload = true
			return Bootloading, true
		}
		if m.waited < m.cfg.WaitIterations {
			return WaitingForHost, false
		}
	}

	if m.ctx.CurrentAppValid {
		return Booting, true
	}
	// Never run an application that failed the probe
	return Bootloading, true
}

// bootloadIteration is one pass of the Bootloading loop. There is no
// timeout; only a jump command ends this state.
func (m *Machine) bootloadIteration() {
	m.disp.PollAndDispatch()

	if m.iteration%m.cfg.IndicatorPeriod == 0 {
		m.board.LEDs.Toggle(LEDGreen)
		m.board.LEDs.Toggle(LEDRed)
		// Covers a host that started after we entered this state
		if (m.iteration/m.cfg.IndicatorPeriod)%m.cfg.HandshakeEvery == 0 {
			m.broadcastHandshake()
		}
	}
	m.iteration++
}

// transition is the only place the state changes
func (m *Machine) transition(next BootState) {
	if next == m.state {
		return
	}
	prev := m.state
	m.state = next
	RecordEvent(EvtTransition, uint32(next), uint32(prev))
	DebugPrintln("[BOOT] " + prev.String() + " -> " + next.String())

	if prev == WaitingForHost {
		m.board.LEDs.Off(LEDGreen)
		m.board.LEDs.Off(LEDRed)
	}

	if next == Bootloading {
		m.escalate()
	}
	m.disp.Activate(m.tables[next])
}

// escalate prepares the hardware for flashing: the FPGA is held off the
// SPI bus and the off-chip flash is brought up
func (m *Machine) escalate() {
	m.escalations++
	m.board.FPGA.Hold()
	if m.board.ExtFlash != nil {
		if err := m.board.ExtFlash.Activate(); err != nil {
			DebugPrintln("[BOOT] external flash: " + err.Error())
		}
	}
}

func (m *Machine) broadcastHandshake() {
	if err := m.disp.Send(protocol.MsgHandshake, nil); err != nil {
		DebugPrintln("[BOOT] handshake: " + err.Error())
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
