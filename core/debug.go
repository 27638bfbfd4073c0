package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// BootEvent captures a flash or state change for post-mortem analysis
type BootEvent struct {
	Kind  uint8  // Event type code
	Seq   uint32 // Monotonic sequence number
	Arg   uint32 // Sector, length or state, depending on Kind
	Value uint32 // Address or previous state
}

// Event type codes
const (
	EvtTransition   = 1 // Arg = new state, Value = old state
	EvtLock         = 2 // Arg = sector, Value = sector start
	EvtUnlock       = 3 // Arg = sector, Value = sector start
	EvtErase        = 4 // Arg = sector, Value = sector start
	EvtProgram      = 5 // Arg = length, Value = address
	EvtJump         = 6 // Arg = stack pointer, Value = entry point
	EvtHandlerError = 7 // Arg = message type
)

const (
	EventRingSize = 32 // Keep the last 32 events
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	eventRing     [EventRingSize]BootEvent
	eventRingHead uint8
	eventSeq      uint32
)

// SetDebugWriter sets the platform-specific debug output function.
// Targets whose only UART carries the binary link leave this unset.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordEvent appends an event to the ring buffer. Always on, no allocation.
func RecordEvent(kind uint8, arg, value uint32) {
	idx := eventRingHead
	eventSeq++
	eventRing[idx] = BootEvent{
		Kind:  kind,
		Seq:   eventSeq,
		Arg:   arg,
		Value: value,
	}
	eventRingHead = (idx + 1) % EventRingSize
}

// Events returns the recorded events, oldest first
func Events() []BootEvent {
	out := make([]BootEvent, 0, EventRingSize)
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.Kind == 0 {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// EventName returns a printable name for an event kind
func EventName(kind uint8) string {
	switch kind {
	case EvtTransition:
		return "TRANSITION"
	case EvtLock:
		return "LOCK"
	case EvtUnlock:
		return "UNLOCK"
	case EvtErase:
		return "ERASE"
	case EvtProgram:
		return "PROGRAM"
	case EvtJump:
		return "JUMP"
	case EvtHandlerError:
		return "HANDLER_ERROR"
	default:
		return "UNKNOWN"
	}
}

// DumpEvents writes the event ring through the debug writer, regardless of
// whether debug output is enabled
func DumpEvents() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[EVENTS] === Boot Event Dump ===")
	for _, evt := range Events() {
		debugPrintln("[EVENTS] #" + utoa(evt.Seq) + " " + EventName(evt.Kind) +
			" arg=" + utoa(evt.Arg) +
			" value=" + hex32(evt.Value))
	}
	debugPrintln("[EVENTS] === End Dump ===")
}

// ClearEvents clears the event ring
func ClearEvents() {
	for i := range eventRing {
		eventRing[i] = BootEvent{}
	}
	eventRingHead = 0
	eventSeq = 0
}
