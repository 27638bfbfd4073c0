package core

import (
	"errors"

	"piksiboot/protocol"
)

// ErrShortPayload is returned by handlers when a message is too short for
// its declared layout
var ErrShortPayload = errors.New("message payload too short")

// Handler handles one inbound message. The payload is only valid during
// the call.
type Handler func(payload []byte) error

// Route binds a message type to its handler
type Route struct {
	Type    uint16
	Name    string
	Handler Handler
}

// HandlerTable is the fixed set of messages accepted in one BootState
type HandlerTable struct {
	state  BootState
	routes map[uint16]*Route
	order  []uint16
}

// NewHandlerTable creates an empty table owned by state
func NewHandlerTable(state BootState) *HandlerTable {
	return &HandlerTable{
		state:  state,
		routes: make(map[uint16]*Route),
	}
}

// Register adds a handler. Registering a type twice keeps the first handler.
func (t *HandlerTable) Register(msgType uint16, handler Handler) {
	if _, exists := t.routes[msgType]; exists {
		return
	}
	t.routes[msgType] = &Route{
		Type:    msgType,
		Name:    protocol.MessageName(msgType),
		Handler: handler,
	}
	t.order = append(t.order, msgType)
}

// Lookup returns the route for msgType
func (t *HandlerTable) Lookup(msgType uint16) (*Route, bool) {
	r, ok := t.routes[msgType]
	return r, ok
}

// State returns the BootState owning this table
func (t *HandlerTable) State() BootState {
	return t.state
}

// Count returns the number of registered handlers
func (t *HandlerTable) Count() int {
	return len(t.order)
}

// Types returns the registered message types in registration order
func (t *HandlerTable) Types() []uint16 {
	out := make([]uint16, len(t.order))
	copy(out, t.order)
	return out
}

// Link is the message transport collaborator. It delivers typed messages
// without any delivery guarantee.
type Link interface {
	// Poll hands every buffered message to dispatch and returns; it never
	// waits for more input
	Poll(dispatch func(msgType uint16, payload []byte))

	// Send queues one message to the host
	Send(msgType uint16, payload []byte) error

	// Disable stops processing inbound messages
	Disable()
}

// Dispatcher routes messages from the link to the active handler table.
// Switching tables is a single assignment, so a state never sees a mix of
// its own and another state's handlers.
type Dispatcher struct {
	link     Link
	active   *HandlerTable
	swaps    uint32
	dropped  uint32
	failures uint32
}

// NewDispatcher creates a dispatcher with no active table
func NewDispatcher(link Link) *Dispatcher {
	return &Dispatcher{link: link}
}

// Activate makes t the active handler table
func (d *Dispatcher) Activate(t *HandlerTable) {
	if d.active == t {
		return
	}
	d.active = t
	d.swaps++
}

// Active returns the active handler table
func (d *Dispatcher) Active() *HandlerTable {
	return d.active
}

// PollAndDispatch runs the handlers of every buffered message, then returns
func (d *Dispatcher) PollAndDispatch() {
	d.link.Poll(d.dispatch)
}

func (d *Dispatcher) dispatch(msgType uint16, payload []byte) {
	if err := d.Dispatch(msgType, payload); err != nil {
		d.failures++
		RecordEvent(EvtHandlerError, uint32(msgType), uint32(len(payload)))
		DebugPrintln("[DISPATCH] " + protocol.MessageName(msgType) + ": " + err.Error())
	}
}

// Dispatch calls the active handler for msgType. Messages the active state
// does not accept are dropped silently.
func (d *Dispatcher) Dispatch(msgType uint16, payload []byte) error {
	if d.active == nil {
		d.dropped++
		return nil
	}
	route, ok := d.active.Lookup(msgType)
	if !ok {
		d.dropped++
		return nil
	}
	return route.Handler(payload)
}

// Send passes a message to the link
func (d *Dispatcher) Send(msgType uint16, payload []byte) error {
	return d.link.Send(msgType, payload)
}

// Disable quiesces the link
func (d *Dispatcher) Disable() {
	d.link.Disable()
}

// Stats returns table swaps, dropped messages and handler failures
func (d *Dispatcher) Stats() (swaps, dropped, failures uint32) {
	return d.swaps, d.dropped, d.failures
}
