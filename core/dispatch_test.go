package core

import (
	"errors"
	"testing"

	"piksiboot/protocol"
)

func TestHandlerTableRegister(t *testing.T) {
	table := NewHandlerTable(Bootloading)

	var first, second bool
	table.Register(protocol.MsgEraseSector, func([]byte) error { first = true; return nil })
	table.Register(protocol.MsgEraseSector, func([]byte) error { second = true; return nil })
	table.Register(protocol.MsgProgram, func([]byte) error { return nil })

	if table.Count() != 2 {
		t.Errorf("Expected 2 handlers, got %d", table.Count())
	}
	if table.State() != Bootloading {
		t.Errorf("Expected table owned by bootloading, got %v", table.State())
	}

	route, ok := table.Lookup(protocol.MsgEraseSector)
	if !ok {
		t.Fatal("Failed to retrieve registered handler")
	}
	if route.Name != "erase_sector" {
		t.Errorf("Expected route name 'erase_sector', got '%s'", route.Name)
	}
	route.Handler(nil)
	if !first || second {
		t.Error("Registering a type twice must keep the first handler")
	}

	types := table.Types()
	if len(types) != 2 || types[0] != protocol.MsgEraseSector || types[1] != protocol.MsgProgram {
		t.Errorf("Types not in registration order: %v", types)
	}
}

func TestDispatcherDropsUnknown(t *testing.T) {
	link := newFakeLink(t, &callLog{})
	d := NewDispatcher(link)

	// No active table yet
	if err := d.Dispatch(protocol.MsgHandshake, nil); err != nil {
		t.Errorf("Dispatch without a table returned %v", err)
	}

	table := NewHandlerTable(WaitingForHost)
	var calls int
	table.Register(protocol.MsgHandshake, func([]byte) error { calls++; return nil })
	d.Activate(table)

	if err := d.Dispatch(protocol.MsgEraseSector, []byte{5}); err != nil {
		t.Errorf("Unknown message returned %v", err)
	}
	if err := d.Dispatch(protocol.MsgHandshake, nil); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}

	if calls != 1 {
		t.Errorf("Expected handler called once, got %d", calls)
	}
	swaps, dropped, failures := d.Stats()
	if swaps != 1 || dropped != 2 || failures != 0 {
		t.Errorf("Stats = %d/%d/%d; expected 1/2/0", swaps, dropped, failures)
	}
}

func TestDispatcherActivateSwaps(t *testing.T) {
	d := NewDispatcher(newFakeLink(t, &callLog{}))
	a := NewHandlerTable(Probing)
	b := NewHandlerTable(WaitingForHost)

	d.Activate(a)
	d.Activate(a)
	d.Activate(b)

	if d.Active() != b {
		t.Error("Last activated table should be active")
	}
	if swaps, _, _ := d.Stats(); swaps != 2 {
		t.Errorf("Expected 2 swaps, got %d", swaps)
	}
}

func TestDispatcherHandlerError(t *testing.T) {
	ClearEvents()
	link := newFakeLink(t, &callLog{})
	link.at(0, protocol.MsgProgram, []byte{1, 2})
	link.at(0, protocol.MsgProgram, []byte{1, 2, 3, 4, 0})

	d := NewDispatcher(link)
	table := NewHandlerTable(Bootloading)
	table.Register(protocol.MsgProgram, func(payload []byte) error {
		_, _, err := decodeAddrData(payload)
		return err
	})
	d.Activate(table)

	d.PollAndDispatch()

	if _, _, failures := d.Stats(); failures != 1 {
		t.Errorf("Expected 1 handler failure, got %d", failures)
	}
	events := Events()
	if len(events) != 1 || events[0].Kind != EvtHandlerError || events[0].Arg != uint32(protocol.MsgProgram) {
		t.Errorf("Expected one handler error event, got %+v", events)
	}
}

func TestDecodeAddrData(t *testing.T) {
	testCases := []struct {
		name    string
		payload []byte
		addr    uint32
		data    []byte
		err     error
	}{
		{"empty", nil, 0, nil, ErrShortPayload},
		{"no length", []byte{0, 0x40, 0, 8}, 0, nil, ErrShortPayload},
		{"truncated data", []byte{0, 0x40, 0, 8, 3, 1, 2}, 0, nil, ErrShortPayload},
		{"zero length", []byte{0, 0x40, 0, 8, 0}, 0x08004000, []byte{}, nil},
		{"trailing bytes ignored", []byte{0x10, 0, 0, 0, 2, 0xAA, 0xBB, 0xCC}, 0x10, []byte{0xAA, 0xBB}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			addr, data, err := decodeAddrData(tc.payload)
			if !errors.Is(err, tc.err) {
				t.Fatalf("Expected error %v, got %v", tc.err, err)
			}
			if err != nil {
				return
			}
			if addr != tc.addr {
				t.Errorf("Expected addr 0x%08X, got 0x%08X", tc.addr, addr)
			}
			if string(data) != string(tc.data) {
				t.Errorf("Expected data %v, got %v", tc.data, data)
			}
		})
	}
}
