package protocol

import (
	"bytes"
	"testing"
)

// encode builds a frame the way a host would
func encode(t *testing.T, msgType uint16, sender uint16, payload []byte) []byte {
	t.Helper()
	var out OutputBuffer
	tr := NewTransport(&out, nil)
	tr.SetSender(sender)
	if err := tr.EncodeFrame(msgType, payload); err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	return append([]byte(nil), out.Bytes()...)
}

func inputOf(data []byte) *InputBuffer {
	input := &InputBuffer{}
	input.Write(data)
	return input
}

func TestEncodeFrameLayout(t *testing.T) {
	frame := encode(t, MsgLockSector, 0x1234, []byte{7})

	expectedHeader := []byte{Preamble, 0xE3, 0x00, 0x34, 0x12, 0x01, 0x07}
	if !bytes.Equal(frame[:7], expectedHeader) {
		t.Errorf("Header mismatch: got % X, expected % X", frame[:7], expectedHeader)
	}
	if len(frame) != FrameMin+1 {
		t.Errorf("Expected frame length %d, got %d", FrameMin+1, len(frame))
	}

	msg, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if msg.Type != MsgLockSector || msg.Sender != 0x1234 || !bytes.Equal(msg.Payload, []byte{7}) {
		t.Errorf("Decoded message mismatch: %+v", msg)
	}
}

func TestEncodeFrameTooLong(t *testing.T) {
	tr := NewTransport(&OutputBuffer{}, nil)
	if err := tr.EncodeFrame(MsgProgram, make([]byte, PayloadMax+1)); err != ErrFrameTooLong {
		t.Errorf("Expected ErrFrameTooLong, got %v", err)
	}
}

func TestEncodeFrameOutputFull(t *testing.T) {
	var out OutputBuffer
	tr := NewTransport(&out, nil)

	// MessageMax holds exactly two full frames
	for i := 0; i < 2; i++ {
		if err := tr.EncodeFrame(MsgProgram, make([]byte, PayloadMax)); err != nil {
			t.Fatalf("Frame %d: %v", i, err)
		}
	}
	if err := tr.EncodeFrame(MsgHandshake, nil); err != ErrOutputFull {
		t.Errorf("Expected ErrOutputFull, got %v", err)
	}
	if len(out.Bytes()) != 2*FrameMax {
		t.Errorf("A rejected frame must not be partly written, have %d bytes", len(out.Bytes()))
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	good := encode(t, MsgHandshake, 0x42, nil)

	bad := append([]byte(nil), good...)
	bad[len(bad)-1] ^= 0xFF
	if _, err := DecodeFrame(bad); err != ErrBadCRC {
		t.Errorf("Expected ErrBadCRC, got %v", err)
	}

	bad = append([]byte(nil), good...)
	bad[0] = 0x00
	if _, err := DecodeFrame(bad); err != ErrBadPreamble {
		t.Errorf("Expected ErrBadPreamble, got %v", err)
	}

	if _, err := DecodeFrame(good[:4]); err != ErrShortFrame {
		t.Errorf("Expected ErrShortFrame, got %v", err)
	}
}

func TestReceiveMultipleFrames(t *testing.T) {
	var stream []byte
	stream = append(stream, 0x00, 0x13) // line noise before the first frame
	stream = append(stream, encode(t, MsgHandshake, 0x42, nil)...)
	stream = append(stream, encode(t, MsgEraseSector, 0x42, []byte{5})...)

	var got []uint16
	tr := NewTransport(&OutputBuffer{}, func(msg Message) {
		got = append(got, msg.Type)
	})

	input := inputOf(stream)
	tr.Receive(input)

	if len(got) != 2 || got[0] != MsgHandshake || got[1] != MsgEraseSector {
		t.Errorf("Expected [handshake erase_sector], got %v", got)
	}
	if input.Len() != 0 {
		t.Errorf("Expected all input consumed, %d bytes left", input.Len())
	}
}

func TestReceivePartialFrame(t *testing.T) {
	frame := encode(t, MsgProgram, 0x42, []byte{0, 0x40, 0, 0x08, 1, 0xAB})

	calls := 0
	tr := NewTransport(&OutputBuffer{}, func(msg Message) { calls++ })

	input := inputOf(frame[:5])
	tr.Receive(input)
	if calls != 0 {
		t.Fatal("Handler called for an incomplete frame")
	}
	if input.Len() != 5 {
		t.Errorf("Partial frame should stay buffered, %d bytes left", input.Len())
	}

	input.Write(frame[5:])
	tr.Receive(input)
	if calls != 1 {
		t.Errorf("Expected 1 call after completing the frame, got %d", calls)
	}
}

func TestReceiveDropsCorruptFrame(t *testing.T) {
	bad := encode(t, MsgLockSector, 0x42, []byte{1})
	bad[6] ^= 0x01
	good := encode(t, MsgUnlockSector, 0x42, []byte{1})

	var got []uint16
	tr := NewTransport(&OutputBuffer{}, func(msg Message) {
		got = append(got, msg.Type)
	})
	tr.Receive(inputOf(append(bad, good...)))

	if len(got) != 1 || got[0] != MsgUnlockSector {
		t.Errorf("Expected only the intact frame, got %v", got)
	}
	if _, crcErrors := tr.Stats(); crcErrors == 0 {
		t.Error("Expected the corrupt frame to be counted")
	}
}

func TestDisabledTransport(t *testing.T) {
	var out OutputBuffer
	calls := 0
	tr := NewTransport(&out, func(msg Message) { calls++ })
	tr.Disable()

	input := inputOf(encode(t, MsgHandshake, 0x42, nil))
	tr.Receive(input)
	if calls != 0 {
		t.Error("Disabled transport must not dispatch")
	}
	if input.Len() != 0 {
		t.Error("Disabled transport should discard input")
	}

	if err := tr.Send(MsgHandshake, nil); err != nil {
		t.Errorf("Send on a disabled transport returned %v", err)
	}
	if len(out.Bytes()) != 0 {
		t.Error("Disabled transport must not emit frames")
	}
}
