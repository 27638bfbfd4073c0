package protocol

import (
	"encoding/binary"
	"errors"
	"sync/atomic"
)

var (
	ErrBadPreamble  = errors.New("frame does not start with preamble")
	ErrBadCRC       = errors.New("frame CRC mismatch")
	ErrFrameTooLong = errors.New("payload exceeds frame capacity")
	ErrShortFrame   = errors.New("frame shorter than its length field")
	ErrOutputFull   = errors.New("output buffer full")
)

// MessageHandler is called for every frame that passes the CRC check.
// The payload aliases the input buffer and is only valid during the call.
type MessageHandler func(msg Message)

// Transport frames and deframes messages on a byte stream.
// It has no acknowledgment or retransmission; a corrupted frame is dropped.
type Transport struct {
	sender   uint16
	output   *OutputBuffer
	handler  MessageHandler
	disabled uint32 // atomic bool

	// Counters for diagnostics
	framesOK  uint32
	crcErrors uint32
}

// NewTransport creates a new Transport instance
func NewTransport(output *OutputBuffer, handler MessageHandler) *Transport {
	return &Transport{
		sender:  DeviceSender,
		output:  output,
		handler: handler,
	}
}

// SetSender overrides the sender ID stamped on outgoing frames
func (t *Transport) SetSender(sender uint16) {
	t.sender = sender
}

// Receive processes incoming data from the input buffer.
// Complete frames are consumed and dispatched; a trailing partial frame is
// left in the buffer for the next call.
func (t *Transport) Receive(input *InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if t.isDisabled() {
			// Drop everything once disabled
			data = nil
			break
		}

		// Resynchronize on the preamble
		if data[0] != Preamble {
			data = data[1:]
			continue
		}

		if len(data) < HeaderSize {
			break
		}

		payloadLen := int(data[5])
		frameLen := HeaderSize + payloadLen + TrailerSize
		if len(data) < frameLen {
			break
		}

		frame := data[:frameLen]
		frameCRC := binary.LittleEndian.Uint16(frame[frameLen-TrailerSize:])
		if CRC16(frame[crcCoverStart:frameLen-TrailerSize]) != frameCRC {
			// Not a real frame start; skip this preamble byte and rescan
			t.crcErrors++
			data = data[1:]
			continue
		}

		msg := Message{
			Type:    binary.LittleEndian.Uint16(frame[1:3]),
			Sender:  binary.LittleEndian.Uint16(frame[3:5]),
			Payload: frame[HeaderSize : HeaderSize+payloadLen],
			CRC:     frameCRC,
		}
		data = data[frameLen:]
		t.framesOK++

		if t.handler != nil {
			t.handler(msg)
		}
	}

	// Remove consumed bytes from input
	consumed := input.Len() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

// EncodeFrame writes a complete frame for msgType/payload to the output
func (t *Transport) EncodeFrame(msgType uint16, payload []byte) error {
	if len(payload) > PayloadMax {
		return ErrFrameTooLong
	}

	frame := t.output.Reserve(FrameMin + len(payload))
	if frame == nil {
		return ErrOutputFull
	}
	frame[0] = Preamble
	binary.LittleEndian.PutUint16(frame[1:3], msgType)
	binary.LittleEndian.PutUint16(frame[3:5], t.sender)
	frame[5] = uint8(len(payload))
	end := HeaderSize + copy(frame[HeaderSize:], payload)

	binary.LittleEndian.PutUint16(frame[end:], CRC16(frame[crcCoverStart:end]))
	return nil
}

// Disable stops all further receive processing and sending
func (t *Transport) Disable() {
	atomic.StoreUint32(&t.disabled, 1)
}

// Send encodes a message unless the transport has been disabled
func (t *Transport) Send(msgType uint16, payload []byte) error {
	if t.isDisabled() {
		return nil
	}
	return t.EncodeFrame(msgType, payload)
}

// Stats returns the number of good frames and CRC failures seen
func (t *Transport) Stats() (framesOK, crcErrors uint32) {
	return t.framesOK, t.crcErrors
}

func (t *Transport) isDisabled() bool {
	return atomic.LoadUint32(&t.disabled) != 0
}

// DecodeFrame parses a single complete frame, mainly for tests and tooling
func DecodeFrame(frame []byte) (Message, error) {
	if len(frame) < FrameMin {
		return Message{}, ErrShortFrame
	}
	if frame[0] != Preamble {
		return Message{}, ErrBadPreamble
	}
	payloadLen := int(frame[5])
	if len(frame) != HeaderSize+payloadLen+TrailerSize {
		return Message{}, ErrShortFrame
	}
	crc := binary.LittleEndian.Uint16(frame[len(frame)-TrailerSize:])
	if CRC16(frame[crcCoverStart:len(frame)-TrailerSize]) != crc {
		return Message{}, ErrBadCRC
	}
	return Message{
		Type:    binary.LittleEndian.Uint16(frame[1:3]),
		Sender:  binary.LittleEndian.Uint16(frame[3:5]),
		Payload: frame[HeaderSize : HeaderSize+payloadLen],
		CRC:     crc,
	}, nil
}
