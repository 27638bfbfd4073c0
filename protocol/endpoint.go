package protocol

// FlushFunc writes encoded frames to the wire
type FlushFunc func(data []byte) error

// Endpoint is the device side of the link: bytes go in through Feed,
// decoded messages come out through Poll, replies go out through Send.
// It is not safe for concurrent use; byte sources running on another
// goroutine must hand their data to the polling goroutine first.
type Endpoint struct {
	input     InputBuffer
	output    OutputBuffer
	transport *Transport
	flush     FlushFunc
	dispatch  func(msgType uint16, payload []byte)
	overruns  uint32
}

// NewEndpoint creates an endpoint. Both buffers are arrays inside the
// struct; Feed, Poll and Send do not allocate.
func NewEndpoint(flush FlushFunc) *Endpoint {
	e := &Endpoint{flush: flush}
	e.transport = NewTransport(&e.output, e.onMessage)
	return e
}

// Transport exposes the underlying framer
func (e *Endpoint) Transport() *Transport {
	return e.transport
}

// Feed queues received bytes and returns how many were accepted
func (e *Endpoint) Feed(data []byte) int {
	n := e.input.Write(data)
	if n < len(data) {
		e.overruns++
	}
	return n
}

// Overruns returns how many Feed calls could not take all of their data
func (e *Endpoint) Overruns() uint32 {
	return e.overruns
}

// Poll decodes every complete frame currently buffered and hands each one
// to dispatch, then returns. It never blocks.
func (e *Endpoint) Poll(dispatch func(msgType uint16, payload []byte)) {
	if e.input.Len() == 0 {
		return
	}
	e.dispatch = dispatch
	e.transport.Receive(&e.input)
	e.dispatch = nil
}

// Send encodes one message and writes it out immediately
func (e *Endpoint) Send(msgType uint16, payload []byte) error {
	if err := e.transport.Send(msgType, payload); err != nil {
		return err
	}
	return e.Flush()
}

// Flush writes out any encoded frames still held in the output buffer
func (e *Endpoint) Flush() error {
	out := e.output.Bytes()
	if len(out) == 0 {
		return nil
	}
	defer e.output.Reset()
	if e.flush == nil {
		return nil
	}
	return e.flush(out)
}

// Disable stops processing inbound messages and drops pending input
func (e *Endpoint) Disable() {
	e.transport.Disable()
	e.input.Reset()
}

func (e *Endpoint) onMessage(msg Message) {
	if e.dispatch != nil {
		e.dispatch(msg.Type, msg.Payload)
	}
}
