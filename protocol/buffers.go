package protocol

// InputMax is how many received bytes an endpoint holds before Poll
const InputMax = 2 * MessageMax

// InputBuffer holds received bytes that have not been decoded yet. Pop
// moves the unconsumed tail back to the start of the array, so a buffered
// frame is always contiguous and the Transport decodes it in place.
type InputBuffer struct {
	buf [InputMax]byte
	n   int
}

// Write appends data and returns how many bytes fit
func (b *InputBuffer) Write(data []byte) int {
	n := copy(b.buf[b.n:], data)
	b.n += n
	return n
}

// Data returns the buffered bytes. The slice is only valid until the next
// Write or Pop.
func (b *InputBuffer) Data() []byte {
	return b.buf[:b.n]
}

// Len returns the number of buffered bytes
func (b *InputBuffer) Len() int {
	return b.n
}

// Pop discards n bytes from the front
func (b *InputBuffer) Pop(n int) {
	if n >= b.n {
		b.n = 0
		return
	}
	b.n = copy(b.buf[:], b.buf[n:b.n])
}

// Reset drops everything buffered
func (b *InputBuffer) Reset() {
	b.n = 0
}

// OutputBuffer collects encoded frames until the link writes them out.
// A frame is either stored whole or not at all.
type OutputBuffer struct {
	buf [MessageMax]byte
	n   int
}

// Reserve returns the next size bytes of the buffer for a frame to be
// encoded into, or nil when they do not fit
func (b *OutputBuffer) Reserve(size int) []byte {
	if size > len(b.buf)-b.n {
		return nil
	}
	frame := b.buf[b.n : b.n+size]
	b.n += size
	return frame
}

// Bytes returns the encoded frames
func (b *OutputBuffer) Bytes() []byte {
	return b.buf[:b.n]
}

// Reset empties the buffer once its frames are written out
func (b *OutputBuffer) Reset() {
	b.n = 0
}
