package sim

import (
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"piksiboot/host/serial"
	"piksiboot/protocol"
)

// idleSlice is the shortest sleep an idle SerialLink takes
const idleSlice = time.Millisecond

// SerialLink adapts a serial port to core.Link. A reader goroutine hands
// received bytes to the polling goroutine over a channel, so the endpoint
// is only ever touched by the machine's goroutine.
type SerialLink struct {
	port     serial.Port
	endpoint *protocol.Endpoint
	idle     time.Duration
	debt     time.Duration // idle time owed but not yet slept
	log      logrus.FieldLogger

	rx        chan []byte
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSerialLink starts reading from port. idle is the time each Poll that
// finds nothing accounts for; zero or negative never sleeps.
func NewSerialLink(port serial.Port, idle time.Duration, log logrus.FieldLogger) *SerialLink {
	l := &SerialLink{
		port: port,
		idle: idle,
		log:  log,
		rx:   make(chan []byte, 64),
		done: make(chan struct{}),
	}
	l.endpoint = protocol.NewEndpoint(l.write)

	l.wg.Add(1)
	go l.readLoop()
	return l
}

func (l *SerialLink) write(data []byte) error {
	_, err := l.port.Write(data)
	return err
}

func (l *SerialLink) readLoop() {
	defer l.wg.Done()

	buf := make([]byte, 256)
	for {
		n, err := l.port.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case l.rx <- data:
			case <-l.done:
				return
			}
		}
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			// tarm/serial reports a read timeout as EOF
			if err != io.EOF {
				l.log.WithError(err).Warn("serial read failed")
			}
			time.Sleep(time.Millisecond)
		}
	}
}

// Poll feeds everything received so far to the endpoint and dispatches the
// complete frames.
//
// A poll that finds nothing adds idle to a debt that is slept off once it
// reaches idleSlice, so n idle polls take about n*idle of wall time even
// though the OS cannot sleep for a few microseconds. Data arriving during
// the sleep ends it early.
func (l *SerialLink) Poll(dispatch func(msgType uint16, payload []byte)) {
	fed := false
	for {
		select {
		case data := <-l.rx:
			l.feed(data, dispatch)
			fed = true
			continue
		default:
		}
		break
	}

	if !fed && l.idle > 0 {
		l.debt += l.idle
		if l.debt >= idleSlice {
			start := time.Now()
			timer := time.NewTimer(l.debt)
			select {
			case data := <-l.rx:
				l.feed(data, dispatch)
			case <-timer.C:
			}
			timer.Stop()
			l.debt -= time.Since(start)
			if l.debt < -idleSlice {
				// Oversleeping is not paid back beyond one slice
				l.debt = -idleSlice
			}
		}
	}
	l.endpoint.Poll(dispatch)
}

// feed hands data to the endpoint, decoding frames whenever the input
// buffer fills up
func (l *SerialLink) feed(data []byte, dispatch func(msgType uint16, payload []byte)) {
	for len(data) > 0 {
		n := l.endpoint.Feed(data)
		data = data[n:]
		if len(data) > 0 {
			l.endpoint.Poll(dispatch)
		}
	}
}

func (l *SerialLink) Send(msgType uint16, payload []byte) error {
	return l.endpoint.Send(msgType, payload)
}

func (l *SerialLink) Disable() {
	l.endpoint.Disable()
}

// Stats returns good frames, CRC failures and input overruns
func (l *SerialLink) Stats() (frames, crcErrors, overruns uint32) {
	frames, crcErrors = l.endpoint.Transport().Stats()
	return frames, crcErrors, l.endpoint.Overruns()
}

// Close stops the reader and closes the port
func (l *SerialLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.port.Close()
		l.wg.Wait()
	})
	return err
}
