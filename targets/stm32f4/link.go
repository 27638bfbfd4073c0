//go:build stm32f4

package main

import (
	"machine"
	"piksiboot/protocol"
)

// uartLink carries the framed protocol over the host UART. TinyGo buffers
// received bytes from the UART interrupt; Poll moves them into the
// endpoint and decodes whatever frames are complete.
type uartLink struct {
	uart     *machine.UART
	endpoint *protocol.Endpoint
	rx       [64]byte
	rxErrors uint32
}

func newUARTLink(uart *machine.UART, baud uint32) *uartLink {
	uart.Configure(machine.UARTConfig{BaudRate: baud})
	l := &uartLink{uart: uart}
	l.endpoint = protocol.NewEndpoint(l.write)
	return l
}

func (l *uartLink) write(data []byte) error {
	_, err := l.uart.Write(data)
	return err
}

func (l *uartLink) drain() {
	for l.uart.Buffered() > 0 {
		n := 0
		for n < len(l.rx) && l.uart.Buffered() > 0 {
			b, err := l.uart.ReadByte()
			if err != nil {
				l.rxErrors++
				break
			}
			l.rx[n] = b
			n++
		}
		if n == 0 {
			return
		}
		l.endpoint.Feed(l.rx[:n])
	}
}

func (l *uartLink) Poll(dispatch func(msgType uint16, payload []byte)) {
	l.drain()
	l.endpoint.Poll(dispatch)
}

func (l *uartLink) Send(msgType uint16, payload []byte) error {
	return l.endpoint.Send(msgType, payload)
}

func (l *uartLink) Disable() {
	l.endpoint.Disable()
}
