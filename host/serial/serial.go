// Package serial opens the UART link between a flashing host and the
// bootloader (or its emulator).
package serial

import (
	"io"
	"net"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - In-memory pipes (for tests and the emulator)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate of the bootloader UART
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the bootloader's port settings
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        1000000,
		ReadTimeout: 100,
	}
}

type pipePort struct {
	net.Conn
}

func (p pipePort) Flush() error {
	return nil
}

// Pipe returns two connected in-memory ports. Writes on one end block until
// the other end reads them.
func Pipe() (Port, Port) {
	a, b := net.Pipe()
	return pipePort{a}, pipePort{b}
}
