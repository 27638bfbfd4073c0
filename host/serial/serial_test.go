package serial

import (
	"io"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyUSB0")
	if cfg.Device != "/dev/ttyUSB0" || cfg.Baud != 1000000 || cfg.ReadTimeout != 100 {
		t.Errorf("Unexpected config %+v", cfg)
	}
}

func TestPipe(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		a.Write([]byte{0x55, 0xB0, 0x00})
	}()

	buf := make([]byte, 3)
	if _, err := io.ReadFull(b, buf); err != nil {
		t.Fatalf("ReadFull failed: %v", err)
	}
	if buf[0] != 0x55 || buf[1] != 0xB0 {
		t.Errorf("Unexpected data %v", buf)
	}
	if err := b.Flush(); err != nil {
		t.Errorf("Flush failed: %v", err)
	}
}
