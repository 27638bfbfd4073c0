package sim

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"piksiboot/core"
	"piksiboot/host/serial"
	"piksiboot/protocol"
)

// Device is an emulated board running the boot state machine
type Device struct {
	Flash    *Flash
	Ext      *ExtFlash
	LEDs     *LEDs
	FPGA     *FPGA
	Transfer *Transfer

	cfg     *Config
	link    *SerialLink
	machine *core.Machine
	log     logrus.FieldLogger
}

// NewDevice builds the board and the machine on top of port. The flash is
// erased; load an image before calling Run.
func NewDevice(cfg *Config, port serial.Port, log logrus.FieldLogger) (*Device, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	mm := cfg.MemoryMap()
	if err := mm.Validate(); err != nil {
		return nil, errors.Wrap(err, "memory map")
	}

	var id UniqueID
	copy(id[:], cfg.UniqueID)

	d := &Device{
		Flash:    NewFlash(mm),
		Ext:      NewExtFlash(cfg.ExtFlashSize, cfg.ExtFlashSectorSize),
		LEDs:     &LEDs{},
		FPGA:     &FPGA{log: log},
		Transfer: newTransfer(log),
		cfg:      cfg,
		log:      log,
	}
	d.Flash.SetBusyLatency(cfg.FlashBusyPolls)
	d.link = NewSerialLink(port, cfg.PollInterval, log)

	board := &core.Board{
		Flash:    d.Flash,
		Transfer: d.Transfer,
		FPGA:     d.FPGA,
		LEDs:     d.LEDs,
		ID:       id,
		ExtFlash: d.Ext,
	}
	m, err := core.NewMachine(cfg.BootConfig(), mm, board, d.link, core.SpinWait)
	if err != nil {
		d.link.Close()
		return nil, errors.Wrap(err, "boot machine")
	}
	d.machine = m
	return d, nil
}

// Machine exposes the boot state machine
func (d *Device) Machine() *core.Machine {
	return d.machine
}

// Link exposes the serial link
func (d *Device) Link() *SerialLink {
	return d.link
}

// Run drives the machine until the application would start or ctx ends.
// Cancellation is checked between steps, and every iteration of the host
// wait is a step of its own.
func (d *Device) Run(ctx context.Context) error {
	last := d.machine.State()
	d.log.WithFields(logrus.Fields{
		"version": protocol.Version,
		"state":   last.String(),
	}).Info("bootloader started")

	for !d.machine.Jumped() {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.machine.Step()

		if state := d.machine.State(); state != last {
			d.log.WithFields(logrus.Fields{
				"from": last.String(),
				"to":   state.String(),
			}).Info("state change")
			last = state
		}
	}
	return nil
}

// Close shuts down the link
func (d *Device) Close() error {
	return d.link.Close()
}

func hexField(v uint32) string {
	return fmt.Sprintf("0x%08X", v)
}
