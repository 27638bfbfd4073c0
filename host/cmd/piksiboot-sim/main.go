// piksiboot-sim runs the bootloader against an emulated board, talking to a
// flashing host over a real serial port (for example one end of a socat pty
// pair).
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"piksiboot/core"
	"piksiboot/host/serial"
	"piksiboot/host/sim"
	"piksiboot/protocol"
)

var (
	portName       string
	baud           int
	imagePath      string
	configPath     string
	waitIterations uint32
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:   "piksiboot-sim",
	Short: "Run the bootloader on an emulated board",
	Long: "Runs the boot state machine on an emulated STM32F4 board. The emulated\n" +
		"flash can be seeded from an Intel HEX image; the run ends when the\n" +
		"bootloader jumps to the application.",
	Version:      protocol.Version,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&portName, "port", "p", "", "serial device the host connects to")
	rootCmd.Flags().IntVarP(&baud, "baud", "b", 1000000, "baud rate")
	rootCmd.Flags().StringVarP(&imagePath, "image", "i", "", "Intel HEX image preloaded into flash")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "JSON board configuration")
	rootCmd.Flags().Uint32Var(&waitIterations, "wait-iterations", 0, "override the host wait length in loop iterations")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log bootloader debug output")
	rootCmd.MarkFlagRequired("port")
}

func run(ctx context.Context) error {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.WithField("component", "sim")

	core.SetDebugWriter(func(s string) { logger.Debug(s) })
	core.SetDebugEnabled(verbose)

	cfg, err := sim.LoadConfigFile(configPath)
	if err != nil {
		return err
	}
	if waitIterations != 0 {
		cfg.WaitIterations = waitIterations
	}

	portCfg := serial.DefaultConfig(portName)
	portCfg.Baud = baud
	port, err := serial.Open(portCfg)
	if err != nil {
		return err
	}

	dev, err := sim.NewDevice(cfg, port, logger)
	if err != nil {
		port.Close()
		return err
	}
	defer dev.Close()

	if imagePath != "" {
		if err := sim.LoadHexFile(dev.Flash, imagePath); err != nil {
			return err
		}
		logger.WithField("image", imagePath).Info("flash preloaded")
	}

	if err := dev.Run(ctx); err != nil {
		return errors.Wrap(err, "bootloader stopped")
	}

	frames, crcErrors, overruns := dev.Link().Stats()
	logger.WithFields(log.Fields{
		"frames":     frames,
		"crc_errors": crcErrors,
		"overruns":   overruns,
	}).Info("link statistics")
	core.DumpEvents()
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
