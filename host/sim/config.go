package sim

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"

	"piksiboot/core"
)

// SectorConfig is one sector of the emulated flash
type SectorConfig struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

// Config describes the emulated board
type Config struct {
	AppAddress   uint32         `json:"app_address"`
	StackAddress uint32         `json:"stack_address"`
	MinAddr      uint32         `json:"min_addr"`
	MaxAddr      uint32         `json:"max_addr"`
	Sectors      []SectorConfig `json:"sectors,omitempty"`

	WaitIterations  uint32 `json:"wait_iterations"`
	IndicatorPeriod uint32 `json:"indicator_period"`
	HandshakeEvery  uint32 `json:"handshake_every"`

	// PollInterval is the wall-clock time an idle link poll accounts for;
	// together with WaitIterations it sets the length of the host wait.
	// Nanoseconds in JSON, zero for the default, negative to never idle.
	PollInterval time.Duration `json:"poll_interval"`

	// FlashBusyPolls is how many status polls each flash operation takes
	FlashBusyPolls int `json:"flash_busy_polls"`

	ExtFlashSize       uint32 `json:"ext_flash_size"`
	ExtFlashSectorSize uint32 `json:"ext_flash_sector_size"`

	UniqueID []byte `json:"unique_id,omitempty"`
}

// LoadConfig parses a JSON configuration and fills in defaults
func LoadConfig(jsonData []byte) (*Config, error) {
	var config Config

	if err := json.Unmarshal(jsonData, &config); err != nil {
		return nil, errors.Wrap(err, "parse sim config")
	}

	applyDefaults(&config)

	return &config, nil
}

// LoadConfigFile reads a configuration file; an empty path gives the
// defaults
func LoadConfigFile(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read sim config")
	}
	return LoadConfig(data)
}

// DefaultConfig returns the emulated Piksi board
func DefaultConfig() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

// applyDefaults fills in missing values from the STM32F4 board
func applyDefaults(config *Config) {
	mm := core.STM32F4MemoryMap()
	boot := core.DefaultBootConfig()

	if config.AppAddress == 0 {
		config.AppAddress = mm.AppAddress
	}
	if config.StackAddress == 0 {
		config.StackAddress = mm.StackAddress
	}
	if config.MinAddr == 0 {
		config.MinAddr = mm.MinAddr
	}
	if config.MaxAddr == 0 {
		config.MaxAddr = mm.MaxAddr
	}
	if len(config.Sectors) == 0 {
		for _, s := range mm.Sectors {
			config.Sectors = append(config.Sectors, SectorConfig{Start: s.Start, End: s.End})
		}
	}

	if config.WaitIterations == 0 {
		config.WaitIterations = boot.WaitIterations
	}
	if config.IndicatorPeriod == 0 {
		config.IndicatorPeriod = boot.IndicatorPeriod
	}
	if config.HandshakeEvery == 0 {
		config.HandshakeEvery = boot.HandshakeEvery
	}
	if config.PollInterval == 0 {
		config.PollInterval = 10 * time.Microsecond // 2s host wait
	}

	if config.ExtFlashSize == 0 {
		config.ExtFlashSize = 2 << 20 // M25P16
	}
	if config.ExtFlashSectorSize == 0 {
		config.ExtFlashSectorSize = 64 << 10
	}
	if len(config.UniqueID) != 12 {
		config.UniqueID = []byte("PIKSI-SIM-01")
	}
}

// MemoryMap builds the core memory map
func (c *Config) MemoryMap() core.MemoryMap {
	mm := core.STM32F4MemoryMap()
	mm.AppAddress = c.AppAddress
	mm.StackAddress = c.StackAddress
	mm.MinAddr = c.MinAddr
	mm.MaxAddr = c.MaxAddr
	mm.Sectors = make([]core.SectorRange, len(c.Sectors))
	for i, s := range c.Sectors {
		mm.Sectors[i] = core.SectorRange{Start: s.Start, End: s.End}
	}
	return mm
}

// BootConfig builds the core loop timing
func (c *Config) BootConfig() core.BootConfig {
	return core.BootConfig{
		WaitIterations:  c.WaitIterations,
		IndicatorPeriod: c.IndicatorPeriod,
		HandshakeEvery:  c.HandshakeEvery,
	}
}
