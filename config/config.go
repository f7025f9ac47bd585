// Package config holds the simulator configuration shared by the command
// line tools and the core.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/akita/v4/sim"
	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/ripsim/emu"
	"github.com/sarchlab/ripsim/timing/pipeline"
)

// DefaultFrequency is the clock used to turn cycles into simulated time.
const DefaultFrequency = 1 * sim.GHz

// Config describes one simulation run.
type Config struct {
	// Predictor names the branch predictor: none, onebit, twobit or gshare.
	// An empty name or "no" selects the always-flush policy with no
	// predictor.
	Predictor string `json:"predictor" yaml:"predictor"`

	// BranchPredictor sizes the predictor tables.
	BranchPredictor pipeline.BranchPredictorConfig `json:"branch_predictor" yaml:"branch_predictor"`

	// MemoryBase and MemorySize describe the single memory region.
	MemoryBase uint32 `json:"memory_base" yaml:"memory_base"`
	MemorySize uint32 `json:"memory_size" yaml:"memory_size"`

	// StackPointer, when set, initializes x2.
	StackPointer *uint32 `json:"stack_pointer,omitempty" yaml:"stack_pointer,omitempty"`

	// StartAddress overrides the first fetch address, which otherwise is the
	// program entry.
	StartAddress *uint32 `json:"start_address,omitempty" yaml:"start_address,omitempty"`

	// EndAddress ends the program when fetch reaches it.
	EndAddress *uint32 `json:"end_address,omitempty" yaml:"end_address,omitempty"`

	// MaxCycles bounds a run; 0 means no limit. The single-cycle engine
	// uses it as an instruction limit.
	MaxCycles uint64 `json:"max_cycles" yaml:"max_cycles"`

	// StrictDecode makes undecodable words fatal.
	StrictDecode bool `json:"strict_decode" yaml:"strict_decode"`

	// SingleCycle runs the reference emulator instead of the pipeline.
	SingleCycle bool `json:"single_cycle" yaml:"single_cycle"`

	// Frequency is the core clock.
	Frequency sim.Freq `json:"frequency" yaml:"frequency"`
}

// Default returns the configuration used when nothing is specified.
func Default() *Config {
	return &Config{
		BranchPredictor: pipeline.DefaultBranchPredictorConfig(),
		MemoryBase:      emu.DefaultMemoryBase,
		MemorySize:      emu.DefaultMemorySize,
		Frequency:       DefaultFrequency,
	}
}

// Uint32 returns a pointer to v, for the optional address fields.
func Uint32(v uint32) *uint32 {
	return &v
}

// PredictorKind parses the predictor name. The second result is false when
// no predictor is configured.
func (c *Config) PredictorKind() (pipeline.PredictorKind, bool, error) {
	switch strings.ToLower(strings.TrimSpace(c.Predictor)) {
	case "", "no":
		return pipeline.PredictorNone, false, nil
	}

	kind, err := pipeline.ParsePredictorKind(c.Predictor)
	if err != nil {
		return 0, false, err
	}
	return kind, true, nil
}

// Validate checks that the configuration describes a runnable machine.
func (c *Config) Validate() error {
	if _, _, err := c.PredictorKind(); err != nil {
		return err
	}
	if err := c.BranchPredictor.Validate(); err != nil {
		return fmt.Errorf("branch_predictor: %w", err)
	}
	if c.MemorySize == 0 {
		return fmt.Errorf("memory_size must be > 0")
	}
	if uint64(c.MemoryBase)+uint64(c.MemorySize) > 1<<32 {
		return fmt.Errorf("memory 0x%08x+0x%x exceeds the 32-bit address space",
			c.MemoryBase, c.MemorySize)
	}
	if c.StartAddress != nil && !c.contains(*c.StartAddress) {
		return fmt.Errorf("start_address 0x%08x is outside memory", *c.StartAddress)
	}
	if c.Frequency <= 0 {
		return fmt.Errorf("frequency must be > 0")
	}
	return nil
}

func (c *Config) contains(addr uint32) bool {
	return addr >= c.MemoryBase && uint64(addr-c.MemoryBase) < uint64(c.MemorySize)
}

// Load reads a configuration file over the defaults. Files ending in .yaml
// or .yml are YAML, everything else is JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	c := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, c)
	} else {
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return c, nil
}

// Save writes the configuration in the format implied by the file name.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	clone.StackPointer = clonePtr(c.StackPointer)
	clone.StartAddress = clonePtr(c.StartAddress)
	clone.EndAddress = clonePtr(c.EndAddress)
	return &clone
}

func clonePtr(p *uint32) *uint32 {
	if p == nil {
		return nil
	}
	return Uint32(*p)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
