// Package config holds the emulator configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/ppcemu/fpenv"
)

// Execution engines.
const (
	EngineInterpreter = "interpreter"
	EngineJIT         = "jit"
)

// Config holds the machine and execution settings.
type Config struct {
	// Cores is the number of guest cores. Default: 3.
	Cores int `json:"cores" yaml:"cores"`

	// Engine selects how guest code runs: "interpreter" or "jit".
	// Default: "jit".
	Engine string `json:"engine" yaml:"engine"`

	// MaxInstructions bounds the instructions each interpreter executes.
	// 0 means no limit.
	MaxInstructions uint64 `json:"max_instructions" yaml:"max_instructions"`

	// BlockCacheSize is the number of translated blocks kept per core.
	// Default: 4096.
	BlockCacheSize int `json:"block_cache_size" yaml:"block_cache_size"`

	// BlockCacheWays is the block cache associativity. Default: 8.
	BlockCacheWays int `json:"block_cache_ways" yaml:"block_cache_ways"`

	// MaxBlockInstructions bounds the guest instructions in one
	// translated block. Default: 64.
	MaxBlockInstructions int `json:"max_block_instructions" yaml:"max_block_instructions"`

	// ArenaSize is the size in bytes of each core's code arena.
	// Default: 16 MiB.
	ArenaSize int `json:"arena_size" yaml:"arena_size"`

	// RoundingMode is the initial FPSCR[RN] of every core: "nearest",
	// "zero", "positive" or "negative". Default: "nearest".
	RoundingMode string `json:"rounding_mode" yaml:"rounding_mode"`

	// TraceHLE logs every host function call.
	TraceHLE bool `json:"trace_hle" yaml:"trace_hle"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Cores:                3,
		Engine:               EngineJIT,
		BlockCacheSize:       4096,
		BlockCacheWays:       8,
		MaxBlockInstructions: 64,
		ArenaSize:            16 << 20,
		RoundingMode:         fpenv.Nearest.String(),
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads a configuration file. Files ending in .yaml or .yml are YAML,
// anything else is JSON. Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return config, nil
}

// Save writes the configuration in the format implied by the extension
// of path.
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

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	if c.Cores <= 0 {
		return fmt.Errorf("cores must be > 0")
	}
	if c.Engine != EngineInterpreter && c.Engine != EngineJIT {
		return fmt.Errorf("engine must be %q or %q, got %q", EngineInterpreter, EngineJIT, c.Engine)
	}
	if c.Engine == EngineJIT {
		if c.BlockCacheWays <= 0 {
			return fmt.Errorf("block_cache_ways must be > 0")
		}
		if c.BlockCacheSize < c.BlockCacheWays {
			return fmt.Errorf("block_cache_size must be >= block_cache_ways")
		}
		if c.MaxBlockInstructions <= 0 {
			return fmt.Errorf("max_block_instructions must be > 0")
		}
		if c.ArenaSize <= 0 {
			return fmt.Errorf("arena_size must be > 0")
		}
	}
	if _, ok := fpenv.ParseRoundingMode(c.RoundingMode); !ok {
		return fmt.Errorf("unknown rounding_mode %q", c.RoundingMode)
	}
	return nil
}

// Rounding returns the configured rounding mode, or round-to-nearest when
// it does not parse.
func (c *Config) Rounding() fpenv.RoundingMode {
	m, _ := fpenv.ParseRoundingMode(c.RoundingMode)
	return m
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
