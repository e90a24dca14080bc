// Package config handles synvm.toml session configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	FILENAME     = "synvm.toml" // Name of a session file.
	REGISTER_MAX = 32767        // Largest value a register holds.
)

// Config represents a synvm.toml session.
type Config struct {
	Image       string            `toml:"image"`
	Output      *bool             `toml:"output"`
	Breakpoints []uint16          `toml:"breakpoints"`
	Registers   map[string]uint16 `toml:"registers"`
	Patches     []Patch           `toml:"patch"`
	Script      []string          `toml:"script"`

	// Dir is the directory containing the session file (set at load time).
	Dir string `toml:"-"`
}

// Patch overwrites memory starting at Address.
type Patch struct {
	Address uint16   `toml:"address"`
	Values  []uint16 `toml:"values"`
}

// Load parses a session file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	if _, err := c.RegisterValues(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &c, nil
}

// FindAndLoad walks up from startDir to find a synvm.toml file, then
// loads and returns it. Returns nil if no session file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FILENAME)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// ImagePath returns the image path, resolved against the session file
// directory.
func (c *Config) ImagePath() string {
	if c.Image == "" || filepath.IsAbs(c.Image) {
		return c.Image
	}

	return filepath.Join(c.Dir, c.Image)
}

// OutputEnabled returns the output setting, defaulting to enabled.
func (c *Config) OutputEnabled() bool {
	if c.Output == nil {
		return true
	}

	return *c.Output
}

// RegisterValues maps the register overrides by register index.
// Register names are r0 through r7.
func (c *Config) RegisterValues() (map[int]uint16, error) {
	regs := make(map[int]uint16, len(c.Registers))
	for name, value := range c.Registers {
		index, err := strconv.Atoi(strings.TrimPrefix(name, "r"))
		if err != nil || !strings.HasPrefix(name, "r") || index < 0 || index > 7 {
			return nil, fmt.Errorf("unknown register %q", name)
		}
		if value > REGISTER_MAX {
			return nil, fmt.Errorf("register %q value %d out of range", name, value)
		}
		regs[index] = value
	}

	return regs, nil
}
