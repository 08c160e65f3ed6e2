// Package config holds the host-level configuration of §6: settings read
// once at construction and never touched by the core decode pipeline,
// which only ever sees a bit_rate/sample_rate pair already reduced to
// samples-per-bit and a signal.Polarity.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the full set of external settings a capture host needs. The
// core pipeline (sampler, frameparser, framebuilder) never imports this
// package; it only consumes the values a caller derives from it.
type Config struct {
	InputChannel string `toml:"input_channel"`
	BitRate      int    `toml:"bit_rate"`
	SampleRate   int    `toml:"sample_rate"`
	Inverted     bool   `toml:"inverted"`
}

// DefaultConfig returns the §6 defaults: 10 Mbit/s bit rate, non-inverted
// polarity. SampleRate has no default — it is required.
func DefaultConfig() Config {
	return Config{BitRate: 10_000_000}
}

// Load reads a TOML file into a Config overlaid on DefaultConfig, the way
// miragectl's config loader overlays a file onto its own defaults, then
// validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: load %q: %w", path, err)
	}
	if !meta.IsDefined("bit_rate") {
		cfg.BitRate = DefaultConfig().BitRate
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOptional is Load for a -config flag that may legitimately be empty
// or point at nothing: an empty path, a path that doesn't exist, or a
// directory returns DefaultConfig with sampleRate applied as its
// sample rate (since SampleRate has no default of its own) rather than
// erroring, so a bare invocation with no config file still runs.
func LoadOptional(path string, sampleRate int) (Config, error) {
	if path == "" || !fileExists(path) {
		cfg := DefaultConfig()
		cfg.SampleRate = sampleRate
		if err := cfg.Validate(); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	return Load(path)
}

// Validate enforces the ranges of §6's configuration table.
func (c Config) Validate() error {
	if c.BitRate < 1 || c.BitRate > 10_000_000 {
		return fmt.Errorf("config: bit_rate %d out of range [1,10000000]", c.BitRate)
	}
	if c.SampleRate < 4*c.BitRate {
		return fmt.Errorf("config: sample_rate %d must be at least 4x bit_rate (%d)", c.SampleRate, 4*c.BitRate)
	}
	return nil
}

// SamplesPerBit is the derived value the sampler is actually constructed
// with: sample_rate / bit_rate, per §6's definition.
func (c Config) SamplesPerBit() uint64 {
	return uint64(c.SampleRate / c.BitRate)
}

// fileExists reports whether path exists and is not a directory; used by
// LoadOptional to decide whether an optional -config flag points anywhere.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
