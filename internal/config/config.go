package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Output selects the sound backend.
type Output string

const (
	OutputSynth   Output = "synth"
	OutputMIDI    Output = "midi"
	OutputVirtual Output = "virtual"
	OutputNone    Output = "none"
)

// ReverbConfig controls the synth's wet path.
type ReverbConfig struct {
	Mix   float64 `yaml:"mix"`
	Decay float64 `yaml:"decay"`
}

// Config is the main configuration structure
type Config struct {
	Output          Output            `yaml:"output"`
	MIDIPort        string            `yaml:"midi_port,omitempty"`
	VirtualPortName string            `yaml:"virtual_port_name,omitempty"`
	Velocity        int               `yaml:"velocity"`
	Volume          float64           `yaml:"volume"`
	Reverb          ReverbConfig      `yaml:"reverb"`
	VisualFallback  bool              `yaml:"visual_fallback"`
	LogLevel        string            `yaml:"log_level"`
	Instruments     map[string]string `yaml:"instruments,omitempty"` // genre -> instrument key
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Output:          OutputSynth,
		VirtualPortName: "Melodyplay",
		Velocity:        100,
		Volume:          0.3,
		Reverb: ReverbConfig{
			Mix:   0.25,
			Decay: 0.45,
		},
		VisualFallback: true,
		LogLevel:       "info",
	}
}

// Dir returns the config directory path
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "melodyplay"), nil
}

// DefaultPath returns the full path to config.yaml
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config at path, or returns defaults if it does not exist.
// Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // config path from user
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	switch c.Output {
	case OutputSynth, OutputMIDI, OutputVirtual, OutputNone:
	default:
		return fmt.Errorf("unknown output %q", c.Output)
	}
	if c.Velocity < 1 || c.Velocity > 127 {
		return fmt.Errorf("velocity %d outside 1-127", c.Velocity)
	}
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("volume %.2f outside 0-1", c.Volume)
	}
	if c.Reverb.Mix < 0 || c.Reverb.Mix > 1 {
		return fmt.Errorf("reverb mix %.2f outside 0-1", c.Reverb.Mix)
	}
	return nil
}
