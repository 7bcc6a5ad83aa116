// Package config loads decoder and export settings from YAML.
package config

import (
	"fmt"
	"io"

	"github.com/melaurent/kafero"
	"gopkg.in/yaml.v3"

	"github.com/egonelbre/exp-esplog/esplog"
)

// Export formats.
const (
	FormatCSV   = "csv"
	FormatProto = "proto"
)

// ParserConfig maps onto esplog options.
type ParserConfig struct {
	ChunkSize       int  `yaml:"chunk_size"`
	ApplyAccelRange bool `yaml:"apply_accel_range"`
}

// ExportConfig selects how decoded samples are written.
type ExportConfig struct {
	Format    string `yaml:"format"` // "csv" or "proto"
	Merge     bool   `yaml:"merge"`  // one time-ordered csv instead of one per sensor
	OutputDir string `yaml:"output_dir"`
}

// Config is the top-level structure of a configuration file.
type Config struct {
	Parser ParserConfig `yaml:"parser"`
	Export ExportConfig `yaml:"export"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Parser: ParserConfig{
			ChunkSize: esplog.DefaultChunkSize,
		},
		Export: ExportConfig{
			Format: FormatCSV,
		},
	}
}

// Load reads and parses the configuration file at path in fs.
func Load(fs kafero.Fs, path string) (*Config, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration data. Missing keys keep their default values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.Parser.ChunkSize < 0 {
		return fmt.Errorf("parser.chunk_size must not be negative, got %d", c.Parser.ChunkSize)
	}
	switch c.Export.Format {
	case FormatCSV, FormatProto:
	default:
		return fmt.Errorf("export.format must be %q or %q, got %q", FormatCSV, FormatProto, c.Export.Format)
	}
	return nil
}

// ParserOptions returns the esplog options described by the configuration.
func (c *Config) ParserOptions() []esplog.Option {
	opts := []esplog.Option{
		esplog.WithAccelRangeScaling(c.Parser.ApplyAccelRange),
	}
	if c.Parser.ChunkSize > 0 {
		opts = append(opts, esplog.WithChunkSize(c.Parser.ChunkSize))
	}
	return opts
}
