// Package config reads geoid-convert configuration files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/twpayne/go-geoid"
)

const (
	DefaultGrid      = "nn2000.tif"
	DefaultPrecision = 3
)

// A Config is a geoid-convert configuration. Keys missing from a
// configuration file keep their default values.
type Config struct {
	Direction       geoid.Direction `yaml:"direction"`
	Grid            string          `yaml:"grid"`
	GridDir         string          `yaml:"grid_dir,omitempty"`
	InputCRS        string          `yaml:"input_crs,omitempty"` // e.g. epsg:4326
	Precision       int             `yaml:"precision"`           // negative for the shortest exact representation
	MetricsTextfile string          `yaml:"metrics_textfile,omitempty"`
	Verbose         bool            `yaml:"verbose,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Direction: geoid.GeoidToEllipsoid,
		Grid:      DefaultGrid,
		Precision: DefaultPrecision,
	}
}

// Load reads the configuration file at path. If path is empty then the
// default configuration is returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// Parse parses a YAML configuration. Unknown keys are an error.
func Parse(data []byte) (*Config, error) {
	config := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	switch err := decoder.Decode(config); {
	case errors.Is(err, io.EOF):
		// An empty file is a valid configuration.
	case err != nil:
		return nil, err
	}
	if config.Grid == "" {
		return nil, errors.New("grid: empty")
	}
	return config, nil
}
