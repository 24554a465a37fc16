// Package config holds the experiment configuration shared by the CLIs.
package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Datafile   string
	ObjectFile string
	Editor     string
	Samples    int
	BatchSize  int
	NumBoxes   int
	Seed       int64

	Architecture string
	Layer        int
	TopK         int

	OutPath    string
	FlightAddr string
	RunName    string

	LogLevel  string
	LogFormat string
}

// Default returns the configuration the driver starts from before flags.
func Default() Config {
	return Config{
		Editor:       "position_only",
		Samples:      100,
		BatchSize:    100,
		NumBoxes:     7,
		Seed:         42,
		Architecture: "llama",
		Layer:        0,
		TopK:         10,
		OutPath:      "results.arrow",
		RunName:      "boxtrace",
		LogLevel:     "INFO",
		LogFormat:    "console",
	}
}

func (c *Config) Validate() error {
	if c.Datafile == "" {
		return fmt.Errorf("datafile is required")
	}
	if c.Editor == "" {
		return fmt.Errorf("editor is required")
	}
	if c.Samples <= 0 {
		return fmt.Errorf("invalid samples: %d (must be positive)", c.Samples)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("invalid batch_size: %d (must be positive)", c.BatchSize)
	}
	if c.NumBoxes <= 0 {
		return fmt.Errorf("invalid num_boxes: %d (must be positive)", c.NumBoxes)
	}
	if c.Layer < 0 {
		return fmt.Errorf("invalid layer: %d (must be non-negative)", c.Layer)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("invalid top_k: %d (must be positive)", c.TopK)
	}
	if c.OutPath == "" {
		return fmt.Errorf("output path is required")
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid log level: %q", c.LogLevel)
	}
	return nil
}
