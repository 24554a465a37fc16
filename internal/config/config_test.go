package config

import "testing"

func TestValidate(t *testing.T) {
	base := Default()
	base.Datafile = "dataset.jsonl"
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing datafile", func(c *Config) { c.Datafile = "" }},
		{"missing editor", func(c *Config) { c.Editor = "" }},
		{"zero samples", func(c *Config) { c.Samples = 0 }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"negative boxes", func(c *Config) { c.NumBoxes = -1 }},
		{"negative layer", func(c *Config) { c.Layer = -1 }},
		{"zero top-k", func(c *Config) { c.TopK = 0 }},
		{"empty out path", func(c *Config) { c.OutPath = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
