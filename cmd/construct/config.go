package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sanonone/flatgraph/pkg/core/quantization"
)

// toolConfig carries the knobs the positional CLI surface does not cover.
// Everything has a working default; a YAML file supplied with -config
// overrides selectively.
type toolConfig struct {
	// NumInitializations is the entry-point scan budget per operation.
	NumInitializations int `yaml:"num_initializations"`

	// Reorder selects the post-build layout pass: none, gorder, or rcm.
	Reorder string `yaml:"reorder"`
	// GorderWindow is the trailing window for the gorder pass.
	GorderWindow int `yaml:"gorder_window"`

	// ProgressEvery is the insert count between progress log lines.
	ProgressEvery int `yaml:"progress_every"`

	PQ struct {
		// Subquantizers is the number of code bytes per vector.
		Subquantizers int `yaml:"subquantizers"`
		// Bits per subquantizer, at most 8.
		Bits int `yaml:"bits"`
		// Iterations of k-means refinement during training.
		Iterations int `yaml:"iterations"`
		// Init strategy: default or kmeans++.
		Init string `yaml:"init"`
	} `yaml:"pq"`
}

func defaultConfig() toolConfig {
	cfg := toolConfig{
		NumInitializations: 100,
		Reorder:            "none",
		GorderWindow:       5,
		ProgressEvery:      10000,
	}
	cfg.PQ.Subquantizers = 8
	cfg.PQ.Bits = 8
	cfg.PQ.Iterations = 5
	cfg.PQ.Init = string(quantization.InitDefault)
	return cfg
}

// loadConfig reads overrides from path on top of the defaults.
func loadConfig(path string) (toolConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *toolConfig) validate() error {
	if c.NumInitializations < 1 {
		return fmt.Errorf("num_initializations must be positive, got %d", c.NumInitializations)
	}
	switch c.Reorder {
	case "none", "gorder", "rcm":
	default:
		return fmt.Errorf("reorder must be none, gorder, or rcm, got %q", c.Reorder)
	}
	if c.GorderWindow < 1 {
		return fmt.Errorf("gorder_window must be positive, got %d", c.GorderWindow)
	}
	if c.PQ.Subquantizers < 1 {
		return fmt.Errorf("pq.subquantizers must be positive, got %d", c.PQ.Subquantizers)
	}
	if c.PQ.Bits < 1 || c.PQ.Bits > 8 {
		return fmt.Errorf("pq.bits must be in [1, 8], got %d", c.PQ.Bits)
	}
	if c.PQ.Iterations < 1 {
		return fmt.Errorf("pq.iterations must be positive, got %d", c.PQ.Iterations)
	}
	return nil
}
