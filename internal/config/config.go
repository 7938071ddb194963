// Package config loads the runtime extraction options from a YAML file,
// filling in the defaults the CLI otherwise hard-codes. Grounded on
// rpcpool-yellowstone-faithful's config.go LoadConfig/Validate shape.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultMaxInstanceDepth    = 3
	defaultArrayElementCap     = 200
	defaultSanityDropThreshold = 0.5
	defaultProgressEvery       = 50000
	defaultShipProgressEvery   = 20
)

// ExtractionOptions is the full set of knobs the extractor pipeline reads.
type ExtractionOptions struct {
	ArchivePath string `yaml:"archive_path"`
	OutputPath  string `yaml:"output_path"`

	// MaxInstanceDepth bounds the instance reader's CLASS and STRONG_PTR
	// recursion.
	MaxInstanceDepth int `yaml:"max_instance_depth"`

	// ArrayElementCap truncates any decoded array to this many elements.
	ArrayElementCap int `yaml:"array_element_cap"`

	// SanityDropThreshold is the fraction of a previous run's row count
	// below which a phase's output is treated as suspect. No package in this
	// module reads it; callers compare their row counts against it.
	SanityDropThreshold float64 `yaml:"sanity_drop_threshold"`

	// ProgressEvery is how many records elapse between generic progress
	// events; ShipProgressEvery is the coarser cadence used while walking
	// ships, since each one does much more work than a generic record.
	ProgressEvery     int `yaml:"progress_every"`
	ShipProgressEvery int `yaml:"ship_progress_every"`

	originalFilepath string
}

// Default returns an ExtractionOptions populated with every default, and no
// archive path set.
func Default() ExtractionOptions {
	return ExtractionOptions{
		MaxInstanceDepth:    defaultMaxInstanceDepth,
		ArrayElementCap:     defaultArrayElementCap,
		SanityDropThreshold: defaultSanityDropThreshold,
		ProgressEvery:       defaultProgressEvery,
		ShipProgressEvery:   defaultShipProgressEvery,
	}
}

// Load reads a YAML config file, applying defaults to any field the file
// leaves at its zero value.
func Load(path string) (ExtractionOptions, error) {
	opts := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return opts, fmt.Errorf("parsing config %q: %w", path, err)
	}
	opts.originalFilepath = path
	opts.applyDefaults()

	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("config %q: %w", path, err)
	}
	return opts, nil
}

// applyDefaults restores any numeric field a YAML file explicitly zeroed
// out, since those fields are meant to be tuned, not disabled.
func (o *ExtractionOptions) applyDefaults() {
	if o.MaxInstanceDepth == 0 {
		o.MaxInstanceDepth = defaultMaxInstanceDepth
	}
	if o.ArrayElementCap == 0 {
		o.ArrayElementCap = defaultArrayElementCap
	}
	if o.SanityDropThreshold == 0 {
		o.SanityDropThreshold = defaultSanityDropThreshold
	}
	if o.ProgressEvery == 0 {
		o.ProgressEvery = defaultProgressEvery
	}
	if o.ShipProgressEvery == 0 {
		o.ShipProgressEvery = defaultShipProgressEvery
	}
}

// ConfigFilepath returns the path Load was given, or "" for Default().
func (o ExtractionOptions) ConfigFilepath() string {
	return o.originalFilepath
}

// Validate checks the options for internal consistency.
func (o ExtractionOptions) Validate() error {
	if o.ArchivePath == "" {
		return fmt.Errorf("archive_path must be set")
	}
	if o.MaxInstanceDepth < 1 {
		return fmt.Errorf("max_instance_depth must be >= 1")
	}
	if o.ArrayElementCap < 1 {
		return fmt.Errorf("array_element_cap must be >= 1")
	}
	if o.SanityDropThreshold < 0 || o.SanityDropThreshold > 1 {
		return fmt.Errorf("sanity_drop_threshold must be between 0 and 1")
	}
	if o.ProgressEvery < 1 {
		return fmt.Errorf("progress_every must be >= 1")
	}
	if o.ShipProgressEvery < 1 {
		return fmt.Errorf("ship_progress_every must be >= 1")
	}
	return nil
}
