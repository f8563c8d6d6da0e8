// Package config loads headerdoc settings from defaults, an optional
// .headerdoc.yaml file, HEADERDOC_* environment variables and flags.
package config

import "strings"

// Config is the complete headerdoc configuration.
type Config struct {
	// Define lists preprocessor symbols treated as defined. Entries may be
	// NAME or NAME=VALUE; the value is ignored.
	Define       []string `yaml:"define" mapstructure:"define"`
	ShowInternal bool     `yaml:"show_internal" mapstructure:"show_internal"`
	ShowExcluded bool     `yaml:"show_excluded" mapstructure:"show_excluded"`

	Out     string `yaml:"out" mapstructure:"out"`         // output directory
	Format  string `yaml:"format" mapstructure:"format"`   // "mdx" or "toon"
	Project string `yaml:"project" mapstructure:"project"` // defaults to the root directory name

	Include []string `yaml:"include" mapstructure:"include"` // glob patterns relative to the root
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`

	Workers     int   `yaml:"workers" mapstructure:"workers"` // 0 means GOMAXPROCS
	MaxFileSize int64 `yaml:"max_file_size" mapstructure:"max_file_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Define:      []string{},
		Out:         "docs/api",
		Format:      "mdx",
		Include:     []string{},
		Exclude:     []string{},
		MaxFileSize: 1_000_000,
	}
}

// Defined returns the defined-symbol set for the conditional tracker.
func (c *Config) Defined() map[string]bool {
	out := make(map[string]bool, len(c.Define))
	for _, d := range c.Define {
		name, _, _ := strings.Cut(d, "=")
		if name = strings.TrimSpace(name); name != "" {
			out[name] = true
		}
	}
	return out
}
