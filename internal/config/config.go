// Package config holds the plugin configuration surface for the CI hook.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every knob the analyzer accepts. The core packages receive
// these values as plain parameters; nothing in the core reads files or the
// environment directly.
type Config struct {
	// BEPFile is the path to the build event file produced by the build.
	BEPFile string `yaml:"bep_file"`

	// SkipIfAbsent exits successfully when the BEP file does not exist,
	// instead of treating it as an error.
	SkipIfAbsent bool `yaml:"skip_if_absent"`

	MaxFileSizeMB      int `yaml:"max_file_size_mb"`
	MaxFailures        int `yaml:"max_failures"`
	MaxAnnotationBytes int `yaml:"max_annotation_bytes"`

	// OutputFormat selects text, json, or annotation output.
	OutputFormat string `yaml:"output_format"`

	// Context is the annotation context id shared by all jobs in a
	// pipeline run.
	Context string `yaml:"context"`

	// JobName labels this job's section when appending to the running
	// annotation.
	JobName string `yaml:"job_name"`

	Verbose bool `yaml:"verbose"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		BEPFile:            "bazel-events.pb",
		MaxFileSizeMB:      100,
		MaxFailures:        50,
		MaxAnnotationBytes: 1024 * 1024,
		OutputFormat:       "annotation",
		Context:            "bazel-failures",
		JobName:            "build",
	}
}

// Load reads configuration from a YAML file, layered over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}
