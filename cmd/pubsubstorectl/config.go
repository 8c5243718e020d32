package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	runtimeconfig "github.com/GeorgeSapkin/pubsub-store/internal/runtime/config"
)

// fileConfig is the wire shape of the optional pubsubstorectl.yaml
// layer. It mirrors runtimeconfig.Config but keeps the timeout in
// milliseconds, since yaml.v3 has no native time.Duration scalar.
// Flags parsed in main.go override whatever a config file sets.
type fileConfig struct {
	NATSURL        string   `yaml:"nats_url"`
	Schemas        []string `yaml:"schemas"`
	TimeoutMs      int      `yaml:"timeout_ms"`
	BatchSize      int      `yaml:"batch_size"`
	NoAckStream    bool     `yaml:"no_ack_stream"`
	HighWaterMark  int      `yaml:"high_water_mark"`
	MetricsEnabled bool     `yaml:"metrics_enabled"`
	MetricsPort    int      `yaml:"metrics_port"`
}

// loadFileConfig reads path, if set, and returns its parsed contents. A
// path that doesn't exist is not an error: an absent config file just
// means every setting comes from flags.
func loadFileConfig(path string) (fileConfig, error) {
	if path == "" {
		return fileConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fileConfig{}, nil
	}
	if err != nil {
		return fileConfig{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// toRuntimeConfig converts the YAML wire shape into the runtime's own
// Config type, the same one Provider/Store tuning derives from.
func (f fileConfig) toRuntimeConfig() runtimeconfig.Config {
	return runtimeconfig.Config{
		NATSURL:        f.NATSURL,
		Schemas:        f.Schemas,
		RequestTimeout: time.Duration(f.TimeoutMs) * time.Millisecond,
		BatchSize:      f.BatchSize,
		NoAckStream:    f.NoAckStream,
		HighWaterMark:  f.HighWaterMark,
		MetricsEnabled: f.MetricsEnabled,
		MetricsPort:    f.MetricsPort,
	}
}
