// Package config loads and writes the per-repository settings file at
// .rinne/config/config.yaml.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFilename is the file name Layout places under ConfigDir().
const ConfigFilename = "config.yaml"

// Config holds the settings that persist across saves for one repository.
type Config struct {
	CurrentSpace     string `yaml:"current_space"`
	MinChunk         uint64 `yaml:"min_chunk"`
	AvgChunk         uint64 `yaml:"avg_chunk"`
	MaxChunk         uint64 `yaml:"max_chunk"`
	CompressionLevel int    `yaml:"compression_level"`
	Workers          int    `yaml:"workers"`
}

// Default returns the settings a freshly-initialised repository starts
// with. Its chunk sizes and worker count match SaveOrchestrator's built-in
// defaults; its compression level matches the CLI save default (6), not
// SaveOrchestrator's zero value. Load returns it for an absent file, so an
// absent config file and a freshly-written one behave identically.
func Default() Config {
	return Config{
		CurrentSpace:     "main",
		MinChunk:         1 << 20,
		AvgChunk:         4 << 20,
		MaxChunk:         8 << 20,
		CompressionLevel: 6,
		Workers:          0, // 0 means "pick a worker count from NumCPU at save time"
	}
}

// Load reads path and parses it as yaml. A missing file is not an error:
// it returns Default() since a repository can be initialised without ever
// writing a config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save marshals cfg and publishes it to path via a temp-file-then-rename,
// matching the atomicity idiom used by the manifest/meta/cas writers.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("config: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("config: publish: %w", err)
	}
	slog.Debug("wrote config", "path", path)
	return nil
}
