package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Default() {
		t.Fatalf("expected Default(), got %+v", cfg)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.yaml")
	cfg := Config{
		CurrentSpace:     "staging",
		MinChunk:         2 << 20,
		AvgChunk:         6 << 20,
		MaxChunk:         10 << 20,
		CompressionLevel: 9,
		Workers:          4,
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != cfg {
		t.Fatalf("round trip mismatch: want %+v, got %+v", cfg, got)
	}
}

func TestLoadPartialFilePreservesDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, Config{CurrentSpace: "main"}); err != nil {
		t.Fatal(err)
	}

	// Overwrite with a file that only sets one key; the rest should come
	// from Default() since Load seeds the struct before unmarshalling.
	partial := []byte("current_space: feature-x\n")
	if err := os.WriteFile(path, partial, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.CurrentSpace = "feature-x"
	if got != want {
		t.Fatalf("expected defaults to fill unset keys, got %+v", got)
	}
}
