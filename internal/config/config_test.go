package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Matching.DefaultConfidenceThreshold != 0.90 {
		t.Fatalf("unexpected default threshold %v", cfg.Matching.DefaultConfidenceThreshold)
	}
	if cfg.Governor.MaxConcurrentExtractions != 3 {
		t.Fatalf("unexpected default concurrency %d", cfg.Governor.MaxConcurrentExtractions)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[extraction]
raster_dpi = 150

[hash]
algorithm = "BlockHash"

[governor]
policy = "FAIL-FAST"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Extraction.RasterDPI != 150 {
		t.Fatalf("raster_dpi = %d", cfg.Extraction.RasterDPI)
	}
	if cfg.Hash.Algorithm != "blockhash" {
		t.Fatalf("algorithm = %q, want normalized lowercase", cfg.Hash.Algorithm)
	}
	if cfg.Governor.Policy != "fail-fast" {
		t.Fatalf("policy = %q", cfg.Governor.Policy)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero max size", func(c *Config) { c.Extraction.MaxFileSizeBytes = 0 }, "max_file_size_bytes"},
		{"dpi out of range", func(c *Config) { c.Extraction.RasterDPI = 10 }, "raster_dpi"},
		{"threshold too high", func(c *Config) { c.Matching.DefaultConfidenceThreshold = 1.5 }, "default_confidence_threshold"},
		{"unknown algorithm", func(c *Config) { c.Hash.Algorithm = "md5" }, "hash.algorithm"},
		{"bad bits", func(c *Config) { c.Hash.Bits = 128 }, "hash.bits"},
		{"zero slots", func(c *Config) { c.Governor.MaxConcurrentExtractions = 0 }, "max_concurrent_extractions"},
		{"bad policy", func(c *Config) { c.Governor.Policy = "spill" }, "governor.policy"},
	}
	for _, tc := range cases {
		cfg := Default()
		if err := cfg.normalize(); err != nil {
			t.Fatalf("%s: normalize: %v", tc.name, err)
		}
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := ExpandPath("~/x/y")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != filepath.Join(home, "x", "y") {
		t.Fatalf("ExpandPath = %q", got)
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := os.WriteFile(path, []byte(SampleConfig()), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}
