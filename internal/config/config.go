package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// WorkDir is the temp-directory root; each extraction job gets a
	// uniquely named subdirectory beneath it.
	WorkDir string `toml:"work_dir"`
	// CachePath locates the hash cache database. Empty disables caching.
	CachePath string `toml:"cache_path"`
	LogDir    string `toml:"log_dir"`
}

// Extraction contains admission limits and backend tuning.
type Extraction struct {
	MaxFileSizeBytes  int64 `toml:"max_file_size_bytes"`
	RasterDPI         int   `toml:"raster_dpi"`
	JobTimeoutSeconds int   `toml:"job_timeout_seconds"`
	// MaxOutputBytes bounds the total bytes a backend may write into the
	// job workspace before it is killed.
	MaxOutputBytes int64 `toml:"max_output_bytes"`
}

// Matching contains confidence scoring configuration.
type Matching struct {
	DefaultConfidenceThreshold float64 `toml:"default_confidence_threshold"`
	LowConfidenceBand          float64 `toml:"low_confidence_band"`
}

// Hash selects the default perceptual hash configuration.
type Hash struct {
	Algorithm string `toml:"algorithm"`
	Version   string `toml:"version"`
	Bits      int    `toml:"bits"`
}

// Admission policies for the extraction governor.
const (
	GovernorPolicyQueue    = "queue"
	GovernorPolicyFailFast = "fail-fast"
)

// Governor bounds concurrent extraction jobs.
type Governor struct {
	MaxConcurrentExtractions int `toml:"max_concurrent_extractions"`
	// Policy is GovernorPolicyQueue (FIFO wait for a slot) or
	// GovernorPolicyFailFast (reject immediately when all slots are busy).
	Policy string `toml:"policy"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the engine.
//
// Configuration sections by subsystem:
//   - Paths: temp workspace root, hash cache location, log directory
//   - Extraction: admission limits, raster DPI, per-job timeout
//   - Matching: confidence threshold and review band
//   - Hash: default perceptual hash algorithm/version/bits
//   - Governor: concurrency limits and overload policy
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Extraction Extraction `toml:"extraction"`
	Matching   Matching   `toml:"matching"`
	Hash       Hash       `toml:"hash"`
	Governor   Governor   `toml:"governor"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/meeple/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. When no file exists at
// the resolved location the defaults are returned with exists=false.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("meeple.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the engine needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if cache := strings.TrimSpace(c.Paths.CachePath); cache != "" {
		if err := os.MkdirAll(filepath.Dir(cache), 0o755); err != nil {
			return fmt.Errorf("create cache directory %q: %w", filepath.Dir(cache), err)
		}
	}
	return nil
}

// PdfimagesBinary returns the poppler embedded-object extractor executable name.
func (c *Config) PdfimagesBinary() string {
	return "pdfimages"
}

// PdftoppmBinary returns the poppler page rasterizer executable name.
func (c *Config) PdftoppmBinary() string {
	return "pdftoppm"
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the annotated sample configuration to target.
func CreateSample(target string) error {
	if err := os.WriteFile(target, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath resolves ~ prefixes and returns an absolute cleaned path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return err
	}
	if c.Paths.CachePath, err = expandPath(c.Paths.CachePath); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Hash.Algorithm = strings.ToLower(strings.TrimSpace(c.Hash.Algorithm))
	c.Governor.Policy = strings.ToLower(strings.TrimSpace(c.Governor.Policy))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
