package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateHash(); err != nil {
		return err
	}
	if err := c.validateGovernor(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateExtraction() error {
	if c.Extraction.MaxFileSizeBytes <= 0 {
		return errors.New("extraction.max_file_size_bytes must be positive")
	}
	if c.Extraction.RasterDPI < 72 || c.Extraction.RasterDPI > 1200 {
		return fmt.Errorf("extraction.raster_dpi must be between 72 and 1200, got %d", c.Extraction.RasterDPI)
	}
	if c.Extraction.JobTimeoutSeconds <= 0 {
		return errors.New("extraction.job_timeout_seconds must be positive")
	}
	if c.Extraction.MaxOutputBytes <= 0 {
		return errors.New("extraction.max_output_bytes must be positive")
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Matching.DefaultConfidenceThreshold < 0 || c.Matching.DefaultConfidenceThreshold > 1 {
		return errors.New("matching.default_confidence_threshold must be between 0 and 1")
	}
	if c.Matching.LowConfidenceBand < 0 || c.Matching.LowConfidenceBand > 1 {
		return errors.New("matching.low_confidence_band must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateHash() error {
	switch c.Hash.Algorithm {
	case "dhash", "blockhash":
	default:
		return fmt.Errorf("hash.algorithm must be dhash or blockhash, got %q", c.Hash.Algorithm)
	}
	if c.Hash.Bits != 64 {
		return fmt.Errorf("hash.bits only supports 64, got %d", c.Hash.Bits)
	}
	if c.Hash.Version == "" {
		return errors.New("hash.version must be set")
	}
	return nil
}

func (c *Config) validateGovernor() error {
	if c.Governor.MaxConcurrentExtractions <= 0 {
		return errors.New("governor.max_concurrent_extractions must be positive")
	}
	switch c.Governor.Policy {
	case GovernorPolicyQueue, GovernorPolicyFailFast:
	default:
		return fmt.Errorf("governor.policy must be queue or fail-fast, got %q", c.Governor.Policy)
	}
	return nil
}
