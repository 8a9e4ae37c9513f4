package config

const (
	defaultWorkDir           = "~/.local/share/meeple/work"
	defaultCachePath         = "~/.cache/meeple/hashes.db"
	defaultLogDir            = "~/.local/share/meeple/logs"
	defaultMaxFileSizeBytes  = 50 * 1024 * 1024
	defaultRasterDPI         = 300
	defaultJobTimeoutSeconds = 120
	defaultMaxOutputBytes    = 512 * 1024 * 1024
	defaultThreshold         = 0.90
	defaultLowConfidenceBand = 0.05
	defaultHashAlgorithm     = "dhash"
	defaultHashVersion       = "1.0.0"
	defaultHashBits          = 64
	defaultMaxConcurrent     = 3
	defaultGovernorPolicy    = GovernorPolicyQueue
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			CachePath: defaultCachePath,
			LogDir:    defaultLogDir,
		},
		Extraction: Extraction{
			MaxFileSizeBytes:  defaultMaxFileSizeBytes,
			RasterDPI:         defaultRasterDPI,
			JobTimeoutSeconds: defaultJobTimeoutSeconds,
			MaxOutputBytes:    defaultMaxOutputBytes,
		},
		Matching: Matching{
			DefaultConfidenceThreshold: defaultThreshold,
			LowConfidenceBand:          defaultLowConfidenceBand,
		},
		Hash: Hash{
			Algorithm: defaultHashAlgorithm,
			Version:   defaultHashVersion,
			Bits:      defaultHashBits,
		},
		Governor: Governor{
			MaxConcurrentExtractions: defaultMaxConcurrent,
			Policy:                   defaultGovernorPolicy,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
