// Package config holds the runtime options of the simulation driver.
// The physical system itself arrives as JSON on stdin; this file
// controls only how the simulation is run and where results go.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"vmc/internal/runinfo"
)

// Config captures all runtime options for the simulation driver.
type Config struct {
	InitializationSweeps int `yaml:"initialization_sweeps"`
	SweepsPerBatch       int `yaml:"sweeps_per_batch"`
	Batches              int `yaml:"batches"`

	// SubsystemLengths sets the box used by the Renyi estimators, one
	// entry per lattice dimension; missing entries fall back to 2.
	SubsystemLengths []int `yaml:"subsystem_lengths"`

	// UpdateSwappedBeforeAccept performs the swapped-system update while
	// computing the probability ratio (so the phibeta ratios enter the
	// walk weight) rather than deferring it to the accept path.
	UpdateSwappedBeforeAccept bool `yaml:"update_swapped_before_accept"`

	Engine  EngineConfig       `yaml:"engine"`
	Output  OutputConfig       `yaml:"output"`
	Storage StorageConfig      `yaml:"storage"`
	Logging Logging            `yaml:"logging"`
	RunInfo *runinfo.BasicInfo `yaml:"-"`
}

// EngineConfig tunes the determinant engine's numerical policy.
type EngineConfig struct {
	ExtraCareful    bool    `yaml:"extra_careful"`
	Careful         bool    `yaml:"careful"`
	LowerCutoff     float64 `yaml:"lower_cutoff"`
	UpperCutoff     float64 `yaml:"upper_cutoff"`
	SafeLowerCutoff float64 `yaml:"safe_lower_cutoff"`
}

// OutputConfig controls the result dump on disk.
type OutputConfig struct {
	Dir     string `yaml:"dir"`
	Archive bool   `yaml:"archive"`
}

// StorageConfig holds external storage settings.
type StorageConfig struct {
	S3  S3Config  `yaml:"s3"`
	GCS GCSConfig `yaml:"gcs"`
}

// CloudEnabled reports whether any cloud storage backend is enabled.
func (s StorageConfig) CloudEnabled() bool {
	return s.GCS.Enabled || s.S3.Enabled
}

// S3Config configures S3 uploads (including S3-compatible endpoints).
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// GCSConfig configures GCS uploads.
type GCSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Logging controls the driver's log output, which goes to stderr.
type Logging struct {
	Verbose bool `yaml:"verbose"`
}

func defaultConfig() Config {
	return Config{
		InitializationSweeps:      1000,
		SweepsPerBatch:            12,
		Batches:                   100,
		UpdateSwappedBeforeAccept: true,
		Engine: EngineConfig{
			LowerCutoff:     1e-50,
			UpperCutoff:     1e50,
			SafeLowerCutoff: 1e-6,
		},
		Output: OutputConfig{
			Dir:     "vmc-results",
			Archive: true,
		},
	}
}

// Default returns the configuration used when no config file is given.
func Default() Config {
	cfg := defaultConfig()
	normalizeConfig(&cfg)
	cfg.RunInfo = runinfo.FromEnv()
	return cfg
}

// Load reads configuration from a YAML file, applying defaults for
// missing keys.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	normalizeConfig(&cfg)
	cfg.RunInfo = runinfo.FromEnv()
	return cfg, nil
}

func normalizeConfig(cfg *Config) {
	if cfg.InitializationSweeps < 0 {
		cfg.InitializationSweeps = 0
	}
	if cfg.SweepsPerBatch <= 0 {
		cfg.SweepsPerBatch = 12
	}
	if cfg.Batches <= 0 {
		cfg.Batches = 100
	}
	if cfg.Engine.LowerCutoff <= 0 {
		cfg.Engine.LowerCutoff = 1e-50
	}
	if cfg.Engine.UpperCutoff <= 0 {
		cfg.Engine.UpperCutoff = 1e50
	}
	if cfg.Engine.SafeLowerCutoff <= 0 {
		cfg.Engine.SafeLowerCutoff = 1e-6
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "vmc-results"
	}
}

// SubsystemLength returns the configured subsystem side for one
// dimension, clamped to the lattice length.
func (c Config) SubsystemLength(dim, latticeLength int) int {
	length := 2
	if dim < len(c.SubsystemLengths) && c.SubsystemLengths[dim] > 0 {
		length = c.SubsystemLengths[dim]
	}
	if length > latticeLength {
		length = latticeLength
	}
	return length
}
