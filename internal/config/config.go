package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultStagingRoot    = "/home/hadoop/contents"
	defaultSourceBucket   = "labeler"
	defaultSinkBucket     = "fastsvm"
	defaultRegion         = "us-east-1"
	defaultLibraryPathVar = "LD_LIBRARY_PATH"
	defaultLibraryPath    = "/usr/local/cuda/toolkit/lib64"
	defaultMaxDimension   = 960
	defaultFetchRetries   = 3
	defaultLogLevel       = "info"
)

// Config describes runtime configuration for the mapper.
type Config struct {
	StagingRoot     string `yaml:"staging_root"`
	SourceBucket    string `yaml:"source_bucket"`
	SinkBucket      string `yaml:"sink_bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	CredentialsFile string `yaml:"credentials_file"`
	LocalStore      string `yaml:"local_store"`

	Executable     string `yaml:"executable"`
	ModelPath      string `yaml:"model_path"`
	LibraryPathVar string `yaml:"library_path_var"`
	LibraryPath    string `yaml:"library_path"`

	MaxDimension  int    `yaml:"max_dimension"`
	SourceSuffix  string `yaml:"source_suffix"`
	OutputSuffix  string `yaml:"output_suffix"`
	SourceSegment string `yaml:"source_segment"`
	DestSegment   string `yaml:"dest_segment"`
	FetchRetries  int    `yaml:"fetch_retries"`

	StatusAddr string `yaml:"status_addr"`
	LogLevel   string `yaml:"log_level"`
}

// Default returns the settings of the original EMR deployment.
func Default() Config {
	return Config{
		StagingRoot:     defaultStagingRoot,
		SourceBucket:    defaultSourceBucket,
		SinkBucket:      defaultSinkBucket,
		Region:          defaultRegion,
		CredentialsFile: defaultStagingRoot + "/.aws",
		Executable:      defaultStagingRoot + "/fastSVM",
		ModelPath:       defaultStagingRoot + "/packaged.gz",
		LibraryPathVar:  defaultLibraryPathVar,
		LibraryPath:     defaultLibraryPath,
		MaxDimension:    defaultMaxDimension,
		SourceSuffix:    ".jpg",
		OutputSuffix:    ".gz",
		SourceSegment:   "images",
		DestSegment:     "output_oct9",
		FetchRetries:    defaultFetchRetries,
		LogLevel:        defaultLogLevel,
	}
}

// Load reads YAML config from the provided path. If the file does not exist
// or is empty, defaults are returned with no error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(fileData, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.MaxDimension < 1 {
		return fmt.Errorf("invalid max_dimension: %d (must be >= 1)", c.MaxDimension)
	}
	if c.FetchRetries < 0 {
		return fmt.Errorf("invalid fetch_retries: %d (must be >= 0)", c.FetchRetries)
	}
	if c.SourceSuffix == "" || c.OutputSuffix == "" {
		return errors.New("source_suffix and output_suffix are required")
	}
	if c.SourceSuffix == c.OutputSuffix {
		return fmt.Errorf("output_suffix %q must differ from source_suffix", c.OutputSuffix)
	}
	if c.Executable == "" {
		return errors.New("executable is required")
	}
	if c.LocalStore == "" && (c.SourceBucket == "" || c.SinkBucket == "") {
		return errors.New("source_bucket and sink_bucket are required unless local_store is set")
	}
	return nil
}

// Env returns the environment overrides handed to the compute binary.
func (c Config) Env() map[string]string {
	if c.LibraryPathVar == "" {
		return nil
	}
	return map[string]string{c.LibraryPathVar: c.LibraryPath}
}

func (c *Config) normalize() {
	if c.StagingRoot == "" {
		c.StagingRoot = defaultStagingRoot
	}
	if c.Region == "" {
		c.Region = defaultRegion
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.SourceSuffix = normalizeSuffix(c.SourceSuffix)
	c.OutputSuffix = normalizeSuffix(c.OutputSuffix)
	c.SourceSegment = strings.Trim(c.SourceSegment, "/")
	c.DestSegment = strings.Trim(c.DestSegment, "/")
}

func normalizeSuffix(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, ".") {
		s = "." + s
	}
	return s
}
