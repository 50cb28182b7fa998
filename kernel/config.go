package kernel

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxProc   = 65536
	DefaultMaxFileID = 16
)

// Config sizes the process table and the per-process handle tables.
type Config struct {
	MaxProc   int    `yaml:"max_proc"`
	MaxFileID int    `yaml:"max_fileid"`
	LogLevel  string `yaml:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		MaxProc:   DefaultMaxProc,
		MaxFileID: DefaultMaxFileID,
		LogLevel:  "info",
	}
}

// LoadConfig reads a YAML file over the defaults. Keys missing from the
// file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "config %s", path)
	}

	return cfg, nil
}

func (c Config) Validate() error {
	// The idle and init processes need a slot each.
	if c.MaxProc < 2 || c.MaxProc > math.MaxInt32 {
		return errors.Wrapf(ErrInvalidConfig, "max_proc=%d", c.MaxProc)
	}

	if c.MaxFileID < 1 {
		return errors.Wrapf(ErrInvalidConfig, "max_fileid=%d", c.MaxFileID)
	}

	return nil
}
