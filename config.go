package aesdir

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk form of Config
type FileConfig struct {
	KDF           KDFConfig `yaml:"kdf"`
	LockTimeout   string    `yaml:"lock_timeout"`
	VerifyWorkers int       `yaml:"verify_workers"`
	LogLevel      string    `yaml:"log_level"`
}

// KDFConfig selects and tunes the key deriver
type KDFConfig struct {
	Algorithm   string `yaml:"algorithm"` // pbkdf2 (default) or argon2id
	Iterations  int    `yaml:"iterations"`
	MemoryKiB   uint32 `yaml:"memory_kib"`
	Parallelism uint8  `yaml:"parallelism"`
}

// LoadConfig reads a YAML configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewIOError("read", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig builds a Config from YAML. Unset fields take their defaults.
func ParseConfig(data []byte) (*Config, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return fc.Config()
}

// Config converts the file form into a validated Config
func (fc *FileConfig) Config() (*Config, error) {
	cfg := &Config{VerifyWorkers: fc.VerifyWorkers}

	switch strings.ToLower(fc.KDF.Algorithm) {
	case "", "pbkdf2":
		if fc.KDF.MemoryKiB != 0 || fc.KDF.Parallelism != 0 {
			return nil, NewConfigurationError("kdf", fc.KDF.Algorithm, "memory_kib and parallelism apply to argon2id only")
		}
		cfg.KeyDeriver = NewPBKDF2Deriver(fc.KDF.Iterations)
	case "argon2id":
		if fc.KDF.Iterations < 0 {
			return nil, NewConfigurationError("kdf.iterations", fc.KDF.Iterations, "iterations cannot be negative")
		}
		cfg.KeyDeriver = NewArgon2idDeriver(Argon2idParams{
			Memory:      fc.KDF.MemoryKiB,
			Iterations:  uint32(fc.KDF.Iterations),
			Parallelism: fc.KDF.Parallelism,
		})
	default:
		return nil, NewConfigurationError("kdf.algorithm", fc.KDF.Algorithm, "unknown key derivation algorithm")
	}

	if fc.LockTimeout != "" {
		d, err := time.ParseDuration(fc.LockTimeout)
		if err != nil {
			return nil, &ConfigurationError{Field: "lock_timeout", Value: fc.LockTimeout, Message: "invalid duration", Err: err}
		}
		cfg.LockTimeout = d
	}

	if fc.LogLevel != "" {
		level, err := logrus.ParseLevel(fc.LogLevel)
		if err != nil {
			return nil, &ConfigurationError{Field: "log_level", Value: fc.LogLevel, Message: "invalid log level", Err: err}
		}
		logger := newDefaultLogger()
		logger.SetLevel(level)
		cfg.Logger = logger
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
