// Package config provides the configuration loader for pipecache.
package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/pipecache/internal/core/domain"
	"go.trai.ch/pipecache/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load walks up from cwd to the nearest pipecache.yaml and resolves it.
// Without a config file the defaults are resolved against cwd.
func (l *Loader) Load(cwd string) (*domain.Config, error) {
	configPath, err := findConfiguration(cwd)
	if err != nil {
		return nil, err
	}

	var file File
	root := filepath.Clean(cwd)
	if configPath == "" {
		l.Logger.Debug("no config file found, using defaults", "cwd", cwd)
	} else {
		if err := readAndUnmarshalYAML(configPath, &file); err != nil {
			return nil, zerr.With(err, "path", configPath)
		}
		root = filepath.Dir(configPath)
	}

	return resolve(root, &file)
}

func findConfiguration(cwd string) (string, error) {
	currentDir := filepath.Clean(cwd)
	for {
		candidate := filepath.Join(currentDir, domain.ConfigFileName)
		info, err := os.Stat(candidate)
		switch {
		case err == nil && !info.IsDir():
			return candidate, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", candidate)
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			return "", nil
		}
		currentDir = parentDir
	}
}

func resolve(root string, file *File) (*domain.Config, error) {
	if file.Version != "" && file.Version != "1" {
		return nil, zerr.With(domain.ErrInvalidConfig, "version", file.Version)
	}

	cfg := &domain.Config{
		Root:        root,
		StorePath:   resolvePath(root, file.Store, domain.DefaultStorePath()),
		LogFormat:   domain.LogFormatPretty,
		Parallelism: file.Parallelism,
	}

	switch domain.LogFormat(file.Log) {
	case "", domain.LogFormatPretty:
	case domain.LogFormatJSON:
		cfg.LogFormat = domain.LogFormatJSON
	default:
		return nil, zerr.With(domain.ErrInvalidConfig, "log", file.Log)
	}

	if cfg.Parallelism < 0 {
		return nil, zerr.With(domain.ErrInvalidConfig, "parallelism", cfg.Parallelism)
	}
	return cfg, nil
}

func resolvePath(root, configured, fallback string) string {
	if configured == "" {
		configured = fallback
	}
	if filepath.IsAbs(configured) {
		return filepath.Clean(configured)
	}
	return filepath.Clean(filepath.Join(root, configured))
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
// Unknown keys are rejected.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is found by walking up from the working directory
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}

	dec := yaml.NewDecoder(bytes.NewReader(configFile))
	dec.KnownFields(true)
	if parseErr := dec.Decode(target); parseErr != nil && !errors.Is(parseErr, io.EOF) {
		return zerr.Wrap(parseErr, domain.ErrConfigParseFailed.Error())
	}

	return nil
}
