package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Validator is implemented by every run configuration.
type Validator interface {
	Validate(path string) error
}

type pathResolver interface {
	resolvePaths(base string)
}

// Read decodes the config file into cfg, resolves relative paths against the file's
// directory and validates the result. YAML and JSON are selected by extension.
func Read(filePath string, cfg Validator) error {
	//nolint:gosec
	buf, err := os.ReadFile(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to read config %q", filePath)
	}
	return FromReader(filePath, bytes.NewReader(buf), cfg)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(originalPath string, r io.Reader, cfg Validator) error {
	switch strings.ToLower(filepath.Ext(originalPath)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return errors.Wrap(err, "failed to decode config from yaml")
		}
	case ".json", "":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return errors.Wrap(err, "failed to decode config from json")
		}
	default:
		return errors.Errorf("unsupported config extension %q", filepath.Ext(originalPath))
	}
	if pr, ok := cfg.(pathResolver); ok && originalPath != "" {
		pr.resolvePaths(filepath.Dir(originalPath))
	}
	return cfg.Validate("")
}
