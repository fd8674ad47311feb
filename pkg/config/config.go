package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rustup-plus-plus/distpack/pkg/spec"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPathYML and DefaultConfigPathYAML are probed, in order,
	// when no config path is given.
	DefaultConfigPathYML  = ".config/distpack.yml"
	DefaultConfigPathYAML = ".config/distpack.yaml"
)

// Source is a parsed config together with its origin and raw bytes, which
// strict linting re-reads.
type Source struct {
	Config *spec.Config
	// Name is the file path, or a label such as "<stdin>".
	Name string
	Data []byte
	// Discovered is set when Name was found by Discover.
	Discovered bool
}

// Load reads and parses the config file at path.
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file: %s", path)
	}
	return parseSource(data, path)
}

// LoadReader parses a config streamed from r, e.g. standard input.
func LoadReader(r io.Reader, name string) (*Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config from %s", name)
	}
	return parseSource(data, name)
}

func parseSource(data []byte, name string) (*Source, error) {
	cfg, err := Parse(data, name)
	if err != nil {
		return nil, err
	}
	return &Source{Config: cfg, Name: name, Data: data}, nil
}

// Parse decodes config data and applies defaults; name is only used in
// error messages.
func Parse(data []byte, name string) (*spec.Config, error) {
	var cfg spec.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file: %s", name)
	}
	cfg.SetDefaults()
	return &cfg, nil
}

// Discover searches for a distpack config file in the current directory
// and its parents.
func Discover() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "failed to get current directory")
	}

	for {
		for _, candidate := range []string{DefaultConfigPathYML, DefaultConfigPathYAML} {
			configPath := filepath.Join(dir, candidate)
			if _, err := os.Stat(configPath); err == nil {
				return configPath, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no distpack config found (looked for %s and %s)", DefaultConfigPathYML, DefaultConfigPathYAML)
}

// LoadOrDiscover loads path, or the discovered default config when path is
// empty.
func LoadOrDiscover(path string) (*Source, error) {
	if path != "" {
		return Load(path)
	}
	found, err := Discover()
	if err != nil {
		return nil, err
	}
	src, err := Load(found)
	if err != nil {
		return nil, err
	}
	src.Discovered = true
	return src, nil
}
