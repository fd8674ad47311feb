package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/goccy/go-yaml"
	"github.com/rustup-plus-plus/distpack/internal/runner"
	"github.com/rustup-plus-plus/distpack/pkg/config"
	"github.com/rustup-plus-plus/distpack/pkg/spec"
)

// stdin is replaced in tests.
var stdin io.Reader = os.Stdin

// lookupEnv is the single point where the process environment is read.
var lookupEnv config.LookupFunc = os.LookupEnv

// newRunner builds the collaborator runner; tests swap in a recorder.
var newRunner = func(env map[string]string) runner.Runner {
	return runner.New(env)
}

// loadConfig loads, defaults and validates the config named by cfgFile,
// discovering the default file when cfgFile is empty and reading stdin for
// "-". It returns the raw bytes too so callers can lint them.
func loadConfig(cfgFile string) (*spec.Config, []byte, error) {
	var (
		src *config.Source
		err error
	)
	if cfgFile == "-" {
		log.Debug("Reading config from stdin")
		src, err = config.LoadReader(stdin, "<stdin>")
	} else {
		src, err = config.LoadOrDiscover(cfgFile)
	}
	if err != nil {
		return nil, nil, err
	}
	if src.Discovered {
		log.Infof("Using default config file: %s", src.Name)
	}
	log.Debugf("Loaded config from: %s", src.Name)

	if err := spec.Validate(src.Config); err != nil {
		return nil, nil, fmt.Errorf("invalid config %s: %w", src.Name, err)
	}
	return src.Config, src.Data, nil
}

// lintConfig decodes data strictly so unknown or misspelled keys are
// reported with their source position.
func lintConfig(data []byte) error {
	var cfg spec.Config
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
		return fmt.Errorf("%s", yaml.FormatError(err, false, true))
	}
	return nil
}

// loadSettings resolves the environment snapshot over cfg.
func loadSettings(cfg *spec.Config) (config.Settings, error) {
	env, err := config.ReadEnvironment(lookupEnv)
	if err != nil {
		return config.Settings{}, err
	}
	settings := config.Resolve(cfg, env)
	log.WithFields(log.Fields{
		"dist_server": settings.DistServer,
		"update_root": settings.UpdateRoot,
		"backend":     settings.Backend,
	}).Debug("resolved settings")
	return settings, nil
}
