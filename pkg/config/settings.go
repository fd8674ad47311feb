package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rustup-plus-plus/distpack/pkg/fetch"
	"github.com/rustup-plus-plus/distpack/pkg/spec"
)

// Environment variables consulted once at process start.
const (
	EnvDistServer     = "RUSTUP_DIST_SERVER"
	EnvUpdateRoot     = "RUSTUP_UPDATE_ROOT"
	EnvStagedManifest = "DISTPACK_STAGED_MANIFEST"
	EnvUseCurl        = "RUSTUP_USE_CURL"
	EnvBackend        = "DISTPACK_BACKEND"
)

const (
	DefaultDistServer = "https://static.rust-lang.org"
	DefaultUpdateRoot = "https://static.rust-lang.org/rustup"
)

// Environment is the snapshot of overrides taken from the process environment.
type Environment struct {
	DistServer     string
	UpdateRoot     string
	StagedManifest *bool
	Backend        string
}

// Settings is the resolved, explicit configuration threaded through install
// and package runs.
type Settings struct {
	DistServer string
	UpdateRoot string
	// StagedManifest writes each tool's manifest.in while the tool still sits
	// in its isolated build directory; otherwise it is written after the
	// move into the package tree.
	StagedManifest bool
	// Backend selects the download backend by name.
	Backend string
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ReadEnvironment snapshots the overrides through lookup, usually os.LookupEnv.
func ReadEnvironment(lookup LookupFunc) (Environment, error) {
	var env Environment
	if v, ok := lookup(EnvDistServer); ok {
		env.DistServer = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvUpdateRoot); ok {
		env.UpdateRoot = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvStagedManifest); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Environment{}, errors.Wrapf(err, "invalid %s value %q", EnvStagedManifest, v)
		}
		env.StagedManifest = &b
	}
	if v, ok := lookup(EnvBackend); ok && v != "" {
		backend := strings.ToLower(strings.TrimSpace(v))
		if backend != fetch.BackendHTTP && backend != fetch.BackendCurl {
			return Environment{}, errors.Errorf("invalid %s value %q (want %s or %s)", EnvBackend, v, fetch.BackendHTTP, fetch.BackendCurl)
		}
		env.Backend = backend
	} else if v, ok := lookup(EnvUseCurl); ok && v != "" {
		// rustup's own switch; only an explicit true value selects curl.
		if useCurl, err := strconv.ParseBool(v); err == nil && useCurl {
			env.Backend = fetch.BackendCurl
		}
	}
	return env, nil
}

// Resolve merges the environment snapshot over the config file over the
// built-in defaults.
func Resolve(cfg *spec.Config, env Environment) Settings {
	s := Settings{
		DistServer:     DefaultDistServer,
		UpdateRoot:     DefaultUpdateRoot,
		StagedManifest: true,
		Backend:        fetch.BackendHTTP,
	}
	if cfg != nil {
		if cfg.DistServer != "" {
			s.DistServer = cfg.DistServer
		}
		if cfg.UpdateRoot != "" {
			s.UpdateRoot = cfg.UpdateRoot
		}
	}
	if env.DistServer != "" {
		s.DistServer = env.DistServer
	}
	if env.UpdateRoot != "" {
		s.UpdateRoot = env.UpdateRoot
	}
	if env.StagedManifest != nil {
		s.StagedManifest = *env.StagedManifest
	}
	if env.Backend != "" {
		s.Backend = env.Backend
	}
	s.DistServer = strings.TrimRight(s.DistServer, "/")
	s.UpdateRoot = strings.TrimRight(s.UpdateRoot, "/")
	return s
}

// CollaboratorEnv returns the variables handed to the toolchain manager so it
// talks to the same servers.
func (s Settings) CollaboratorEnv() map[string]string {
	return map[string]string{
		EnvDistServer: s.DistServer,
		EnvUpdateRoot: s.UpdateRoot,
	}
}

// ExpandPath expands ~ and environment variables in a path and makes it absolute.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home := os.Getenv("HOME"); home != "" {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}

	path = os.ExpandEnv(path)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve path %s", path)
	}
	return absPath, nil
}
