// Package merge builds auxiliary tools into isolated install roots with the
// package manager and moves the results into an extracted package.
package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/apex/log"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/rustup-plus-plus/distpack/internal/runner"
	"github.com/rustup-plus-plus/distpack/pkg/archive"
	"github.com/rustup-plus-plus/distpack/pkg/manifest"
	"github.com/rustup-plus-plus/distpack/pkg/spec"
)

// DirName is the install root directory name of tool.
func DirName(tool spec.Tool) string {
	if tool.Version == "" {
		return tool.Name
	}
	return tool.Name + "_" + tool.Version
}

// ComponentID is the identifier recorded in the components ledger.
func ComponentID(tool spec.Tool) string {
	if tool.Version == "" {
		return tool.Name
	}
	return tool.Name + "-" + tool.Version
}

// CrateSpec is the argument handed to the package manager.
func CrateSpec(tool spec.Tool) string {
	if tool.Version == "" {
		return tool.Name
	}
	return tool.Name + "@" + tool.Version
}

// Tree is a successfully built tool install root, not yet merged.
type Tree struct {
	Tool spec.Tool
	Dir  string
	// Binaries lists the executables the package manager reported.
	Binaries []string

	manifestWritten bool
}

// Merger builds tools and merges them into packages.
type Merger struct {
	Cargo runner.Program
	// WorkDir holds the isolated install roots until they are moved.
	WorkDir string
	// StagedManifest writes each tool's manifest before the move instead of
	// after it.
	StagedManifest bool
	SortManifest   bool
	Logger         log.Interface
}

// New returns a Merger running "cargo" through r.
func New(r runner.Runner, workDir string) *Merger {
	return &Merger{
		Cargo:          runner.Program{Name: "cargo", Runner: r},
		WorkDir:        workDir,
		StagedManifest: true,
		Logger:         log.Log,
	}
}

func (m *Merger) logger() log.Interface {
	if m.Logger == nil {
		return log.Log
	}
	return m.Logger
}

// Build creates the isolated directory for tool and installs it there. The
// directory is not inspected unless the package manager succeeded.
func (m *Merger) Build(ctx context.Context, tool spec.Tool) (*Tree, error) {
	if err := os.MkdirAll(m.WorkDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create work directory")
	}
	dir := filepath.Join(m.WorkDir, DirName(tool))
	if err := os.Mkdir(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create install root for %s", tool)
	}

	logger := m.logger().WithField("tool", tool.String())
	logger.Infof("building %s", CrateSpec(tool))
	if err := m.Cargo.Run(ctx, "install", CrateSpec(tool), "--root", dir); err != nil {
		return nil, errors.Wrapf(err, "failed to build %s", tool)
	}

	tree := &Tree{Tool: tool, Dir: dir}
	bins, err := readInstalledBinaries(dir)
	if err != nil {
		logger.WithError(err).Warn("could not read install metadata")
	}
	tree.Binaries = bins
	if len(bins) > 0 {
		logger.Debugf("installed binaries: %s", strings.Join(bins, ", "))
	}

	if m.StagedManifest {
		if err := manifest.Write(dir, manifest.Options{Sorted: m.SortManifest}); err != nil {
			return nil, errors.Wrapf(err, "failed to write manifest for %s", tool)
		}
		tree.manifestWritten = true
	}
	return tree, nil
}

// cratesFile is the package manager's install bookkeeping:
//
//	[v1]
//	"ripgrep 14.1.0 (registry+https://github.com/rust-lang/crates.io-index)" = ["rg"]
type cratesFile struct {
	V1 map[string][]string `toml:"v1"`
}

func readInstalledBinaries(dir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifest.CratesTOML))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var crates cratesFile
	if err := toml.Unmarshal(data, &crates); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", manifest.CratesTOML)
	}

	var bins []string
	for _, b := range crates.V1 {
		bins = append(bins, b...)
	}
	sort.Strings(bins)
	return bins, nil
}

// CollisionError reports that the package already has an entry with the
// tool's directory name.
type CollisionError struct {
	Path string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("cannot merge tool: %s already exists", e.Path)
}

// CrossDeviceError reports that the install root and the package live on
// different volumes, so the tree cannot be moved by rename.
type CrossDeviceError struct {
	From, To string
	Err      error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("cannot move %s to %s across volumes: %v", e.From, e.To, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

var rename = os.Rename

// MoveInto renames tree into pkg and returns the new location. It never
// falls back to copying.
func (m *Merger) MoveInto(tree *Tree, pkg *archive.Package) (string, error) {
	pkgDir, err := pkg.Path()
	if err != nil {
		return "", err
	}
	dest := filepath.Join(pkgDir, filepath.Base(tree.Dir))

	if _, err := os.Lstat(dest); err == nil {
		return "", &CollisionError{Path: dest}
	} else if !os.IsNotExist(err) {
		return "", errors.Wrapf(err, "failed to inspect %s", dest)
	}

	if err := rename(tree.Dir, dest); err != nil {
		if errors.Is(err, syscall.EXDEV) {
			return "", &CrossDeviceError{From: tree.Dir, To: dest, Err: err}
		}
		return "", errors.Wrapf(err, "failed to move %s into package", tree.Tool)
	}
	tree.Dir = dest

	if !tree.manifestWritten {
		if err := manifest.Write(dest, manifest.Options{Sorted: m.SortManifest}); err != nil {
			return "", errors.Wrapf(err, "failed to write manifest for %s", tree.Tool)
		}
		tree.manifestWritten = true
	}
	return dest, nil
}

// Merge builds tool, moves it into pkg and records it in the ledger.
func (m *Merger) Merge(ctx context.Context, tool spec.Tool, pkg *archive.Package) error {
	tree, err := m.Build(ctx, tool)
	if err != nil {
		return err
	}
	if _, err := m.MoveInto(tree, pkg); err != nil {
		return err
	}
	pkgDir, err := pkg.Path()
	if err != nil {
		return err
	}
	return errors.Wrap(manifest.AppendComponent(pkgDir, ComponentID(tool)), "failed to update components")
}
