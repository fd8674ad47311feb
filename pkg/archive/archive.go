// Package archive unpacks downloaded toolchain archives into package
// directories and re-compresses assembled package directories.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Format represents the archive format
type Format string

const (
	FormatTarGz Format = "tar.gz"
	FormatTarXz Format = "tar.xz"
	FormatTar   Format = "tar"
)

// DetectFormat detects the archive format based on the filename
func DetectFormat(filename string) (Format, error) {
	lower := strings.ToLower(filename)

	switch {
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz, nil
	case strings.HasSuffix(lower, ".tar.xz") || strings.HasSuffix(lower, ".txz"):
		return FormatTarXz, nil
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar, nil
	default:
		return "", fmt.Errorf("unsupported archive format: %s", filepath.Base(filename))
	}
}

// Archiver unpacks and creates archives.
type Archiver interface {
	// Unpack extracts archivePath into destDir.
	Unpack(ctx context.Context, archivePath, destDir string) error
	// Create writes an archive of the contents of srcDir, without a leading
	// directory component, to outputPath.
	Create(ctx context.Context, srcDir, outputPath string) error
}

// ErrConsumed is returned when a Package handle is used after Pack.
var ErrConsumed = errors.New("package directory already handed off")

// Package is the single-owner handle of an extracted package directory.
// Stages receive the handle rather than a path; Pack consumes it.
type Package struct {
	mu       sync.Mutex
	dir      string
	consumed bool
}

// Open wraps an existing package directory.
func Open(dir string) (*Package, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "package directory %s", dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("package path %s is not a directory", dir)
	}
	return &Package{dir: dir}, nil
}

// Path returns the directory, or ErrConsumed once the handle was packed.
func (p *Package) Path() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed {
		return "", errors.Wrap(ErrConsumed, p.dir)
	}
	return p.dir, nil
}

// Name is the base name of the package directory.
func (p *Package) Name() string {
	return filepath.Base(p.dir)
}

func (p *Package) consume() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.consumed {
		return "", errors.Wrap(ErrConsumed, p.dir)
	}
	p.consumed = true
	return p.dir, nil
}

// PackageDirName strips the compression and archive extensions:
// "name.tar.gz" becomes "name".
func PackageDirName(archiveName string) string {
	name := filepath.Base(archiveName)
	for i := 0; i < 2; i++ {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}

// Extract unpacks archivePath next to itself and deletes the archive. The
// archive must contain a top-level directory named after it. Any failure
// leaves the directory in an unknown state and must abort the run.
func Extract(ctx context.Context, a Archiver, archivePath string) (*Package, error) {
	name := PackageDirName(archivePath)
	if name == "" || name == filepath.Base(archivePath) {
		return nil, fmt.Errorf("cannot derive package directory from archive name %s", filepath.Base(archivePath))
	}
	parent := filepath.Dir(archivePath)
	dir := filepath.Join(parent, name)

	// A leftover directory would hide an archive that unpacks elsewhere.
	if _, err := os.Lstat(dir); err == nil {
		return nil, fmt.Errorf("package directory %s already exists", dir)
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to inspect %s", dir)
	}
	if err := a.Unpack(ctx, archivePath, parent); err != nil {
		return nil, errors.Wrapf(err, "failed to extract %s", filepath.Base(archivePath))
	}

	pkg, err := Open(dir)
	if err != nil {
		return nil, errors.Wrap(err, "extracted archive did not produce its package directory")
	}

	if err := os.Remove(archivePath); err != nil {
		return nil, errors.Wrap(err, "failed to clean up downloaded archive")
	}
	return pkg, nil
}

// CleanupError reports that the archive was written but the package
// directory could not be removed afterwards. The archive stays valid.
type CleanupError struct {
	Archive string
	Dir     string
	Err     error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("archive %s written but removing %s failed: %v", e.Archive, e.Dir, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// removeAll is a variable so tests can simulate a failed cleanup.
var removeAll = os.RemoveAll

// Pack compresses the contents of pkg into outputPath and removes the
// package directory. The handle is consumed once the archive exists.
func Pack(ctx context.Context, a Archiver, pkg *Package, outputPath string) error {
	dir, err := pkg.Path()
	if err != nil {
		return err
	}
	if err := a.Create(ctx, dir, outputPath); err != nil {
		return errors.Wrapf(err, "failed to create archive %s", outputPath)
	}
	if _, err := pkg.consume(); err != nil {
		return err
	}
	if err := removeAll(dir); err != nil {
		return &CleanupError{Archive: outputPath, Dir: dir, Err: err}
	}
	return nil
}
