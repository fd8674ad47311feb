// Package manifest writes the per-component file listing and maintains the
// package's components ledger.
package manifest

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

const (
	// FileName is the manifest written at the root of a component.
	FileName = "manifest.in"
	// CratesTOML and CratesJSON are the package manager's bookkeeping files.
	CratesTOML = ".crates.toml"
	CratesJSON = ".crates2.json"

	entryPrefix = "file:"
)

var excluded = map[string]bool{
	FileName:   true,
	CratesTOML: true,
	CratesJSON: true,
}

// Options controls manifest generation.
type Options struct {
	// Sorted orders entries by relative path. Without it entries follow the
	// platform's directory listing order.
	Sorted bool
}

// Write lists every file below root into root/manifest.in, one
// "file:<relative path>" line each, walking directories breadth-first.
func Write(root string, opts Options) error {
	manifestPath := filepath.Join(root, FileName)
	out, err := os.OpenFile(manifestPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to create manifest")
	}

	entries, err := collect(root)
	if err != nil {
		out.Close()
		return err
	}
	if opts.Sorted {
		sort.Strings(entries)
	}

	w := bufio.NewWriter(out)
	for _, rel := range entries {
		w.WriteString(entryPrefix)
		w.WriteString(rel)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return errors.Wrap(err, "failed to write manifest")
	}
	return errors.Wrap(out.Close(), "failed to close manifest")
}

// collect returns the slash-separated relative paths of all files below
// root. Symlinks to regular files count as files; symlinked directories
// are not descended into.
func collect(root string) ([]string, error) {
	var entries []string
	queue := []string{""}

	for len(queue) > 0 {
		rel := queue[0]
		queue = queue[1:]

		names, err := readDirNames(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}

		for _, name := range names {
			childRel := name
			if rel != "" {
				childRel = path.Join(rel, name)
			}
			full := filepath.Join(root, filepath.FromSlash(childRel))

			info, err := os.Lstat(full)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to stat %s", full)
			}

			switch {
			case info.IsDir():
				queue = append(queue, childRel)
			case info.Mode()&os.ModeSymlink != 0:
				target, err := os.Stat(full)
				if err == nil && target.Mode().IsRegular() && !excluded[name] {
					entries = append(entries, childRel)
				}
			case info.Mode().IsRegular():
				if !excluded[name] {
					entries = append(entries, childRel)
				}
			}
		}
	}
	return entries, nil
}

// readDirNames lists dir in the order the operating system returns.
func readDirNames(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", dir)
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", dir)
	}
	return names, nil
}
