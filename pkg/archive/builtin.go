package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// Builtin reads and writes archives in-process, without a tar executable.
type Builtin struct{}

// Unpack implements Archiver.
func (Builtin) Unpack(ctx context.Context, archivePath, destDir string) error {
	format, err := DetectFormat(archivePath)
	if err != nil {
		return err
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return errors.Wrap(err, "failed to open archive")
	}
	defer file.Close()

	switch format {
	case FormatTarGz:
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return errors.Wrap(err, "failed to create gzip reader")
		}
		defer gzReader.Close()
		return extractTarReader(ctx, gzReader, destDir)
	case FormatTarXz:
		xzReader, err := xz.NewReader(file)
		if err != nil {
			return errors.Wrap(err, "failed to create xz reader")
		}
		return extractTarReader(ctx, xzReader, destDir)
	default:
		return extractTarReader(ctx, file, destDir)
	}
}

// extractTarReader extracts from a tar reader
func extractTarReader(ctx context.Context, r io.Reader, destDir string) error {
	tarReader := tar.NewReader(r)
	root := filepath.Clean(destDir)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "failed to read tar header")
		}

		target := filepath.Join(root, header.Name)
		if !within(root, target) {
			return fmt.Errorf("invalid path in archive: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)|0700); err != nil {
				return errors.Wrap(err, "failed to create directory")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return errors.Wrap(err, "failed to create parent directory")
			}

			file, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return errors.Wrap(err, "failed to create file")
			}

			if _, err := io.Copy(file, tarReader); err != nil {
				file.Close()
				return errors.Wrap(err, "failed to extract file")
			}

			if err := file.Close(); err != nil {
				return errors.Wrap(err, "failed to close extracted file")
			}
		case tar.TypeSymlink:
			linkTarget := filepath.Join(filepath.Dir(target), header.Linkname)
			if filepath.IsAbs(header.Linkname) || !within(root, linkTarget) {
				return fmt.Errorf("invalid symlink in archive: %s -> %s", header.Name, header.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return errors.Wrap(err, "failed to create parent directory")
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return errors.Wrap(err, "failed to create symlink")
			}
		}
	}

	return nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Create implements Archiver. The archive is written to a temporary file
// next to outputPath and renamed into place once complete.
func (Builtin) Create(ctx context.Context, srcDir, outputPath string) error {
	format, err := DetectFormat(outputPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".distpack-*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary archive")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := writeArchive(ctx, tmp, format, srcDir); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to sync archive")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close archive")
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return errors.Wrap(err, "failed to set archive permissions")
	}
	return errors.Wrap(os.Rename(tmpName, outputPath), "failed to move archive into place")
}

func writeArchive(ctx context.Context, w io.Writer, format Format, srcDir string) error {
	switch format {
	case FormatTarGz:
		gzWriter := gzip.NewWriter(w)
		if err := writeTar(ctx, gzWriter, srcDir); err != nil {
			return err
		}
		return errors.Wrap(gzWriter.Close(), "failed to finish gzip stream")
	case FormatTarXz:
		xzWriter, err := xz.NewWriter(w)
		if err != nil {
			return errors.Wrap(err, "failed to create xz writer")
		}
		if err := writeTar(ctx, xzWriter, srcDir); err != nil {
			return err
		}
		return errors.Wrap(xzWriter.Close(), "failed to finish xz stream")
	default:
		return writeTar(ctx, w, srcDir)
	}
}

func writeTar(ctx context.Context, w io.Writer, srcDir string) error {
	tarWriter := tar.NewWriter(w)

	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			header.Name += "/"
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}

		if !info.Mode().IsRegular() {
			return nil
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(tarWriter, file)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "failed to archive %s", srcDir)
	}
	return errors.Wrap(tarWriter.Close(), "failed to finish tar stream")
}
