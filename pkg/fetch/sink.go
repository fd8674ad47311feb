package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ProgressFunc is a callback for download progress. total is -1 when the
// server did not advertise a length.
type ProgressFunc func(downloaded, total int64)

// destFile is the part of *os.File the sink needs.
type destFile interface {
	io.Writer
	Sync() error
	Close() error
}

// createDest opens the destination; a variable so tests can inject
// failing writers.
var createDest = func(path string) (destFile, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
}

// ToFile downloads rawURL into destPath. On success the file is flushed to
// stable storage before returning; on any failure the file is removed.
func ToFile(ctx context.Context, backend Backend, rawURL, destPath string, progress ProgressFunc) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return errors.Wrap(err, "failed to create destination directory")
	}

	file, err := createDest(destPath)
	if err != nil {
		return removePartial(destPath, errors.Wrap(err, "failed to create file for download"))
	}

	var total int64 = -1
	var written int64
	err = Download(ctx, backend, rawURL, func(ev Event) error {
		switch e := ev.(type) {
		case ContentLengthKnown:
			total = e.Length
		case DataReceived:
			n, err := file.Write(e.Chunk)
			written += int64(n)
			if err != nil {
				return errors.Wrap(err, "unable to write download to disk")
			}
			if progress != nil {
				progress(written, total)
			}
		}
		return nil
	})
	if err == nil {
		if syncErr := file.Sync(); syncErr != nil {
			err = errors.Wrap(syncErr, "unable to flush download to disk")
		}
	}
	if closeErr := file.Close(); closeErr != nil && err == nil {
		err = errors.Wrap(closeErr, "failed to close downloaded file")
	}
	if err != nil {
		return removePartial(destPath, err)
	}
	return nil
}

// removePartial deletes a partially written destination. When the removal
// itself fails both errors stay in the chain.
func removePartial(path string, cause error) error {
	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		return fmt.Errorf("%w (cleaning up partial download %s: %w)", cause, path, rmErr)
	}
	return cause
}
