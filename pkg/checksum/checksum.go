// Package checksum publishes digests of produced package archives in the
// sha256sum format the distribution server uses for its own archives.
package checksum

import (
	"bufio"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Algorithm names a digest algorithm.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// ErrMismatch is returned by Verify when an archive no longer matches its
// published digest.
var ErrMismatch = errors.New("checksum mismatch")

// ParseAlgorithm maps a config value onto an Algorithm; empty means SHA256.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(name)) {
	case SHA256, "":
		return SHA256, nil
	case SHA512:
		return SHA512, nil
	default:
		return "", fmt.Errorf("unsupported algorithm: %s", name)
	}
}

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case SHA256, "":
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", a)
	}
}

// Compute computes the hex digest of a file
func Compute(filePath string, algorithm Algorithm) (string, error) {
	h, err := algorithm.newHash()
	if err != nil {
		return "", err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return "", errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	if _, err := io.Copy(h, file); err != nil {
		return "", errors.Wrap(err, "failed to compute checksum")
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// FilePath is the sidecar file holding the digest of archivePath.
func FilePath(archivePath string, algorithm Algorithm) string {
	if algorithm == "" {
		algorithm = SHA256
	}
	return archivePath + "." + string(algorithm)
}

// Write computes the digest of archivePath and writes "<hex>  <basename>"
// to its sidecar file. It returns the digest.
func Write(archivePath string, algorithm Algorithm) (string, error) {
	sum, err := Compute(archivePath, algorithm)
	if err != nil {
		return "", err
	}
	line := fmt.Sprintf("%s  %s\n", sum, filepath.Base(archivePath))
	if err := os.WriteFile(FilePath(archivePath, algorithm), []byte(line), 0644); err != nil {
		return "", errors.Wrap(err, "failed to write checksum file")
	}
	return sum, nil
}

// Verify recomputes the digest of archivePath and compares it with the one
// recorded in its sidecar file.
func Verify(archivePath string, algorithm Algorithm) error {
	want, err := Lookup(FilePath(archivePath, algorithm), filepath.Base(archivePath))
	if err != nil {
		return err
	}
	got, err := Compute(archivePath, algorithm)
	if err != nil {
		return err
	}
	if !strings.EqualFold(want, got) {
		return errors.Wrapf(ErrMismatch, "%s: published %s, computed %s", filepath.Base(archivePath), want, got)
	}
	return nil
}

// Lookup finds the digest recorded for filename in a checksum file.
func Lookup(checksumFile, filename string) (string, error) {
	file, err := os.Open(checksumFile)
	if err != nil {
		return "", errors.Wrap(err, "failed to open checksum file")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		sum, name, ok := parseLine(scanner.Text())
		if ok && name == filename {
			return sum, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, "failed to read checksum file")
	}

	return "", fmt.Errorf("checksum not found for %s", filename)
}

// parseLine parses a line from a checksum file
// Supports formats like:
// - "abc123  filename.tar.gz" (two spaces)
// - "abc123 *filename.tar.gz" (binary mode marker)
// - "abc123	filename.tar.gz" (tab)
func parseLine(line string) (sum, filename string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}

	parts := strings.Fields(line)
	if len(parts) < 2 {
		return "", "", false
	}

	return parts[0], strings.TrimPrefix(parts[1], "*"), true
}
