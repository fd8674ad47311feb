package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/rustup-plus-plus/distpack/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

const pkgName = "rust-nightly-x86_64-unknown-linux-gnu"

var testFiles = map[string]string{
	pkgName + "/install.sh":             "#!/bin/sh\n",
	pkgName + "/components":             "rustc\ncargo\n",
	pkgName + "/rustc/bin/rustc":        "rustc binary",
	pkgName + "/rustc/manifest.in":      "file:bin/rustc\n",
	pkgName + "/cargo/share/doc/README": "cargo docs",
}

func writeTestTar(t *testing.T, w io.Writer, files map[string]string) {
	t.Helper()
	tarWriter := tar.NewWriter(w)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		content := files[name]
		header := &tar.Header{
			Name: name,
			Mode: 0755,
			Size: int64(len(content)),
		}
		require.NoError(t, tarWriter.WriteHeader(header))
		_, err := tarWriter.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tarWriter.Close())
}

func createTestTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	gzWriter := gzip.NewWriter(file)
	writeTestTar(t, gzWriter, files)
	require.NoError(t, gzWriter.Close())
}

func createTestTarXz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	xzWriter, err := xz.NewWriter(file)
	require.NoError(t, err)
	writeTestTar(t, xzWriter, files)
	require.NoError(t, xzWriter.Close())
}

func readTarGz(t *testing.T, path string) map[string]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	require.NoError(t, err)
	tarReader := tar.NewReader(gzReader)

	entries := map[string]string{}
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tarReader)
		require.NoError(t, err)
		entries[header.Name] = string(data)
	}
	return entries
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
		wantErr  bool
	}{
		{filename: "rust-nightly-x86_64-unknown-linux-gnu.tar.gz", want: FormatTarGz},
		{filename: "archive.TGZ", want: FormatTarGz},
		{filename: "rust-stable-aarch64-apple-darwin.tar.xz", want: FormatTarXz},
		{filename: "plain.tar", want: FormatTar},
		{filename: "binary.zip", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := DetectFormat(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPackageDirName(t *testing.T) {
	assert.Equal(t, pkgName, PackageDirName(pkgName+".tar.gz"))
	assert.Equal(t, pkgName, PackageDirName("/tmp/dl/"+pkgName+".tar.xz"))
	assert.Equal(t, "rust-stable-x86_64-pc-windows-msvc", PackageDirName("rust-stable-x86_64-pc-windows-msvc.tgz"))
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		ext    string
		create func(t *testing.T, path string, files map[string]string)
	}{
		{name: "tar.gz", ext: ".tar.gz", create: createTestTarGz},
		{name: "tar.xz", ext: ".tar.xz", create: createTestTarXz},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			archivePath := filepath.Join(tmpDir, pkgName+tt.ext)
			tt.create(t, archivePath, testFiles)

			pkg, err := Extract(context.Background(), Builtin{}, archivePath)
			require.NoError(t, err)

			dir, err := pkg.Path()
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(tmpDir, pkgName), dir)
			assert.Equal(t, pkgName, pkg.Name())
			assert.NoFileExists(t, archivePath)

			data, err := os.ReadFile(filepath.Join(dir, "rustc", "bin", "rustc"))
			require.NoError(t, err)
			assert.Equal(t, "rustc binary", string(data))

			info, err := os.Stat(filepath.Join(dir, "install.sh"))
			require.NoError(t, err)
			assert.NotZero(t, info.Mode()&0100, "executable bit is preserved")
		})
	}
}

func TestExtractWrongTopLevelDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	archivePath := filepath.Join(tmpDir, pkgName+".tar.gz")
	createTestTarGz(t, archivePath, map[string]string{"something-else/file": "x"})

	_, err := Extract(context.Background(), Builtin{}, archivePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not produce its package directory")
	assert.NoDirExists(t, filepath.Join(tmpDir, pkgName))
	assert.FileExists(t, archivePath, "a failed extraction keeps the archive")
}

func TestExtractExistingPackageDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	archivePath := filepath.Join(tmpDir, pkgName+".tar.gz")
	createTestTarGz(t, archivePath, map[string]string{pkgName + "/components": "rustc\n"})
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, pkgName), 0755))

	_, err := Extract(context.Background(), Builtin{}, archivePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.FileExists(t, archivePath)
}

func TestExtractRejectsEscapingPaths(t *testing.T) {
	tmpDir := t.TempDir()
	archivePath := filepath.Join(tmpDir, pkgName+".tar.gz")
	createTestTarGz(t, archivePath, map[string]string{"../escape": "x"})

	_, err := Extract(context.Background(), Builtin{}, archivePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid path in archive")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(tmpDir), "escape"))
	assert.FileExists(t, archivePath, "a failed extraction keeps the archive")
}

func TestExtractCorruptArchive(t *testing.T) {
	tmpDir := t.TempDir()
	archivePath := filepath.Join(tmpDir, pkgName+".tar.gz")
	require.NoError(t, os.WriteFile(archivePath, []byte("not gzip"), 0644))

	_, err := Extract(context.Background(), Builtin{}, archivePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gzip")
}

func TestExtractUnderivableName(t *testing.T) {
	_, err := Extract(context.Background(), Builtin{}, filepath.Join(t.TempDir(), "archive"))
	assert.Error(t, err)
}

func TestTarCLI(t *testing.T) {
	rec := &runner.Recorder{}
	tarCLI := NewTarCLI(rec)

	require.NoError(t, tarCLI.Unpack(context.Background(), "/dl/a.tar.gz", "/dl"))
	require.NoError(t, tarCLI.Unpack(context.Background(), "/dl/b.tar.xz", "/dl"))
	require.NoError(t, tarCLI.Create(context.Background(), "/dl/a", "/out/a.tar.gz"))

	assert.Equal(t, []runner.Call{
		{Program: "tar", Args: []string{"-xzf", "/dl/a.tar.gz", "-C", "/dl"}},
		{Program: "tar", Args: []string{"-xJf", "/dl/b.tar.xz", "-C", "/dl"}},
		{Program: "tar", Args: []string{"-czf", "/out/a.tar.gz", "-C", "/dl/a", "."}},
	}, rec.Calls)

	assert.Error(t, tarCLI.Unpack(context.Background(), "/dl/a.zip", "/dl"))
}

func TestExtractWithTarCLIFailure(t *testing.T) {
	tmpDir := t.TempDir()
	archivePath := filepath.Join(tmpDir, pkgName+".tar.gz")
	require.NoError(t, os.WriteFile(archivePath, []byte("x"), 0644))

	rec := &runner.Recorder{Handle: func(runner.Call) error {
		return &runner.ExitError{Program: "tar", Code: 2}
	}}
	_, err := Extract(context.Background(), NewTarCLI(rec), archivePath)
	require.Error(t, err)

	var exitErr *runner.ExitError
	assert.True(t, errors.As(err, &exitErr))
	assert.FileExists(t, archivePath)
}

func TestPack(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, pkgName)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tool", "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "components"), []byte("rustc\ntool-1.0.0\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tool", "bin", "tool"), []byte("tool binary"), 0755))

	pkg, err := Open(dir)
	require.NoError(t, err)

	output := filepath.Join(tmpDir, "out", pkgName+".tar.gz")
	require.NoError(t, Pack(context.Background(), Builtin{}, pkg, output))

	assert.NoDirExists(t, dir)
	_, err = pkg.Path()
	assert.True(t, errors.Is(err, ErrConsumed))

	entries := readTarGz(t, output)
	assert.Equal(t, "rustc\ntool-1.0.0\n", entries["components"])
	assert.Equal(t, "tool binary", entries["tool/bin/tool"])
	for name := range entries {
		assert.NotContains(t, name, pkgName, "entries are relative to the package directory")
	}

	assert.True(t, errors.Is(Pack(context.Background(), Builtin{}, pkg, output), ErrConsumed))
}

func TestPackRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b", "c"), []byte("deep"), 0644))

	pkg, err := Open(dir)
	require.NoError(t, err)
	output := filepath.Join(tmpDir, "round.tar.xz")
	require.NoError(t, Pack(context.Background(), Builtin{}, pkg, output))

	dest := filepath.Join(tmpDir, "dest")
	require.NoError(t, Builtin{}.Unpack(context.Background(), output, dest))
	data, err := os.ReadFile(filepath.Join(dest, "a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, "deep", string(data))
}

func TestPackCleanupFailureKeepsArchive(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, pkgName)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "components"), []byte("rustc\n"), 0644))

	orig := removeAll
	defer func() { removeAll = orig }()
	removeAll = func(string) error { return errors.New("device busy") }

	pkg, err := Open(dir)
	require.NoError(t, err)
	output := filepath.Join(tmpDir, pkgName+".tar.gz")
	err = Pack(context.Background(), Builtin{}, pkg, output)
	require.Error(t, err)

	var cleanupErr *CleanupError
	require.True(t, errors.As(err, &cleanupErr))
	assert.Equal(t, dir, cleanupErr.Dir)
	assert.FileExists(t, output)
	assert.DirExists(t, dir)
}

func TestPackCreateFailure(t *testing.T) {
	dir := t.TempDir()
	pkg, err := Open(dir)
	require.NoError(t, err)

	rec := &runner.Recorder{Handle: func(runner.Call) error {
		return &runner.ExitError{Program: "tar", Code: 1}
	}}
	err = Pack(context.Background(), NewTarCLI(rec), pkg, filepath.Join(dir, "..", "out.tar.gz"))
	require.Error(t, err)
	assert.DirExists(t, dir)

	_, err = pkg.Path()
	assert.NoError(t, err, "a failed pack does not consume the handle")
}

func TestOpenRejectsFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	_, err := Open(path)
	assert.Error(t, err)
}
