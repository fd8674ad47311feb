package main_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

var distpackPath string

// TestMain builds the distpack binary once before running all tests
func TestMain(m *testing.M) {
	tempDir, err := os.MkdirTemp("", "distpack-test")
	if err != nil {
		panic("Failed to create temp directory: " + err.Error())
	}

	execName := "distpack"
	if runtime.GOOS == "windows" {
		execName += ".exe"
	}
	distpackPath = filepath.Join(tempDir, execName)
	cmd := exec.Command("go", "build", "-o", distpackPath, "./cmd/distpack")
	cmd.Dir = ".." // Go up one level to reach the root directory
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		os.RemoveAll(tempDir)
		panic("Failed to build distpack: " + err.Error())
	}

	code := m.Run()
	if err := os.RemoveAll(tempDir); err != nil {
		panic("Failed to remove temp directory: " + err.Error())
	}
	os.Exit(code)
}

// run executes distpack with a clean override environment.
func run(t *testing.T, env []string, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(distpackPath, args...)
	cmd.Env = append(cleanEnv(), env...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func cleanEnv() []string {
	var env []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "RUSTUP_") || strings.HasPrefix(kv, "DISTPACK_") {
			continue
		}
		env = append(env, kv)
	}
	return env
}

func TestCheckResolvesURLs(t *testing.T) {
	config := `targets:
  - target: x86_64-unknown-linux-gnu
    channel: nightly
    date: "2024-01-02"
  - target: aarch64-apple-darwin
    channel: beta
`
	stdout, stderr, err := run(t, []string{"RUSTUP_DIST_SERVER=https://mirror.example.test"}, config, "check", "-c", "-")
	if err != nil {
		t.Fatalf("check failed: %v\nStderr: %s", err, stderr)
	}

	for _, want := range []string{
		"https://mirror.example.test/dist/dist/2024-01-02/rust-nightly-x86_64-unknown-linux-gnu.tar.gz",
		"https://mirror.example.test/rust-beta-aarch64-apple-darwin.tar.gz",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("check output missing %s\nStdout: %s", want, stdout)
		}
	}
}

func TestCheckRejectsInvalidConfig(t *testing.T) {
	config := "targets:\n  - target: x86_64-unknown-linux-gnu\n    channel: weekly\n"
	_, stderr, err := run(t, nil, config, "check", "-c", "-")
	if err == nil {
		t.Fatal("check accepted an invalid channel")
	}
	if !strings.Contains(stderr, "weekly") {
		t.Errorf("error output does not name the bad channel\nStderr: %s", stderr)
	}
}

func TestInstallDryRun(t *testing.T) {
	config := `targets:
  - target: x86_64-unknown-linux-gnu
    channel: stable
    profile: minimal
tools:
  - name: ripgrep
    version: 14.1.0
`
	_, stderr, err := run(t, nil, config, "install", "-c", "-", "--dry-run")
	if err != nil {
		t.Fatalf("install --dry-run failed: %v\nStderr: %s", err, stderr)
	}
	for _, want := range []string{
		"Would run rustup install stable-x86_64-unknown-linux-gnu --profile minimal",
		"Would run rustup default stable-x86_64-unknown-linux-gnu",
		"Would run cargo install ripgrep@14.1.0",
	} {
		if !strings.Contains(stderr, want) {
			t.Errorf("dry run output missing %q\nStderr: %s", want, stderr)
		}
	}
}

// TestPackageWithoutTools repackages a toolchain served by a local dist
// server using the builtin archiver, so neither tar nor cargo is needed.
func TestPackageWithoutTools(t *testing.T) {
	const pkgName = "rust-stable-x86_64-unknown-linux-gnu"

	var buf bytes.Buffer
	gzWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzWriter)
	content := "rustc\n"
	if err := tarWriter.WriteHeader(&tar.Header{Name: pkgName + "/components", Mode: 0644, Size: int64(len(content))}); err != nil {
		t.Fatal(err)
	}
	if _, err := tarWriter.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	tarWriter.Close()
	gzWriter.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+pkgName+".tar.gz" {
			http.NotFound(w, r)
			return
		}
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	config := `targets:
  - target: x86_64-unknown-linux-gnu
    channel: stable
package:
  archiver: builtin
  write_checksums: true
`
	outputDir := t.TempDir()
	_, stderr, err := run(t, []string{"RUSTUP_DIST_SERVER=" + server.URL}, config,
		"package", "-c", "-", "-o", outputDir, "--quiet")
	if err != nil {
		t.Fatalf("package failed: %v\nStderr: %s", err, stderr)
	}

	archivePath := filepath.Join(outputDir, pkgName+".tar.gz")
	if _, err := os.Stat(archivePath); err != nil {
		t.Fatalf("packaged archive missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outputDir, pkgName)); !os.IsNotExist(err) {
		t.Errorf("package directory was not cleaned up: %v", err)
	}
	sum, err := os.ReadFile(archivePath + ".sha256")
	if err != nil {
		t.Fatalf("checksum file missing: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(string(sum)), pkgName+".tar.gz") {
		t.Errorf("unexpected checksum line: %q", sum)
	}
}

func TestSchemaList(t *testing.T) {
	stdout, stderr, err := run(t, nil, "", "schema", "--list")
	if err != nil {
		t.Fatalf("schema --list failed: %v\nStderr: %s", err, stderr)
	}
	if !strings.Contains(stdout, "TargetSelection") {
		t.Errorf("schema list missing TargetSelection\nStdout: %s", stdout)
	}
}
