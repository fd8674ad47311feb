package archive

import (
	"context"

	"github.com/rustup-plus-plus/distpack/internal/runner"
)

// TarCLI drives an external tar executable.
type TarCLI struct {
	Program runner.Program
}

// NewTarCLI returns a TarCLI invoking "tar" through r.
func NewTarCLI(r runner.Runner) *TarCLI {
	return &TarCLI{Program: runner.Program{Name: "tar", Runner: r}}
}

// Unpack implements Archiver.
func (t *TarCLI) Unpack(ctx context.Context, archivePath, destDir string) error {
	format, err := DetectFormat(archivePath)
	if err != nil {
		return err
	}
	flags := "-xf"
	switch format {
	case FormatTarGz:
		flags = "-xzf"
	case FormatTarXz:
		flags = "-xJf"
	}
	return t.Program.Run(ctx, flags, archivePath, "-C", destDir)
}

// Create implements Archiver.
func (t *TarCLI) Create(ctx context.Context, srcDir, outputPath string) error {
	format, err := DetectFormat(outputPath)
	if err != nil {
		return err
	}
	flags := "-cf"
	switch format {
	case FormatTarGz:
		flags = "-czf"
	case FormatTarXz:
		flags = "-cJf"
	}
	return t.Program.Run(ctx, flags, outputPath, "-C", srcDir, ".")
}
