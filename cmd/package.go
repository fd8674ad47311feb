package cmd

import (
	"fmt"
	"io"

	"github.com/apex/log"
	"github.com/rustup-plus-plus/distpack/pkg/archive"
	"github.com/rustup-plus-plus/distpack/pkg/checksum"
	"github.com/rustup-plus-plus/distpack/pkg/config"
	"github.com/rustup-plus-plus/distpack/pkg/fetch"
	"github.com/rustup-plus-plus/distpack/pkg/pipeline"
	"github.com/rustup-plus-plus/distpack/pkg/spec"
	"github.com/spf13/cobra"
)

var (
	// Flags for package command
	packageOutputDir    string
	packageKeepGoing    bool
	packageArchiver     string
	packageSortManifest bool
	packageChecksums    bool
)

// PackageCommand represents the package command
var PackageCommand = &cobra.Command{
	Use:   "package",
	Short: "Assemble toolchain packages with the configured tools merged in",
	Long: `For every configured target, downloads the toolchain archive from the
distribution server, extracts it, builds every configured tool with cargo into
its own directory, moves those directories into the toolchain tree, records
them in the components ledger and re-archives the result into the output
directory under the original archive name.

The run stops at the first failing target unless --keep-going is given.`,
	Example: `  # Package into ./dist
  distpack package -o dist

  # Keep packaging remaining targets after a failure
  distpack package -o dist --keep-going`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(configFile)
		if err != nil {
			return err
		}
		settings, err := loadSettings(cfg)
		if err != nil {
			return err
		}

		outputDir, err := config.ExpandPath(packageOutputDir)
		if err != nil {
			return err
		}

		p, err := newPipeline(cfg, settings, outputDir)
		if err != nil {
			return err
		}
		if !quiet {
			p.Progress = func(target string) fetch.ProgressFunc {
				return newProgressPrinter(cmd.ErrOrStderr(), target)
			}
		}

		log.Infof("Packaging %d target(s) into %s", len(cfg.Targets), outputDir)
		report, runErr := p.Run(cmd.Context(), cfg)
		displayReport(cmd.OutOrStdout(), report)
		if runErr != nil {
			return fmt.Errorf("package failed: %w", runErr)
		}
		return nil
	},
}

func init() {
	PackageCommand.Flags().StringVarP(&packageOutputDir, "output-dir", "o", "dist", "Directory receiving the packaged archives")
	PackageCommand.Flags().BoolVar(&packageKeepGoing, "keep-going", false, "Continue with the next target after a failure")
	PackageCommand.Flags().StringVar(&packageArchiver, "archiver", "", "Archiver to use: tar or builtin (default: from config, else tar)")
	PackageCommand.Flags().BoolVar(&packageSortManifest, "sort-manifest", false, "Sort manifest entries by path")
	PackageCommand.Flags().BoolVar(&packageChecksums, "checksums", false, "Write a digest file (package.checksum_algorithm, default sha256) next to every archive")
}

// newPipeline wires the pipeline from the config, the resolved settings and
// the command-line flags.
func newPipeline(cfg *spec.Config, settings config.Settings, outputDir string) (*pipeline.Pipeline, error) {
	backend, err := fetch.NewBackend(settings.Backend, fetch.HTTPOptions{UserAgent: fetch.DefaultUserAgent})
	if err != nil {
		return nil, err
	}

	collab := newRunner(settings.CollaboratorEnv())

	archiverName := cfg.Package.Archiver
	if packageArchiver != "" {
		archiverName = packageArchiver
	}
	var archiver archive.Archiver
	switch archiverName {
	case spec.ArchiverTar, "":
		archiver = archive.NewTarCLI(collab)
	case spec.ArchiverBuiltin:
		archiver = archive.Builtin{}
	default:
		return nil, fmt.Errorf("unknown archiver %q (want %s or %s)", archiverName, spec.ArchiverTar, spec.ArchiverBuiltin)
	}
	log.Debugf("Using %s backend and %s archiver", backend.Name(), archiverName)

	algorithm, err := checksum.ParseAlgorithm(cfg.Package.ChecksumAlgorithm)
	if err != nil {
		return nil, err
	}

	return &pipeline.Pipeline{
		Backend:           backend,
		Archiver:          archiver,
		Runner:            collab,
		Logger:            log.Log,
		DistRoot:          settings.DistServer,
		OutputDir:         outputDir,
		ContinueOnError:   packageKeepGoing || cfg.Package.ContinueOnError,
		StagedManifest:    settings.StagedManifest,
		SortManifest:      packageSortManifest || cfg.Package.SortManifest,
		WriteChecksums:    packageChecksums || cfg.Package.WriteChecksums,
		ChecksumAlgorithm: algorithm,
	}, nil
}

// newProgressPrinter reports download progress in tenths when the size is
// known, otherwise every 16 MiB.
func newProgressPrinter(w io.Writer, target string) fetch.ProgressFunc {
	const step = 16 << 20
	last := int64(-1)
	return func(downloaded, total int64) {
		var mark int64
		if total > 0 {
			mark = downloaded * 10 / total
		} else {
			mark = downloaded / step
		}
		if mark == last {
			return
		}
		last = mark

		if total > 0 {
			fmt.Fprintf(w, "%s: %3d%% (%s / %s)\n", target, mark*10, humanBytes(downloaded), humanBytes(total))
			return
		}
		fmt.Fprintf(w, "%s: %s\n", target, humanBytes(downloaded))
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
