// Package pipeline drives the package assembly for every target selection:
// download, extract, merge tools, record components and re-archive.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/rustup-plus-plus/distpack/internal/runner"
	"github.com/rustup-plus-plus/distpack/pkg/archive"
	"github.com/rustup-plus-plus/distpack/pkg/checksum"
	"github.com/rustup-plus-plus/distpack/pkg/dist"
	"github.com/rustup-plus-plus/distpack/pkg/fetch"
	"github.com/rustup-plus-plus/distpack/pkg/manifest"
	"github.com/rustup-plus-plus/distpack/pkg/merge"
	"github.com/rustup-plus-plus/distpack/pkg/spec"
)

// Stage names one step of the per-target pipeline.
type Stage string

const (
	StageResolve  Stage = "resolve"
	StageDownload Stage = "download"
	StageExtract  Stage = "extract"
	StageMerge    Stage = "merge"
	StagePack     Stage = "pack"
)

// StageError is a failure of one stage for one target.
type StageError struct {
	Target string
	Stage  Stage
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Target, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrTargetsFailed is returned when ContinueOnError let the run finish but
// at least one target failed.
var ErrTargetsFailed = errors.New("one or more targets failed")

// Pipeline assembles packages. All configuration is explicit: nothing is
// read from the process environment.
type Pipeline struct {
	Backend  fetch.Backend
	Archiver archive.Archiver
	// Runner invokes the package manager for tool builds.
	Runner runner.Runner
	Logger log.Interface

	DistRoot  string
	OutputDir string

	ContinueOnError bool
	StagedManifest  bool
	SortManifest    bool
	// WriteChecksums publishes <archive>.<algorithm> next to every package.
	WriteChecksums    bool
	ChecksumAlgorithm checksum.Algorithm

	// Progress, when set, returns the download progress callback for a
	// target.
	Progress func(target string) fetch.ProgressFunc
}

// TargetResult is the outcome for one target selection.
type TargetResult struct {
	Target      string
	ToolchainID string
	URL         string
	Archive     string
	Checksum    string
	Components  []string
	Duration    time.Duration
	Warnings    []string
	Err         error
}

// OK reports whether the target produced its archive.
func (r TargetResult) OK() bool { return r.Err == nil }

// Report collects the results of a run in config order.
type Report struct {
	Results []TargetResult
}

// Failed returns the results that carry an error.
func (r *Report) Failed() []TargetResult {
	var failed []TargetResult
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}

func (p *Pipeline) logger() log.Interface {
	if p.Logger == nil {
		return log.Log
	}
	return p.Logger
}

// Run processes every target of cfg in order. By default the first failure
// ends the run; with ContinueOnError the remaining targets are still
// attempted and ErrTargetsFailed is returned at the end.
func (p *Pipeline) Run(ctx context.Context, cfg *spec.Config) (*Report, error) {
	if err := os.MkdirAll(p.OutputDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}

	report := &Report{}
	for _, sel := range cfg.Targets {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res := p.runTarget(ctx, cfg, sel)
		report.Results = append(report.Results, res)

		logger := p.logger().WithField("target", res.Target)
		if res.OK() {
			logger.WithField("duration", res.Duration.Round(time.Millisecond)).Infof("packaged %s", res.Archive)
			continue
		}

		logger.WithError(res.Err).Error("packaging failed")
		if !p.ContinueOnError || ctx.Err() != nil {
			return report, res.Err
		}
	}

	if len(report.Failed()) > 0 {
		return report, errors.Wrapf(ErrTargetsFailed, "%d of %d", len(report.Failed()), len(report.Results))
	}
	return report, nil
}

func (p *Pipeline) runTarget(ctx context.Context, cfg *spec.Config, sel spec.TargetSelection) (res TargetResult) {
	start := time.Now()
	res = TargetResult{Target: sel.String(), ToolchainID: dist.ToolchainID(sel)}
	defer func() { res.Duration = time.Since(start) }()

	fail := func(stage Stage, err error) TargetResult {
		res.Err = &StageError{Target: res.Target, Stage: stage, Err: err}
		return res
	}
	logger := p.logger().WithField("target", res.Target)

	url, err := dist.URL(p.DistRoot, cfg.Product, sel, cfg.Package.FilenameTemplate)
	if err != nil {
		return fail(StageResolve, err)
	}
	fileName, err := dist.FileName(cfg.Product, sel, cfg.Package.FilenameTemplate)
	if err != nil {
		return fail(StageResolve, err)
	}
	res.URL = url
	archivePath := filepath.Join(p.OutputDir, fileName)

	logger.WithField("url", url).Info("downloading")
	var progress fetch.ProgressFunc
	if p.Progress != nil {
		progress = p.Progress(res.Target)
	}
	if err := fetch.ToFile(ctx, p.Backend, url, archivePath, progress); err != nil {
		return fail(StageDownload, err)
	}

	logger.Debugf("extracting %s", fileName)
	pkg, err := archive.Extract(ctx, p.Archiver, archivePath)
	if err != nil {
		return fail(StageExtract, err)
	}

	if len(cfg.Tools) > 0 {
		workDir, err := os.MkdirTemp(p.OutputDir, ".tools-")
		if err != nil {
			return fail(StageMerge, errors.Wrap(err, "failed to create tool work directory"))
		}

		merger := merge.New(p.Runner, workDir)
		merger.StagedManifest = p.StagedManifest
		merger.SortManifest = p.SortManifest
		merger.Logger = logger

		for _, tool := range cfg.Tools {
			if err := merger.Merge(ctx, tool, pkg); err != nil {
				// The failed install root is left for inspection.
				logger.WithField("path", workDir).Warn("tool work directory kept")
				return fail(StageMerge, err)
			}
		}
		// Every tree was moved out, so only the empty directory remains.
		if err := os.Remove(workDir); err != nil {
			logger.WithError(err).Warnf("could not remove %s", workDir)
		}
	}

	pkgDir, err := pkg.Path()
	if err != nil {
		return fail(StagePack, err)
	}
	if res.Components, err = manifest.Components(pkgDir); err != nil {
		return fail(StagePack, err)
	}

	logger.Debugf("packing %s", pkg.Name())
	err = archive.Pack(ctx, p.Archiver, pkg, archivePath)
	var cleanupErr *archive.CleanupError
	if errors.As(err, &cleanupErr) {
		logger.WithError(cleanupErr.Err).Warnf("archive written but %s was left behind", cleanupErr.Dir)
		res.Warnings = append(res.Warnings, cleanupErr.Error())
		err = nil
	}
	if err != nil {
		return fail(StagePack, err)
	}

	res.Archive = archivePath
	if p.WriteChecksums {
		if res.Checksum, err = checksum.Write(archivePath, p.ChecksumAlgorithm); err != nil {
			return fail(StagePack, err)
		}
	}
	return res
}
