// Package install installs the configured toolchains and auxiliary tools
// through the toolchain manager and the package manager.
package install

import (
	"context"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/rustup-plus-plus/distpack/internal/runner"
	"github.com/rustup-plus-plus/distpack/pkg/dist"
	"github.com/rustup-plus-plus/distpack/pkg/merge"
	"github.com/rustup-plus-plus/distpack/pkg/spec"
)

// Installer installs toolchains with rustup and tools with cargo.
type Installer struct {
	Rustup runner.Program
	Cargo  runner.Program
	Logger log.Interface
	// DryRun logs the commands instead of running them.
	DryRun bool
}

// New returns an Installer invoking rustup and cargo through r.
func New(r runner.Runner) *Installer {
	return &Installer{
		Rustup: runner.Program{Name: "rustup", Runner: r},
		Cargo:  runner.Program{Name: "cargo", Runner: r},
		Logger: log.Log,
	}
}

// Step is one collaborator invocation of an install plan.
type Step struct {
	Program string
	Args    []string
}

func (s Step) String() string {
	return s.Program + " " + strings.Join(s.Args, " ")
}

// Plan lists the invocations Install performs for cfg, in order: every
// toolchain, then the default toolchain, then every tool.
func Plan(cfg *spec.Config) []Step {
	var steps []Step
	for _, sel := range cfg.Targets {
		args := []string{"install", dist.ToolchainID(sel)}
		if sel.Profile != "" {
			args = append(args, "--profile", string(sel.Profile))
		}
		steps = append(steps, Step{Program: "rustup", Args: args})
	}
	if len(cfg.Targets) > 0 {
		steps = append(steps, Step{Program: "rustup", Args: []string{"default", dist.ToolchainID(cfg.Targets[0])}})
	}
	for _, tool := range cfg.Tools {
		steps = append(steps, Step{Program: "cargo", Args: []string{"install", merge.CrateSpec(tool)}})
	}
	return steps
}

// Install runs the plan for cfg and stops at the first failing step.
func (i *Installer) Install(ctx context.Context, cfg *spec.Config) error {
	logger := i.Logger
	if logger == nil {
		logger = log.Log
	}

	for _, step := range Plan(cfg) {
		if i.DryRun {
			logger.Info(DryRunOutput(step))
			continue
		}

		logger.WithField("program", step.Program).Infof("running %s", step)
		prog := i.Rustup
		if step.Program == "cargo" {
			prog = i.Cargo
		}
		if err := prog.Run(ctx, step.Args...); err != nil {
			return errors.Wrapf(err, "failed to %s", step)
		}
	}
	return nil
}

// DryRunOutput returns the message to display for a dry run
func DryRunOutput(step Step) string {
	return fmt.Sprintf("Would run %s", step)
}
