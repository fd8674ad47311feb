// Package runner invokes the external collaborators (toolchain manager,
// package manager, archiver) and turns their exit status into typed errors.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// Runner runs a program to completion.
type Runner interface {
	Run(ctx context.Context, program string, args ...string) error
}

// ExitError reports a collaborator that ran but exited unsuccessfully.
type ExitError struct {
	Program string
	Args    []string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s %s exited with status %d", e.Program, strings.Join(e.Args, " "), e.Code)
}

// Exec runs programs with os/exec. Output of the collaborator passes
// through to Stdout and Stderr so its own diagnostics reach the user.
type Exec struct {
	// Env is appended to the current environment of every child.
	Env    map[string]string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Interface
}

// New returns an Exec wired to the process stdout and stderr.
func New(env map[string]string) *Exec {
	return &Exec{
		Env:    env,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: log.Log,
	}
}

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, program string, args ...string) error {
	logger := e.Logger
	if logger == nil {
		logger = log.Log
	}

	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = e.Dir
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.environ()...)
	}

	logger.WithField("program", program).Debugf("running %s %s", program, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Program: program, Args: args, Code: exitErr.ExitCode()}
		}
		return errors.Wrapf(err, "failed to start %s", program)
	}
	return nil
}

func (e *Exec) environ() []string {
	keys := make([]string, 0, len(e.Env))
	for k := range e.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+e.Env[k])
	}
	return env
}

// Program binds a Runner to one collaborator executable.
type Program struct {
	Name   string
	Runner Runner
}

// Run invokes the bound program.
func (p Program) Run(ctx context.Context, args ...string) error {
	return p.Runner.Run(ctx, p.Name, args...)
}
