package main

import (
	"context"
	"os"
	"runtime/debug"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/rustup-plus-plus/distpack/cmd"
)

// Set with -ldflags by release builds.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	v, c := buildVersion(version, commit, debug.ReadBuildInfo)
	if err := fang.Execute(
		context.Background(),
		cmd.RootCmd,
		fang.WithVersion(v),
		fang.WithCommit(c),
		fang.WithNotifySignal(syscall.SIGINT, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}

// buildVersion falls back to the module version and VCS revision recorded
// by "go install" when no release values were linked in.
func buildVersion(version, commit string, readBuildInfo func() (*debug.BuildInfo, bool)) (string, string) {
	info, ok := readBuildInfo()
	if !ok {
		return version, commit
	}
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	if commit == "none" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				commit = s.Value
				if len(commit) > 12 {
					commit = commit[:12]
				}
			}
		}
	}
	return version, commit
}
