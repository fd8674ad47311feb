package cmd

import (
	"fmt"

	"github.com/apex/log"
	"github.com/rustup-plus-plus/distpack/pkg/install"
	"github.com/spf13/cobra"
)

var (
	// Flags for install command
	installDryRun bool
)

// InstallCommand represents the install command
var InstallCommand = &cobra.Command{
	Use:   "install",
	Short: "Install the configured toolchains and tools",
	Long: `Installs every configured toolchain with rustup, makes the first one the
default, then installs every configured tool with cargo.

rustup and cargo receive RUSTUP_DIST_SERVER and RUSTUP_UPDATE_ROOT resolved
from the environment and the config file.`,
	Example: `  # Install everything from the default config
  distpack install

  # Print the commands without running them
  distpack install --dry-run`,
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

		installer := install.New(newRunner(settings.CollaboratorEnv()))
		installer.DryRun = installDryRun
		installer.Logger = log.Log

		if err := installer.Install(cmd.Context(), cfg); err != nil {
			return fmt.Errorf("install failed: %w", err)
		}
		if !installDryRun {
			log.Infof("✓ Installed %d toolchain(s) and %d tool(s)", len(cfg.Targets), len(cfg.Tools))
		}
		return nil
	},
}

func init() {
	InstallCommand.Flags().BoolVarP(&installDryRun, "dry-run", "n", false, "Print the rustup and cargo commands without running them")
}
