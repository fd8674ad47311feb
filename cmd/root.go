package cmd

import (
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/rustup-plus-plus/distpack/pkg/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
	quiet      bool
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "distpack",
	Short: "Install toolchains and assemble offline toolchain packages",
	Long: `distpack installs toolchains from a distribution server, or builds
redistributable toolchain packages with auxiliary tools merged in.

Targets, tools and server overrides are read from a YAML config file.
RUSTUP_DIST_SERVER and RUSTUP_UPDATE_ROOT in the environment take precedence
over the file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetHandler(cli.New(cmd.ErrOrStderr()))
		if verbose {
			log.SetLevel(log.DebugLevel)
			log.Debugf("Verbose logging enabled")
		} else if quiet {
			log.SetLevel(log.ErrorLevel)
		} else {
			log.SetLevel(log.InfoLevel)
		}
		log.Debugf("Config file: %s", configFile)
	},
}

func init() {
	// Disable automatic command sorting to maintain semantic order
	cobra.EnableCommandSorting = false

	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file, or - for stdin (default: "+config.DefaultConfigPathYML+")")
	RootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Increase log verbosity")
	RootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress progress output")

	RootCmd.AddGroup(&cobra.Group{
		ID:    "workflow",
		Title: "Workflow Commands:",
	})
	RootCmd.AddGroup(&cobra.Group{
		ID:    "utility",
		Title: "Utility Commands:",
	})

	RootCmd.SetHelpCommandGroupID("utility")
	RootCmd.SetCompletionCommandGroupID("utility")

	CheckCommand.GroupID = "workflow"
	InstallCommand.GroupID = "workflow"
	PackageCommand.GroupID = "workflow"
	HelpfulCommand.GroupID = "utility"
	SchemaCommand.GroupID = "utility"

	RootCmd.AddCommand(CheckCommand)   // Validate config and show resolved URLs
	RootCmd.AddCommand(InstallCommand) // Install toolchains and tools
	RootCmd.AddCommand(PackageCommand) // Assemble packages
	RootCmd.AddCommand(HelpfulCommand) // Utility: Comprehensive help
	RootCmd.AddCommand(SchemaCommand)  // Utility: Display configuration schema
}
