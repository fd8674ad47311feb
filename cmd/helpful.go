package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// HelpfulCommand prints the help of every command in one styled document.
var HelpfulCommand = &cobra.Command{
	Use:    "helpful",
	Short:  "Display comprehensive help for all commands",
	Long:   `Displays help information for all distpack commands in a single, styled output.`,
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		writeCommandHelp(cmd.Root(), "", cmd.OutOrStdout())
		return nil
	},
}

// writeCommandHelp writes cmd's help and recurses into its visible
// subcommands.
func writeCommandHelp(cmd *cobra.Command, prefix string, w io.Writer) {
	switch cmd.Name() {
	case "completion", "help", "helpful":
		return
	}

	cmdPath := cmd.Name()
	if prefix != "" {
		cmdPath = prefix + " " + cmd.Name()
	}

	if cmd.HasParent() {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("## "+cmdPath))
		fmt.Fprintln(w)
	}

	cmd.SetOut(w)
	cmd.Help()
	cmd.SetOut(nil)

	fmt.Fprintln(w)
	fmt.Fprintln(w, separatorStyle.Render(strings.Repeat("─", 80)))
	fmt.Fprintln(w)

	for _, sub := range cmd.Commands() {
		if !sub.Hidden {
			writeCommandHelp(sub, cmdPath, w)
		}
	}
}
