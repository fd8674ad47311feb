package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
	"github.com/rustup-plus-plus/distpack/pkg/dist"
	"github.com/rustup-plus-plus/distpack/pkg/pipeline"
)

// Style definitions
var (
	// Color profile detection
	profile = colorprofile.Detect(os.Stdout, os.Environ())

	colorful = profile == colorprofile.TrueColor || profile == colorprofile.ANSI256

	headerStyle = func() lipgloss.Style {
		if colorful {
			return lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212"))
		}
		return lipgloss.NewStyle().Bold(true)
	}()

	separatorStyle = func() lipgloss.Style {
		if colorful {
			return lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))
		}
		return lipgloss.NewStyle().Faint(true)
	}()

	okStyle = func() lipgloss.Style {
		if colorful {
			return lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
		}
		return lipgloss.NewStyle()
	}()

	failStyle = func() lipgloss.Style {
		if colorful {
			return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
		}
		return lipgloss.NewStyle().Bold(true)
	}()

	warnStyle = func() lipgloss.Style {
		if colorful {
			return lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
		}
		return lipgloss.NewStyle()
	}()
)

// statusColumn is an extra column of the resolved table, keyed by URL.
type statusColumn struct {
	Title  string
	Values map[string]string
}

// displayResolved prints the resolved archives of every target in a table
// followed by any status columns.
func displayResolved(w io.Writer, resolved []dist.Resolved, columns ...statusColumn) {
	if len(resolved) == 0 {
		fmt.Fprintln(w, "No targets configured")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"TOOLCHAIN", "URL"}
	for _, col := range columns {
		header = append(header, col.Title)
	}
	rule := make([]string, len(header))
	for i, h := range header {
		rule[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	fmt.Fprintln(tw, strings.Join(rule, "\t"))

	for _, r := range resolved {
		row := []string{r.ToolchainID, r.URL}
		for _, col := range columns {
			row = append(row, col.Values[r.URL])
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// displayReport prints the outcome of a package run.
func displayReport(w io.Writer, report *pipeline.Report) {
	if report == nil || len(report.Results) == 0 {
		return
	}

	fmt.Fprintln(w, headerStyle.Render("Package summary"))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tSTATUS\tARCHIVE\tCOMPONENTS\tTIME")
	for _, res := range report.Results {
		if !res.OK() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t\t%s\n", res.Target, failStyle.Render("✗ FAILED"), res.Err, res.Duration.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", res.Target, okStyle.Render("✓ OK"), res.Archive, len(res.Components), res.Duration.Round(time.Millisecond))
	}
	tw.Flush()

	for _, res := range report.Results {
		for _, warning := range res.Warnings {
			fmt.Fprintln(w, warnStyle.Render("warning: "+res.Target+": "+warning))
		}
	}
}
