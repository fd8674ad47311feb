package spec

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// DateLayout is the layout of pinned toolchain dates.
const DateLayout = "2006-01-02"

// Validate checks a Config after SetDefaults has been applied.
func Validate(c *Config) error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("no targets configured")
	}
	for i, t := range c.Targets {
		if err := ValidateTarget(t); err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
	}
	seen := make(map[string]bool, len(c.Tools))
	for i, tool := range c.Tools {
		if err := ValidateTool(tool); err != nil {
			return fmt.Errorf("tools[%d]: %w", i, err)
		}
		if seen[tool.Name] {
			return fmt.Errorf("tools[%d]: duplicate tool %q", i, tool.Name)
		}
		seen[tool.Name] = true
	}
	switch c.Package.Archiver {
	case ArchiverTar, ArchiverBuiltin:
	default:
		return fmt.Errorf("package.archiver: unknown archiver %q (want %s or %s)", c.Package.Archiver, ArchiverTar, ArchiverBuiltin)
	}
	switch c.Package.ChecksumAlgorithm {
	case "", "sha256", "sha512":
	default:
		return fmt.Errorf("package.checksum_algorithm: unknown algorithm %q (want sha256 or sha512)", c.Package.ChecksumAlgorithm)
	}
	if err := ValidateFilenameTemplate(c.Package.FilenameTemplate); err != nil {
		return fmt.Errorf("package.filename_template: %w", err)
	}
	return nil
}

// ValidateFilenameTemplate rejects archive filename templates that could
// escape the output directory or smuggle shell syntax into collaborator
// arguments.
func ValidateFilenameTemplate(template string) error {
	if !strings.Contains(template, "${TARGET}") {
		return fmt.Errorf("template must reference ${TARGET}: %s", template)
	}
	if strings.Contains(template, "$(") || strings.Contains(template, "`") {
		return fmt.Errorf("template contains command substitution: %s", template)
	}
	dangerousChars := []struct {
		char string
		desc string
	}{
		{"/", "path separator"},
		{"\\", "path separator"},
		{";", "semicolon"},
		{"|", "pipe"},
		{"&", "ampersand"},
		{">", "output redirection"},
		{"<", "input redirection"},
	}
	for _, dc := range dangerousChars {
		if strings.Contains(template, dc.char) {
			return fmt.Errorf("template contains dangerous character '%s' (%s): %s", dc.char, dc.desc, template)
		}
	}
	return nil
}

// ValidateTarget checks a single target selection.
func ValidateTarget(t TargetSelection) error {
	if strings.TrimSpace(t.Target) == "" {
		return fmt.Errorf("target triple is empty")
	}
	if strings.ContainsAny(t.Target, "/\\ ") {
		return fmt.Errorf("target triple contains a path separator or space: %q", t.Target)
	}
	if !t.Channel.Valid() {
		return fmt.Errorf("invalid channel %q (want stable, beta or nightly)", t.Channel)
	}
	if t.Date != "" {
		if _, err := time.Parse(DateLayout, t.Date); err != nil {
			return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", t.Date)
		}
	}
	if t.Profile != "" && !t.Profile.Valid() {
		return fmt.Errorf("invalid profile %q (want minimal, default or complete)", t.Profile)
	}
	return nil
}

// ValidateTool checks a single auxiliary tool.
func ValidateTool(t Tool) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("tool name is empty")
	}
	if strings.ContainsAny(t.Name, "/\\ @") {
		return fmt.Errorf("tool name contains an invalid character: %q", t.Name)
	}
	if t.Version != "" {
		if _, err := semver.StrictNewVersion(t.Version); err != nil {
			return fmt.Errorf("tool %s: invalid version %q: %w", t.Name, t.Version, err)
		}
	}
	return nil
}
