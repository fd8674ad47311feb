// Package dist maps target selections onto distribution-server names: the
// archive filename, its URL and the toolchain identifier.
package dist

import (
	"fmt"
	"strings"

	"github.com/buildkite/interpolate"
	"github.com/rustup-plus-plus/distpack/pkg/spec"
)

// FileName renders the archive filename for sel. It returns "" when the
// channel is not one of the three release tracks, which callers must treat
// as an invalid selection.
func FileName(product string, sel spec.TargetSelection, template string) (string, error) {
	if !sel.Channel.Valid() {
		return "", nil
	}
	if product == "" {
		product = spec.DefaultProduct
	}
	if template == "" {
		template = spec.DefaultFilenameTemplate
	}

	env := interpolate.NewMapEnv(map[string]string{
		"PRODUCT": product,
		"CHANNEL": string(sel.Channel),
		"TARGET":  sel.Target,
		"DATE":    sel.Date,
	})
	name, err := interpolate.Interpolate(env, template)
	if err != nil {
		return "", fmt.Errorf("failed to interpolate filename template: %w", err)
	}
	return name, nil
}

// PackageRoot is the directory URL holding the archives of sel.
//
// Dated selections live under <root>/dist/<date>. The segment is appended
// even when root already ends in /dist, which yields /dist/dist/<date> for
// such roots; kept as-is until the server layout is confirmed.
func PackageRoot(distRoot string, sel spec.TargetSelection) string {
	root := strings.TrimRight(distRoot, "/")
	if sel.Date != "" {
		return root + "/dist/" + sel.Date
	}
	return root
}

// URL is the full download URL of sel's archive.
func URL(distRoot, product string, sel spec.TargetSelection, template string) (string, error) {
	name, err := FileName(product, sel, template)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", fmt.Errorf("cannot derive archive name for %s: invalid channel %q", sel.Target, sel.Channel)
	}
	return PackageRoot(distRoot, sel) + "/" + name, nil
}

// ToolchainID is the identifier handed to the toolchain manager:
// <channel>[-<date>]-<target>.
func ToolchainID(sel spec.TargetSelection) string {
	return sel.String()
}

// Resolved is one target selection with every derived name filled in.
type Resolved struct {
	Selection   spec.TargetSelection
	FileName    string
	URL         string
	ToolchainID string
}

// ResolveAll resolves every target of cfg against distRoot, in config order.
func ResolveAll(distRoot string, cfg *spec.Config) ([]Resolved, error) {
	out := make([]Resolved, 0, len(cfg.Targets))
	for _, sel := range cfg.Targets {
		u, err := URL(distRoot, cfg.Product, sel, cfg.Package.FilenameTemplate)
		if err != nil {
			return nil, err
		}
		name, _ := FileName(cfg.Product, sel, cfg.Package.FilenameTemplate)
		out = append(out, Resolved{
			Selection:   sel,
			FileName:    name,
			URL:         u,
			ToolchainID: ToolchainID(sel),
		})
	}
	return out, nil
}
