package spec

import (
	"fmt"
	"strings"
)

// Channel is a release track of the distribution server.
type Channel string

const (
	ChannelStable  Channel = "stable"
	ChannelBeta    Channel = "beta"
	ChannelNightly Channel = "nightly"
)

// Profile is the component set requested from the toolchain manager.
type Profile string

const (
	ProfileMinimal  Profile = "minimal"
	ProfileDefault  Profile = "default"
	ProfileComplete Profile = "complete"
)

// Archiver names accepted by package.archiver.
const (
	ArchiverTar     = "tar"
	ArchiverBuiltin = "builtin"
)

const (
	// DefaultProduct is the product prefix of distribution archives.
	DefaultProduct = "rust"
	// DefaultFilenameTemplate names the archive published for a target selection.
	DefaultFilenameTemplate = "${PRODUCT}-${CHANNEL}-${TARGET}.tar.gz"
	// DefaultChecksumAlgorithm names the digest published for packages.
	DefaultChecksumAlgorithm = "sha256"
)

// TargetSelection names one toolchain to install or package.
type TargetSelection struct {
	Target  string  `yaml:"target" json:"target"`
	Channel Channel `yaml:"channel" json:"channel"`
	Date    string  `yaml:"date,omitempty" json:"date,omitempty"`
	Profile Profile `yaml:"profile,omitempty" json:"profile,omitempty"`
}

func (t TargetSelection) String() string {
	if t.Date != "" {
		return fmt.Sprintf("%s-%s-%s", t.Channel, t.Date, t.Target)
	}
	return fmt.Sprintf("%s-%s", t.Channel, t.Target)
}

// Tool is an auxiliary tool built with the package manager and merged into
// every packaged toolchain.
type Tool struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
}

func (t Tool) String() string {
	if t.Version != "" {
		return t.Name + "@" + t.Version
	}
	return t.Name
}

// PackageOptions tunes the package command.
type PackageOptions struct {
	// SortManifest writes manifest entries sorted by path instead of in
	// directory-listing order.
	SortManifest bool `yaml:"sort_manifest,omitempty" json:"sort_manifest,omitempty"`
	// ContinueOnError keeps processing later targets after one fails.
	ContinueOnError bool `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`
	// Archiver is "tar" (external CLI) or "builtin".
	Archiver string `yaml:"archiver,omitempty" json:"archiver,omitempty"`
	// WriteChecksums publishes a digest file next to every archive.
	WriteChecksums bool `yaml:"write_checksums,omitempty" json:"write_checksums,omitempty"`
	// ChecksumAlgorithm is "sha256" (default) or "sha512".
	ChecksumAlgorithm string `yaml:"checksum_algorithm,omitempty" json:"checksum_algorithm,omitempty"`
	// FilenameTemplate overrides DefaultFilenameTemplate.
	FilenameTemplate string `yaml:"filename_template,omitempty" json:"filename_template,omitempty"`
}

// Config is the declarative input of both install and package.
type Config struct {
	DistServer string            `yaml:"RUSTUP_DIST_SERVER,omitempty" json:"RUSTUP_DIST_SERVER,omitempty"`
	UpdateRoot string            `yaml:"RUSTUP_UPDATE_ROOT,omitempty" json:"RUSTUP_UPDATE_ROOT,omitempty"`
	Product    string            `yaml:"product,omitempty" json:"product,omitempty"`
	Targets    []TargetSelection `yaml:"targets" json:"targets"`
	Tools      []Tool            `yaml:"tools,omitempty" json:"tools,omitempty"`
	Package    PackageOptions    `yaml:"package,omitempty" json:"package,omitempty"`
}

// SetDefaults sets default values for the Config
func (c *Config) SetDefaults() {
	if c.Product == "" {
		c.Product = DefaultProduct
	}
	if c.Package.Archiver == "" {
		c.Package.Archiver = ArchiverTar
	}
	if c.Package.FilenameTemplate == "" {
		c.Package.FilenameTemplate = DefaultFilenameTemplate
	}
	if c.Package.ChecksumAlgorithm == "" {
		c.Package.ChecksumAlgorithm = DefaultChecksumAlgorithm
	}
	c.Package.ChecksumAlgorithm = strings.ToLower(c.Package.ChecksumAlgorithm)
	for i := range c.Targets {
		c.Targets[i].Channel = Channel(strings.ToLower(string(c.Targets[i].Channel)))
		c.Targets[i].Profile = Profile(strings.ToLower(string(c.Targets[i].Profile)))
	}
}

// Channels returns every recognised channel.
func Channels() []Channel {
	return []Channel{ChannelStable, ChannelBeta, ChannelNightly}
}

// Profiles returns every recognised profile.
func Profiles() []Profile {
	return []Profile{ProfileMinimal, ProfileDefault, ProfileComplete}
}

// Valid reports whether c is one of the three release tracks.
func (c Channel) Valid() bool {
	for _, known := range Channels() {
		if c == known {
			return true
		}
	}
	return false
}

// Valid reports whether p is a recognised profile.
func (p Profile) Valid() bool {
	for _, known := range Profiles() {
		if p == known {
			return true
		}
	}
	return false
}
