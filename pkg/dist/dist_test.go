package dist

import (
	"testing"

	"github.com/rustup-plus-plus/distpack/pkg/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		name     string
		product  string
		sel      spec.TargetSelection
		template string
		want     string
	}{
		{
			name:    "nightly linux",
			product: "rust",
			sel:     spec.TargetSelection{Target: "x86_64-unknown-linux-gnu", Channel: spec.ChannelNightly},
			want:    "rust-nightly-x86_64-unknown-linux-gnu.tar.gz",
		},
		{
			name:    "custom product",
			product: "cargo",
			sel:     spec.TargetSelection{Target: "aarch64-apple-darwin", Channel: spec.ChannelBeta},
			want:    "cargo-beta-aarch64-apple-darwin.tar.gz",
		},
		{
			name:     "custom template",
			product:  "rust",
			sel:      spec.TargetSelection{Target: "x86_64-pc-windows-msvc", Channel: spec.ChannelStable},
			template: "${PRODUCT}-${CHANNEL}-${TARGET}.tar.xz",
			want:     "rust-stable-x86_64-pc-windows-msvc.tar.xz",
		},
		{
			name:    "empty product falls back to default",
			product: "",
			sel:     spec.TargetSelection{Target: "x86_64-unknown-linux-gnu", Channel: spec.ChannelStable},
			want:    "rust-stable-x86_64-unknown-linux-gnu.tar.gz",
		},
		{
			name:    "unknown channel yields empty name",
			product: "rust",
			sel:     spec.TargetSelection{Target: "x86_64-unknown-linux-gnu", Channel: "dev"},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FileName(tt.product, tt.sel, tt.template)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		name     string
		distRoot string
		sel      spec.TargetSelection
		want     string
		wantErr  bool
	}{
		{
			name:     "dated selection under a root ending in /dist doubles the segment",
			distRoot: "https://example.test/dist",
			sel:      spec.TargetSelection{Target: "x86_64-pc-windows-msvc", Channel: spec.ChannelNightly, Date: "2023-06-14"},
			want:     "https://example.test/dist/dist/2023-06-14/rust-nightly-x86_64-pc-windows-msvc.tar.gz",
		},
		{
			name:     "dated selection under a bare root",
			distRoot: "https://static.rust-lang.org",
			sel:      spec.TargetSelection{Target: "x86_64-unknown-linux-gnu", Channel: spec.ChannelNightly, Date: "2023-06-25"},
			want:     "https://static.rust-lang.org/dist/2023-06-25/rust-nightly-x86_64-unknown-linux-gnu.tar.gz",
		},
		{
			name:     "undated selection",
			distRoot: "https://mirrors.example.test/rustup/",
			sel:      spec.TargetSelection{Target: "aarch64-apple-darwin", Channel: spec.ChannelStable},
			want:     "https://mirrors.example.test/rustup/rust-stable-aarch64-apple-darwin.tar.gz",
		},
		{
			name:     "invalid channel",
			distRoot: "https://example.test",
			sel:      spec.TargetSelection{Target: "aarch64-apple-darwin", Channel: "weekly"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := URL(tt.distRoot, "rust", tt.sel, "")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToolchainID(t *testing.T) {
	assert.Equal(t, "nightly-2023-06-14-x86_64-pc-windows-msvc",
		ToolchainID(spec.TargetSelection{Target: "x86_64-pc-windows-msvc", Channel: spec.ChannelNightly, Date: "2023-06-14"}))
	assert.Equal(t, "beta-x86_64-unknown-linux-gnu",
		ToolchainID(spec.TargetSelection{Target: "x86_64-unknown-linux-gnu", Channel: spec.ChannelBeta}))
}

func TestResolveAll(t *testing.T) {
	cfg := &spec.Config{
		Targets: []spec.TargetSelection{
			{Target: "x86_64-unknown-linux-gnu", Channel: spec.ChannelNightly},
			{Target: "x86_64-pc-windows-msvc", Channel: spec.ChannelStable, Date: "2024-01-02"},
		},
	}
	cfg.SetDefaults()

	got, err := ResolveAll("https://example.test", cfg)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "rust-nightly-x86_64-unknown-linux-gnu.tar.gz", got[0].FileName)
	assert.Equal(t, "https://example.test/rust-nightly-x86_64-unknown-linux-gnu.tar.gz", got[0].URL)
	assert.Equal(t, "stable-2024-01-02-x86_64-pc-windows-msvc", got[1].ToolchainID)
	assert.Equal(t, "https://example.test/dist/2024-01-02/rust-stable-x86_64-pc-windows-msvc.tar.gz", got[1].URL)
}
