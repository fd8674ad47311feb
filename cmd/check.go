package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/rustup-plus-plus/distpack/pkg/checksum"
	"github.com/rustup-plus-plus/distpack/pkg/config"
	"github.com/rustup-plus-plus/distpack/pkg/dist"
	"github.com/rustup-plus-plus/distpack/pkg/fetch"
	"github.com/rustup-plus-plus/distpack/pkg/httpclient"
	"github.com/spf13/cobra"
)

var (
	// Flags for check command
	checkURLs     bool
	checkStrict   bool
	checkPackages string
)

// CheckCommand represents the check command
var CheckCommand = &cobra.Command{
	Use:   "check",
	Short: "Validate a config file and show the archives it resolves to",
	Long: `Checks a distpack configuration file by:
- Validating targets, channels, dates, profiles and tools
- Resolving the distribution server from the environment and the file
- Printing the toolchain id and archive URL of every target
- Optionally checking that every archive exists on the server
- Optionally verifying packaged archives against their published digests`,
	Example: `  # Validate the default config
  distpack check

  # Also probe the distribution server
  distpack check --check-urls

  # Verify the archives written by "distpack package -o dist --checksums"
  distpack check --packages dist`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Info("Running check command...")

		cfg, data, err := loadConfig(configFile)
		if err != nil {
			log.WithError(err).Error("Config validation failed")
			return err
		}
		if checkStrict {
			if err := lintConfig(data); err != nil {
				log.Error("Config contains unknown fields")
				return fmt.Errorf("strict check failed:\n%w", err)
			}
		}
		log.Info("✓ Config validation passed")

		settings, err := loadSettings(cfg)
		if err != nil {
			return err
		}
		log.Infof("Distribution server: %s", settings.DistServer)

		resolved, err := dist.ResolveAll(settings.DistServer, cfg)
		if err != nil {
			return fmt.Errorf("failed to resolve archive URLs: %w", err)
		}

		var (
			columns  []statusColumn
			problems []string
		)

		if checkURLs {
			log.Info("Checking archives on the distribution server...")
			client := httpclient.New(httpclient.Options{UserAgent: fetch.DefaultUserAgent})
			status, missing := probeURLs(cmd.Context(), client, resolved)
			columns = append(columns, statusColumn{Title: "STATUS", Values: status})
			if missing > 0 {
				problems = append(problems, fmt.Sprintf("%d archive(s) missing on %s", missing, settings.DistServer))
			}
		}

		if checkPackages != "" {
			dir, err := config.ExpandPath(checkPackages)
			if err != nil {
				return err
			}
			algorithm, err := checksum.ParseAlgorithm(cfg.Package.ChecksumAlgorithm)
			if err != nil {
				return err
			}
			log.Infof("Verifying packaged archives in %s...", dir)
			status, mismatched := verifyPackages(dir, algorithm, resolved)
			columns = append(columns, statusColumn{Title: "PACKAGE", Values: status})
			if mismatched > 0 {
				problems = append(problems, fmt.Sprintf("%d packaged archive(s) failed verification", mismatched))
			}
		}

		displayResolved(cmd.OutOrStdout(), resolved, columns...)
		if len(problems) > 0 {
			return errors.New(strings.Join(problems, "; "))
		}
		log.Info("✓ Check completed successfully")
		return nil
	},
}

func init() {
	CheckCommand.Flags().BoolVar(&checkURLs, "check-urls", false, "Check that every archive exists on the distribution server")
	CheckCommand.Flags().BoolVar(&checkStrict, "strict", false, "Reject unknown config fields")
	CheckCommand.Flags().StringVar(&checkPackages, "packages", "", "Verify packaged archives in this directory against their published digests")
}

// probeURLs issues a HEAD request per archive and returns a status label per
// URL and the number of archives that are not available.
func probeURLs(ctx context.Context, client *http.Client, resolved []dist.Resolved) (map[string]string, int) {
	if ctx == nil {
		ctx = context.Background()
	}
	status := make(map[string]string, len(resolved))
	missing := 0
	for _, r := range resolved {
		code, err := head(ctx, client, r.URL)
		switch {
		case err != nil:
			log.WithError(err).Debugf("HEAD %s failed", r.URL)
			status[r.URL] = failStyle.Render("✗ ERROR")
			missing++
		case code == http.StatusOK:
			status[r.URL] = okStyle.Render("✓ EXISTS")
		default:
			status[r.URL] = failStyle.Render(fmt.Sprintf("✗ MISSING (%d)", code))
			missing++
		}
	}
	return status, missing
}

func head(ctx context.Context, client *http.Client, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// verifyPackages looks for each target's packaged archive in dir and checks
// it against its published digest. It returns a status label per URL and
// the number of archives that failed verification.
func verifyPackages(dir string, algorithm checksum.Algorithm, resolved []dist.Resolved) (map[string]string, int) {
	status := make(map[string]string, len(resolved))
	failed := 0
	for _, r := range resolved {
		archivePath := filepath.Join(dir, r.FileName)
		if _, err := os.Stat(archivePath); err != nil {
			status[r.URL] = "- NOT PACKAGED"
			continue
		}
		if _, err := os.Stat(checksum.FilePath(archivePath, algorithm)); os.IsNotExist(err) {
			status[r.URL] = warnStyle.Render("? NO " + strings.ToUpper(string(algorithm)))
			continue
		}

		err := checksum.Verify(archivePath, algorithm)
		switch {
		case err == nil:
			status[r.URL] = okStyle.Render("✓ VERIFIED")
		case errors.Is(err, checksum.ErrMismatch):
			log.WithError(err).Debug("digest mismatch")
			status[r.URL] = failStyle.Render("✗ MISMATCH")
			failed++
		default:
			log.WithError(err).Debugf("cannot verify %s", archivePath)
			status[r.URL] = failStyle.Render("✗ ERROR")
			failed++
		}
	}
	return status, failed
}
