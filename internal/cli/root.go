package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/ralt/pkgfeed/internal/app"
	"github.com/ralt/pkgfeed/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "pkgfeed",
		Short: "Ingest packages into a versioned package feed",
		Long: `pkgfeed accepts package uploads, stores their content and metadata,
indexes them for search and prunes old versions according to the
configured retention limits.

Supported artifacts:
  - Feed packages (tar, tar.gz, tar.zst, tar.xz with package.yaml)
  - Alpine/Arch packages (.PKGINFO)
  - Debian packages (.deb)
  - RPM packages (.rpm)`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Setup logging
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}

			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default "+config.DefaultFile+")")

	// Add subcommands
	rootCmd.AddCommand(NewPushCmd(opts))
	rootCmd.AddCommand(NewServeCmd(opts))
	rootCmd.AddCommand(NewPackCmd())

	return rootCmd
}

func (o *globalOptions) openApp(ctx context.Context) (*app.App, error) {
	v, err := config.New(o.configPath)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, v)
}
