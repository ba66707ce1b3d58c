package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ralt/pkgfeed/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command
func NewServeCmd(global *globalOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept package uploads over HTTP",
		Long: `Serves PUT /api/v2/package. Overwrite and retention settings are
reloaded whenever the config file changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := global.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			a.Policy.Watch()

			if listen == "" {
				listen = a.Config.Server.Listen
			}
			opts := server.Options{MaxUploadBytes: a.Config.Server.MaxUploadBytes}
			if a.Signer != nil {
				if opts.SigningKey, err = a.Signer.GetPublicKey(); err != nil {
					return fmt.Errorf("failed to export signing key: %w", err)
				}
			}
			e := server.New(a.Service, opts)
			return server.Run(ctx, e, listen)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (overrides server.listen)")

	return cmd
}
