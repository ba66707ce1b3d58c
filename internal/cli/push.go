package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ralt/pkgfeed/internal/models"
	"github.com/ralt/pkgfeed/internal/scanner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type ingester interface {
	Ingest(ctx context.Context, r io.Reader) (models.Outcome, error)
}

type pushOptions struct {
	inputDir string
	jobs     int
}

// NewPushCmd creates the push command
func NewPushCmd(global *globalOptions) *cobra.Command {
	opts := &pushOptions{}

	cmd := &cobra.Command{
		Use:   "push [files...]",
		Short: "Ingest local package files",
		Long: `Ingests package files given as arguments and every artifact found
below --input-dir. Prints one outcome per file and exits non-zero when a
package is invalid or could not be stored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			files := append([]string(nil), args...)
			if opts.inputDir != "" {
				scanned, err := scanner.NewFileSystemScanner().Scan(ctx, opts.inputDir)
				if err != nil {
					return err
				}
				for _, s := range scanned {
					files = append(files, s.Path)
				}
			}
			if len(files) == 0 {
				return fmt.Errorf("no packages to push")
			}

			a, err := global.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			return pushFiles(ctx, a.Service, files, opts.jobs, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.inputDir, "input-dir", "i", "", "Directory to scan for packages")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 4, "Number of packages ingested concurrently")

	return cmd
}

type pushResult struct {
	outcome models.Outcome
	err     error
}

func pushFiles(ctx context.Context, svc ingester, files []string, jobs int, out io.Writer) error {
	if jobs < 1 {
		jobs = 1
	}

	results := make([]pushResult, len(files))

	var g errgroup.Group
	g.SetLimit(jobs)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			results[i] = pushFile(ctx, svc, path)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, path := range files {
		r := results[i]
		switch {
		case r.err != nil:
			failed++
			fmt.Fprintf(out, "%s: error: %v\n", path, r.err)
		case r.outcome == models.InvalidPackage:
			failed++
			fmt.Fprintf(out, "%s: %s\n", path, r.outcome)
		default:
			fmt.Fprintf(out, "%s: %s\n", path, r.outcome)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d packages failed", failed, len(files))
	}
	logrus.Infof("Pushed %d packages", len(files))
	return nil
}

func pushFile(ctx context.Context, svc ingester, path string) pushResult {
	f, err := os.Open(path)
	if err != nil {
		return pushResult{err: err}
	}
	defer f.Close()

	outcome, err := svc.Ingest(ctx, f)
	return pushResult{outcome: outcome, err: err}
}
