package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ralt/pkgfeed/internal/archive"
	"github.com/ralt/pkgfeed/internal/extractor"
	"github.com/ralt/pkgfeed/internal/spool"
	"github.com/ralt/pkgfeed/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewPackCmd creates the pack command
func NewPackCmd() *cobra.Command {
	var output, compression string

	cmd := &cobra.Command{
		Use:   "pack DIR",
		Short: "Build a feed package from a directory",
		Long: `Packs every file below DIR into a tar archive. DIR must contain a
package.yaml manifest; the result is checked the same way an upload is.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := utils.ParseCompression(compression)
			if err != nil {
				return err
			}

			path, err := packDir(cmd.Context(), args[0], output, c)
			if err != nil {
				return err
			}
			return reportPacked(cmd.OutOrStdout(), path)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default {id}.{version} with the archive extension)")
	cmd.Flags().StringVar(&compression, "compression", string(utils.CompressionGzip), "Compression: gzip, zstd, xz or none")

	return cmd
}

// packDir archives dir and writes it to output once it parses as a valid
// package. It returns the path written.
func packDir(ctx context.Context, dir, output string, c utils.Compression) (string, error) {
	arena := spool.NewArena("")
	defer arena.Close()

	f, err := arena.Create("pack")
	if err != nil {
		return "", err
	}
	if err := archive.PackDir(dir, f, c); err != nil {
		return "", err
	}
	if err := f.Rewind(); err != nil {
		return "", err
	}

	pkg, _, err := extractor.New().Extract(ctx, f, arena)
	if err != nil {
		if errors.Is(err, extractor.ErrInvalidPackage) {
			return "", fmt.Errorf("%s is not a valid package: %w", dir, err)
		}
		return "", err
	}

	if output == "" {
		output = pkg.ID + "." + pkg.NormalizedVersion() + c.Extension()
	}
	if err := f.Rewind(); err != nil {
		return "", err
	}
	if err := utils.WriteFileAtomic(output, f, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", output, err)
	}

	logrus.Infof("Packed %s into %s", pkg, output)
	return output, nil
}

// reportPacked prints the digest of path in sha256sum format
func reportPacked(w io.Writer, path string) error {
	sum, err := utils.CalculateChecksums(path)
	if err != nil {
		return fmt.Errorf("failed to checksum %s: %w", path, err)
	}
	_, err = fmt.Fprintf(w, "%s  %s\n", sum.SHA256, path)
	return err
}
