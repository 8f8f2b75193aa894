package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/neurostore/internal/client/client"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (r *runner) uploadCmd() *cobra.Command {
	var fileID string

	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload files, sending only chunks the server does not have",
		Long: `Upload splits each file into content-defined chunks, asks the server which
of them it is missing and streams only those. Uploading a path again creates a
new version of the same file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if fileID != "" && len(args) > 1 {
				return fmt.Errorf("--id needs exactly one path")
			}
			out := cmd.OutOrStdout()
			for _, p := range args {
				res, err := r.svc.Upload(ctx, p, fileID)
				if err != nil {
					return fmt.Errorf("upload %s: %w", p, err)
				}
				fmt.Fprintf(out, "%s -> %s v%d (%s, sent %d/%d chunks, %s new)\n",
					p, res.FileID, res.Version, humanize.Bytes(uint64(res.Size)),
					res.Sent, res.Chunks, humanize.Bytes(res.NewBytes))
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&fileID, "id", "", "upload as a new version of this file id")
	return cmd
}

func (r *runner) downloadCmd() *cobra.Command {
	var (
		output  string
		version int64
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "download <ref>",
		Short: "Download a file version",
		Long: `Download writes the requested version (latest by default) to --output, which
is replaced only once every chunk arrived, or to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if version < 0 {
				return fmt.Errorf("--version must not be negative")
			}
			out := cmd.OutOrStdout()
			if output == "" && isTerminal(out) && !force {
				return fmt.Errorf("refusing to write file contents to a terminal; use --output or --force")
			}

			report, err := r.svc.Download(ctx, args[0], version, output, out)
			var dErr *client.DownloadError
			if errors.As(err, &dErr) {
				for _, ce := range dErr.Failed {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", ce)
				}
			}
			if err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d chunks, %s\n", output, report.Chunks, humanize.Bytes(uint64(report.Bytes)))
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination path (default stdout)")
	cmd.Flags().Int64Var(&version, "version", 0, "version number (0 = latest)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "write to stdout even if it is a terminal")
	return cmd
}
