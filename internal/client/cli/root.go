package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/neurostore/internal/client/config"
	"github.com/dmitrijs2005/neurostore/internal/client/services"
	"github.com/spf13/cobra"
)

type runner struct {
	cfg  *config.Config
	open Opener
	svc  services.FileService
}

// NewRootCommand builds the command tree. open is called once per run,
// after flag parsing.
func NewRootCommand(cfg *config.Config, open Opener) *cobra.Command {
	r := &runner{cfg: cfg, open: open}

	root := &cobra.Command{
		Use:           "neurostore",
		Short:         "Deduplicating chunk store client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			if err := r.cfg.Validate(); err != nil {
				return err
			}
			svc, err := r.open(cmd.Context(), r.cfg)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			r.svc = svc
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	config.BindFlags(root.PersistentFlags(), cfg)

	root.AddCommand(
		r.uploadCmd(),
		r.downloadCmd(),
		r.versionsCmd(),
		r.infoCmd(),
		r.lsCmd(),
		r.searchCmd(),
		r.renameCmd(),
		r.rmCmd(),
		r.shareCmd(),
		r.pingCmd(),
		r.rebindCmd(),
	)
	return root
}

// run wraps fn with the configured per-command timeout and closes the
// service afterwards.
func (r *runner) run(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer r.close()
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if r.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
			defer cancel()
		}
		return fn(ctx, cmd, args)
	}
}

func (r *runner) close() {
	if r.svc != nil {
		_ = r.svc.Close()
		r.svc = nil
	}
}

func (r *runner) pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server answers",
		Args:  cobra.NoArgs,
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			if err := r.svc.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is up\n", r.cfg.ServerEndpointAddr)
			return nil
		}),
	}
}

func (r *runner) rebindCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rebind",
		Short: "Forget tracked paths and bind the local database to the configured server",
		Long: "The local database remembers which server it was filled against and refuses\n" +
			"another one. rebind drops the tracked paths so it can be used with --server.\n" +
			"Files on either server are not touched.",
		Args: cobra.NoArgs,
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("rebind forgets every tracked path; pass --yes to confirm")
			}
			n, err := r.svc.Rebind(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "forgot %d tracked paths; bound to %s\n", n, r.cfg.ServerEndpointAddr)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}
