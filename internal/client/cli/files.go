package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/neurostore/internal/server/models"
	"github.com/spf13/cobra"
)

func (r *runner) versionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <ref>",
		Short: "List the versions of a file",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			versions, err := r.svc.Versions(ctx, args[0])
			if err != nil {
				return err
			}
			return printVersions(cmd.OutOrStdout(), versions)
		}),
	}
}

func (r *runner) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <ref>",
		Short: "Show a file and who can access it",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			f, err := r.svc.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printInfo(cmd.OutOrStdout(), f)
		}),
	}
}

func (r *runner) lsCmd() *cobra.Command {
	var shared, tracked bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List your files",
		Args:  cobra.NoArgs,
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			if shared && tracked {
				return fmt.Errorf("--shared and --tracked are exclusive")
			}
			if tracked {
				list, err := r.svc.Tracked(ctx)
				if err != nil {
					return err
				}
				return printTracked(cmd.OutOrStdout(), list)
			}
			files, err := r.svc.List(ctx, shared)
			if err != nil {
				return err
			}
			return printFiles(cmd.OutOrStdout(), files)
		}),
	}
	cmd.Flags().BoolVar(&shared, "shared", false, "list files shared with you")
	cmd.Flags().BoolVar(&tracked, "tracked", false, "list paths uploaded from this machine")
	return cmd
}

func (r *runner) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find your files by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			files, err := r.svc.Search(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printFiles(cmd.OutOrStdout(), files)
		}),
	}
}

func (r *runner) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <ref> <name>",
		Short: "Rename a file",
		Args:  cobra.ExactArgs(2),
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			f, err := r.svc.Rename(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s renamed to %s\n", f.ID, f.FullName())
			return nil
		}),
	}
}

func (r *runner) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <ref>...",
		Short: "Delete files; chunks shared with other files are kept",
		Args:  cobra.MinimumNArgs(1),
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			for _, ref := range args {
				if err := r.svc.Delete(ctx, ref); err != nil {
					return fmt.Errorf("rm %s: %w", ref, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", ref)
			}
			return nil
		}),
	}
}

func (r *runner) shareCmd() *cobra.Command {
	var (
		public      bool
		read, write []string
	)

	cmd := &cobra.Command{
		Use:   "share <ref>",
		Short: "Replace the access list of a file",
		Long: `Share replaces who may read or write a file. Identities are given as
kind=value where kind is user, provider or email, for example:

  neurostore share model.bin --read email=ann@example.com --write user=42 --public

Running share without --read, --write or --public makes the file private.`,
		Args: cobra.ExactArgs(1),
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			entries, err := accessEntries(read, write)
			if err != nil {
				return err
			}
			f, err := r.svc.Share(ctx, args[0], public, entries)
			if err != nil {
				return err
			}
			return printInfo(cmd.OutOrStdout(), f)
		}),
	}
	cmd.Flags().BoolVar(&public, "public", false, "anyone, including anonymous callers, may read")
	cmd.Flags().StringArrayVar(&read, "read", nil, "grant read access to kind=value")
	cmd.Flags().StringArrayVar(&write, "write", nil, "grant write access to kind=value")
	return cmd
}

var identityKinds = map[string]models.IdentityKind{
	"user":        models.KindUserID,
	"user_id":     models.KindUserID,
	"provider":    models.KindProviderID,
	"provider_id": models.KindProviderID,
	"email":       models.KindEmail,
}

func parseEntry(s string, level models.AccessLevel) (models.AccessEntry, error) {
	k, v, ok := strings.Cut(s, "=")
	kind, known := identityKinds[strings.ToLower(strings.TrimSpace(k))]
	v = strings.TrimSpace(v)
	if !ok || !known || v == "" {
		return models.AccessEntry{}, fmt.Errorf("bad identity %q, want user=, provider= or email=", s)
	}
	return models.AccessEntry{Kind: kind, Value: v, Level: level}, nil
}

func accessEntries(read, write []string) ([]models.AccessEntry, error) {
	entries := make([]models.AccessEntry, 0, len(read)+len(write))
	for _, list := range []struct {
		values []string
		level  models.AccessLevel
	}{{read, models.AccessRead}, {write, models.AccessWrite}} {
		for _, s := range list.values {
			e, err := parseEntry(s, list.level)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}
	}
	return entries, nil
}
