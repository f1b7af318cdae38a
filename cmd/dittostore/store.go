package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marmos91/dittostore/pkg/filestore"
	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configured store (or open an existing one)",
		Long: `Create the store layout at store.root, or verify an existing one.

In a multitenant store, --tenant also registers that tenant.`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	out := cmd.OutOrStdout()
	if s.single != nil {
		verb := "Created"
		if s.single.Recovered() {
			verb = "Opened existing"
		}
		_, _ = fmt.Fprintf(out, "%s store at %s\n", verb, s.single.Root())
		return nil
	}

	if tenantID != "" && !s.tenants.HasTenant(tenantID) {
		if _, err := s.tenants.CreateTenant(tenantID); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Created tenant %s\n", tenantID)
	}
	_, _ = fmt.Fprintf(out, "Multitenant store at %s (%d tenants)\n", s.tenants.Root(), len(s.tenants.Tenants()))
	return nil
}

func newAddCmd() *cobra.Command {
	var (
		move bool
		meta []string
	)

	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Add files to the store and print their ids",
		Long: `Add files to the store. Each file gets a new id, printed one per line.

Examples:
  # Copy a file into the store
  dittostore add report.pdf

  # Move it instead and attach metadata
  dittostore add report.pdf --move --meta owner=alice --meta kind=invoice`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseMeta(meta)
			if err != nil {
				return err
			}

			return withStore(func(store *filestore.Store) error {
				for _, path := range args {
					rec := fields.Clone()
					rec[metadata.OriginalFileField] = filepath.Base(path)

					id, err := store.Add(path, rec, move)
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&move, "move", false, "move files into the store instead of copying")
	cmd.Flags().StringArrayVarP(&meta, "meta", "m", nil, "metadata field as key=value (repeatable)")
	return cmd
}

func newGetCmd() *cobra.Command {
	var (
		output   string
		pathOnly bool
	)

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a stored file's metadata or extract its content",
		Long: `Show the metadata of a stored file.

Examples:
  # Print the record as YAML
  dittostore get <id>

  # Print the physical path only
  dittostore get <id> --path

  # Copy the content out of the store ("-" writes to stdout)
  dittostore get <id> -o report.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store *filestore.Store) error {
				f, err := store.Get(args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				switch {
				case output != "":
					return extract(f, output, out)
				case pathOnly:
					_, err = fmt.Fprintln(out, f.Path)
					return err
				default:
					return printRecord(out, f.ID, f.Data)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the file content to this path (- for stdout)")
	cmd.Flags().BoolVar(&pathOnly, "path", false, "print only the physical path")
	return cmd
}

// extract copies the content of f to dest, or to stdout when dest is "-".
func extract(f *filestore.File, dest string, stdout io.Writer) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	if dest == "-" {
		_, err = io.Copy(stdout, src)
		return err
	}

	dst, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>...",
		Aliases: []string{"rm"},
		Short:   "Soft-delete stored files",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store *filestore.Store) error {
				for _, id := range args {
					if err := store.Remove(id); err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
				}
				return nil
			})
		},
	}
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>...",
		Short: "Restore soft-deleted files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store *filestore.Store) error {
				for _, id := range args {
					if err := store.Restore(id); err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", id)
				}
				return nil
			})
		},
	}
}

func newListCmd() *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored files",
		Long: `List the ids of stored files.

Examples:
  # Ids with size and age
  dittostore list --long

  # Soft-deleted files as a directory tree
  dittostore list --removed --tree`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(store *filestore.Store) error {
				entries, err := collectEntries(store, opts.removed)
				if err != nil {
					return err
				}
				return printEntries(cmd.OutOrStdout(), store.Root(), entries, opts)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.removed, "removed", false, "list soft-deleted files")
	cmd.Flags().BoolVar(&opts.tree, "tree", false, "render files as a directory tree")
	cmd.Flags().BoolVar(&opts.long, "long", false, "show size, age and original name")
	return cmd
}

// collectEntries returns the id and record of every current (or removed) file.
func collectEntries(store *filestore.Store, removed bool) ([]entry, error) {
	var (
		ids []string
		err error
	)
	if removed {
		ids, err = store.ListRemoved()
	} else {
		ids, err = store.List()
	}
	if err != nil {
		return nil, err
	}

	entries := make([]entry, 0, len(ids))
	for _, id := range ids {
		e := entry{id: id}
		if removed {
			e.data, err = store.GetRemoved(id)
		} else {
			var f *filestore.File
			if f, err = store.Get(id); err == nil {
				e.data = f.Data
			}
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Remove a stale lock marker",
		Long: `Remove the lock marker left by a process that did not shut down.

Only run this when no other process has the store open. In a multitenant
store, --tenant selects the tenant store to unlock.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			root := cfg.Store.Root
			if cfg.Store.Multitenant {
				if tenantID == "" {
					return errNoTenant
				}
				root = filepath.Join(root, tenantID)
			}

			removed, err := filestore.Unlock(root)
			if err != nil {
				return err
			}
			if removed {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Unlocked %s\n", root)
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is not locked\n", root)
			}
			return nil
		},
	}
}
