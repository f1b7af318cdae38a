package main

import (
	"context"
	"fmt"
	"os"

	"github.com/marmos91/dittostore/pkg/config"
	"github.com/marmos91/dittostore/pkg/remote"
	"github.com/spf13/cobra"
)

func newRemoteCmd() *cobra.Command {
	remoteCmd := &cobra.Command{
		Use:   "remote",
		Short: "Transfer files to and from the configured remote store",
		Long: `Transfer files to and from the remote store selected by remote.type
(webdav, s3 or local).

Examples:
  # Upload a file and print its locator
  dittostore remote put report.pdf

  # Download it again
  dittostore remote get /dittostore/report.pdf -o copy.pdf

  # Delete it
  dittostore remote rm /dittostore/report.pdf`,
	}

	putCmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Upload a file and print its locator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRemote(cmd.Context(), func(ctx context.Context, store remote.Store) error {
				locator, err := store.Add(ctx, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), locator)
				return nil
			})
		},
	}
	remoteCmd.AddCommand(putCmd)

	var output string
	getCmd := &cobra.Command{
		Use:   "get <locator>",
		Short: "Download a file (to stdout unless -o is given)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRemote(cmd.Context(), func(ctx context.Context, store remote.Store) error {
				data, err := store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				return os.WriteFile(output, data, 0644)
			})
		},
	}
	getCmd.Flags().StringVarP(&output, "output", "o", "", "write the content to this path")
	remoteCmd.AddCommand(getCmd)

	rmCmd := &cobra.Command{
		Use:     "rm <locator>",
		Aliases: []string{"remove"},
		Short:   "Delete a remote file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRemote(cmd.Context(), func(ctx context.Context, store remote.Store) error {
				if err := store.Remove(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
	remoteCmd.AddCommand(rmCmd)

	return remoteCmd
}

// withRemote runs fn against the configured remote store and closes it.
func withRemote(ctx context.Context, fn func(ctx context.Context, store remote.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := config.CreateRemoteStore(ctx, &cfg.Remote, config.NewNotifier(&cfg.Store))
	if err != nil {
		return err
	}

	err = fn(ctx, store)
	if closeErr := store.Close(); err == nil {
		err = closeErr
	}
	return err
}
