package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/marmos91/dittostore/pkg/filestore"
	"github.com/marmos91/dittostore/pkg/multitenant"
	"github.com/marmos91/dittostore/pkg/remote"
	"github.com/spf13/cobra"
)

// Build information, set with -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	cfgFile  string
	logLevel string
	tenantID string
)

// Exit codes.
const (
	exitError    = 1
	exitNotFound = 2
	exitLocked   = 3
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dittostore",
		Short: "DittoStore - UUID-keyed file store",
		Long: `DittoStore keeps files under generated identifiers in a date-partitioned
directory tree, tracks their metadata and supports soft delete and restore.

QUICK START:

  # Write a default configuration file
  dittostore config init

  # Add a file and keep the printed id
  dittostore add report.pdf --meta owner=alice

  # Inspect, remove and restore it
  dittostore get <id>
  dittostore remove <id>
  dittostore restore <id>

MULTITENANT STORES (store.multitenant: true):

  dittostore tenant create acme
  dittostore add report.pdf --tenant acme

For more help on any command, use: dittostore <command> --help`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", "", "tenant id (multitenant stores)")

	// Store commands
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newAddCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newRemoveCmd())
	rootCmd.AddCommand(newRestoreCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newUnlockCmd())

	// Tenant command - manage tenants of a multitenant store
	rootCmd.AddCommand(newTenantCmd())

	// Remote command - transfer files to the configured remote
	rootCmd.AddCommand(newRemoteCmd())

	// Serve command - HTTP API
	rootCmd.AddCommand(newServeCmd())

	// Config command - manage configuration files
	rootCmd.AddCommand(newConfigCmd())

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "dittostore %s\n", Version)
			_, _ = fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			_, _ = fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case errors.Is(err, filestore.ErrNotFound),
		errors.Is(err, multitenant.ErrTenantNotFound),
		errors.Is(err, remote.ErrNotFound):
		return exitNotFound
	case errors.Is(err, filestore.ErrAlreadyLocked):
		return exitLocked
	default:
		return exitError
	}
}
