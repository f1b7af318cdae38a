package main

import (
	"fmt"

	"github.com/marmos91/dittostore/pkg/config"
	"github.com/marmos91/dittostore/pkg/multitenant"
	"github.com/spf13/cobra"
)

func newTenantCmd() *cobra.Command {
	tenantCmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants of a multitenant store",
		Long: `Manage tenants of a multitenant store (store.multitenant: true).

Examples:
  # Create a tenant with a chosen id, or a random UUID when omitted
  dittostore tenant create acme
  dittostore tenant create

  # List tenants
  dittostore tenant list

  # Remove a tenant and every file it holds
  dittostore tenant remove acme`,
	}

	createCmd := &cobra.Command{
		Use:   "create [tenant-id]",
		Short: "Create a tenant",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			return withTenants(func(mt *multitenant.Store) error {
				created, err := mt.CreateTenant(id)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), created)
				return nil
			})
		},
	}
	tenantCmd.AddCommand(createCmd)

	removeCmd := &cobra.Command{
		Use:     "remove <tenant-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a tenant and delete its store",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenants(func(mt *multitenant.Store) error {
				if err := mt.RemoveTenant(args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed tenant %s\n", args[0])
				return nil
			})
		},
	}
	tenantCmd.AddCommand(removeCmd)

	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tenants",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTenants(func(mt *multitenant.Store) error {
				tenants := mt.Tenants()
				if len(tenants) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No tenants found.")
					return nil
				}
				for _, id := range tenants {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
	tenantCmd.AddCommand(listCmd)

	return tenantCmd
}

// withTenants runs fn against the multitenant store and shuts it down.
func withTenants(fn func(mt *multitenant.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Store.Multitenant {
		return fmt.Errorf("tenant commands need store.multitenant: true (root %s)", cfg.Store.Root)
	}

	mt, err := config.OpenMultiTenant(cfg, config.NewNotifier(&cfg.Store))
	if err != nil {
		return err
	}

	err = fn(mt)
	if shutdownErr := mt.Shutdown(); err == nil {
		err = shutdownErr
	}
	return err
}
