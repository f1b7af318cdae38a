package main

import (
	"fmt"

	"github.com/marmos91/dittostore/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var (
		force bool
		path  string
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a commented default configuration file.

Without --path the file is written to $XDG_CONFIG_HOME/dittostore/config.yaml
(~/.config/dittostore/config.yaml when XDG_CONFIG_HOME is unset).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				written, err := config.InitConfig(force)
				if err != nil {
					return err
				}
				path = written
			} else if err := config.InitConfigToPath(path, force); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	initCmd.Flags().StringVarP(&path, "path", "p", "", "destination path")
	configCmd.AddCommand(initCmd)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	configCmd.AddCommand(showCmd)

	return configCmd
}
