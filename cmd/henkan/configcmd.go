package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"henkan/internal/config"
)

func addConfig(root *cobra.Command, g *globalOptions) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create the configuration file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration.",
		Example: `
henkan config show
henkan config show --format yaml
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := g.load()
			if err != nil {
				return err
			}
			return writeConfig(cmd.OutOrStdout(), cfg, format)
		},
	}
	show.Flags().StringVar(&format, "format", "toml", "output format: toml, yaml or json")

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file in use.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), g.path())
			return err
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file if none exists.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := g.path()
			_, created, err := config.LoadOrCreate(p)
			if err != nil {
				return err
			}
			if created {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", p)
			} else {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", p)
			}
			return err
		},
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file for errors.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := g.load(); err != nil {
				return err
			}
			_, err := color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "%s is valid\n", g.path())
			return err
		},
	}

	cmd.AddCommand(show, path, initCmd, validate)
	root.AddCommand(cmd)
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "toml":
		return toml.NewEncoder(w).Encode(cfg)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
