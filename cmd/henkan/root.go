package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"henkan/internal/config"
	"henkan/internal/logging"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "henkan",
		Short:         "Japanese kana-kanji conversion sessions on the command line.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "configuration file (toml, yaml or json)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override the configured log level")

	addRepl(cmd, g)
	addConfig(cmd, g)
	addStats(cmd, g)
	return cmd
}

// path resolves the configuration file: the flag, then an existing file in
// the platform directory, then the default location.
func (g *globalOptions) path() string {
	if g.configPath != "" {
		return g.configPath
	}
	if found := config.FindConfigFile(); found != "" {
		return found
	}
	return config.ConfigPath()
}

// load reads the configuration through a Loader so it can be watched later.
func (g *globalOptions) load() (*config.Loader, *config.Config, error) {
	loader := config.NewLoader(g.path())
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return loader, cfg, nil
}

// logger builds the process logger from the logging section and installs
// it as the default.
func (g *globalOptions) logger(cfg *config.Config) (*logging.Logger, error) {
	lc, err := cfg.Logging.LoggerConfig()
	if err != nil {
		return nil, fmt.Errorf("logging config: %w", err)
	}
	if g.logLevel != "" {
		level, err := logging.ParseLevel(g.logLevel)
		if err != nil {
			return nil, err
		}
		lc.Level = level
	}

	l, err := logging.New(lc)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(l)
	return l, nil
}
