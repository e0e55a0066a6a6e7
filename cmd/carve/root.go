package main

import (
	"github.com/spf13/cobra"

	"github.com/chazu/carve/pkg/config"
)

// cli holds the global flags and the App built from them before any
// subcommand runs.
type cli struct {
	configPath string
	logLevel   string
	logFile    string

	app *App
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:               "carve",
		Short:             "Boolean operations on closed triangle meshes",
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.app != nil {
				_ = c.app.log.Sync()
			}
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.configPath, "config", "", "config file (.toml, .yaml or .yml)")
	f.StringVar(&c.logLevel, "log-level", "", "log level, overrides log.level")
	f.StringVar(&c.logFile, "log-file", "", "log to a rotating file instead of stderr")

	root.AddCommand(c.booleanCmd(), c.evalCmd(), c.statsCmd())
	return root
}

// setup loads the configuration, applies flag overrides and builds the
// App.
func (c *cli) setup(*cobra.Command, []string) error {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return err
		}
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.logFile != "" {
		cfg.Log.File = c.logFile
	}

	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	c.app = NewApp(cfg, log)
	return nil
}
