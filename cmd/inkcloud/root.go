package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inkcloud/go-settings/internal/config"
	"github.com/inkcloud/go-settings/internal/logging"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	envFile    string
	verbose    bool
	actor      string

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "inkcloud",
		Short: "Tenant settings and stock ledger for the inkcloud dashboard",
		Long: `inkcloud serves and edits per-tenant dashboard settings.

Commands talk to a running server when api.base_url is configured and to
the configured storage directly otherwise.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath, a.envFile)
			if err != nil {
				return err
			}
			if a.verbose {
				cfg.Log.Level = "debug"
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to inkcloud.yaml")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before INKCLOUD_* overrides")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&a.actor, "actor", "", "actor id recorded in activity events")

	root.AddCommand(
		a.serveCmd(),
		a.domainsCmd(),
		a.openapiCmd(),
		a.settingsCmd(),
		a.stockCmd(),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
