package main

import (
	"os"

	"github.com/ddt-tool/ddt/internal/config"
	"github.com/ddt-tool/ddt/internal/logging"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ddt",
		Short: "ddt interprets decision packs",
		Long: `ddt walks a case through decision packs: question graphs that branch on
answers, apply effects to the case state and hand off between packs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to a YAML configuration file")
	flags.String("packs", "", "Directory containing pack documents (default \"decision-trees\")")
	flags.String("packs-url", "", "Base URL serving <id>.json pack documents (overrides --packs)")
	flags.String("store", "", "Export store: memory, file or redis")
	flags.String("store-dir", "", "Directory of the file export store")
	flags.String("redis", "", "Redis address of the redis export store")
	flags.Bool("debug", false, "Enable debug logging")

	root.AddCommand(
		newRunCmd(a),
		newServeCmd(a),
		newValidateCmd(a),
		newGraphCmd(a),
		newMCPCmd(a),
		newExportCmd(a),
		newVersionCmd(),
	)
	return root
}

// configure loads the configuration file and environment, then applies flags.
func (a *app) configure(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, os.Environ())
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("packs") {
		cfg.Packs.Dir, _ = flags.GetString("packs")
		cfg.Packs.BaseURL = ""
	}
	if flags.Changed("packs-url") {
		cfg.Packs.BaseURL, _ = flags.GetString("packs-url")
	}
	if flags.Changed("store") {
		cfg.Store.Kind, _ = flags.GetString("store")
	}
	if flags.Changed("store-dir") {
		cfg.Store.Dir, _ = flags.GetString("store-dir")
	}
	if flags.Changed("redis") {
		cfg.Store.RedisAddr, _ = flags.GetString("redis")
	}
	if debug, _ := flags.GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.New(logging.ParseLevel(cfg.Log.Level))
	return nil
}
