package main

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cjeanneret/fieldtools/internal/camera"
	"github.com/cjeanneret/fieldtools/internal/coc"
	"github.com/cjeanneret/fieldtools/internal/config"
	"github.com/cjeanneret/fieldtools/internal/logging"
	"github.com/cjeanneret/fieldtools/internal/settings"
)

// app holds what every subcommand needs once the root command has run its
// pre-run hook.
type app struct {
	cfgPath   string
	storeKind string
	storePath string
	logLevel  int

	cfg      *config.Config
	log      zerolog.Logger
	settings *settings.KV
	cameras  *camera.Store
}

// skipInit lists commands that never touch the store.
var skipInit = map[string]bool{
	"help":       true,
	"completion": true,
	"presets":    true,
	"sensor":     true,
}

// newRootCmd builds the command tree over a. The caller closes a once the
// command has run, whether or not it failed.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "fieldtools",
		Short: "Camera bodies and depth of field for photographers",
		Long: `fieldtools keeps a list of camera bodies with the circle of confusion
of their format and computes depth of field for the selected one.

Cameras are persisted in a settings store (YAML file by default, or SQLite),
so the list, its order and the selected camera survive restarts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipInit[cmd.Name()] {
				return nil
			}
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", defaultConfigPath(), "path to config file")
	pf.StringVar(&a.storeKind, "store-kind", "", "override store kind (memory, file, sqlite)")
	pf.StringVar(&a.storePath, "store", "", "override store path")
	pf.IntVar(&a.logLevel, "log-level", -1, "override log level (0-4)")

	root.AddCommand(
		newCamerasCmd(a),
		newCoCCmd(),
		newDOFCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.LoadOrDefault(a.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.storeKind != "" {
		cfg.Store.Kind = a.storeKind
	}
	if a.storePath != "" {
		cfg.Store.Path = a.storePath
	}
	if a.logLevel >= 0 {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	a.log = logging.NewWithWriter(logCfg, cmd.ErrOrStderr())

	path, err := cfg.StorePath()
	if err != nil {
		return err
	}
	a.settings, err = settings.Open(cfg.Store.Kind, path)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Kind, err)
	}
	a.log.Info().Str("kind", cfg.Store.Kind).Str("path", path).Msg("settings store opened")
	a.cameras = camera.NewStore(a.settings, a.log)

	// "cameras seed" reports what it added itself.
	if cfg.Defaults.SeedPresets && cmd.Name() != "seed" {
		if _, err := a.cameras.SeedDefaults(cmd.Context(), coc.Presets()); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) close() {
	if a.settings == nil {
		return
	}
	if err := a.settings.Close(); err != nil {
		a.log.Error().Err(err).Msg("closing settings store failed")
	}
	a.settings = nil
}

func defaultConfigPath() string {
	return filepath.Join("configs", "fieldtools.yaml")
}
