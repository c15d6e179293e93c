// Package main provides the browsercore CLI application.
package main

import (
	"context"

	"github.com/browsercore/browsercore/pkg/config"
	"github.com/browsercore/browsercore/pkg/observability"
	"github.com/browsercore/browsercore/pkg/version"
	"github.com/jedisct1/dlog"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	appConfig *config.Config
	logger    = observability.NewNopLogger()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "browsercore",
	Short: "Page cache and load dispatcher",
	Long: `browsercore loads pages through a size-bounded LRU cache, a connection
gate and a render worker pool. Fetches are synthetic; no network I/O is done.`,
	Version:           version.FullString(),
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.browsercore/config.yaml, then ./.browsercore.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// setup loads the configuration and initializes logging for every command.
func setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	loader := config.NewLoader()
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = loader.LoadFromPath(cfgFile)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Global.LogLevel = logLevel
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return err
	}

	level := observability.ParseLevel(cfg.Global.LogLevel)
	dlog.Init("browsercore", level.DlogSeverity(), "DAEMON")
	dlog.SetLogLevel(level.DlogSeverity())
	if cfg.Global.LogFile != "" {
		dlog.UseLogFile(cfg.Global.LogFile)
	}

	appConfig = cfg
	logger = observability.NewLogger(cfg.Global.LogLevel)
	return nil
}
