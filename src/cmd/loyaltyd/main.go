// loyaltyd 多租戶積分帳本與兌換協調服務
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jackyeh168/loyalty_engine/src/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "loyaltyd",
		Short:         "Multi-tenant loyalty points ledger and redemption coordinator",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")

	load := func() (*config.Config, *slog.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		logger := cfg.Log.NewLogger(os.Stderr)
		slog.SetDefault(logger)
		return cfg, logger, nil
	}

	rootCmd.AddCommand(serveCmd(load))
	rootCmd.AddCommand(migrateCmd(load))
	rootCmd.AddCommand(reconcileCmd(load))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type loadFunc func() (*config.Config, *slog.Logger, error)
