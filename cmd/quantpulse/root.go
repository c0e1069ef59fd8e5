package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath     string
	symbolOverride []string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "quantpulse",
		Short: "Regime-aware trading signal engine",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	root.PersistentFlags().StringSliceVarP(&symbolOverride, "symbols", "s", nil,
		"override the configured symbol list for this run")

	root.AddCommand(tickCmd())
	root.AddCommand(loopCmd())
	root.AddCommand(serveCmd())

	return root
}

// Execute runs the quantpulse CLI.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func setLogLevel(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("unknown log level, keeping info")
		return
	}
	zerolog.SetGlobalLevel(parsed)
}
