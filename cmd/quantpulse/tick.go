package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func tickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run a single evaluation tick and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			report := rt.engine.RunTick(cmd.Context())
			log.Info().
				Str("run_id", report.RunID).
				Int("evaluated", report.Evaluated).
				Int("notified", report.Notified).
				Msg("single tick complete")
			return nil
		},
	}
}
