package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func loopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "loop",
		Short: "Run evaluation ticks on the configured interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			return runLoop(cmd.Context(), rt)
		},
	}
}

// runLoop ticks immediately, then on every interval until the context
// is cancelled. A slow tick never overlaps the next one; the engine's
// own deadline bounds each pass.
func runLoop(ctx context.Context, rt *runtime) error {
	interval := rt.cfg.TickInterval()
	log.Info().Dur("interval", interval).Msg("tick loop started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rt.engine.RunTick(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("tick loop stopped")
			return nil
		case <-ticker.C:
			rt.engine.RunTick(ctx)
		}
	}
}
