package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantpulse/quantpulse/internal/ops"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tick loop with the health/metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			var pinger ops.Pinger
			if rt.db != nil {
				pinger = rt.db
			}
			server := ops.NewServer(rt.cfg.Ops.Addr, pinger, rt.registry)

			go func() {
				log.Info().Str("addr", rt.cfg.Ops.Addr).Msg("ops server listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("ops server failed")
				}
			}()

			err = runLoop(cmd.Context(), rt)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
				log.Warn().Err(shutdownErr).Msg("ops server shutdown failed")
			}

			return err
		},
	}
}
