package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"DrawdownSentinel/internal/scheduler"
	"DrawdownSentinel/internal/server"

	"github.com/spf13/cobra"
)

func serveCmd(cfgPath *string) *cobra.Command {
	var refreshOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the daily market refresh",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			sched := scheduler.NewScheduler(ctx, a.collector, a.store,
				a.cfg.DataSource.Benchmark, a.cfg.DataSource.Symbols, a.log)
			if err := sched.RegisterAll(a.cfg.Schedule.DailyCron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			if refreshOnStart {
				go sched.RunDailyNow()
			}

			srv := server.New(server.Config{
				Addr:        a.cfg.Server.Addr,
				CORSOrigins: a.cfg.Server.CORSOrigins,
				Symbols:     a.cfg.DataSource.Symbols,
				Log:         a.log,
				Store:       a.store,
				Advisor:     a.advisor,
				Ammo:        a.ammo,
				Market:      a.collector,
				Metrics:     a.metrics,
			})

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				a.log.Info().Msg("shutdown signal received, stopping")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&refreshOnStart, "refresh-on-start", false, "run the daily market refresh immediately")
	return cmd
}
