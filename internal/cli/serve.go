package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/edukit/gradebatch/internal/httpapi"
	"github.com/edukit/gradebatch/internal/schedule"
	"github.com/edukit/gradebatch/internal/service"
	"github.com/edukit/gradebatch/pkg/log"
)

const serverShutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve command: the cron-scheduled export
// runner plus the HTTP status API, running until interrupted.
func NewServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the export daemon with a cron schedule and status API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			svc, cleanup, err := openService(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			g, gctx := errgroup.WithContext(cmd.Context())

			var runner *schedule.Runner
			if cfg.Schedule.CronExpr != "" {
				runner = schedule.NewRunner(cfg.Schedule.CronExpr, func(ctx context.Context) error {
					_, err := svc.RunExport(ctx, service.RunOptions{})
					return err
				})
				if err := runner.Start(gctx); err != nil {
					return err
				}
			} else {
				log.Warn("No cron expression configured, scheduled exports are disabled")
			}

			srv := httpapi.NewServer(svc, httpapi.WithBaseContext(gctx))
			g.Go(func() error {
				log.Info("Status API listening on %s", cfg.HTTP.Addr)
				if err := srv.ListenAndServe(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				if runner != nil {
					runner.Stop()
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address for the status API (default from config)")
	return cmd
}
