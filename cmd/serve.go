package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contact-finder/internal/monitoring"
	"github.com/sells-group/contact-finder/internal/stream"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the search API and event stream server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initFinder(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		if !cfg.LookupReady() {
			zap.L().Warn("google api keys or cx not set, searches will be rejected")
		}

		srvState := &server{
			sessions:      env.Manager,
			store:         env.Store,
			publisher:     stream.NewPublisher(cfg.Server.KeepAlive(), env.Metrics),
			lookupReady:   cfg.LookupReady(),
			lookbackHours: cfg.Monitoring.LookbackWindowHours,
			corsOrigins:   cfg.Server.CORSOrigins,
		}

		var checker *monitoring.Checker
		if env.Store != nil {
			srvState.collector = monitoring.NewCollector(env.Store, env.Manager)
			if cfg.Monitoring.Enabled {
				checker = monitoring.NewChecker(srvState.collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			}
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		// No WriteTimeout: event streams stay open for the whole batch.
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(srvState),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			env.Manager.RunJanitor(gctx, time.Duration(cfg.Session.JanitorIntervalSecs)*time.Second)
			return nil
		})

		if checker != nil {
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
		}

		// Graceful shutdown
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")

			timeout := time.Duration(cfg.Server.ShutdownTimeoutSecs) * time.Second
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			// Stop sessions first so open streams receive their terminal event.
			if err := env.Manager.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("sessions did not stop in time", zap.Error(err))
			}
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return eris.Wrap(err, "server shutdown")
			}
			return nil
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
