package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reso-directory/internal/api"
	"github.com/sells-group/reso-directory/internal/config"
	"github.com/sells-group/reso-directory/internal/monitoring"
)

var (
	servePort    int
	serveHost    string
	servePreload bool
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the directory API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if serveHost != "" {
			cfg.Server.Host = serveHost
		}

		env, err := initDirectory(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           newRouter(env, cfg),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if servePreload {
			go env.Snapshots.EnsureLoaded(ctx)
		}

		if checker := newChecker(env, cfg); checker != nil {
			go checker.Run(ctx)
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("source", env.Source.URL()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrapf(err, "server listen on %s", srv.Addr)
		}

		return nil
	},
}

// newRouter builds the HTTP handler tree for env.
func newRouter(env *directoryEnv, c *config.Config) http.Handler {
	var history api.HistoryLister
	if env.History != nil {
		history = env.History
	}
	h := api.NewHandler(env.Engine, env.Snapshots, history, api.Options{
		DefaultPerPage: c.Server.DefaultPerPage,
		MaxPerPage:     c.Server.MaxPerPage,
		CORSOrigins:    c.Server.CORSOrigins,
	}, zap.L())
	return api.Routes(h)
}

// newChecker returns the refresh health checker, or nil when no alert
// webhook is configured.
func newChecker(env *directoryEnv, c *config.Config) *monitoring.Checker {
	if c.Monitoring.WebhookURL == "" {
		return nil
	}
	var history monitoring.AttemptLister
	if env.History != nil {
		history = env.History
	}
	collector := monitoring.NewCollector(history, env.Snapshots)
	return monitoring.NewChecker(collector, monitoring.NewAlerter(c.Monitoring), c.Monitoring)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "bind address (default from config)")
	serveCmd.Flags().BoolVar(&servePreload, "preload", false, "fetch the directory at startup instead of on first request")
	rootCmd.AddCommand(serveCmd)
}
