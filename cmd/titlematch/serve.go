package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/gcbaptista/go-titlematch/api"
	"github.com/gcbaptista/go-titlematch/internal/jobs"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP matching API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.log()
			if bind != "" {
				cfg.Server.Bind = bind
			}

			manager := jobs.NewManager(cfg.Jobs.MaxWorkers, logger)
			manager.Start(time.Duration(cfg.Jobs.RetentionHours) * time.Hour)
			defer manager.Stop()

			stack, err := newProviderStack(cfg, manager, logger)
			if err != nil {
				return err
			}
			defer stack.Close()

			results, err := openResultStore(cfg)
			if err != nil {
				return err
			}
			if results != nil {
				defer results.Close()
			}

			handler, err := api.NewAPI(api.Deps{
				Provider:         stack.Provider,
				Lister:           stack.Lister,
				MatchSettings:    cfg.Match,
				ProviderSettings: cfg.Provider,
				Jobs:             manager,
				Engine:           stack.Engine,
				Results:          results,
				Logger:           logger,
			})
			if err != nil {
				return err
			}

			gin.SetMode(cfg.Server.Mode)
			server := &http.Server{
				Addr:              cfg.Server.Bind,
				Handler:           api.NewRouter(handler),
				ReadHeaderTimeout: 10 * time.Second,
			}

			signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("http server listening",
					"bind", cfg.Server.Bind,
					"provider", cfg.Provider.Kind,
					"cache", cfg.Cache.Enabled,
					"result_store", results != nil)
				serveErr <- server.ListenAndServe()
			}()

			select {
			case err := <-serveErr:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-signalCtx.Done():
			}

			logger.Info("shutting down http server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Override the configured bind address (host:port)")
	return cmd
}
