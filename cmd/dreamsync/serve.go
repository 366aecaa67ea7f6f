package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamsync/dreamsync-backend/internal/api"
	"github.com/dreamsync/dreamsync-backend/internal/config"
	"github.com/dreamsync/dreamsync-backend/internal/logger"
)

func serveCMD(logFn func() *logger.Logger) *cobra.Command {
	var port string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logFn()
			if config.AppConfig.JWTSecret == "" {
				return errors.New("JWT_SECRET must be set to serve the API")
			}
			if port == "" {
				port = config.AppConfig.HTTPPort
			}

			a, err := newApp(cmd.Context(), log)
			if err != nil {
				return err
			}
			defer a.Close()

			apiHandler := api.NewAPIHandler(a.entries, a.interpretations, config.AppConfig.JWTSecret, log)
			router := api.NewRouter(apiHandler, a.metrics.Handler(), log)

			serverAddr := fmt.Sprintf(":%s", port)
			srv := &http.Server{
				Addr:         serverAddr,
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 90 * time.Second, // generation plus memory recall can take a while
				IdleTimeout:  120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("starting server", "addr", serverAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
			case <-quit:
			}
			log.Info("shutting down server")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			log.Info("server exited gracefully")
			return nil
		},
	}
	serve.Flags().StringVar(&port, "port", "", "listen port (default HTTP_PORT)")
	return serve
}
