package cli

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

	"github.com/custodia-labs/ledgersync/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP admin API and the scheduler",
	Long: `Starts the admin API for triggering, stopping and inspecting historical
syncs, and runs scheduled syncs in the background until interrupted.`,
	RunE: runServe,
}

var (
	serveAddr        string
	serveNoScheduler bool
)

const shutdownTimeout = 10 * time.Second

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from settings)")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "do not run scheduled syncs")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if apiHandler == nil {
		return errors.New("http api not configured")
	}

	addr := serveAddr
	if addr == "" && settingsService != nil {
		if settings, err := settingsService.Get(); err == nil {
			addr = settings.Server.Addr
		}
	}
	if addr == "" {
		return errors.New("no listen address configured")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           apiHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	cmd.Printf("Listening on %s\n", addr)

	if scheduler != nil && !serveNoScheduler {
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				errCh <- fmt.Errorf("scheduler: %w", err)
			}
		}()
	}

	if configWatcher != nil {
		go func() {
			err := configWatcher.Watch(ctx, func() {
				if reloadSettings != nil {
					reloadSettings()
				}
				logger.Info("settings reloaded")
			})
			if err != nil {
				logger.Warn("config watch: %v", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		cmd.Println("Shutting down...")
	case runErr = <-errCh:
	}

	if scheduler != nil && !serveNoScheduler {
		if err := scheduler.Stop(); err != nil {
			logger.Warn("stopping scheduler: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown: %v", err)
	}
	return runErr
}
