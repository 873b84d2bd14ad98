package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/taskmate/tmbot/internal/config"
	"github.com/taskmate/tmbot/internal/logutil"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tmbot",
		Short:         "TaskMate chat bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("env-file", ".env", "Dotenv file loaded before reading the environment.")

	cmd.AddCommand(newBotCmd())
	cmd.AddCommand(newWorkerCmd())
	return cmd
}

// bootstrap loads configuration and installs the process logger.
func bootstrap(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	envErr := godotenv.Load(envFile)

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return nil, nil, err
	}

	logger, err := logutil.New(os.Stdout, logutil.Options{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		AddSource: cfg.LogAddSource,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		return nil, nil, err
	}
	slog.SetDefault(logger)

	if envErr != nil {
		logger.Info("No .env file found, using environment variables", "path", envFile)
	}
	return cfg, logger, nil
}

// serveHTTP runs srv until ctx is done, then shuts it down within grace.
func serveHTTP(ctx context.Context, srv *http.Server, grace time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return <-errCh
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
