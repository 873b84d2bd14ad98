package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/taskmate/tmbot/internal/api"
	"github.com/taskmate/tmbot/internal/chat/telegram"
	"github.com/taskmate/tmbot/internal/config"
	"github.com/taskmate/tmbot/internal/fanout"
	"github.com/taskmate/tmbot/internal/store"
	"golang.org/x/sync/errgroup"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Deliver broker events to signed-in chats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			if err := runWorker(cmd.Context(), cfg, logger); err != nil {
				logger.Error("Worker exited", "error", err)
				return err
			}
			return nil
		},
	}
}

func runWorker(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg, store.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("Failed to close store", "error", closeErr)
		}
	}()

	tg, err := telegram.New(cfg.Telegram.Token, logger.With("component", "telegram"))
	if err != nil {
		return err
	}

	chats := fanout.NewSnapshotCache(st, cfg.Notify.SessionCacheTTL)
	dispatcher := fanout.NewDispatcher(chats, st, tg, logger.With("component", "dispatcher"))
	consumer := fanout.NewConsumer(cfg.AMQPURL(), cfg.Broker, dispatcher, logger.With("component", "consumer"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})

	health := api.NewHealthHandler(st, logger, api.WithBroker(consumer.Connected))
	srv := newServer(cfg.HTTPAddr, api.NewRouter(health, nil, "", logger))
	g.Go(func() error {
		return serveHTTP(gctx, srv, cfg.ShutdownGrace, logger)
	})

	logger.Info("Worker started", "exchange", cfg.Broker.Exchange, "queue", cfg.Broker.Queue)

	<-gctx.Done()
	logger.Info("Shutting down gracefully...")
	return g.Wait()
}
