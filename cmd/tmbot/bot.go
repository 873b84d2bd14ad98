package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/taskmate/tmbot/internal/api"
	"github.com/taskmate/tmbot/internal/backend"
	"github.com/taskmate/tmbot/internal/bot"
	"github.com/taskmate/tmbot/internal/chat"
	"github.com/taskmate/tmbot/internal/chat/telegram"
	"github.com/taskmate/tmbot/internal/config"
	"github.com/taskmate/tmbot/internal/conversation"
	"github.com/taskmate/tmbot/internal/fanout"
	"github.com/taskmate/tmbot/internal/identity"
	"github.com/taskmate/tmbot/internal/store"
	"golang.org/x/sync/errgroup"
)

const defaultWebhookPath = "/telegram/webhook"

func newBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Handle chat updates and scan for approaching deadlines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			if err := runBot(cmd.Context(), cfg, logger); err != nil {
				logger.Error("Bot exited", "error", err)
				return err
			}
			return nil
		},
	}
}

func runBot(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
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
	logger.Info("Store connected", "driver", cfg.Store.Driver)

	tg, err := telegram.New(cfg.Telegram.Token, logger.With("component", "telegram"))
	if err != nil {
		return err
	}

	gw := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	ids := identity.NewService(st, st, gw, cfg.Store.SessionTTL, logger)
	engine := conversation.NewEngine(gw, ids, tg, conversation.WithLogger(logger))
	router := bot.NewRouter(ids, engine, gw, tg, logger)

	g, gctx := errgroup.WithContext(ctx)
	queue := bot.NewQueue(gctx, cfg.ChatConcurrency, router.Handle)

	var webhook *api.WebhookHandler
	webhookPath := ""
	if cfg.Telegram.Mode == config.ModeWebhook {
		webhookPath = webhookPathOf(cfg.Telegram.WebhookURL)
		if err := tg.SetWebhook(cfg.Telegram.WebhookURL); err != nil {
			return err
		}
		webhook = api.NewWebhookHandler(tg, queue, logger.With("component", "webhook"))
	} else {
		g.Go(func() error {
			return tg.Poll(gctx, func(u chat.Update) {
				if err := queue.Enqueue(gctx, u); err != nil {
					logger.Warn("Dropped update", "chat_id", u.ChatID, "error", err)
				}
			})
		})
	}

	scanner := fanout.NewDeadlineScanner(st, st, gw, tg, router, cfg.Notify.DeadlineWindow,
		logger.With("component", "deadline"))
	g.Go(func() error {
		scanner.Run(gctx, cfg.Notify.DeadlineInterval)
		return nil
	})

	if p, ok := st.(store.Purger); ok {
		g.Go(func() error {
			store.RunSweeper(gctx, p, cfg.Store.SweepInterval, logger.With("component", "sweeper"))
			return nil
		})
	}

	health := api.NewHealthHandler(st, logger)
	srv := newServer(cfg.HTTPAddr, api.NewRouter(health, webhook, webhookPath, logger))
	g.Go(func() error {
		return serveHTTP(gctx, srv, cfg.ShutdownGrace, logger)
	})

	logger.Info("Bot started", "mode", cfg.Telegram.Mode, "concurrency", cfg.ChatConcurrency)

	<-gctx.Done()
	logger.Info("Shutting down gracefully...")
	err = g.Wait()
	queue.Wait()
	return err
}

func webhookPathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" || u.Path == "/" {
		return defaultWebhookPath
	}
	return u.Path
}
