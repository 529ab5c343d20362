// Package server runs the Telegram update loop and the command handlers.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/GeorgiySurkov/multipinbot/internal/profile"
	"github.com/GeorgiySurkov/multipinbot/plugin/telegram"
	"github.com/GeorgiySurkov/multipinbot/store"
	"github.com/GeorgiySurkov/multipinbot/summary"
)

const (
	longPollTimeout = 30 // seconds

	// updateWorkers bounds the number of updates handled concurrently.
	// Per-chat ordering is still guaranteed by the reconciler's chat lock.
	updateWorkers = 16
)

// Server wires the Telegram bot, the store and the summary reconciler.
type Server struct {
	profile    *profile.Profile
	store      *store.Store
	bot        *tgbotapi.BotAPI
	reconciler *summary.Reconciler

	metricsSrv *http.Server
}

// NewServer creates the bot server and authorizes against the Bot API.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	bot, err := tgbotapi.NewBotAPI(profile.BotToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}

	gateway := telegram.NewGateway(bot)
	s := &Server{
		profile:    profile,
		store:      store,
		bot:        bot,
		reconciler: summary.NewReconciler(store, gateway),
	}
	return s, nil
}

// BotUsername returns the username the bot authorized as.
func (s *Server) BotUsername() string {
	return s.bot.Self.UserName
}

// Start launches the long-polling loop and, when configured, the Prometheus
// endpoint. It does not block; use Shutdown to stop.
func (s *Server) Start(ctx context.Context) error {
	if s.profile.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.metricsSrv = &http.Server{Addr: s.profile.MetricsAddr, Handler: mux}
		go func() {
			if err := s.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics endpoint failed", "addr", s.profile.MetricsAddr, "error", err)
			}
		}()
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = longPollTimeout
	updates := s.bot.GetUpdatesChan(updateConfig)

	go s.consume(ctx, updates)

	slog.Info("bot started", "username", s.bot.Self.UserName, "version", s.profile.Version)
	return nil
}

// consume fans updates out to a bounded worker pool. A handler failure is
// logged and never stops the loop.
func (s *Server) consume(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(updateWorkers)

	for {
		select {
		case <-ctx.Done():
			_ = group.Wait()
			return
		case update, ok := <-updates:
			if !ok {
				_ = group.Wait()
				return
			}
			group.Go(func() error {
				s.handleUpdate(ctx, update)
				return nil
			})
		}
	}
}

// Shutdown stops polling and the metrics endpoint.
func (s *Server) Shutdown(ctx context.Context) {
	slog.Info("stopping bot")
	s.bot.StopReceivingUpdates()

	if s.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.metricsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shut down metrics endpoint", "error", err)
		}
	}

	if err := s.store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
}
