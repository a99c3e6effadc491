// Command chatsync runs a headless internal-chat client: it connects the
// synchronization core to the console's REST API, realtime websocket, and
// Redis settings store, then logs channel activity until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/crewdesk/chatsync/chat"
	"github.com/crewdesk/chatsync/redis"
	"github.com/crewdesk/chatsync/rest"
	"github.com/crewdesk/chatsync/ws"
)

type config struct {
	APIURL    string `env:"CHATSYNC_API_URL" envDefault:"http://localhost:8080/api"`
	WSURL     string `env:"CHATSYNC_WS_URL" envDefault:"ws://localhost:8080/ws"`
	RedisAddr string `env:"CHATSYNC_REDIS_ADDR" envDefault:"localhost:6379"`
	UserID    string `env:"CHATSYNC_USER_ID,required"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(logger); err != nil {
		logger.Error("Fatal error", "error", err.Error())
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := redis.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	api := &rest.Client{BaseURL: cfg.APIURL}
	notifier := &chat.Notifier{
		Logger:   logger,
		Player:   logPlayer{logger: logger},
		Toasts:   logToaster{logger: logger},
		Settings: settings,
		UserID:   cfg.UserID,
	}
	if err := notifier.Load(ctx); err != nil {
		logger.Warn("Could not load audio settings, using defaults", "error", err.Error())
	}

	store := &chat.Store{
		Logger:  logger,
		Lister:  api,
		History: api,
		Notify:  notifier,
		UserID:  cfg.UserID,
	}
	monitor := &chat.Monitor{
		Logger: logger,
		Dialer: &ws.Dialer{URL: cfg.WSURL, Logger: logger},
		Sink:   store,
	}

	if err := store.LoadChannels(ctx); err != nil {
		logger.Warn("Initial channel load failed, will retry on reconnect", "error", err.Error())
	}
	for _, ch := range store.Channels() {
		logger.Info("Channel", "id", ch.ID, "name", ch.Name, "unread", ch.UnreadCount)
	}

	monitor.Connect(ctx)
	defer monitor.Disconnect()

	<-ctx.Done()
	logger.Info("Shutting down")
	return nil
}

// logPlayer and logToaster stand in for the embedding environment's sound
// and toast primitives when running headless.
type logPlayer struct {
	logger *slog.Logger
}

func (p logPlayer) Play(asset string, volume int) error {
	p.logger.Info("Play sound", "asset", asset, "volume", volume)
	return nil
}

type logToaster struct {
	logger *slog.Logger
}

func (t logToaster) Show(content string, ttl time.Duration) {
	t.logger.Info("Toast", "content", content, "ttl", ttl.String())
}
