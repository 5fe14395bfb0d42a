package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"batchbot/internal/config"
	"batchbot/internal/consumer"
	"batchbot/internal/inbox"
	"batchbot/internal/message"
	"batchbot/internal/notify"
	"batchbot/internal/platform"
	"batchbot/internal/reviewer"
	"batchbot/internal/rules"
	"batchbot/internal/shear"
	"batchbot/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	var notifier *notify.Notifier
	if cfg.NotifyEnabled() {
		notifier, err = notify.New(cfg.TelegramBotToken, cfg.TelegramChatID, log)
		if err != nil {
			log.Error("create notifier", "error", err)
			os.Exit(1)
		}
	}

	client := platform.NewClient(http.DefaultClient, cfg.PlatformBaseURL,
		cfg.PlatformToken, cfg.UserAgent, cfg.Subreddits)
	inboxClient := platform.NewClient(http.DefaultClient, cfg.PlatformBaseURL,
		cfg.PlatformToken, cfg.UserAgent, cfg.Subreddits)

	engine := rules.Default()
	renderer := message.New(cfg.BotName, cfg.Owner, "https://www.reddit.com")

	cons := consumer.New(client, client, store, engine,
		shear.New(cfg.ShearThreshold, cfg.ShearDistance), renderer, cfg.BotName, log)

	rev := reviewer.New(store, client, engine, log)
	rev.SetInterval(cfg.RecheckInterval)
	rev.SetRetention(cfg.Retention)

	deletions := inbox.New(inboxClient, inboxClient, cfg.BotName, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot", "subreddits", strings.Join(cfg.Subreddits, "+"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return cons.Run(ctx) })
	g.Go(func() error { return rev.Run(ctx) })
	g.Go(func() error { return deletions.Run(ctx) })

	if err := g.Wait(); err != nil {
		if errors.Is(err, consumer.ErrTripped) {
			notifier.Alert(fmt.Sprintf("%s stopped: reply shear tripped, investigate the matching rules before restarting", cfg.BotName))
		} else {
			notifier.Alert(fmt.Sprintf("%s stopped: %v", cfg.BotName, err))
		}
		log.Error("bot stopped", "error", err)
		os.Exit(1)
	}

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
