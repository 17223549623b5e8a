package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	_ "time/tzdata"

	"github.com/aliskhannn/lingua-streak-bot/internal/app"
	"github.com/aliskhannn/lingua-streak-bot/internal/config"
	"github.com/aliskhannn/lingua-streak-bot/internal/delivery/telegram"
	"github.com/aliskhannn/lingua-streak-bot/internal/logger"
	"github.com/aliskhannn/lingua-streak-bot/internal/metrics"
	"github.com/aliskhannn/lingua-streak-bot/internal/service"
	"github.com/aliskhannn/lingua-streak-bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		lg.Fatal("failed to create bot", zap.Error(err))
	}

	// Set commands.
	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: "Запустить бота"},
		{Command: "progress", Description: "Серия и прогресс за сегодня"},
		{Command: "stacks", Description: "Мои наборы"},
		{Command: "newstack", Description: "Создать набор"},
		{Command: "rate", Description: "Оценить карточку"},
		{Command: "test", Description: "Сдать тест по набору"},
		{Command: "delete", Description: "Удалить набор"},
		{Command: "timezone", Description: "Часовой пояс"},
		{Command: "history", Description: "История серии"},
		{Command: "help", Description: "Помощь"},
	}
	if _, err := bot.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		lg.Warn("failed to set bot commands", zap.Error(err))
	}

	bot.Debug = cfg.Env == "local"
	lg.Info("authorized", zap.String("account", bot.Self.UserName))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStorage(ctx, cfg.DB, lg)
	if err != nil {
		lg.Fatal("failed to open storage", zap.Error(err))
	}
	defer store.Close()

	pending := storage.NewPendingStorage()
	notices := storage.NewNoticeStorage()

	streaks := app.NewStreakService(cfg.Streak, store.Transactor, pending, lg)
	scheduler := service.NewFreezeScheduler(streaks, store.Transactor, notices, cfg.Streak.FreezeSweepCron, lg.Named("freeze"))

	handler := telegram.NewHandler(bot, streaks, notices, lg.Named("telegram"))
	scheduler.SetNotifier(handler)

	go func() {
		if err := scheduler.Start(ctx); err != nil {
			lg.Error("freeze scheduler failed", zap.Error(err))
		}
	}()

	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Addr, lg); err != nil {
			lg.Error("metrics server failed", zap.Error(err))
		}
	}()

	if err := handler.Run(ctx); err != nil {
		lg.Error("bot stopped with error", zap.Error(err))
	}

	<-ctx.Done()
	lg.Info("shutdown signal received")
}
