package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"duekeeper/internal/bot"
	"duekeeper/internal/config"
	"duekeeper/internal/logging"
	"duekeeper/internal/model"
	"duekeeper/internal/repository"
	"duekeeper/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	boot := logging.New("info", "console")
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	loc := cfg.Location()

	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	householdRepo := repository.NewHouseholdRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	ledger, closeLedger, err := openLedger(ctx, cfg, db)
	if err != nil {
		log.Fatal().Err(err).Msg("ledger")
	}
	defer closeLedger()

	categorySvc := service.NewCategoryService(categoryRepo)
	taskSvc := service.NewTaskService(taskRepo, categoryRepo, loc, log)
	reminderSvc := service.NewReminderService(taskSvc, categorySvc, loc)

	var telegramBot *bot.Bot
	var channels []service.Channel
	if cfg.TelegramToken != "" {
		telegramBot, err = bot.New(cfg.TelegramToken, userRepo, householdRepo, categorySvc, taskSvc, reminderSvc, loc, log)
		if err != nil {
			log.Fatal().Err(err).Msg("bot")
		}
		channels = append(channels, telegramBot.Channel())
	} else {
		log.Warn().Msg("TELEGRAM_TOKEN not set, reminders are only logged")
		channels = append(channels, service.NewLogChannel(model.ChannelTelegram, log))
	}

	dispatcher := service.NewDispatcher(userRepo, taskRepo, ledger, channels, service.DispatcherConfig{
		Workers:     cfg.Dispatch.Workers,
		RatePerSec:  cfg.Dispatch.RatePerSec,
		SendTimeout: cfg.Dispatch.SendTimeout,
		Location:    loc,
	}, log)

	scheduler := service.NewSchedulerService(loc, log)
	if _, err := scheduler.ScheduleTick(cfg.Dispatch.Interval, func() {
		runDispatch(ctx, dispatcher, cfg.Dispatch.Interval, log)
	}); err != nil {
		log.Fatal().Err(err).Msg("schedule dispatch")
	}
	if telegramBot != nil && cfg.DigestTime != "" {
		if _, err := scheduler.ScheduleDaily(cfg.DigestTime, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()
			if err := telegramBot.SendDigests(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("digest")
			}
		}); err != nil {
			log.Fatal().Err(err).Msg("schedule digest")
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Info().Dur("tick", cfg.Dispatch.Interval).Str("ledger", cfg.LedgerBackend).Msg("duekeeper started")
	if telegramBot != nil {
		if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("bot stopped with error")
		}
	} else {
		<-ctx.Done()
	}
	log.Info().Msg("shutdown complete")
}

func runDispatch(ctx context.Context, dispatcher *service.Dispatcher, tick time.Duration, log zerolog.Logger) {
	jobCtx, cancel := context.WithTimeout(ctx, tick)
	defer cancel()
	if _, err := dispatcher.DispatchAll(jobCtx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("dispatch")
	}
}
