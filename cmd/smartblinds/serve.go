package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/edgard/smartblinds/internal/alarm"
	"github.com/edgard/smartblinds/internal/app"
	"github.com/edgard/smartblinds/internal/app/tasks"
	"github.com/edgard/smartblinds/internal/blinds"
	"github.com/edgard/smartblinds/internal/config"
	"github.com/edgard/smartblinds/internal/database"
	"github.com/edgard/smartblinds/internal/httpapi"
	"github.com/edgard/smartblinds/internal/logger"
	"github.com/edgard/smartblinds/internal/metrics"
	"github.com/edgard/smartblinds/internal/telegram"
	"github.com/edgard/smartblinds/internal/telegram/handlers"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler daemon with its HTTP and Telegram interfaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *configPath)
		},
	}
}

// serve initializes and starts all components (config, logger, db, blinds,
// alarm service, http, telegram, maintenance) and blocks until shutdown.
func serve(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", configPath, "error", err)
		return err
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return err
	}
	defer database.CloseDB(db) // Ensure DB is closed on function exit
	store := database.NewStore(db, log)

	m := metrics.New()
	clock := clockwork.NewRealClock()

	driver, err := blinds.NewDriver(cfg.Actuator.Driver, log, cfg.Actuator.MoveDelay)
	if err != nil {
		log.Error("Failed to create blinds driver", "driver", cfg.Actuator.Driver, "error", err)
		return err
	}
	manager := blinds.NewManager(driver, cfg.Actuator.InitialOpen, clock, log)

	alarms, err := alarm.Start(ctx, store, manager, alarm.Options{
		Logger:          log,
		Clock:           clock,
		Metrics:         m,
		ActuatorTimeout: cfg.Actuator.Timeout,
	})
	if err != nil {
		log.Error("Failed to start alarm service", "error", err)
		return err
	}

	var httpServer app.HTTPServer
	if cfg.HTTP.Enabled {
		router := httpapi.NewRouter(httpapi.Deps{
			Logger:           log,
			Clock:            clock,
			Service:          alarms,
			Blinds:           manager,
			Store:            store,
			Metrics:          m,
			ExposeMetrics:    cfg.Metrics.Enabled,
			OperationTimeout: cfg.Database.OperationTimeout,
		})
		httpServer = httpapi.NewServer(cfg.HTTP, router, log)
	}

	var tg *tgbot.Bot
	if cfg.Telegram.Enabled {
		tg, err = setupTelegram(ctx, cfg, log, alarms, manager)
		if err != nil {
			_ = alarms.Close()
			return err
		}
	}

	tDeps := tasks.TaskDeps{
		Logger:  log,
		Store:   store,
		Auditor: alarms,
		Config:  cfg,
	}
	sched, err := app.NewScheduler(log, &cfg.Maintenance, tasks.RegisterAllTasks(tDeps), cfg.Database.OperationTimeout)
	if err != nil {
		_ = alarms.Close()
		return err
	}

	orchestrator := app.New(log, alarms, httpServer, tg, sched)

	log.Info("Starting smartblinds...")
	runErr := orchestrator.Run(ctx) // Run blocks until context is cancelled or an error occurs
	log.Info("Run loop finished.")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("smartblinds stopped due to error", "error", runErr)
		return runErr
	}

	log.Info("smartblinds stopped gracefully.")
	return nil
}

func setupTelegram(ctx context.Context, cfg *config.Config, log *slog.Logger, alarms *alarm.Service, manager *blinds.Manager) (*tgbot.Bot, error) {
	hDeps := handlers.HandlerDeps{
		Logger:  log,
		Config:  cfg,
		Service: alarms,
		Blinds:  manager,
	}

	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, tgbot.WithMiddlewares(logger.Middleware(log)))
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return nil, err
	}

	// Retrieve bot info and store it in the config for runtime use
	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return nil, err
	}

	if _, err := tg.SetMyCommands(ctx, &tgbot.SetMyCommandsParams{Commands: telegram.BotCommands(cmdHandlers)}); err != nil {
		log.Warn("Failed to publish bot commands", "error", err)
	}
	return tg, nil
}
