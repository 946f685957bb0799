// Package app wires the smartblinds components together and manages their
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"
)

// Alarms is the lifecycle surface of the alarm service.
type Alarms interface {
	Err() <-chan error
	Close() error
}

// HTTPServer runs until its context is canceled.
type HTTPServer interface {
	Run(ctx context.Context) error
}

// App runs every enabled component. HTTP and Telegram are optional; the alarm
// service and maintenance scheduler are not.
type App struct {
	logger      *slog.Logger
	alarms      Alarms
	http        HTTPServer
	tgBot       *tgbot.Bot
	maintenance *Scheduler
}

// New creates the orchestrator. httpServer and tgBot may be nil.
func New(logger *slog.Logger, alarms Alarms, httpServer HTTPServer, tgBot *tgbot.Bot, maintenance *Scheduler) *App {
	return &App{
		logger:      logger.With("component", "app_orchestrator"),
		alarms:      alarms,
		http:        httpServer,
		tgBot:       tgBot,
		maintenance: maintenance,
	}
}

// Run starts all components and blocks until ctx is canceled or one of them
// fails. The alarm service is closed before Run returns.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	if a.http != nil {
		g.Go(func() error {
			a.logger.Info("Starting HTTP API...")
			return a.http.Run(gCtx)
		})
	}

	if a.tgBot != nil {
		g.Go(func() error {
			a.logger.Info("Starting Telegram bot listener...")
			a.tgBot.Start(gCtx)
			a.logger.Info("Telegram bot listener stopped.")

			if gCtx.Err() == nil {
				a.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
				return fmt.Errorf("telegram listener stopped unexpectedly")
			}
			return nil
		})
	}

	g.Go(func() error {
		a.logger.Info("Starting maintenance scheduler...")
		if err := a.maintenance.Start(); err != nil {
			a.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := a.maintenance.Stop(); err != nil {
			a.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case err := <-a.alarms.Err():
			a.logger.Error("Alarm service failed", "error", err)
			return fmt.Errorf("alarm service failed: %w", err)
		case <-gCtx.Done():
			return nil
		}
	})

	a.logger.Info("Orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if closeErr := a.alarms.Close(); closeErr != nil {
		a.logger.Error("Failed to close alarm service", "error", closeErr)
		if err == nil {
			err = closeErr
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Orchestrator stopped due to error", "error", err)
		return err
	}

	a.logger.Info("Orchestrator stopped gracefully.")
	return nil
}
