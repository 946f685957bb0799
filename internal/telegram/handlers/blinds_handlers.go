package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStatusHandler returns a handler for the /status command.
func NewStatusHandler(deps HandlerDeps) bot.HandlerFunc {
	return statusHandler{deps}.Handle
}

type statusHandler struct {
	deps HandlerDeps
}

func (h statusHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "status")
	reply(ctx, b, log, update.Message.Chat.ID, statusText(h.deps, h.deps.Blinds.IsOpen()))
}

// NewMoveHandler returns a handler that moves the blinds to open or closed.
func NewMoveHandler(deps HandlerDeps, open bool) bot.HandlerFunc {
	return moveHandler{deps: deps, open: open}.Handle
}

type moveHandler struct {
	deps HandlerDeps
	open bool
}

func (h moveHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "move", "open", h.open)
	chatID := update.Message.Chat.ID

	if _, err := h.deps.Blinds.Move(ctx, h.open); err != nil {
		log.ErrorContext(ctx, "Failed to move blinds", "error", err, "chat_id", chatID)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.ErrorGeneralMsg)
		return
	}
	reply(ctx, b, log, chatID, statusText(h.deps, h.open))
}

// NewToggleHandler returns a handler for the /toggle command.
func NewToggleHandler(deps HandlerDeps) bot.HandlerFunc {
	return toggleHandler{deps}.Handle
}

type toggleHandler struct {
	deps HandlerDeps
}

func (h toggleHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "toggle")
	chatID := update.Message.Chat.ID

	open, err := h.deps.Blinds.Toggle(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to toggle blinds", "error", err, "chat_id", chatID)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.ErrorGeneralMsg)
		return
	}
	reply(ctx, b, log, chatID, statusText(h.deps, open))
}

func statusText(deps HandlerDeps, open bool) string {
	if open {
		return deps.Config.Messages.StatusOpenMsg
	}
	return deps.Config.Messages.StatusClosedMsg
}
