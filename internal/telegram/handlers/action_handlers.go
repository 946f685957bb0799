package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/smartblinds/internal/alarm"
	"github.com/edgard/smartblinds/internal/errs"
)

const nextRunLayout = "Mon 2006-01-02 15:04:05 MST"

// NewActionsHandler returns a handler for the /actions command.
func NewActionsHandler(deps HandlerDeps) bot.HandlerFunc {
	return actionsHandler{deps}.Handle
}

type actionsHandler struct {
	deps HandlerDeps
}

func (h actionsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "actions")
	chatID := update.Message.Chat.ID

	opCtx, cancel := context.WithTimeout(ctx, h.deps.operationTimeout())
	defer cancel()

	actions, err := h.deps.Service.ListActions(opCtx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list actions", "error", err, "chat_id", chatID)
		reply(ctx, b, log, chatID, h.deps.Config.Messages.ErrorGeneralMsg)
		return
	}
	if len(actions) == 0 {
		reply(ctx, b, log, chatID, h.deps.Config.Messages.NoActionsMsg)
		return
	}
	reply(ctx, b, log, chatID, formatActions(h.deps.Config.Messages.ActionsHeaderMsg, actions))
}

func formatActions(header string, actions []alarm.ScheduledAction) string {
	var sb strings.Builder
	sb.WriteString(header)
	for _, a := range actions {
		fmt.Fprintf(&sb, "\n#%d %s %s %s (next: %s)",
			a.ID, a.Weekday, a.Time, a.TargetName(), a.NextRun.Format(nextRunLayout))
	}
	return sb.String()
}

// NewAddActionHandler returns a handler for the /add_action command.
func NewAddActionHandler(deps HandlerDeps) bot.HandlerFunc {
	return addActionHandler{deps}.Handle
}

type addActionHandler struct {
	deps HandlerDeps
}

func (h addActionHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "add_action")
	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	args, err := parseAddActionArgs(commandArgs(update.Message.Text))
	if err != nil {
		log.DebugContext(ctx, "Invalid /add_action arguments", "error", err, "text", update.Message.Text)
		reply(ctx, b, log, chatID, msgs.AddActionUsageMsg)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, h.deps.operationTimeout())
	defer cancel()

	action, err := h.deps.Service.CreateAction(opCtx, args.weekday, args.tod, args.open)
	switch {
	case errors.Is(err, errs.ErrConflict):
		reply(ctx, b, log, chatID, msgs.ActionConflictMsg)
		return
	case err != nil:
		log.ErrorContext(ctx, "Failed to create action", "error", err, "chat_id", chatID)
		reply(ctx, b, log, chatID, msgs.ErrorGeneralMsg)
		return
	}

	next, ok := h.deps.Service.NextRun(action.ID)
	if !ok {
		next = action.NextOccurrence(time.Now())
	}
	log.InfoContext(ctx, "Action created via Telegram", "action_id", action.ID, "chat_id", chatID)
	reply(ctx, b, log, chatID, fmt.Sprintf(msgs.ActionCreatedMsg, action.ID, next.Format(nextRunLayout)))
}

// NewDeleteActionHandler returns a handler for the /delete_action command.
func NewDeleteActionHandler(deps HandlerDeps) bot.HandlerFunc {
	return deleteActionHandler{deps}.Handle
}

type deleteActionHandler struct {
	deps HandlerDeps
}

func (h deleteActionHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "delete_action")
	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Messages

	id, err := parseActionID(commandArgs(update.Message.Text))
	if err != nil {
		reply(ctx, b, log, chatID, msgs.DeleteActionUsageMsg)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, h.deps.operationTimeout())
	defer cancel()

	removed, err := h.deps.Service.DeleteAction(opCtx, id)
	if err != nil {
		log.ErrorContext(ctx, "Failed to delete action", "error", err, "action_id", id, "chat_id", chatID)
		reply(ctx, b, log, chatID, msgs.ErrorGeneralMsg)
		return
	}
	if !removed {
		reply(ctx, b, log, chatID, fmt.Sprintf(msgs.ActionNotFoundMsg, id))
		return
	}

	log.InfoContext(ctx, "Action deleted via Telegram", "action_id", id, "chat_id", chatID)
	reply(ctx, b, log, chatID, fmt.Sprintf(msgs.ActionDeletedMsg, id))
}
