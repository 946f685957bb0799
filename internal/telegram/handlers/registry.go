package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler represents a command handler with its description and middleware.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Description string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns a map of all available bot commands.
// Every command except /start and /help is restricted to the admin.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)
	adminMiddleware := []tgbot.Middleware{AdminOnly(deps)}

	add := func(pattern, description string, h tgbot.HandlerFunc, mw []tgbot.Middleware) {
		handlers["/"+pattern] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     pattern,
			Description: description,
			Handler:     h,
			Middleware:  mw,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
		}
	}

	add("start", "Start talking to the bot", NewStartHandler(deps), nil)
	add("help", "List the available commands", NewHelpHandler(deps), nil)

	add("status", "Show whether the blinds are open", NewStatusHandler(deps), adminMiddleware)
	add("open", "Open the blinds", NewMoveHandler(deps, true), adminMiddleware)
	add("close", "Close the blinds", NewMoveHandler(deps, false), adminMiddleware)
	add("toggle", "Toggle the blinds", NewToggleHandler(deps), adminMiddleware)
	add("actions", "List scheduled actions", NewActionsHandler(deps), adminMiddleware)
	add("add_action", "Schedule a weekly action", NewAddActionHandler(deps), adminMiddleware)
	add("delete_action", "Remove a scheduled action", NewDeleteActionHandler(deps), adminMiddleware)

	return handlers
}
