package telegram

import (
	"context"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/smartblinds/internal/telegram/handlers"
)

func TestNewTelegramBotRequiresToken(t *testing.T) {
	t.Parallel()

	_, err := NewTelegramBot("", nil)
	assert.Error(t, err)
}

func TestRegisterHandlersRequiresBot(t *testing.T) {
	t.Parallel()

	assert.Error(t, RegisterHandlers(nil, nil, nil))
}

func TestApplyMiddlewareOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mw := func(name string) bot.Middleware {
		return func(next bot.HandlerFunc) bot.HandlerFunc {
			return func(ctx context.Context, b *bot.Bot, u *models.Update) {
				order = append(order, name)
				next(ctx, b, u)
			}
		}
	}

	h := applyMiddleware(func(context.Context, *bot.Bot, *models.Update) {
		order = append(order, "handler")
	}, []bot.Middleware{mw("outer"), mw("inner")})
	h(context.Background(), nil, &models.Update{})

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestBotCommandsSorted(t *testing.T) {
	t.Parallel()

	cmds := BotCommands(map[string]handlers.RegisteredHandler{
		"/toggle":  {Pattern: "toggle", Description: "Toggle"},
		"/actions": {Pattern: "actions", Description: "List"},
		"/hidden":  {Pattern: "hidden"},
	})

	require.Len(t, cmds, 2)
	assert.Equal(t, "actions", cmds[0].Command)
	assert.Equal(t, "toggle", cmds[1].Command)
}
