package notification

import (
	"testing"

	"github.com/raykavin/tonpairs/pkg/conversation"
	"github.com/stretchr/testify/require"
	tb "gopkg.in/tucnak/telebot.v2"
)

func TestRateLimiter(t *testing.T) {
	t.Run("per user burst", func(t *testing.T) {
		limiter := newRateLimiter(0.001, 2)
		require.True(t, limiter.Allow(1))
		require.True(t, limiter.Allow(1))
		require.False(t, limiter.Allow(1))

		// other users keep their own bucket
		require.True(t, limiter.Allow(2))
	})

	t.Run("disabled", func(t *testing.T) {
		limiter := newRateLimiter(0, 0)
		for i := 0; i < 100; i++ {
			require.True(t, limiter.Allow(1))
		}
	})
}

func TestUpdateSender(t *testing.T) {
	user := &tb.User{ID: 7}

	require.Equal(t, user, updateSender(&tb.Update{Message: &tb.Message{Sender: user}}))
	require.Equal(t, user, updateSender(&tb.Update{Callback: &tb.Callback{Sender: user}}))
	require.Nil(t, updateSender(&tb.Update{}))
}

func TestBuildMenus(t *testing.T) {
	m := buildMenus()

	actions := make(map[conversation.Action]bool)
	for _, button := range m.buttons {
		require.Equal(t, string(button.action), button.btn.Unique)
		actions[button.action] = true
	}

	for _, action := range []conversation.Action{
		conversation.ActionAddPair,
		conversation.ActionCreateWallets,
		conversation.ActionStatus,
		conversation.ActionManageRental,
		conversation.ActionMainMenu,
		conversation.ActionEnableRental,
	} {
		require.True(t, actions[action], action)
	}

	require.Len(t, m.connect.InlineKeyboard, 1)
	require.Equal(t, extensionURL, m.connect.InlineKeyboard[0][0].URL)
}

func TestRender(t *testing.T) {
	telegram := &Telegram{menus: buildMenus()}

	text, options := telegram.render(conversation.Reply{Text: "a <b>", Menu: conversation.MenuRental, Preformatted: true})
	require.Equal(t, "<pre>a &lt;b&gt;</pre>", text)
	require.Equal(t, tb.ModeHTML, options.ParseMode)
	require.Equal(t, telegram.menus.rental, options.ReplyMarkup)

	text, options = telegram.render(conversation.Reply{Text: "plain"})
	require.Equal(t, "plain", text)
	require.Equal(t, tb.ModeDefault, options.ParseMode)
	require.Nil(t, options.ReplyMarkup)
}
