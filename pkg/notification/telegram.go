// Package notification provides the chat transport of the bot
package notification

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/raykavin/tonpairs/pkg/conversation"
	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/logger"
	tb "gopkg.in/tucnak/telebot.v2"
)

const (
	extensionURL = "https://chrome.google.com/webstore/detail/ton-wallet/nphplpgoakhhjchkkhmiggakijnkhfnd"
	walletsURL   = "https://ton.org/en/wallets"
)

// menuButton binds an inline button to the action it selects
type menuButton struct {
	btn    tb.Btn
	action conversation.Action
}

type menus struct {
	main    *tb.ReplyMarkup
	rental  *tb.ReplyMarkup
	connect *tb.ReplyMarkup
	buttons []menuButton
}

// Telegram implements core.NotifierWithStart on top of a telebot client and
// routes chat input to the conversation machine
type Telegram struct {
	client  *tb.Bot
	machine *conversation.Machine
	menus   menus
	log     logger.Logger
	timeout time.Duration
}

// Option is a function that configures a Telegram instance
type Option func(telegram *Telegram)

// WithHandlerTimeout bounds the time spent handling one update
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(telegram *Telegram) {
		telegram.timeout = timeout
	}
}

// NewTelegram creates the transport and registers its handlers
func NewTelegram(machine *conversation.Machine, settings core.TelegramSettings, log logger.Logger, options ...Option) (*Telegram, error) {
	timeout := settings.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	poller := &tb.LongPoller{Timeout: timeout}

	limiter := newRateLimiter(settings.RateLimit, settings.RateLimitBurst)

	client, err := tb.NewBot(tb.Settings{
		Token:  settings.Token,
		Poller: createRateMiddleware(poller, limiter, log),
		Reporter: func(err error) {
			log.WithError(err).Error("telegram client error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	if err := setupCommands(client); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	bot := &Telegram{
		client:  client,
		machine: machine,
		menus:   buildMenus(),
		log:     log,
		timeout: 30 * time.Second,
	}

	for _, option := range options {
		option(bot)
	}

	bot.registerHandlers()

	return bot, nil
}

// createRateMiddleware drops updates without a sender and updates above the
// per-user rate
func createRateMiddleware(poller tb.Poller, limiter *rateLimiter, log logger.Logger) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		sender := updateSender(u)
		if sender == nil {
			return false
		}

		if !limiter.Allow(sender.ID) {
			log.WithField("user_id", sender.ID).Warn("rate limit exceeded, dropping update")
			return false
		}
		return true
	})
}

func updateSender(u *tb.Update) *tb.User {
	switch {
	case u.Message != nil:
		return u.Message.Sender
	case u.Callback != nil:
		return u.Callback.Sender
	}
	return nil
}

// buildMenus lays out the inline keyboards
func buildMenus() menus {
	var m menus

	button := func(menu *tb.ReplyMarkup, text string, action conversation.Action) tb.Btn {
		btn := menu.Data(text, string(action))
		m.buttons = append(m.buttons, menuButton{btn: btn, action: action})
		return btn
	}

	m.main = &tb.ReplyMarkup{}
	main := m.main
	main.Inline(
		main.Row(
			button(main, "🔗 Connect Wallet (Mnemonic)", conversation.ActionConnectWallet),
			button(main, "🌐 Connect Wallet", conversation.ActionConnectRedirect),
		),
		main.Row(button(main, "👜 Create Wallets", conversation.ActionCreateWallets)),
		main.Row(
			button(main, "➕ Add Pair", conversation.ActionAddPair),
			button(main, "🌐 Set Exchange", conversation.ActionSetExchange),
			button(main, "➖ Remove Pair", conversation.ActionRemovePair),
		),
		main.Row(button(main, "📄 List Pairs", conversation.ActionListPairs)),
		main.Row(
			button(main, "▶️ Start Pair", conversation.ActionStartPair),
			button(main, "⚙️ Status", conversation.ActionStatus),
			button(main, "⏹️ Stop Pair", conversation.ActionStopPair),
		),
		main.Row(
			button(main, "⏱ Set Delay", conversation.ActionSetDelay),
			button(main, "🔢 Set Trade Limits", conversation.ActionSetLimits),
		),
		main.Row(
			button(main, "💸 Transfer Funds", conversation.ActionTransferFunds),
			button(main, "📢 Fund All Wallets", conversation.ActionFundWallets),
		),
		main.Row(button(main, "💸 Manage Rental", conversation.ActionManageRental)),
		main.Row(
			button(main, "💼 Wallets", conversation.ActionWallets),
			button(main, "📈 Trades", conversation.ActionTrades),
		),
		main.Row(button(main, "ℹ️ Help", conversation.ActionHelp)),
		main.Row(button(main, "🆓 Start Free Trial", conversation.ActionStartFreeTrial)),
	)

	m.rental = &tb.ReplyMarkup{}
	rental := m.rental
	rental.Inline(
		rental.Row(
			button(rental, "💸 Set Rental Amount", conversation.ActionSetRentalAmount),
			button(rental, "🔔 Enable Rental", conversation.ActionEnableRental),
			button(rental, "🔕 Disable Rental", conversation.ActionDisableRental),
		),
		rental.Row(
			button(rental, "🕒 Set Rental Time", conversation.ActionSetRentalTime),
			button(rental, "💼 Set Rental Wallet", conversation.ActionSetRentalWallet),
		),
		rental.Row(button(rental, "🔙 Back to Main Menu", conversation.ActionMainMenu)),
	)

	m.connect = &tb.ReplyMarkup{}
	m.connect.Inline(m.connect.Row(
		m.connect.URL("🌐 Web (Chrome extension)", extensionURL),
		m.connect.URL("📱 Mobile App", walletsURL),
	))

	return m
}

// setupCommands configures the command list shown by the chat client
func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "/start", Description: "Open the main menu"},
		{Text: "/help", Description: "Display help instructions"},
		{Text: "/pairs", Description: "List all pairs"},
		{Text: "/status", Description: "Show active pairs"},
		{Text: "/addpair", Description: "Add a pair"},
		{Text: "/startpair", Description: "Start trading a wallet"},
		{Text: "/stoppair", Description: "Stop trading a wallet"},
		{Text: "/wallets", Description: "List your wallets"},
		{Text: "/trades", Description: "Show the last trades"},
	})
}

func (t *Telegram) registerHandlers() {
	t.client.Handle("/start", func(m *tb.Message) {
		ctx, cancel := t.context()
		defer cancel()
		t.reply(m.Sender, t.machine.Start(ctx, m.Sender.ID))
	})

	for command, action := range conversation.Commands {
		t.client.Handle("/"+command, t.commandHandler(action))
	}
	// telebot matches commands case-sensitively
	t.client.Handle("/createWallets", t.commandHandler(conversation.ActionCreateWallets))

	t.client.Handle(tb.OnText, func(m *tb.Message) {
		ctx, cancel := t.context()
		defer cancel()
		t.reply(m.Sender, t.machine.Handle(ctx, m.Sender.ID, m.Text))
	})

	for _, button := range t.menus.buttons {
		btn, action := button.btn, button.action
		t.client.Handle(&btn, func(c *tb.Callback) {
			if err := t.client.Respond(c); err != nil {
				t.log.WithError(err).Debug("failed to answer callback")
			}

			ctx, cancel := t.context()
			defer cancel()
			t.reply(c.Sender, t.machine.Select(ctx, c.Sender.ID, action))
		})
	}
}

func (t *Telegram) commandHandler(action conversation.Action) func(*tb.Message) {
	return func(m *tb.Message) {
		ctx, cancel := t.context()
		defer cancel()
		t.reply(m.Sender, t.machine.Command(ctx, m.Sender.ID, action, strings.TrimSpace(m.Payload)))
	}
}

func (t *Telegram) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), t.timeout)
}

func (t *Telegram) reply(to *tb.User, reply conversation.Reply) {
	text, options := t.render(reply)
	if _, err := t.client.Send(to, text, options); err != nil {
		t.log.WithError(err).WithField("user_id", to.ID).Error("failed to send reply")
	}
}

// render turns a reply into the message text and its send options
func (t *Telegram) render(reply conversation.Reply) (string, *tb.SendOptions) {
	options := &tb.SendOptions{DisableWebPagePreview: true}
	text := reply.Text

	if reply.Preformatted {
		options.ParseMode = tb.ModeHTML
		text = "<pre>" + html.EscapeString(text) + "</pre>"
	}

	switch reply.Menu {
	case conversation.MenuMain:
		options.ReplyMarkup = t.menus.main
	case conversation.MenuRental:
		options.ReplyMarkup = t.menus.rental
	case conversation.MenuConnect:
		options.ReplyMarkup = t.menus.connect
	}

	return text, options
}

// Start begins polling for updates
func (t *Telegram) Start() {
	go t.client.Start()
	t.log.Info("Telegram transport started.")
}

// Stop stops polling
func (t *Telegram) Stop() {
	t.client.Stop()
}

// SendMessage sends a text to the user's private chat
func (t *Telegram) SendMessage(_ context.Context, userID int64, text string) error {
	if _, err := t.client.Send(tb.ChatID(userID), text, &tb.SendOptions{DisableWebPagePreview: true}); err != nil {
		return core.NewExternalError("telegram", err)
	}
	return nil
}
