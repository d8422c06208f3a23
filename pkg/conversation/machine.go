// Package conversation turns chat input into registry operations. Every
// user has at most one pending input; menu actions set it, text messages
// resolve it.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/logger"
	"github.com/raykavin/tonpairs/pkg/registry"
)

// TradeHistory is the number of trades listed by the trades action
const TradeHistory = 10

// Menu is the keyboard attached to a reply
type Menu int

const (
	MenuNone Menu = iota
	MenuMain
	MenuRental
	MenuConnect
)

// Reply is the answer to one chat input
type Reply struct {
	Text string
	Menu Menu
	// Preformatted text is rendered in a monospace block
	Preformatted bool
}

// Machine turns chat messages into registry operations, keeping the pending
// input of every user between messages
type Machine struct {
	registry *registry.Registry
	trades   core.TradeStorage
	sessions *Sessions
	log      logger.Logger
}

// Option is a function that configures a Machine
type Option func(*Machine)

// WithTrades enables the trade history action
func WithTrades(trades core.TradeStorage) Option {
	return func(m *Machine) {
		m.trades = trades
	}
}

// WithSessions replaces the in-memory session store
func WithSessions(sessions *Sessions) Option {
	return func(m *Machine) {
		m.sessions = sessions
	}
}

// NewMachine creates a machine with in-memory sessions unless WithSessions
// is given
func NewMachine(registry *registry.Registry, log logger.Logger, options ...Option) *Machine {
	machine := &Machine{
		registry: registry,
		sessions: NewSessions(),
		log:      log,
	}

	for _, option := range options {
		option(machine)
	}

	return machine
}

// Pending returns the pending input of the user, nil when idle
func (m *Machine) Pending(userID int64) Pending {
	return m.sessions.Pending(userID)
}

// Start registers the user on first contact and shows the main menu
func (m *Machine) Start(ctx context.Context, userID int64) Reply {
	unlock := m.sessions.Lock(userID)
	defer unlock()

	_, created, err := m.registry.Ensure(ctx, userID)
	if err != nil {
		m.log.WithError(err).WithField("user_id", userID).Error("failed to create account")
		return Reply{Text: unexpectedText}
	}
	if created {
		m.log.WithField("user_id", userID).Info("new user")
	}

	return Reply{Text: welcomeText(userID), Menu: MenuMain}
}

// Select handles a menu button. Actions waiting for input replace the
// pending input and prompt for it; the others run at once.
func (m *Machine) Select(ctx context.Context, userID int64, action Action) Reply {
	unlock := m.sessions.Lock(userID)
	defer unlock()

	return m.selectAction(ctx, userID, action)
}

func (m *Machine) selectAction(ctx context.Context, userID int64, action Action) Reply {
	if pending, ok := NewPending(action); ok {
		m.sessions.Set(userID, pending)
		return Reply{Text: pending.Prompt()}
	}

	reply, err := m.safely(func() (Reply, error) {
		return m.immediate(ctx, userID, action)
	})
	if err != nil {
		return m.fail(userID, nil, true, err)
	}
	return reply
}

// Handle resolves the pending input of the user with a text message
func (m *Machine) Handle(ctx context.Context, userID int64, text string) Reply {
	unlock := m.sessions.Lock(userID)
	defer unlock()

	pending := m.sessions.Pending(userID)
	if pending == nil {
		return Reply{Text: unrecognizedText(text)}
	}

	return m.resolve(ctx, userID, pending, text, true)
}

// Command runs a slash command with its arguments. Without arguments a
// command waiting for input behaves like its menu button.
func (m *Machine) Command(ctx context.Context, userID int64, action Action, args string) Reply {
	unlock := m.sessions.Lock(userID)
	defer unlock()

	pending, ok := NewPending(action)
	if !ok || args == "" {
		return m.selectAction(ctx, userID, action)
	}

	return m.resolve(ctx, userID, pending, args, false)
}

// resolve parses text with the pending grammar and runs the command. When
// stateful is set the outcome drives the user's session, otherwise only a
// chained input is stored.
func (m *Machine) resolve(ctx context.Context, userID int64, pending Pending, text string, stateful bool) Reply {
	cmd, err := pending.parse(text)
	if err != nil {
		return m.fail(userID, pending, stateful, err)
	}

	var next Pending
	reply, err := m.safely(func() (Reply, error) {
		answer, chained, err := cmd.execute(ctx, m, userID)
		next = chained
		return Reply{Text: answer}, err
	})
	if err != nil {
		return m.fail(userID, pending, stateful, err)
	}

	if stateful || next != nil {
		m.sessions.Set(userID, next)
	}

	m.log.WithFields(logger.Fields{"user_id": userID, "action": pending.Action()}).Debug("command executed")
	return reply
}

// safely runs fn and turns a panic into an error
func (m *Machine) safely(fn func() (Reply, error)) (reply Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return fn()
}

// fail maps an error to its reply. Validation and not found errors keep the
// pending input so the user can retry; anything else makes a stateful
// session idle. The prompt of pending, when set, is repeated on validation
// errors.
func (m *Machine) fail(userID int64, pending Pending, stateful bool, err error) Reply {
	log := m.log.WithField("user_id", userID).WithError(err)

	var validation *core.ValidationError
	var external *core.ExternalServiceError

	switch {
	case errors.As(err, &validation):
		text := "❌ " + validation.Error()
		if pending != nil {
			text += "\n" + pending.Prompt()
		}
		return Reply{Text: text}

	case core.IsNotFound(err):
		return Reply{Text: "⚠️ " + notFoundText(err)}

	case errors.Is(err, registry.ErrTrialUsed):
		return Reply{Text: trialUsedText}

	case errors.As(err, &external):
		log.Error("external service failed")
		m.reset(userID, stateful)
		return Reply{Text: fmt.Sprintf("⚠️ %s is unavailable, please try again later.", external.Service)}
	}

	log.Error("unexpected error")
	m.reset(userID, stateful)
	return Reply{Text: unexpectedText}
}

func (m *Machine) reset(userID int64, stateful bool) {
	if stateful {
		m.sessions.Set(userID, nil)
	}
}

func notFoundText(err error) string {
	switch {
	case errors.Is(err, core.ErrPairNotFound):
		return "Pair not found."
	case errors.Is(err, core.ErrUserNotFound):
		return "No user found. Send /start first."
	case errors.Is(err, core.ErrSecretNotFound):
		return "No signing material is registered for this funding wallet."
	}
	return err.Error()
}

func (m *Machine) immediate(ctx context.Context, userID int64, action Action) (Reply, error) {
	switch action {
	case ActionListPairs:
		pairs, err := m.registry.ListPairs(ctx, userID)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: pairsText(pairs)}, nil

	case ActionStatus:
		account, err := m.registry.Account(ctx, userID)
		if err != nil {
			return Reply{}, err
		}
		active, err := m.registry.StatusPairs(ctx, userID)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: statusText(account, active), Preformatted: true}, nil

	case ActionWallets:
		account, err := m.registry.Account(ctx, userID)
		if core.IsNotFound(err) {
			return Reply{Text: noWalletsText}, nil
		}
		if err != nil {
			return Reply{}, err
		}
		wallets, err := m.registry.Wallets(ctx, userID)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: walletsText(account, wallets)}, nil

	case ActionTrades:
		if m.trades == nil {
			return Reply{Text: noTradesText}, nil
		}
		trades, err := m.trades.Trades(ctx, core.WithUser(userID))
		if err != nil {
			return Reply{}, err
		}
		if len(trades) > TradeHistory {
			trades = trades[len(trades)-TradeHistory:]
		}
		return Reply{Text: tradesText(trades), Preformatted: len(trades) > 0}, nil

	case ActionHelp:
		return Reply{Text: helpText, Menu: MenuMain}, nil

	case ActionMainMenu:
		return Reply{Text: menuText, Menu: MenuMain}, nil

	case ActionManageRental:
		return Reply{Text: rentalMenuText, Menu: MenuRental}, nil

	case ActionEnableRental, ActionDisableRental:
		cmd := setRentalStatusCommand{enabled: action == ActionEnableRental}
		text, _, err := cmd.execute(ctx, m, userID)
		return Reply{Text: text}, err

	case ActionStartFreeTrial:
		expiry, err := m.registry.StartTrial(ctx, userID, "telegram:"+strconv.FormatInt(userID, 10))
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: trialText(expiry)}, nil

	case ActionConnectRedirect:
		m.sessions.Set(userID, nil)
		return Reply{Text: connectText, Menu: MenuConnect}, nil
	}

	return Reply{Text: fmt.Sprintf("❌ Unrecognized command: %s", action)}, nil
}
