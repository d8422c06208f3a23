package conversation

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/registry"
	"github.com/raykavin/tonpairs/pkg/ton"
	"github.com/samber/lo"
)

// Pending is the input a user is expected to send next. Each variant owns
// the grammar of its input; a nil Pending means the user is idle.
type Pending interface {
	Action() Action
	Prompt() string
	parse(text string) (command, error)
}

// command is a parsed, validated input ready to run. It returns the reply
// text and the next pending input, nil for idle.
type command interface {
	execute(ctx context.Context, m *Machine, userID int64) (string, Pending, error)
}

// NewPending returns the pending variant waiting for the action's input
func NewPending(action Action) (Pending, bool) {
	switch action {
	case ActionCreateWallets:
		return CreateWallets{}, true
	case ActionConnectWallet:
		return ConnectWallet{}, true
	case ActionAddPair:
		return AddPair{}, true
	case ActionRemovePair:
		return RemovePair{}, true
	case ActionStartPair:
		return StartPair{}, true
	case ActionStopPair:
		return StopPair{}, true
	case ActionSetExchange:
		return SetExchange{}, true
	case ActionSetLimits:
		return SetLimits{}, true
	case ActionSetDelay:
		return SetDelay{}, true
	case ActionTransferFunds:
		return TransferFunds{}, true
	case ActionFundWallets:
		return FundWallets{}, true
	case ActionFundImmediately:
		return FundImmediately{}, true
	case ActionSetRentalAmount:
		return SetRentalAmount{}, true
	case ActionSetRentalTime:
		return SetRentalTime{}, true
	case ActionSetRentalWallet:
		return SetRentalWallet{}, true
	case ActionSetRentalStatus:
		return SetRentalStatus{}, true
	}
	return nil, false
}

func invalid(format string, args ...any) error {
	return core.NewValidationError("", format, args...)
}

func singleToken(text, name string) (string, error) {
	fields := strings.Fields(text)
	if len(fields) != 1 {
		return "", invalid("Please enter a single %s.", name)
	}
	return fields[0], nil
}

func parseAmount(text string) (float64, error) {
	value, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, invalid("%q is not a valid number.", text)
	}
	return value, nil
}

func formatAmount(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// CreateWallets waits for a mnemonic followed by the number of wallets
type CreateWallets struct{}

func (CreateWallets) Action() Action { return ActionCreateWallets }

func (CreateWallets) Prompt() string {
	return `👜 Please enter the mnemonic followed by the number of wallets, separated by a space. For example: "word1 word2 ... word24 5".`
}

func (CreateWallets) parse(text string) (command, error) {
	words := lo.Compact(ton.SplitMnemonic(text))
	if len(words) != ton.MnemonicWords+1 {
		return nil, invalid("Invalid input format. Please make sure you have exactly %d words followed by a number.", ton.MnemonicWords)
	}

	count, err := strconv.Atoi(words[len(words)-1])
	if err != nil || count < 1 || count > registry.MaxWallets {
		return nil, invalid("The number of wallets must be between 1 and %d.", registry.MaxWallets)
	}

	mnemonic := words[:len(words)-1]
	if err := ton.ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}

	return createWalletsCommand{mnemonic: mnemonic, count: count}, nil
}

type createWalletsCommand struct {
	mnemonic []string
	count    int
}

func (c createWalletsCommand) execute(ctx context.Context, m *Machine, userID int64) (string, Pending, error) {
	wallets, err := m.registry.CreateWallets(ctx, userID, c.mnemonic, c.count)
	if err != nil {
		return "", nil, err
	}
	return walletsCreatedText(wallets), FundImmediately{}, nil
}

// ConnectWallet waits for the 24 words of the user's main wallet
type ConnectWallet struct{}

func (ConnectWallet) Action() Action { return ActionConnectWallet }
func (ConnectWallet) Prompt() string { return "🔗 Please enter your wallet mnemonic." }

func (ConnectWallet) parse(text string) (command, error) {
	words := lo.Compact(ton.SplitMnemonic(text))
	if err := ton.ValidateMnemonic(words); err != nil {
		return nil, invalid("Invalid mnemonic. Please enter exactly %d words.", ton.MnemonicWords)
	}
	return connectWalletCommand{mnemonic: words}, nil
}

type connectWalletCommand struct {
	mnemonic []string
}

func (c connectWalletCommand) execute(ctx context.Context, m *Machine, userID int64) (string, Pending, error) {
	address, err := m.registry.ConnectWallet(ctx, userID, c.mnemonic)
	if err != nil {
		return "", nil, err
	}
	return "🔗 Wallet connected successfully using mnemonic: " + address, nil, nil
}

// AddPair waits for a contract address, optionally preceded by the wallet
// it is traded from
type AddPair struct{}

func (AddPair) Action() Action { return ActionAddPair }
func (AddPair) Prompt() string { return "➕ Please enter the contract address of the pair." }

func (AddPair) parse(text string) (command, error) {
	fields := strings.Fields(text)

	var cmd addPairCommand
	switch len(fields) {
	case 1:
		cmd.contract = fields[0]
	case 2:
		cmd.wallet, cmd.contract = fields[0], fields[1]
		if err := ton.ValidateAddress(cmd.wallet); err != nil {
			return nil, invalid("Invalid wallet address %s.", cmd.wallet)
		}
	default:
		return nil, invalid("Invalid contract address format.")
	}

	if err := ton.ValidatePairAddress(cmd.contract); err != nil {
		return nil, invalid("Invalid contract address format.")
	}
	return cmd, nil
}

type addPairCommand struct {
	wallet   string
	contract string
}

func (c addPairCommand) execute(ctx context.Context, m *Machine, userID int64) (string, Pending, error) {
	pair, err := m.registry.AddPair(ctx, userID, c.wallet, c.contract)
	if err != nil {
		return "", nil, err
	}

	text := "➕ Pair added for contract address: " + pair.Contract
	if pair.Wallet != pair.Contract {
		text += "\n💼 Wallet: " + pair.Wallet
	}
	return text, nil, nil
}

// RemovePair waits for the wallet key of the pair to delete
type RemovePair struct{}

func (RemovePair) Action() Action { return ActionRemovePair }
func (RemovePair) Prompt() string { return "➖ Please enter the wallet address to remove." }

func (RemovePair) parse(text string) (command, error) {
	wallet, err := singleToken(text, "wallet address")
	if err != nil {
		return nil, err
	}
	return removePairCommand{wallet: wallet}, nil
}

type removePairCommand struct {
	wallet string
}

func (c removePairCommand) execute(ctx context.Context, m *Machine, userID int64) (string, Pending, error) {
	if err := m.registry.RemovePair(ctx, userID, c.wallet); err != nil {
		return "", nil, err
	}
	return "➖ Pair removed: Wallet: " + c.wallet, nil, nil
}

// StartPair waits for the wallet key of the pair to activate
type StartPair struct{}

func (StartPair) Action() Action { return ActionStartPair }
func (StartPair) Prompt() string { return "▶️ Please enter the wallet address to start trading." }

func (StartPair) parse(text string) (command, error) {
	wallet, err := singleToken(text, "wallet address")
	if err != nil {
		return nil, err
	}
	return startPairCommand{wallet: wallet}, nil
}

type startPairCommand struct {
	wallet string
}

func (c startPairCommand) execute(ctx context.Context, m *Machine, userID int64) (string, Pending, error) {
	if err := m.registry.StartPair(ctx, userID, c.wallet); err != nil {
		return "", nil, err
	}
	return "▶️ Trading started for wallet: " + c.wallet, nil, nil
}

// StopPair waits for the wallet key of the pair to deactivate
type StopPair struct{}

func (StopPair) Action() Action { return ActionStopPair }
func (StopPair) Prompt() string { return "⏹️ Please enter the wallet address to stop trading." }

func (StopPair) parse(text string) (command, error) {
	wallet, err := singleToken(text, "wallet address")
	if err != nil {
		return nil, err
	}
	return stopPairCommand{wallet: wallet}, nil
}

type stopPairCommand struct {
	wallet string
}

func (c stopPairCommand) execute(ctx context.Context, m *Machine, userID int64) (string, Pending, error) {
	if err := m.registry.StopPair(ctx, userID, c.wallet); err != nil {
		return "", nil, err
	}
	return "⏹️ Trading stopped for wallet: " + c.wallet, nil, nil
}

// SetExchange waits for dedust or stonfi
type SetExchange struct{}

func (SetExchange) Action() Action { return ActionSetExchange }
func (SetExchange) Prompt() string { return "🌐 Please enter the exchange name (dedust or stonfi)." }

func (SetExchange) parse(text string) (command, error) {
	exchange, err := core.ParseExchange(strings.ToLower(strings.TrimSpace(text)))
	if err != nil {
		return nil, invalid("Invalid exchange. Please enter 'dedust' or 'stonfi'.")
	}
	return setExchangeCommand{exchange: exchange}, nil
}

type setExchangeCommand struct {
	exchange core.ExchangeName
}

func (c setExchangeCommand) execute(ctx context.Context, m *Machine, userID int64) (string, Pending, error) {
	if err := m.registry.SetExchange(ctx, userID, c.exchange); err != nil {
		return "", nil, err
	}
	return "🌐 Exchange set to " + string(c.exchange) + ".", nil, nil
}

// SetLimits waits for "<min> <max>" and an optional wallet
type SetLimits struct{}

func (SetLimits) Action() Action { return ActionSetLimits }

func (SetLimits) Prompt() string {
	return "🔢 Please enter the minimum and maximum trade amounts separated by a space. For example: 1 100. Add a wallet address to change a single pair."
}

func (SetLimits) parse(text string) (command, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 || len(fields) > 3 {
		return nil, invalid("Invalid format. Please enter the minimum and maximum trade amounts separated by a space.")
	}

	low, err := parseAmount(fields[0])
	if err != nil {
		return nil, err
	}
	high, err := parseAmount(fields[1])
	if err != nil {
		return nil, err
	}
	if low < 0 || high <= 0 || low > high {
		return nil, invalid("The limits must satisfy 0 <= min <= max and max > 0.")
	}

	cmd := setLimitsCommand{limits: core.TradingLimits{Min: low, Max: high}}
	if len(fields) == 3 {
		cmd.wallet = fields[2]
	}
	return cmd, nil
}

type setLimitsCommand struct {
	limits core.TradingLimits
	wallet string
}

func (c setLimitsCommand) execute(ctx context.Context, m *Machine, userID int64) (string, Pending, error) {
	if err := m.registry.SetLimits(ctx, userID, c.limits, c.wallet); err != nil {
		return "", nil, err
	}

	text := "🔢 Trading limits set: Min: " + formatAmount(c.limits.Min) + ", Max: " + formatAmount(c.limits.Max)
	if c.wallet != "" {
		text += " for wallet " + c.wallet
	}
	return text, nil, nil
}

// SetDelay waits for the pause between trades in milliseconds
type SetDelay struct{}

func (SetDelay) Action() Action { return ActionSetDelay }

func (SetDelay) Prompt() string {
	return "⏱ Please enter the delay between trades in milliseconds. For example: 1000."
}

func (SetDelay) parse(text string) (command, error) {
	token, err := singleToken(text, "number")
	if err != nil {
		return nil, err
	}

	delay, err := strconv.ParseInt(token, 10, 64)
	if err != nil || delay < 0 {
		return nil, invalid("Invalid format. Please enter a valid number. For example: 1000.")
	}
	return setDelayCommand{delay: delay}, nil
}

type setDelayCommand struct {
	delay int64
}

func (c setDelayCommand) execute(ctx context.Context, m *Machine, userID int64) (string, Pending, error) {
	if err := m.registry.SetDelay(ctx, userID, c.delay); err != nil {
		return "", nil, err
	}
	return "⏱ Delay set to " + strconv.FormatInt(c.delay, 10) + " milliseconds.", nil, nil
}

// TransferFunds waits for the external wallet receiving the sweep
type TransferFunds struct{}

func (TransferFunds) Action() Action { return ActionTransferFunds }

func (TransferFunds) Prompt() string {
	return "💸 Please enter the external TON blockchain wallet address to transfer funds."
}

func (TransferFunds) parse(text string) (command, error) {
	address, err := singleToken(text, "wallet address")
	if err != nil {
		return nil, err
	}
	if err := ton.ValidateAddress(address); err != nil {
		return nil, invalid("Invalid wallet address %s.", address)
	}
	return transferFundsCommand{destination: address}, nil
}

type transferFundsCommand struct {
	destination string
}

func (c transferFundsCommand) execute(ctx context.Context, m *Machine, userID int64) (string, Pending, error) {
	report, err := m.registry.TransferFunds(ctx, userID, c.destination)
	if err != nil {
		return "", nil, err
	}
	return transferText(c.destination, report), nil, nil
}

// FundWallets waits for the funding wallet and the amount sent to each
// wallet
type FundWallets struct{}

func (FundWallets) Action() Action { return ActionFundWallets }

func (FundWallets) Prompt() string {
	return `📢 Please enter the funding wallet address and the amount to distribute to each created wallet, separated by a space. For example: "EQFundingWalletAddress 10".`
}

func (FundWallets) parse(text string) (command, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return nil, invalid("Invalid input format. Please provide a valid wallet address and amount.")
	}
	if err := ton.ValidateAddress(fields[0]); err != nil {
		return nil, invalid("Invalid wallet address %s.", fields[0])
	}

	amount, err := parseAmount(fields[1])
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, invalid("The amount must be greater than zero.")
	}
	return fundWalletsCommand{funding: fields[0], amount: amount}, nil
}

type fundWalletsCommand struct {
	funding string
	amount  float64
}

func (c fundWalletsCommand) execute(ctx context.Context, m *Machine, userID int64) (string, Pending, error) {
	report, err := m.registry.FundWallets(ctx, userID, c.funding, c.amount)
	if err != nil {
		return "", nil, err
	}
	return fundText(c.amount, report), nil, nil
}

// FundImmediately waits for the answer to the funding offer made after
// wallet creation
type FundImmediately struct{}

func (FundImmediately) Action() Action { return ActionFundImmediately }
func (FundImmediately) Prompt() string { return "Do you want to fund your wallets immediately? (yes/no)" }

func (FundImmediately) parse(text string) (command, error) {
	return fundImmediatelyCommand{accepted: strings.EqualFold(strings.TrimSpace(text), "yes")}, nil
}

type fundImmediatelyCommand struct {
	accepted bool
}

func (c fundImmediatelyCommand) execute(context.Context, *Machine, int64) (string, Pending, error) {
	if !c.accepted {
		return "Wallet creation completed without initial funding.", nil, nil
	}
	return "📢 Please enter the funding wallet address and the amount, separated by a space.", FundWallets{}, nil
}

// SetRentalAmount waits for the rental price in USDT
type SetRentalAmount struct{}

func (SetRentalAmount) Action() Action { return ActionSetRentalAmount }
func (SetRentalAmount) Prompt() string { return "💸 Please enter the amount in USDT. For example: 1000" }

func (SetRentalAmount) parse(text string) (command, error) {
	token, err := singleToken(text, "amount")
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(token)
	if err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, invalid("The amount must not be negative.")
	}
	return setRentalAmountCommand{amount: amount}, nil
}

type setRentalAmountCommand struct {
	amount float64
}

func (c setRentalAmountCommand) execute(ctx context.Context, m *Machine, userID int64) (string, Pending, error) {
	if err := m.registry.SetRentalAmount(ctx, userID, c.amount); err != nil {
		return "", nil, err
	}
	return "Rental payment amount set to " + formatAmount(c.amount) + " USDT.", nil, nil
}

// SetRentalTime waits for "<userId> <YYYY-MM-DD>"
type SetRentalTime struct{}

func (SetRentalTime) Action() Action { return ActionSetRentalTime }

func (SetRentalTime) Prompt() string {
	return "⏰ Please enter the user ID and the rental expiry date (YYYY-MM-DD)."
}

func (SetRentalTime) parse(text string) (command, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return nil, invalid("Invalid format. Please enter the user ID and the date, for example: 123456 2025-01-31.")
	}

	target, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, invalid("%q is not a valid user ID.", fields[0])
	}

	expiry, err := time.Parse(time.DateOnly, fields[1])
	if err != nil {
		return nil, invalid("%q is not a valid date, use YYYY-MM-DD.", fields[1])
	}
	return setRentalTimeCommand{target: target, expiry: expiry}, nil
}

type setRentalTimeCommand struct {
	target int64
	expiry time.Time
}

func (c setRentalTimeCommand) execute(ctx context.Context, m *Machine, userID int64) (string, Pending, error) {
	if err := m.registry.SetRentalExpiry(ctx, userID, c.target, c.expiry); err != nil {
		return "", nil, err
	}
	return "Rental expiry date set to " + c.expiry.Format(time.DateOnly) + " for user " + strconv.FormatInt(c.target, 10) + ".", nil, nil
}

// SetRentalWallet waits for the wallet receiving rental payments
type SetRentalWallet struct{}

func (SetRentalWallet) Action() Action { return ActionSetRentalWallet }
func (SetRentalWallet) Prompt() string { return "💼 Please enter the rental wallet address." }

func (SetRentalWallet) parse(text string) (command, error) {
	address, err := singleToken(text, "wallet address")
	if err != nil {
		return nil, err
	}
	if err := ton.ValidateAddress(address); err != nil {
		return nil, invalid("Invalid wallet address %s.", address)
	}
	return setRentalWalletCommand{address: address}, nil
}

type setRentalWalletCommand struct {
	address string
}

func (c setRentalWalletCommand) execute(ctx context.Context, m *Machine, userID int64) (string, Pending, error) {
	if err := m.registry.SetRentalWallet(ctx, userID, c.address); err != nil {
		return "", nil, err
	}
	return "Rental payment wallet address set to " + c.address + ".", nil, nil
}

// SetRentalStatus waits for enable or disable. Only reachable by command,
// the menu has one button per state.
type SetRentalStatus struct{}

func (SetRentalStatus) Action() Action { return ActionSetRentalStatus }
func (SetRentalStatus) Prompt() string { return "🔔 Please enter enable or disable." }

func (SetRentalStatus) parse(text string) (command, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "enable":
		return setRentalStatusCommand{enabled: true}, nil
	case "disable":
		return setRentalStatusCommand{enabled: false}, nil
	}
	return nil, invalid("Please enter enable or disable.")
}

type setRentalStatusCommand struct {
	enabled bool
}

func (c setRentalStatusCommand) execute(ctx context.Context, m *Machine, userID int64) (string, Pending, error) {
	if err := m.registry.SetRentalStatus(ctx, userID, c.enabled); err != nil {
		return "", nil, err
	}
	if c.enabled {
		return "✅ Rental status enabled.", nil, nil
	}
	return "❌ Rental status disabled.", nil, nil
}
