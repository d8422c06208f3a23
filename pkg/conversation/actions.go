package conversation

import "strings"

// Action names a menu button or a slash command
type Action string

// Actions waiting for text input
const (
	ActionCreateWallets   Action = "CREATE_WALLETS"
	ActionConnectWallet   Action = "CONNECT_WALLET_MNEMONIC"
	ActionAddPair         Action = "ADD_PAIR"
	ActionRemovePair      Action = "REMOVE_PAIR"
	ActionStartPair       Action = "START_PAIR"
	ActionStopPair        Action = "STOP_PAIR"
	ActionSetExchange     Action = "SET_EXCHANGE"
	ActionSetLimits       Action = "SET_LIMITS"
	ActionSetDelay        Action = "SET_DELAY"
	ActionTransferFunds   Action = "TRANSFER_FUNDS"
	ActionFundWallets     Action = "FUND_WALLETS"
	ActionFundImmediately Action = "FUND_IMMEDIATELY"
	ActionSetRentalAmount Action = "SET_RENTAL_AMOUNT"
	ActionSetRentalTime   Action = "SET_RENTAL_TIME"
	ActionSetRentalWallet Action = "SET_RENTAL_WALLET"
	ActionSetRentalStatus Action = "SET_RENTAL_STATUS"
)

// Actions answered immediately
const (
	ActionListPairs       Action = "LIST_PAIRS"
	ActionStatus          Action = "STATUS"
	ActionWallets         Action = "WALLETS"
	ActionHelp            Action = "HELP"
	ActionTrades          Action = "TRADES"
	ActionManageRental    Action = "MANAGE_RENTAL"
	ActionMainMenu        Action = "MAIN_MENU"
	ActionEnableRental    Action = "ENABLE_RENTAL"
	ActionDisableRental   Action = "DISABLE_RENTAL"
	ActionStartFreeTrial  Action = "START_FREE_TRIAL"
	ActionConnectRedirect Action = "CONNECT_WALLET_REDIRECT"
)

// Commands maps slash commands, lowercased and without the slash, to their
// action
var Commands = map[string]Action{
	"addpair":         ActionAddPair,
	"removepair":      ActionRemovePair,
	"pairs":           ActionListPairs,
	"startpair":       ActionStartPair,
	"stoppair":        ActionStopPair,
	"status":          ActionStatus,
	"setexchange":     ActionSetExchange,
	"setlimits":       ActionSetLimits,
	"setdelay":        ActionSetDelay,
	"createwallets":   ActionCreateWallets,
	"transfer":        ActionTransferFunds,
	"setrentalstatus": ActionSetRentalStatus,
	"setrentaltime":   ActionSetRentalTime,
	"setrentalamount": ActionSetRentalAmount,
	"setrentalwallet": ActionSetRentalWallet,
	"fundwallets":     ActionFundWallets,
	"help":            ActionHelp,
	"wallets":         ActionWallets,
	"trades":          ActionTrades,
	"connect":         ActionConnectWallet,
	"trial":           ActionStartFreeTrial,
	"menu":            ActionMainMenu,
}

// CommandAction resolves a slash command such as "/createWallets"
func CommandAction(command string) (Action, bool) {
	action, ok := Commands[strings.ToLower(strings.TrimPrefix(command, "/"))]
	return action, ok
}
