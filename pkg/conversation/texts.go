package conversation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/tonpairs/pkg/core"
	"github.com/raykavin/tonpairs/pkg/registry"
)

const (
	menuText          = "Please select an action:"
	rentalMenuText    = "Select a rental management action:"
	connectText       = "🔗 Please connect your wallet using the appropriate method:"
	unexpectedText    = "⚠️ Something went wrong, please try again."
	noPairsText       = "🚫 No pairs defined."
	noActivePairsText = "🚫 No active pairs."
	noWalletsText     = "🚫 No wallets found. Please create wallets first."
	noTradesText      = "🚫 No trades yet."
	trialUsedText     = "⚠️ You have already used the free trial."
)

const helpText = `🛠️ Available commands:
/addpair <contractAddress> - Adds a contract address.
/removepair <wallet> - Removes a wallet.
/pairs - Lists all pairs.
/startpair <wallet> - Starts trading for a specific wallet.
/stoppair <wallet> - Stops trading for a specific wallet.
/status - Shows the status of all active trading pairs.
/setexchange <dedust|stonfi> - Sets the exchange to be used.
/setlimits <min> <max> [wallet] - Sets the trading limits.
/setdelay <milliseconds> - Sets the delay between each transaction.
/createWallets "<mnemonic>" <number> - Creates a specified number of TON wallets.
/connect <mnemonic> - Connects your main wallet.
/transfer <external_wallet_address> - Transfers funds from created wallets to an external wallet.
/fundwallets <funding_wallet_address> <amount> - Funds all created wallets with a specified amount.
/wallets - Lists your wallets.
/trades - Shows your last trades.
/setrentalstatus <enable|disable> - Enable or disable the rental status.
/setrentaltime <user_id> <expiry_date> - Set the rental expiry time.
/setrentalamount <amount> - Set the rental payment amount.
/setrentalwallet <wallet_address> - Set the rental wallet address.
/trial - Starts the free trial.
/help - Shows this help message.`

func welcomeText(userID int64) string {
	return fmt.Sprintf("👋 Welcome to the Trading Bot! Your user ID: %d.\nUse the buttons below to execute commands or type /help for more information.", userID)
}

func unrecognizedText(text string) string {
	return fmt.Sprintf("❌ Unrecognized input: %s. Please use the buttons or type /help for guidance.", text)
}

func walletsCreatedText(wallets []core.Wallet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👜 %d wallets created:\n", len(wallets))
	for _, wallet := range wallets {
		fmt.Fprintf(&b, "🔹 %s\n", wallet.Address)
	}
	b.WriteString("\n")
	b.WriteString(FundImmediately{}.Prompt())
	return b.String()
}

func transferText(destination string, report registry.TransferReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💸 Funds transferred to wallet: %s\n", destination)
	for _, result := range report.Succeeded {
		fmt.Fprintf(&b, "✅ %s: %s\n", result.Wallet, txRef(result.TxHash))
	}
	for _, result := range report.Failed {
		fmt.Fprintf(&b, "⚠️ Failed to transfer from %s.\n", result.Wallet)
	}
	for _, wallet := range report.Skipped {
		fmt.Fprintf(&b, "⚠️ No private key found for wallet %s.\n", wallet)
	}
	return strings.TrimRight(b.String(), "\n")
}

func fundText(amount float64, report registry.TransferReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📢 Funded %d wallets with %s TON each.\n", len(report.Succeeded), formatAmount(amount))
	for _, result := range report.Failed {
		fmt.Fprintf(&b, "⚠️ Failed to fund %s.\n", result.Wallet)
	}
	for _, wallet := range report.Skipped {
		fmt.Fprintf(&b, "🚫 Invalid address encountered: %s\n", wallet)
	}
	return strings.TrimRight(b.String(), "\n")
}

func txRef(hash string) string {
	return core.OrderResult{TransactionHash: hash}.TransactionRef()
}

func pairsText(pairs []registry.PairView) string {
	if len(pairs) == 0 {
		return noPairsText
	}

	var b strings.Builder
	b.WriteString("📄 Your pairs:\n")
	for _, pair := range pairs {
		state := "⏸"
		if pair.Active {
			state = "▶️"
		}
		fmt.Fprintf(&b, "\n%s Wallet: %s\n", state, pair.Wallet)
		if pair.Contract != "" && pair.Contract != pair.Wallet {
			fmt.Fprintf(&b, "   Contract: %s\n", pair.Contract)
		}
		fmt.Fprintf(&b, "   Limits: %s - %s\n", formatAmount(pair.MinAmount), formatAmount(pair.MaxAmount))
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusText(account *core.UserAccount, active []registry.PairView) string {
	settings := &strings.Builder{}
	table := tablewriter.NewWriter(settings)
	table.AppendBulk([][]string{
		{"Exchange", string(account.Exchange)},
		{"Delay", strconv.FormatInt(account.Delay, 10) + " ms"},
		{"Limits", formatAmount(account.TradingLimits.Min) + " - " + formatAmount(account.TradingLimits.Max)},
		{"Pairs", strconv.Itoa(len(account.Pairs))},
		{"Active", strconv.Itoa(len(active))},
	})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.Render()

	if len(active) == 0 {
		return settings.String() + "\n" + noActivePairsText
	}

	lines := make([]string, 0, len(active))
	for _, pair := range active {
		lines = append(lines, "🔹 "+pair.Wallet)
	}
	return settings.String() + "\n⚙️ Active pairs:\n" + strings.Join(lines, "\n")
}

func walletsText(account *core.UserAccount, wallets []string) string {
	if len(wallets) == 0 && account.MainWallet == "" {
		return noWalletsText
	}

	var b strings.Builder
	if account.MainWallet != "" {
		fmt.Fprintf(&b, "🔗 Main wallet: %s\n", account.MainWallet)
	}
	b.WriteString("💼 Your Wallets:\n")
	for _, wallet := range wallets {
		fmt.Fprintf(&b, "🔹 Wallet: %s\n", wallet)
	}
	return strings.TrimRight(b.String(), "\n")
}

func shortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}

func tradesText(trades []*core.Trade) string {
	if len(trades) == 0 {
		return noTradesText
	}

	buffer := &strings.Builder{}
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Time", "Wallet", "Side", "Amount", "Status"})
	for _, trade := range trades {
		table.Append([]string{
			trade.CreatedAt.UTC().Format(time.DateTime),
			shortAddress(trade.Wallet),
			string(trade.Side),
			strconv.FormatFloat(trade.Amount, 'f', 4, 64),
			string(trade.Status),
		})
	}
	table.Render()
	return buffer.String()
}

func trialText(expiry time.Time) string {
	return "✅ Free trial started! It is valid until " + expiry.UTC().Format("2006-01-02 15:04") + " UTC."
}
