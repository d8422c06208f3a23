package ton

import (
	"github.com/shopspring/decimal"
)

// Decimals of TON and of the jettons traded by the bot
const Decimals = 9

// ToNano converts an amount to its integer nano representation
func ToNano(amount float64) string {
	return decimal.NewFromFloat(amount).Shift(Decimals).Truncate(0).String()
}

// FromNano converts an integer nano amount back to units
func FromNano(nano string) (float64, error) {
	value, err := decimal.NewFromString(nano)
	if err != nil {
		return 0, err
	}
	return value.Shift(-Decimals).InexactFloat64(), nil
}
