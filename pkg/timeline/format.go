package timeline

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatMoney renders amount in the given ISO 4217 currency, e.g.
// "$1,200.50" for USD.
func FormatMoney(amount decimal.Decimal, currency string) (string, error) {
	code := strings.ToUpper(currency)
	cur := money.GetCurrency(code)
	if cur == nil {
		return "", fmt.Errorf("unknown currency %q", currency)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, code).Display(), nil
}
