package enums

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO-4217 code accepted by the payment processor.
type Currency string

const (
	CurrencyETB Currency = "ETB"
	CurrencyUSD Currency = "USD"
)

// minor unit digits per currency
var currencyScale = map[Currency]int32{
	CurrencyETB: 2,
	CurrencyUSD: 2,
}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool {
	_, ok := currencyScale[c]
	return ok
}

// Scale is the number of minor unit digits; unknown currencies use 2.
func (c Currency) Scale() int32 {
	if s, ok := currencyScale[c]; ok {
		return s
	}
	return 2
}

// SameAmount compares two amounts after rounding both to the currency's minor unit.
func (c Currency) SameAmount(a, b decimal.Decimal) bool {
	return a.Round(c.Scale()).Equal(b.Round(c.Scale()))
}

// ParseCurrency is case-insensitive; processor payloads are not consistent about case.
func ParseCurrency(value string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(value)))
	if !c.IsValid() {
		return "", fmt.Errorf("invalid currency %q", value)
	}
	return c, nil
}
