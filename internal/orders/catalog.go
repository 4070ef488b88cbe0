package orders

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/pkg/enums"
)

// Price is the fixed catalog price of a service.
type Price struct {
	Amount   decimal.Decimal
	Currency enums.Currency
}

var catalog = map[enums.ServiceKind]Price{
	enums.ServiceKindCVWriting:    {Amount: decimal.NewFromInt(500), Currency: enums.CurrencyETB},
	enums.ServiceKindCoverLetter:  {Amount: decimal.NewFromInt(300), Currency: enums.CurrencyETB},
	enums.ServiceKindResumeDesign: {Amount: decimal.NewFromInt(250), Currency: enums.CurrencyETB},
	enums.ServiceKindAgreement:    {Amount: decimal.NewFromInt(400), Currency: enums.CurrencyETB},
}

// PriceFor returns the catalog price; every agreement template costs the same.
func PriceFor(st enums.ServiceType) (Price, bool) {
	p, ok := catalog[st.Kind]
	return p, ok
}
