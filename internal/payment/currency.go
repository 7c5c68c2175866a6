package payment

import "github.com/shopspring/decimal"

const (
	// ProviderCurrency is what amounts are charged in.
	ProviderCurrency = "USD"
	// StoreUnitsPerProviderUnit is the fixed conversion rate from store
	// prices (whole pesos) to the provider currency.
	StoreUnitsPerProviderUnit = 950
)

// ToProviderCurrency converts a store amount, rounded to cents.
func ToProviderCurrency(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).
		Div(decimal.NewFromInt(StoreUnitsPerProviderUnit)).
		Round(2)
}
