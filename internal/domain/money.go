package domain

import "github.com/shopspring/decimal"

func init() {
	// Клиенты ждут денежные суммы в JSON числами, а не строками.
	decimal.MarshalJSONWithoutQuotes = true
}

// Cents округляет сумму до копеек.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MustMoney разбирает строковую сумму; предназначена для констант и тестов.
func MustMoney(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}
