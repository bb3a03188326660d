package service

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditcore/internal/wallet/domain"
)

func decimalMin(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func sumConsumptions(consumptions []domain.Consumption) decimal.Decimal {
	total := decimal.Zero
	for _, c := range consumptions {
		total = total.Add(c.Amount)
	}
	return total
}
