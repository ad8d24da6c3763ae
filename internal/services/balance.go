package services

import (
	"context"

	"gofinances/internal/core"
	"gofinances/internal/ledger"
)

// BalanceCalculator aggregates every stored transaction into a Balance.
type BalanceCalculator struct {
	transactions ledger.TransactionReader
}

func NewBalanceCalculator(transactions ledger.TransactionReader) *BalanceCalculator {
	return &BalanceCalculator{transactions: transactions}
}

// GetBalance returns income and outcome sums and their difference. An empty
// ledger yields the zero Balance.
func (c *BalanceCalculator) GetBalance(ctx context.Context) (core.Balance, error) {
	income, outcome, err := c.transactions.SumTransactions(ctx)
	if err != nil {
		return core.Balance{}, err
	}
	return core.NewBalance(income, outcome), nil
}
