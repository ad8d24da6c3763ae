package services

import (
	"context"

	"gofinances/internal/core"
	"gofinances/internal/ledger"
)

// Ledger is every stored transaction with its category, plus the balance.
type Ledger struct {
	Transactions []core.TransactionView
	Balance      core.Balance
}

type TransactionLister struct {
	store ledger.Store
}

func NewTransactionLister(store ledger.Store) *TransactionLister {
	return &TransactionLister{store: store}
}

// Execute reads transactions and balance from one consistent snapshot
// without waiting for writers.
func (s *TransactionLister) Execute(ctx context.Context) (Ledger, error) {
	var out Ledger
	err := s.store.ReadTx(ctx, func(ctx context.Context, tx ledger.Reader) error {
		transactions, err := tx.ListTransactions(ctx)
		if err != nil {
			return err
		}

		var ids []string
		seen := map[string]struct{}{}
		for _, t := range transactions {
			if _, ok := seen[t.CategoryID]; !ok {
				seen[t.CategoryID] = struct{}{}
				ids = append(ids, t.CategoryID)
			}
		}
		categories, err := tx.FindCategoriesByIDs(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[string]core.Category, len(categories))
		for _, c := range categories {
			byID[c.ID] = c
		}

		out.Transactions = make([]core.TransactionView, len(transactions))
		for i, t := range transactions {
			out.Transactions[i] = core.TransactionView{Transaction: t, Category: byID[t.CategoryID]}
		}

		out.Balance, err = NewBalanceCalculator(tx).GetBalance(ctx)
		return err
	})
	if err != nil {
		return Ledger{}, err
	}
	return out, nil
}
