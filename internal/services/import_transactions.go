package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gofinances/internal/core"
	"gofinances/internal/csvimport"
	"gofinances/internal/ledger"
)

// ErrSourceNotRemoved reports an import that committed but whose source could
// not be removed afterwards.
var ErrSourceNotRemoved = errors.New("import source not removed")

// BulkImporter loads a CSV source into the ledger in one store transaction.
//
// Imports do not check the balance: historical data may legitimately drive
// the total below zero, unlike TransactionCreator.
type BulkImporter struct {
	store ledger.Store
}

func NewBulkImporter(store ledger.Store) *BulkImporter {
	return &BulkImporter{store: store}
}

// Execute parses the whole source before touching the store. A malformed row
// aborts with *core.ParseError and nothing is written. The source is removed
// only after the write has committed; if that removal fails the committed
// transactions are returned together with the error.
func (s *BulkImporter) Execute(ctx context.Context, src csvimport.Source) ([]core.TransactionView, error) {
	rows, err := readRows(ctx, src)
	if err != nil {
		return nil, err
	}

	var views []core.TransactionView
	err = s.store.InTx(ctx, func(ctx context.Context, tx ledger.Store) error {
		categories, err := NewCategoryResolver(tx).ResolveBatch(ctx, csvimport.Categories(rows))
		if err != nil {
			return err
		}

		transactions := make([]core.Transaction, len(rows))
		views = make([]core.TransactionView, len(rows))
		for i, row := range rows {
			category := categories[row.Category]
			transactions[i] = core.NewTransaction(row.Title, row.Value, row.Type, category)
			views[i] = core.TransactionView{Transaction: transactions[i], Category: category}
		}

		return tx.SaveTransactions(ctx, transactions...)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Transactions imported",
		"source", src.Name(),
		"count", len(views))

	if err := src.Remove(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to remove import source", "source", src.Name(), "error", err)
		return views, fmt.Errorf("%w: %s: %w", ErrSourceNotRemoved, src.Name(), err)
	}

	return views, nil
}

func readRows(ctx context.Context, src csvimport.Source) ([]csvimport.Row, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open import source %s: %w", src.Name(), err)
	}
	defer rc.Close()

	rows, err := csvimport.Parse(rc)
	if err != nil {
		slog.WarnContext(ctx, "Import source rejected", "source", src.Name(), "error", err)
		return nil, err
	}
	return rows, nil
}
