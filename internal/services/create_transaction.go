package services

import (
	"context"
	"log/slog"
	"strings"

	"gofinances/internal/core"
	"gofinances/internal/ledger"
)

type CreateTransactionInput struct {
	Title    string
	Value    core.Money
	Type     core.TransactionType
	Category string
}

func (in CreateTransactionInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return &core.ValidationError{Field: "title", Err: core.ErrEmptyTitle}
	}
	if !in.Type.IsValid() {
		return &core.ValidationError{Field: "type", Err: core.ErrInvalidType}
	}
	if err := in.Value.Validate(); err != nil {
		return &core.ValidationError{Field: "value", Err: err}
	}
	if core.NormalizeTitle(in.Category) == "" {
		return &core.ValidationError{Field: "category", Err: core.ErrEmptyCategory}
	}
	return nil
}

// TransactionCreator persists a single transaction. The balance check, the
// category lookup and the insert share one store transaction, so two
// concurrent outcomes cannot both spend the same balance.
type TransactionCreator struct {
	store ledger.Store
}

func NewTransactionCreator(store ledger.Store) *TransactionCreator {
	return &TransactionCreator{store: store}
}

// Execute validates in, rejects an outcome larger than the current total and
// stores the transaction under its (possibly new) category.
func (s *TransactionCreator) Execute(ctx context.Context, in CreateTransactionInput) (core.TransactionView, error) {
	if err := in.Validate(); err != nil {
		return core.TransactionView{}, err
	}

	var view core.TransactionView
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Store) error {
		balance, err := NewBalanceCalculator(tx).GetBalance(ctx)
		if err != nil {
			return err
		}

		if in.Type == core.Outcome && !balance.Covers(in.Value) {
			slog.WarnContext(ctx, "Outcome rejected, insufficient balance",
				"value_cents", in.Value.Cents,
				"total_cents", balance.Total.Cents)
			return &core.ValidationError{Field: "value", Err: core.ErrInsufficientBalance}
		}

		category, err := NewCategoryResolver(tx).ResolveOne(ctx, in.Category)
		if err != nil {
			return err
		}

		transaction := core.NewTransaction(in.Title, in.Value, in.Type, category)
		if err := tx.SaveTransactions(ctx, transaction); err != nil {
			return err
		}

		view = core.TransactionView{Transaction: transaction, Category: category}
		return nil
	})
	if err != nil {
		return core.TransactionView{}, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", view.ID,
		"type", view.Type.String(),
		"value_cents", view.Value.Cents,
		"category", view.Category.Title)

	return view, nil
}
