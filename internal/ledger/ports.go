// Package ledger defines the persistence contract shared by the services and
// the store adapters.
package ledger

import (
	"context"

	"gofinances/internal/core"
)

// Ports for outbound adapters.
type (
	CategoryFinder interface {
		// FindCategoryByTitle looks a category up by exact title.
		FindCategoryByTitle(ctx context.Context, title string) (core.Category, bool, error)
		// FindCategoriesByTitles returns every category whose title is in titles.
		FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error)
		FindCategoriesByIDs(ctx context.Context, ids []string) ([]core.Category, error)
	}

	CategorySaver interface {
		// SaveCategories persists all categories in one write. A title clash
		// fails with an error matching core.ErrDuplicateCategory.
		SaveCategories(ctx context.Context, categories ...core.Category) error
	}

	TransactionReader interface {
		// SumTransactions returns the income and outcome totals over all transactions.
		SumTransactions(ctx context.Context) (income, outcome core.Money, err error)
		// ListTransactions returns transactions in insertion order.
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
	}

	TransactionSaver interface {
		SaveTransactions(ctx context.Context, transactions ...core.Transaction) error
	}

	// Reader is the read side of a Repository.
	Reader interface {
		CategoryFinder
		TransactionReader
	}

	Repository interface {
		Reader
		CategorySaver
		TransactionSaver
	}

	// Store is a Repository that can scope several operations atomically.
	Store interface {
		Repository

		// InTx runs fn against a transactional Store. Writes made through tx
		// become visible only if fn returns nil.
		InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
		// ReadTx runs fn against one consistent snapshot. It does not wait
		// for or block writers where the store allows it.
		ReadTx(ctx context.Context, fn func(ctx context.Context, tx Reader) error) error
	}
)
