package core

import (
	"strings"

	"github.com/google/uuid"
)

const (
	Income  TransactionType = "income"
	Outcome TransactionType = "outcome"
)

type (
	TransactionType string

	Money struct {
		Cents int64
	}

	// Category groups transactions. Title is unique across the store.
	Category struct {
		ID    string
		Title string
	}

	Transaction struct {
		ID         string
		Title      string
		Value      Money
		Type       TransactionType
		CategoryID string
	}

	// TransactionView is a transaction joined with its category.
	TransactionView struct {
		Transaction
		Category Category
	}

	// Balance aggregates every stored transaction. Total is the signed net.
	Balance struct {
		Income  Money
		Outcome Money
		Total   Money
	}
)

// ParseTransactionType accepts "income" or "outcome" (surrounding spaces ignored).
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.TrimSpace(s))
	if !t.IsValid() {
		return "", ErrInvalidType
	}
	return t, nil
}

// IsValid reports whether t is income or outcome.
func (t TransactionType) IsValid() bool {
	switch t {
	case Income, Outcome:
		return true
	default:
		return false
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// NewCategory returns an unsaved category with a fresh ID.
func NewCategory(title string) Category {
	return Category{
		ID:    uuid.NewString(),
		Title: NormalizeTitle(title),
	}
}

// NewTransaction returns an unsaved transaction referencing category.
func NewTransaction(title string, value Money, typ TransactionType, category Category) Transaction {
	return Transaction{
		ID:         uuid.NewString(),
		Title:      strings.TrimSpace(title),
		Value:      value,
		Type:       typ,
		CategoryID: category.ID,
	}
}

// NormalizeTitle trims surrounding whitespace. Comparison stays case-sensitive.
func NormalizeTitle(title string) string {
	return strings.TrimSpace(title)
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Err: ErrEmptyTitle}
	}
	if !t.Type.IsValid() {
		return &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	if err := t.Value.Validate(); err != nil {
		return &ValidationError{Field: "value", Err: err}
	}
	return nil
}

// NewBalance derives Total from the income and outcome sums.
func NewBalance(income, outcome Money) Balance {
	return Balance{
		Income:  income,
		Outcome: outcome,
		Total:   income.Sub(outcome),
	}
}

// AddTotals adds transactions to the income and outcome sums. It fails with
// ErrBalanceOverflow instead of wrapping around.
func AddTotals(income, outcome Money, transactions ...Transaction) (Money, Money, error) {
	var ok bool
	for _, t := range transactions {
		switch t.Type {
		case Income:
			income, ok = income.CheckedAdd(t.Value)
		case Outcome:
			outcome, ok = outcome.CheckedAdd(t.Value)
		default:
			continue
		}
		if !ok {
			return Money{}, Money{}, ErrBalanceOverflow
		}
	}
	return income, outcome, nil
}

// Covers reports whether an outcome of value keeps the total non-negative.
func (b Balance) Covers(value Money) bool {
	return value.Cents <= b.Total.Cents
}

// Apply returns the balance after adding t.
func (b Balance) Apply(t Transaction) Balance {
	switch t.Type {
	case Income:
		return NewBalance(b.Income.Add(t.Value), b.Outcome)
	case Outcome:
		return NewBalance(b.Income, b.Outcome.Add(t.Value))
	default:
		return b
	}
}
