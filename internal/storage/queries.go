package storage

import (
	"context"
	"database/sql"
	"strings"
)

// maxRowsPerStatement keeps multi-row statements well below SQLite's bound
// variable limit.
const maxRowsPerStatement = 200

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Category struct {
	ID    string
	Title string
}

type Transaction struct {
	ID         string
	Title      string
	ValueCents int64
	Type       string
	CategoryID string
}

const getCategoryByTitle = `SELECT id, title FROM categories WHERE title = ?`

func (q *Queries) GetCategoryByTitle(ctx context.Context, title string) (Category, error) {
	row := q.db.QueryRowContext(ctx, getCategoryByTitle, title)
	var c Category
	err := row.Scan(&c.ID, &c.Title)
	return c, err
}

func (q *Queries) ListCategoriesByTitles(ctx context.Context, titles []string) ([]Category, error) {
	return q.listCategoriesIn(ctx, "title", titles)
}

func (q *Queries) ListCategoriesByIDs(ctx context.Context, ids []string) ([]Category, error) {
	return q.listCategoriesIn(ctx, "id", ids)
}

func (q *Queries) listCategoriesIn(ctx context.Context, column string, values []string) ([]Category, error) {
	var items []Category
	for start := 0; start < len(values); start += maxRowsPerStatement {
		end := min(start+maxRowsPerStatement, len(values))
		chunk := values[start:end]

		query := "SELECT id, title FROM categories WHERE " + column + " IN (" + placeholders(len(chunk)) + ") ORDER BY rowid"
		rows, err := q.db.QueryContext(ctx, query, stringArgs(chunk)...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var c Category
			if err := rows.Scan(&c.ID, &c.Title); err != nil {
				rows.Close()
				return nil, err
			}
			items = append(items, c)
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (q *Queries) CreateCategories(ctx context.Context, categories []Category) error {
	for start := 0; start < len(categories); start += maxRowsPerStatement {
		end := min(start+maxRowsPerStatement, len(categories))
		chunk := categories[start:end]

		args := make([]interface{}, 0, len(chunk)*2)
		for _, c := range chunk {
			args = append(args, c.ID, c.Title)
		}
		query := "INSERT INTO categories (id, title) VALUES " + rowPlaceholders(len(chunk), 2)
		if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queries) CreateTransactions(ctx context.Context, transactions []Transaction) error {
	for start := 0; start < len(transactions); start += maxRowsPerStatement {
		end := min(start+maxRowsPerStatement, len(transactions))
		chunk := transactions[start:end]

		args := make([]interface{}, 0, len(chunk)*5)
		for _, t := range chunk {
			args = append(args, t.ID, t.Title, t.ValueCents, t.Type, t.CategoryID)
		}
		query := "INSERT INTO transactions (id, title, value_cents, type, category_id) VALUES " + rowPlaceholders(len(chunk), 5)
		if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

const sumTransactions = `
SELECT
    COALESCE(SUM(CASE WHEN type = 'income' THEN value_cents END), 0),
    COALESCE(SUM(CASE WHEN type = 'outcome' THEN value_cents END), 0)
FROM transactions`

func (q *Queries) SumTransactions(ctx context.Context) (income int64, outcome int64, err error) {
	row := q.db.QueryRowContext(ctx, sumTransactions)
	err = row.Scan(&income, &outcome)
	return income, outcome, err
}

const listTransactions = `SELECT id, title, value_cents, type, category_id FROM transactions ORDER BY rowid`

func (q *Queries) ListTransactions(ctx context.Context) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.Title, &t.ValueCents, &t.Type, &t.CategoryID); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// placeholders returns n comma separated question marks.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// rowPlaceholders returns n parenthesized groups of width question marks.
func rowPlaceholders(n, width int) string {
	group := "(" + placeholders(width) + ")"
	return strings.TrimSuffix(strings.Repeat(group+", ", n), ", ")
}

func stringArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
