package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gofinances/internal/core"
	"gofinances/internal/ledger"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository is the ledger.Store backed by a SQLite file. Transactions
// start with BEGIN IMMEDIATE, so a balance check and the insert that depends
// on it cannot interleave with another writer. ReadTx uses a separate
// query-only pool with deferred transactions, which in WAL mode read a
// snapshot without taking the write lock.
type SQLiteRepository struct {
	repository
	db     *sql.DB
	readDB *sql.DB
}

var (
	_ ledger.Store = (*SQLiteRepository)(nil)
	_ ledger.Store = (*txRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	readDB, err := sql.Open("sqlite", readDSN(dbPath))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite read pool: %w", err)
	}

	return &SQLiteRepository{
		repository: repository{queries: New(db)},
		db:         db,
		readDB:     readDB,
	}, nil
}

func dsn(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_txlock=immediate"
}

func readDSN(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=query_only(1)" +
		"&_txlock=deferred"
}

func (r *SQLiteRepository) Close() error {
	var errs []error
	for _, db := range []*sql.DB{r.readDB, r.db} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InTx implements ledger.Store.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Store) error) (err error) {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.PersistenceError{Op: "begin transaction", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &txRepository{repository{queries: r.queries.WithTx(sqlTx)}}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &core.PersistenceError{Op: "commit transaction", Err: err}
	}
	return nil
}

// ReadTx implements ledger.Store.
func (r *SQLiteRepository) ReadTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Reader) error) error {
	sqlTx, err := r.readDB.BeginTx(ctx, nil)
	if err != nil {
		return &core.PersistenceError{Op: "begin read transaction", Err: err}
	}
	// Nothing to commit; ending the transaction releases the snapshot.
	defer sqlTx.Rollback()

	return fn(ctx, &txRepository{repository{queries: New(sqlTx)}})
}

// SaveCategories outside a transaction still applies every chunk atomically.
func (r *SQLiteRepository) SaveCategories(ctx context.Context, categories ...core.Category) error {
	return r.InTx(ctx, func(ctx context.Context, tx ledger.Store) error {
		return tx.SaveCategories(ctx, categories...)
	})
}

// SaveTransactions outside a transaction still applies every chunk atomically.
func (r *SQLiteRepository) SaveTransactions(ctx context.Context, transactions ...core.Transaction) error {
	return r.InTx(ctx, func(ctx context.Context, tx ledger.Store) error {
		return tx.SaveTransactions(ctx, transactions...)
	})
}

type txRepository struct {
	repository
}

// InTx on an open transaction joins it.
func (t *txRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Store) error) error {
	return fn(ctx, t)
}

// ReadTx on an open transaction joins it.
func (t *txRepository) ReadTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Reader) error) error {
	return fn(ctx, t)
}

// repository holds the query methods shared by the pool and by open transactions.
type repository struct {
	queries *Queries
}

func (r *repository) FindCategoryByTitle(ctx context.Context, title string) (core.Category, bool, error) {
	c, err := r.queries.GetCategoryByTitle(ctx, title)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, false, nil
	}
	if err != nil {
		return core.Category{}, false, &core.PersistenceError{Op: "find category by title", Err: err}
	}
	return core.Category{ID: c.ID, Title: c.Title}, true, nil
}

func (r *repository) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	rows, err := r.queries.ListCategoriesByTitles(ctx, titles)
	if err != nil {
		return nil, &core.PersistenceError{Op: "find categories by titles", Err: err}
	}
	return toCoreCategories(rows), nil
}

func (r *repository) FindCategoriesByIDs(ctx context.Context, ids []string) ([]core.Category, error) {
	rows, err := r.queries.ListCategoriesByIDs(ctx, ids)
	if err != nil {
		return nil, &core.PersistenceError{Op: "find categories by ids", Err: err}
	}
	return toCoreCategories(rows), nil
}

func (r *repository) SaveCategories(ctx context.Context, categories ...core.Category) error {
	if len(categories) == 0 {
		return nil
	}
	rows := make([]Category, len(categories))
	for i, c := range categories {
		rows[i] = Category{ID: c.ID, Title: c.Title}
	}
	if err := r.queries.CreateCategories(ctx, rows); err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("%w: %w", core.ErrDuplicateCategory, err)
		}
		return &core.PersistenceError{Op: "save categories", Err: err}
	}

	slog.InfoContext(ctx, "Categories saved to SQLite", "count", len(categories))
	return nil
}

func (r *repository) SaveTransactions(ctx context.Context, transactions ...core.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}
	rows := make([]Transaction, len(transactions))
	for i, t := range transactions {
		if err := t.Validate(); err != nil {
			return &core.PersistenceError{Op: "save transactions", Err: err}
		}
		rows[i] = Transaction{
			ID:         t.ID,
			Title:      t.Title,
			ValueCents: t.Value.Cents,
			Type:       t.Type.String(),
			CategoryID: t.CategoryID,
		}
	}
	// SUM() raises on int64 overflow, which would make every later balance
	// read fail; refuse the batch instead. Callers hold a write transaction.
	income, outcome, err := r.queries.SumTransactions(ctx)
	if err != nil {
		return &core.PersistenceError{Op: "sum transactions", Err: err}
	}
	if _, _, err := core.AddTotals(core.Money{Cents: income}, core.Money{Cents: outcome}, transactions...); err != nil {
		return &core.PersistenceError{Op: "save transactions", Err: err}
	}

	if err := r.queries.CreateTransactions(ctx, rows); err != nil {
		return &core.PersistenceError{Op: "save transactions", Err: err}
	}

	slog.InfoContext(ctx, "Transactions saved to SQLite", "count", len(transactions))
	return nil
}

func (r *repository) SumTransactions(ctx context.Context) (core.Money, core.Money, error) {
	income, outcome, err := r.queries.SumTransactions(ctx)
	if err != nil {
		return core.Money{}, core.Money{}, &core.PersistenceError{Op: "sum transactions", Err: err}
	}
	return core.Money{Cents: income}, core.Money{Cents: outcome}, nil
}

func (r *repository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return nil, &core.PersistenceError{Op: "list transactions", Err: err}
	}
	out := make([]core.Transaction, len(rows))
	for i, t := range rows {
		out[i] = core.Transaction{
			ID:         t.ID,
			Title:      t.Title,
			Value:      core.Money{Cents: t.ValueCents},
			Type:       core.TransactionType(t.Type),
			CategoryID: t.CategoryID,
		}
	}
	return out, nil
}

func toCoreCategories(rows []Category) []core.Category {
	out := make([]core.Category, len(rows))
	for i, c := range rows {
		out[i] = core.Category{ID: c.ID, Title: c.Title}
	}
	return out
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
