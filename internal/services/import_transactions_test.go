package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gofinances/internal/core"
	"gofinances/internal/csvimport"
	"gofinances/internal/ledger/memory"
)

const sampleCSV = `title, type, value, category
Loan, income, 1500, Others
Website Hosting, outcome, 50, Others
Ice cream, outcome, 3, Food
Salary, income, 4000, Job
`

func TestImportCreatesTransactionsAndCategories(t *testing.T) {
	ctx := context.Background()
	inner := memory.New("Food")
	store := newSpyStore(inner)
	src := &stringSource{name: "sample.csv", data: sampleCSV}

	views, err := NewBulkImporter(store).Execute(ctx, src)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(views) != 4 {
		t.Fatalf("expected 4 transactions, got %d", len(views))
	}

	wantTitles := []string{"Loan", "Website Hosting", "Ice cream", "Salary"}
	for i, v := range views {
		if v.Title != wantTitles[i] {
			t.Fatalf("row %d title = %q, want %q", i, v.Title, wantTitles[i])
		}
		if v.CategoryID != v.Category.ID {
			t.Fatalf("row %d category id mismatch", i)
		}
	}
	if views[0].Category.ID != views[1].Category.ID {
		t.Fatal("rows sharing a category title must share one category")
	}

	cats, txs := inner.Counts()
	if cats != 3 || txs != 4 {
		t.Fatalf("expected 3 categories and 4 transactions, got %d and %d", cats, txs)
	}
	if store.calls.saveCategories != 1 || store.calls.saveTransactions != 1 {
		t.Fatalf("expected one write per table, got %d and %d", store.calls.saveCategories, store.calls.saveTransactions)
	}
	if !src.isRemoved() {
		t.Fatal("source should be removed after commit")
	}

	b := mustBalance(t, inner)
	if b.Income.Cents != 550000 || b.Outcome.Cents != 5300 || b.Total.Cents != 544700 {
		t.Fatalf("unexpected balance %+v", b)
	}
}

func TestImportIgnoresBalance(t *testing.T) {
	inner := memory.New()
	src := &stringSource{name: "neg.csv", data: "title,type,value,category\nRent,outcome,900,Home\n"}

	if _, err := NewBulkImporter(inner).Execute(context.Background(), src); err != nil {
		t.Fatalf("import should not check the balance: %v", err)
	}
	if b := mustBalance(t, inner); b.Total.Cents != -90000 {
		t.Fatalf("expected negative total, got %v", b.Total)
	}
}

func TestImportParseErrorWritesNothing(t *testing.T) {
	inner := memory.New()
	src := &stringSource{name: "bad.csv", data: "title,type,value,category\nA,income,10,X\nB,gift,5,Y\n"}

	_, err := NewBulkImporter(inner).Execute(context.Background(), src)
	var pe *core.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Line != 3 {
		t.Fatalf("expected line 3, got %d", pe.Line)
	}
	if cats, txs := inner.Counts(); cats != 0 || txs != 0 {
		t.Fatalf("parse error must not write: cats=%d txs=%d", cats, txs)
	}
	if src.isRemoved() {
		t.Fatal("source must be kept on parse error")
	}
}

func TestImportWriteFailureKeepsSource(t *testing.T) {
	inner := memory.New()
	store := newSpyStore(inner)
	store.saveTransactionsErr = &core.PersistenceError{Op: "save transactions", Err: errors.New("locked")}
	src := &stringSource{name: "sample.csv", data: sampleCSV}

	_, err := NewBulkImporter(store).Execute(context.Background(), src)
	if !core.IsPersistence(err) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if cats, txs := inner.Counts(); cats != 0 || txs != 0 {
		t.Fatalf("failed import must roll back categories too: cats=%d txs=%d", cats, txs)
	}
	if src.isRemoved() {
		t.Fatal("source must be kept when the write fails")
	}
}

func TestImportHeaderOnly(t *testing.T) {
	inner := memory.New()
	src := &stringSource{name: "empty.csv", data: "title,type,value,category\n"}

	views, err := NewBulkImporter(inner).Execute(context.Background(), src)
	if err != nil || len(views) != 0 {
		t.Fatalf("Execute = %v, %v", views, err)
	}
	if !src.isRemoved() {
		t.Fatal("header-only source should still be removed")
	}
}

func TestImportRemoveFailureReturnsCommittedRows(t *testing.T) {
	inner := memory.New()
	removeErr := errors.New("permission denied")
	src := &stringSource{name: "sample.csv", data: sampleCSV, removeErr: removeErr}

	views, err := NewBulkImporter(inner).Execute(context.Background(), src)
	if !errors.Is(err, removeErr) || !errors.Is(err, ErrSourceNotRemoved) {
		t.Fatalf("expected remove error, got %v", err)
	}
	if len(views) != 4 {
		t.Fatalf("committed rows should be returned, got %d", len(views))
	}
	if _, txs := inner.Counts(); txs != 4 {
		t.Fatalf("import should stay committed, got %d rows", txs)
	}
}

func TestImportFromFileSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "upload.csv"), []byte(sampleCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	inner := memory.New()

	views, err := NewBulkImporter(inner).Execute(context.Background(), csvimport.NewFileSource(dir, "upload.csv"))
	if err != nil || len(views) != 4 {
		t.Fatalf("Execute = %d views, %v", len(views), err)
	}
	if _, err := os.Stat(filepath.Join(dir, "upload.csv")); !os.IsNotExist(err) {
		t.Fatalf("uploaded file should be gone, stat err = %v", err)
	}
}

func TestImportMissingFile(t *testing.T) {
	_, err := NewBulkImporter(memory.New()).Execute(context.Background(), csvimport.NewFileSource(t.TempDir(), "nope.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestImportRejectsAmountsAboveCeiling(t *testing.T) {
	store := memory.New()
	src := &stringSource{name: "huge.csv", data: "title,type,value,category\n" +
		"A,income,90000000000000000,X\n" +
		"B,income,90000000000000000,X\n"}

	_, err := NewBulkImporter(store).Execute(context.Background(), src)
	var pe *core.ParseError
	if !errors.As(err, &pe) || pe.Line != 2 || pe.Field != "value" {
		t.Fatalf("expected value parse error on line 2, got %v", err)
	}
	if cats, txs := store.Counts(); cats != 0 || txs != 0 {
		t.Fatalf("rejected import wrote cats=%d txs=%d", cats, txs)
	}
	if src.isRemoved() {
		t.Fatal("rejected import must keep its source")
	}
}
