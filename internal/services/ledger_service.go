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

// ImportPublisher hands an uploaded file over to the import worker.
type ImportPublisher interface {
	PublishImportRequest(ctx context.Context, id string, src csvimport.FileSource) error
}

// ImportResult is either the imported transactions or, when imports are
// queued, the request ID the worker will process.
type ImportResult struct {
	Transactions []core.TransactionView
	Queued       bool
	RequestID    string
}

// LedgerService orchestrates ledger operations across the store and AMQP.
type LedgerService struct {
	creator   *TransactionCreator
	importer  *BulkImporter
	lister    *TransactionLister
	publisher ImportPublisher
	closers   []func() error
}

// NewLedgerService wires the services to store. A nil publisher makes imports
// synchronous.
func NewLedgerService(store ledger.Store, publisher ImportPublisher, closers ...func() error) *LedgerService {
	return &LedgerService{
		creator:   NewTransactionCreator(store),
		importer:  NewBulkImporter(store),
		lister:    NewTransactionLister(store),
		publisher: publisher,
		closers:   closers,
	}
}

func (s *LedgerService) CreateTransaction(ctx context.Context, in CreateTransactionInput) (core.TransactionView, error) {
	return s.creator.Execute(ctx, in)
}

func (s *LedgerService) ListTransactions(ctx context.Context) (Ledger, error) {
	return s.lister.Execute(ctx)
}

// ImportTransactions imports src now, or queues it when a publisher is set.
// requestID identifies the queued request.
func (s *LedgerService) ImportTransactions(ctx context.Context, requestID string, src csvimport.FileSource) (ImportResult, error) {
	if s.publisher == nil {
		views, err := s.importer.Execute(ctx, src)
		return ImportResult{Transactions: views}, err
	}

	if err := s.publisher.PublishImportRequest(ctx, requestID, src); err != nil {
		return ImportResult{}, fmt.Errorf("publish import request: %w", err)
	}
	slog.InfoContext(ctx, "Import queued", "request_id", requestID, "source", src.Name())
	return ImportResult{Queued: true, RequestID: requestID}, nil
}

// Close releases the store and broker connections handed to NewLedgerService.
func (s *LedgerService) Close() error {
	var errs []error
	for _, c := range s.closers {
		if c == nil {
			continue
		}
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close ledger service: %w", err)
	}
	return nil
}
