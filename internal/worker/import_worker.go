package worker

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gofinances/internal/amqp"
	"gofinances/internal/core"
	"gofinances/internal/csvimport"
	"gofinances/internal/services"
)

// ImportWorker runs queued CSV imports from its upload directory.
type ImportWorker struct {
	importer  *services.BulkImporter
	uploadDir string
}

func NewImportWorker(importer *services.BulkImporter, uploadDir string) *ImportWorker {
	return &ImportWorker{importer: importer, uploadDir: uploadDir}
}

// HandleImportRequest imports the file named by msg from the worker's upload
// directory. Files that cannot be parsed, no longer exist or are named with a
// path are reported as permanent failures so the message is dropped; store
// failures are retried.
func (w *ImportWorker) HandleImportRequest(ctx context.Context, msg *amqp.ImportRequestMessage) error {
	slog.InfoContext(ctx, "Processing import request",
		"id", msg.ID,
		"file", msg.Filename)

	src, err := msg.SourceIn(w.uploadDir)
	if err != nil {
		return amqp.Permanent(err)
	}

	views, err := w.importer.Execute(ctx, src)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrSourceNotRemoved):
		// Committed; a retry would import the rows twice.
		slog.ErrorContext(ctx, "Import committed but source was kept",
			"id", msg.ID,
			"file", msg.Filename,
			"error", err)
	case core.IsParse(err), errors.Is(err, fs.ErrNotExist), errors.Is(err, core.ErrBalanceOverflow):
		return amqp.Permanent(err)
	default:
		return err
	}

	slog.InfoContext(ctx, "Import request completed",
		"id", msg.ID,
		"file", msg.Filename,
		"count", len(views))

	return nil
}

// StartupImportCheck imports CSV files left in the upload directory by
// requests that were lost or never delivered. A file whose message is still
// queued is imported here and its message then finds no file and is dropped.
func (w *ImportWorker) StartupImportCheck(ctx context.Context) error {
	dir := w.uploadDir
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var imported, failed int
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		src := csvimport.NewFileSource(dir, e.Name())
		if _, err := w.importer.Execute(ctx, src); err != nil && !errors.Is(err, services.ErrSourceNotRemoved) {
			slog.WarnContext(ctx, "Pending import failed", "file", e.Name(), "error", err)
			failed++
			continue
		}
		imported++
	}

	if imported+failed == 0 {
		slog.InfoContext(ctx, "No pending imports found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup import check completed",
		"imported", imported,
		"failed", failed)
	return nil
}
