package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"gofinances/internal/core"
	"gofinances/internal/csvimport"
	"gofinances/internal/log"
	"gofinances/internal/services"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{}

	if s.options.Ready != nil {
		if err := s.options.Ready(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "ok"
	}

	if s.options.UploadDir != "" {
		if info, err := os.Stat(s.options.UploadDir); err != nil || !info.IsDir() {
			checks["upload_dir"] = "missing"
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["upload_dir"] = "ok"
		}
	}

	if s.ledgerCache != nil {
		checks["cache"] = map[string]any{"entries": s.ledgerCache.Size()}
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.importLimiter.ActiveClients()}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	req := s.tracer.GetMetrics()
	rl := s.importLimiter.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "http_requests_total %d\n", req.TotalRequests)
	fmt.Fprintf(w, "http_requests_errors_total %d\n", req.TotalErrors)
	fmt.Fprintf(w, "http_response_time_avg_us %d\n", req.AverageResponseTime)
	fmt.Fprintf(w, "import_rate_limit_hits_total %d\n", rl.TotalHits)
	fmt.Fprintf(w, "import_rate_limit_clients %d\n", rl.ClientCount)
	fmt.Fprintf(w, "uptime_seconds %d\n", int64(time.Since(s.started).Seconds()))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	if l, ok := s.cachedLedger(); ok {
		writeJSON(w, http.StatusOK, newLedgerResponse(l))
		return
	}

	gen := s.ledgerGen.Load()
	l, err := s.ledger.ListTransactions(r.Context())
	if err != nil {
		s.fail(w, r, err, log.OpList, nil)
		return
	}
	s.storeLedger(gen, l)

	writeJSON(w, http.StatusOK, newLedgerResponse(l))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	in, err := parseCreateTransaction(w, r)
	if err != nil {
		s.fail(w, r, err, log.OpValidate, nil)
		return
	}

	view, err := s.ledger.CreateTransaction(r.Context(), in)
	if err != nil {
		s.fail(w, r, err, log.OpCreate, log.NewFields().WithTransaction(in.Title, in.Type.String(), in.Value.Cents, in.Category))
		return
	}
	s.invalidateLedger()
	s.logger.LogTransactionCreated(r.Context(), view.Title, view.Type.String(), view.Value.Cents, view.Category.Title)

	writeJSON(w, http.StatusCreated, newTransactionResponse(view))
}

func (s *Server) handleImportTransactions(w http.ResponseWriter, r *http.Request) {
	id, src, err := saveUpload(w, r, s.options.UploadDir, s.options.MaxUploadBytes)
	if err != nil {
		s.fail(w, r, err, log.OpImport, nil)
		return
	}

	res, err := s.ledger.ImportTransactions(r.Context(), id, src)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrSourceNotRemoved):
		// The rows are committed; only the cleanup failed.
		s.logger.LogError(r.Context(), "Import committed but upload was kept", err, log.ErrorTypeInternal, log.OpImport,
			log.NewFields().WithFile(src.Filename))
	case retryableImport(err):
		// The source survives a failed write; keep it for a later import.
		s.fail(w, r, err, log.OpImport, log.NewFields().WithFile(src.Filename))
		return
	default:
		discardUpload(r.Context(), src)
		s.fail(w, r, err, log.OpImport, log.NewFields().WithFile(src.Filename))
		return
	}

	s.logger.LogImport(r.Context(), id, src.Filename, len(res.Transactions), res.Queued)

	if res.Queued {
		writeJSON(w, http.StatusAccepted, queuedResponse{Status: "queued", ID: res.RequestID})
		return
	}
	s.invalidateLedger()
	writeJSON(w, http.StatusCreated, newTransactionResponses(res.Transactions))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.LogError(r.Context(), "Import rate limit exceeded", errors.New("rate limit exceeded"), log.ErrorTypeRateLimit, log.OpImport,
		log.NewFields().WithClientIP(extractClientIP(r)))
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

// fail writes the mapped error response and logs the cause.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, op string, fields log.LogFields) {
	status, message := statusFor(err)

	errorType := log.ErrorTypeInternal
	switch {
	case status == http.StatusBadRequest || status == http.StatusRequestEntityTooLarge:
		errorType = log.ErrorTypeValidation
	case status == http.StatusUnprocessableEntity:
		errorType = log.ErrorTypeParse
	case core.IsPersistence(err):
		errorType = log.ErrorTypeDatabase
	}
	s.logger.LogError(r.Context(), "Request failed", err, errorType, op, fields)

	writeError(w, status, message)
}

// retryableImport reports whether a failed import left an upload that can
// be imported again unchanged: the store failed, not the file.
func retryableImport(err error) bool {
	return core.IsPersistence(err) && !errors.Is(err, core.ErrBalanceOverflow)
}

// discardUpload drops an upload whose import can never succeed. Queued
// uploads belong to the worker and are left alone.
func discardUpload(ctx context.Context, src csvimport.FileSource) {
	if err := src.Remove(ctx); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.FromContext(ctx).WarnContext(ctx, "Failed to discard upload", log.FieldFile, src.Filename, log.FieldError, err)
	}
}
