package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"gofinances/internal/cache"
	"gofinances/internal/core"
	"gofinances/internal/csvimport"
	"gofinances/internal/log"
	"gofinances/internal/middleware/ratelimit"
	"gofinances/internal/middleware/trace"
	"gofinances/internal/services"
)

const ledgerCacheKey = "ledger"

// LedgerService is the part of services.LedgerService the handlers call.
type LedgerService interface {
	CreateTransaction(ctx context.Context, in services.CreateTransactionInput) (core.TransactionView, error)
	ListTransactions(ctx context.Context) (services.Ledger, error)
	ImportTransactions(ctx context.Context, requestID string, src csvimport.FileSource) (services.ImportResult, error)
}

type Options struct {
	UploadDir           string
	MaxUploadBytes      int64
	ImportRatePerMinute int
	// CacheTTL of zero disables the ledger cache.
	CacheTTL  time.Duration
	CacheSize int
	// Ready backs /readyz; nil always reports ready.
	Ready  func(ctx context.Context) error
	Logger *log.Logger
}

type Server struct {
	http.Server
	ledger  LedgerService
	options Options
	logger  *log.StructuredLogger

	ledgerCache *cache.LRUCache[services.Ledger]
	// ledgerGen changes on every write so a listing computed before the
	// write is not cached after it.
	ledgerGen    atomic.Uint64
	cacheManager *cache.Manager

	importLimiter *ratelimit.Limiter
	tracer        *trace.Middleware
	started       time.Time
	shutdownOnce  sync.Once
}

func NewServer(addr string, ledger LedgerService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 16
	}

	s := &Server{
		ledger:        ledger,
		options:       opts,
		logger:        log.NewStructuredLogger(opts.Logger.WithComponent(log.ComponentHTTP)),
		cacheManager:  cache.NewManager(),
		importLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.ImportRatePerMinute}),
		tracer:        trace.NewMiddleware(extractClientIP),
		started:       time.Now(),
	}

	if opts.CacheTTL > 0 {
		s.ledgerCache = cache.NewLRUCache[services.Ledger](opts.CacheSize, opts.CacheTTL)
		s.cacheManager.Register(s.ledgerCache)
		s.cacheManager.StartCleanup(opts.CacheTTL)
	}

	limitImports := s.importLimiter.Middleware(extractClientIP, s.handleRateLimited)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.Handle("POST /transactions/import", limitImports(http.HandlerFunc(s.handleImportTransactions)))

	var handler http.Handler = mux
	handler = log.ComponentMiddleware(log.ComponentHTTP)(handler)
	handler = log.Middleware(opts.Logger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops accepting requests and releases the background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.shutdownOnce.Do(func() {
		s.importLimiter.Stop()
		s.cacheManager.Stop()
	})
	return err
}

func (s *Server) cachedLedger() (services.Ledger, bool) {
	if s.ledgerCache == nil {
		return services.Ledger{}, false
	}
	return s.ledgerCache.Get(ledgerCacheKey)
}

func (s *Server) storeLedger(gen uint64, l services.Ledger) {
	if s.ledgerCache == nil || s.ledgerGen.Load() != gen {
		return
	}
	s.ledgerCache.Set(ledgerCacheKey, l)
}

func (s *Server) invalidateLedger() {
	s.ledgerGen.Add(1)
	if s.ledgerCache != nil {
		s.ledgerCache.Purge()
	}
}
