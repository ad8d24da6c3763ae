package backend

import (
	"context"

	"gofinances/internal/amqp"
	"gofinances/internal/ledger"
	"gofinances/internal/services"
)

type CleanupFunc func() error

// BackendResult is a ready to use ledger: its store, the service on top of
// it and, when AMQP is configured, the broker client.
type BackendResult struct {
	Store   ledger.Store
	Service *services.LedgerService
	Broker  *amqp.Client
	// Ready reports whether the store can serve requests.
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory specific; categories listed in SeedDir/seed_categories.txt
	SeedDir string

	// Optional AMQP broker for queued imports
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// RequireBroker fails creation when the broker is unreachable instead of
	// falling back to synchronous imports.
	RequireBroker bool
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
