package backend

import (
	"context"
	"time"

	"ledger/internal/cache"
	"ledger/internal/notify"
	"ledger/internal/services"
	"ledger/internal/storage"
)

// Backend bundles the ledger services wired to one store and one sender.
type Backend struct {
	Store         *storage.Store
	Sender        notify.Sender
	Caches        *cache.Manager
	Ledger        *services.LedgerService
	Transfers     *services.TransferService
	Interest      *services.InterestService
	Notifications *services.NotificationService
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend *Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type StoreType

	SQLiteDBPath string
	DatabaseURL  string

	// Empty AMQPURL selects the in-process outbox.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	ReminderWindow    time.Duration
	ItemTimeout       time.Duration
	CategoryCacheSize int
	CategoryCacheTTL  time.Duration
}

// StoreType names the database engine behind the ledger.
type StoreType string

const (
	SQLiteStore   StoreType = "sqlite"
	PostgresStore StoreType = "postgres"
)

// String implements fmt.Stringer
func (st StoreType) String() string {
	return string(st)
}

// IsValid returns true if the store type is valid
func (st StoreType) IsValid() bool {
	switch st {
	case SQLiteStore, PostgresStore:
		return true
	default:
		return false
	}
}
