package ledger

import (
	"context"

	"github.com/netspeed/speedlog/internal/domain"
)

// Store remembers which log files were already ingested, keyed by content digest
// Implementations: BoltDB
type Store interface {
	// Get retrieves the entry for a digest
	// Returns nil if the digest was never ingested
	Get(ctx context.Context, digest string) (*domain.UploadEntry, error)

	// Put stores the entry under its digest
	Put(ctx context.Context, entry *domain.UploadEntry) error

	// Delete forgets a digest
	Delete(ctx context.Context, digest string) error

	// List returns all stored entries
	List(ctx context.Context) ([]*domain.UploadEntry, error)

	// Close closes the store
	Close() error
}
