package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/netspeed/speedlog/internal/domain"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const (
	bucketName = "uploads"
	keyPrefix  = "upload:"
)

// BoltDBStore implements Store using BoltDB
type BoltDBStore struct {
	db *bbolt.DB
}

// NewBoltDBStore creates a new BoltDB ledger
func NewBoltDBStore(dbPath string) (*BoltDBStore, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb (file may be locked by another process): %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	log.Info().
		Str("db_path", dbPath).
		Msg("BoltDB upload ledger initialized")

	return &BoltDBStore{db: db}, nil
}

// Get retrieves the entry for a digest
func (s *BoltDBStore) Get(ctx context.Context, digest string) (*domain.UploadEntry, error) {
	var entry *domain.UploadEntry

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		val := b.Get([]byte(makeKey(digest)))
		if val == nil {
			return nil
		}

		entry = &domain.UploadEntry{}
		return json.Unmarshal(val, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get upload entry: %w", err)
	}

	return entry, nil
}

// Put stores the entry under its digest
func (s *BoltDBStore) Put(ctx context.Context, entry *domain.UploadEntry) error {
	if entry == nil || entry.Digest == "" {
		return fmt.Errorf("upload entry digest is required")
	}

	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode upload entry: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(makeKey(entry.Digest)), val)
	})
	if err != nil {
		return fmt.Errorf("failed to put upload entry: %w", err)
	}

	log.Debug().
		Str("digest", entry.Digest).
		Str("path", entry.Path).
		Uint64("records", entry.Records).
		Msg("Upload recorded in ledger")

	return nil
}

// Delete forgets a digest
func (s *BoltDBStore) Delete(ctx context.Context, digest string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Delete([]byte(makeKey(digest)))
	})
	if err != nil {
		return fmt.Errorf("failed to delete upload entry: %w", err)
	}

	return nil
}

// List returns all stored entries
func (s *BoltDBStore) List(ctx context.Context) ([]*domain.UploadEntry, error) {
	var entries []*domain.UploadEntry

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		return b.ForEach(func(k, v []byte) error {
			if !strings.HasPrefix(string(k), keyPrefix) {
				return nil
			}
			var entry domain.UploadEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				log.Warn().Err(err).Str("key", string(k)).Msg("Skipping unreadable ledger entry")
				return nil
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list upload entries: %w", err)
	}

	return entries, nil
}

// Close closes the BoltDB database
func (s *BoltDBStore) Close() error {
	log.Info().Msg("Closing BoltDB upload ledger")
	return s.db.Close()
}

// makeKey creates the bucket key for a digest
func makeKey(digest string) string {
	return keyPrefix + digest
}
