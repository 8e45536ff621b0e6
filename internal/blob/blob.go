// Package blob stores uploaded music file contents in a bbolt database,
// keyed by opaque storage ids.
package blob

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
	"go.etcd.io/bbolt"
)

// ErrNotFound is returned when no blob exists for a storage id.
var ErrNotFound = errors.New("blob not found")

const bucketName = "blobs"

// Store is a bucket-keyed binary store backed by bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the blob database at the given path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open blob db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put reads the full content from r and stores it under id, replacing any
// existing blob. Returns the stored size and the hex BLAKE3 checksum.
func (s *Store) Put(id string, r io.Reader) (int64, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, "", fmt.Errorf("read content: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(id), data)
	})
	if err != nil {
		return 0, "", fmt.Errorf("put blob %s: %w", id, err)
	}
	return int64(len(data)), Checksum(data), nil
}

// Get returns a copy of the blob stored under id.
func (s *Store) Get(id string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction.
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes the blob stored under id. Deleting a missing blob is not
// an error.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(id))
	})
}

// Checksum returns the hex BLAKE3 digest of data. The same function is
// used at upload time and by the verification worker.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
