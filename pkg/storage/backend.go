// Package storage persists generated items in buckets of raw key/value pairs.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrBucketNotFound = errors.New("bucket not found")
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// Backend kinds accepted by Open.
const (
	KindBbolt  = "bbolt"
	KindMemory = "memory"
)

// Backend defines a bucketed key-value store.
// Values passed to and returned from a Backend are owned by the caller.
type Backend interface {
	CreateBucket(name []byte) error
	DeleteBucket(name []byte) error
	BucketExists(name []byte) (bool, error)

	Put(bucket, key, value []byte) error
	Get(bucket, key []byte) ([]byte, error)

	// ForEach visits the bucket's pairs in ascending key order.
	ForEach(bucket []byte, fn func(k, v []byte) error) error
	Count(bucket []byte) (int, error)

	Close() error
}

// Open returns a backend of the given kind. path is only used by file-backed kinds;
// its parent directory is created if needed.
func Open(kind, path string) (Backend, error) {
	switch kind {
	case "", KindBbolt:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		return NewBboltBackend(path)
	case KindMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
}

// IndexKey encodes an item index so that byte order matches numeric order.
func IndexKey(index int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(index))
	return key
}

// KeyIndex decodes a key produced by IndexKey.
func KeyIndex(key []byte) (int, error) {
	if len(key) != 8 {
		return 0, fmt.Errorf("index key must be 8 bytes, got %d", len(key))
	}
	return int(binary.BigEndian.Uint64(key)), nil
}
