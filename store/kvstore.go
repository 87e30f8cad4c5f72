package store

import (
	"time"
)

// KVStore defines a key/value store database interface.
// Keys live in namespaces so that several users can share one backend.
type KVStore interface {
	Get(namespace, key []byte) (value []byte, err error)
	SetEx(namespace, key, value []byte, ttl time.Duration) error
	Set(namespace, key, value []byte) error
	Count(namespace, prefix []byte) (int, error)
	Clear(namespace []byte) error
	ErrNotFound() error
	Close() error
}
