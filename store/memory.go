package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/ReneKroon/ttlcache/v2"
)

// MemoryStore is an in-process KVStore backed by ttlcache.
// Its contents are lost when the process exits.
type MemoryStore struct {
	cache *ttlcache.Cache
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	cache := ttlcache.NewCache()
	cache.SkipTTLExtensionOnHit(true)

	return &MemoryStore{
		cache: cache,
	}
}

// Get returns the value stored for key in namespace or ttlcache.ErrNotFound
func (ms *MemoryStore) Get(namespace, key []byte) ([]byte, error) {
	v, err := ms.cache.Get(ms.namespaceKey(namespace, key))
	if err != nil {
		return nil, err
	}

	value, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected value type %T", v)
	}

	return value, nil
}

// Set stores a value that never expires
func (ms *MemoryStore) Set(namespace, key, value []byte) error {
	return ms.cache.Set(ms.namespaceKey(namespace, key), ms.copy(value))
}

// SetEx stores a value that expires after ttl
func (ms *MemoryStore) SetEx(namespace, key, value []byte, ttl time.Duration) error {
	return ms.cache.SetWithTTL(ms.namespaceKey(namespace, key), ms.copy(value), ttl)
}

// Count returns the number of entries that match namespace and prefix
func (ms *MemoryStore) Count(namespace, prefix []byte) (int, error) {
	p := ms.namespaceKey(namespace, prefix)
	c := 0
	for _, k := range ms.cache.GetKeys() {
		if strings.HasPrefix(k, p) {
			c++
		}
	}

	return c, nil
}

// Clear removes all entries of a namespace
func (ms *MemoryStore) Clear(namespace []byte) error {
	p := ms.namespaceKey(namespace, []byte{})
	for _, k := range ms.cache.GetKeys() {
		if !strings.HasPrefix(k, p) {
			continue
		}
		// the entry might have expired in the meantime
		if err := ms.cache.Remove(k); err != nil && err != ttlcache.ErrNotFound {
			return err
		}
	}

	return nil
}

// ErrNotFound is the error ttlcache returns for missing keys
func (ms *MemoryStore) ErrNotFound() error {
	return ttlcache.ErrNotFound
}

// Close stops the expiration goroutine of the cache
func (ms *MemoryStore) Close() error {
	return ms.cache.Close()
}

func (ms *MemoryStore) copy(value []byte) []byte {
	c := make([]byte, len(value))
	copy(c, value)
	return c
}

func (ms *MemoryStore) namespaceKey(namespace, key []byte) string {
	return fmt.Sprintf("%s/%s", namespace, key)
}
