/*
	friendlybots - verified search engine crawler admission by ScraperWall
	Copyright (C) 2021 ScraperWall, Tobias von Dewitz <tobias@scraperwall.com>

	This program is free software: you can redistribute it and/or modify it
	under the terms of the GNU Affero General Public License as published by
	the Free Software Foundation, either version 3 of the License, or (at your
	option) any later version.

	This program is distributed in the hope that it will be useful, but WITHOUT
	ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
	FITNESS FOR A PARTICULAR PURPOSE. See the GNU Affero General Public License
	for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program. If not, see <https://www.gnu.org/licenses/>.
*/

package friendlybots

import (
	"fmt"
	"time"

	"github.com/scraperwall/friendlybots/store"
)

const cacheNamespace = "friendly_bots"

// Cache stores verification results. A missing entry must be distinguishable from a
// stored false
type Cache interface {
	Get(key string) (verified bool, found bool, err error)
	Set(key string, verified bool) error
	Clear() error
}

// KVCache is a Cache on top of a key/value store
type KVCache struct {
	store store.KVStore
	ttl   time.Duration
}

// NewKVCache creates a new KVCache. Entries expire after ttl; a ttl <= 0 keeps them
// until the cache is cleared
func NewKVCache(kv store.KVStore, ttl time.Duration) *KVCache {
	return &KVCache{
		store: kv,
		ttl:   ttl,
	}
}

// Get implements Cache
func (c *KVCache) Get(key string) (bool, bool, error) {
	value, err := c.store.Get([]byte(cacheNamespace), []byte(key))
	if err == c.store.ErrNotFound() {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}

	if len(value) != 1 {
		return false, false, fmt.Errorf("invalid cache entry for %s: %v", key, value)
	}

	return value[0] == 1, true, nil
}

// Set implements Cache
func (c *KVCache) Set(key string, verified bool) error {
	value := []byte{0}
	if verified {
		value[0] = 1
	}

	if c.ttl > 0 {
		return c.store.SetEx([]byte(cacheNamespace), []byte(key), value, c.ttl)
	}

	return c.store.Set([]byte(cacheNamespace), []byte(key), value)
}

// Clear implements Cache
func (c *KVCache) Clear() error {
	return c.store.Clear([]byte(cacheNamespace))
}

// Len returns the number of cached verification results
func (c *KVCache) Len() (int, error) {
	return c.store.Count([]byte(cacheNamespace), []byte{})
}
