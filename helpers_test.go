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
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/scraperwall/friendlybots/store"
)

const googlebotUA = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
const yandexUA = "Mozilla/5.0 (compatible; YandexBot/3.0; +http://yandex.com/bots)"

// fakeResolver answers DNS lookups from static maps
type fakeResolver struct {
	mutex    sync.Mutex
	ptr      map[string][]string
	addrs    map[string][]string
	reverses int
	forwards int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		ptr:   make(map[string][]string),
		addrs: make(map[string][]string),
	}
}

// add registers a matching PTR and A/AAAA record pair
func (f *fakeResolver) add(ip, host string) {
	f.ptr[ip] = append(f.ptr[ip], host)

	host = strings.TrimSuffix(host, ".")
	f.addrs[host] = append(f.addrs[host], ip)
}

func (f *fakeResolver) ReverseLookup(ctx context.Context, ip net.IP) ([]string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.reverses++
	names, ok := f.ptr[ip.String()]
	if !ok {
		return nil, ErrNoRecords
	}
	return names, nil
}

func (f *fakeResolver) ForwardLookup(ctx context.Context, host string) ([]net.IP, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.forwards++
	addrs, ok := f.addrs[strings.TrimSuffix(host, ".")]
	if !ok {
		return nil, ErrNoRecords
	}

	ips := make([]net.IP, len(addrs))
	for i, a := range addrs {
		ips[i] = net.ParseIP(a)
	}
	return ips, nil
}

func (f *fakeResolver) reverseLookups() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.reverses
}

// brokenCache fails every operation
type brokenCache struct{}

var errCacheDown = errors.New("cache is down")

func (brokenCache) Get(key string) (bool, bool, error)  { return false, false, errCacheDown }
func (brokenCache) Set(key string, verified bool) error { return errCacheDown }
func (brokenCache) Clear() error                        { return errCacheDown }

func newTestSignatures(t *testing.T) *Signatures {
	s, err := NewSignatures(context.Background(), "")
	if err != nil {
		t.Fatalf("failed to create signatures: %s", err)
	}
	return s
}

// newTestDetector returns a detector with the default vendors, an in-memory cache
// and DNS answered by the returned fake resolver
func newTestDetector(t *testing.T) (*Detector, *fakeResolver, *KVCache) {
	sig := newTestSignatures(t)
	resolver := newFakeResolver()
	cache := NewKVCache(store.NewMemoryStore(), 0)

	return NewDetector(sig, cache, NewDNSVerifier(resolver, sig)), resolver, cache
}
