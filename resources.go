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
	"time"

	natsd "github.com/nats-io/nats-server/v2/server"
	nats "github.com/nats-io/nats.go"
	"github.com/scraperwall/friendlybots/config"
	"github.com/scraperwall/friendlybots/store"
)

// Resources contains everything that is needed to classify clients
type Resources struct {
	Store      store.KVStore
	Cache      *KVCache
	Signatures *Signatures
	Resolver   Resolver
	Verifier   Verifier
	Detector   *Detector
	Stats      *StatsWindows
	Vendors    *VendorWindows
	Decisions  *DecisionWindow
	NatsServer *natsd.Server
	NatsConn   *nats.Conn
}

// NewResources opens the cache backend and creates the decision engine
func NewResources(ctx context.Context, cfg *config.Config) (*Resources, error) {
	var err error

	r := &Resources{}

	r.Store, err = store.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	r.Signatures, err = NewSignatures(ctx, cfg.VendorsTOML)
	if err != nil {
		r.Store.Close()
		return nil, err
	}

	r.Cache = NewKVCache(r.Store, cfg.CacheTTL)
	r.Resolver = NewDNSResolver(cfg.DNSServer, cfg.DNSTimeout)
	r.Verifier = NewDNSVerifier(r.Resolver, r.Signatures)
	r.Stats = NewStatsWindows(ctx, cfg.WindowSize, cfg.NumWindows, r.Store)
	r.Vendors = NewVendorWindows(ctx, r.Signatures, cfg.WindowSize, cfg.NumWindows)
	r.Decisions = NewDecisionWindow(cfg.KeepDecisions, cfg.WindowSize*time.Duration(cfg.NumWindows))
	r.Detector = NewDetector(r.Signatures, r.Cache, r.Verifier, r.Stats, r.Vendors, r.Decisions)

	return r, nil
}
