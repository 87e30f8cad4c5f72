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
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/scraperwall/friendlybots/matchers"
	log "github.com/sirupsen/logrus"
)

// Decision is the outcome of a classification together with the reason for it
type Decision int

const (
	// Unknown means the user agent doesn't claim to be a known crawler
	Unknown Decision = iota
	// MissingUserAgent means the request didn't send a user agent
	MissingUserAgent
	// MalformedAddress means the user agent claims a crawler but the address can't be parsed
	MalformedAddress
	// FixedIP means the address is one of the published crawler addresses
	FixedIP
	// Verified means DNS verification succeeded
	Verified
	// CachedVerified means an earlier DNS verification succeeded
	CachedVerified
	// Rejected means DNS verification failed
	Rejected
	// CachedRejected means an earlier DNS verification failed
	CachedRejected
)

var decisionNames = map[Decision]string{
	Unknown:          "unknown",
	MissingUserAgent: "missing-useragent",
	MalformedAddress: "malformed-address",
	FixedIP:          "fixed-ip",
	Verified:         "verified",
	CachedVerified:   "cached-verified",
	Rejected:         "rejected",
	CachedRejected:   "cached-rejected",
}

func (d Decision) String() string {
	if name, ok := decisionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// IsGoodBot reports whether the decision admits the client as a friendly bot
func (d Decision) IsGoodBot() bool {
	return d == FixedIP || d == Verified || d == CachedVerified
}

// Observer gets notified about every decision the Detector makes
type Observer interface {
	Observe(remoteIP, userAgent string, d Decision, t time.Time)
}

// Detector decides whether a client is a friendly bot
type Detector struct {
	signatures *Signatures
	cache      Cache
	verifier   Verifier
	observers  []Observer
}

// NewDetector creates a new Detector
func NewDetector(signatures *Signatures, cache Cache, verifier Verifier, observers ...Observer) *Detector {
	return &Detector{
		signatures: signatures,
		cache:      cache,
		verifier:   verifier,
		observers:  observers,
	}
}

// IsGoodBot returns true if the client at remoteIP with the given user agent is a
// verified search engine crawler. An empty user agent counts as a missing one
func (d *Detector) IsGoodBot(ctx context.Context, remoteIP, userAgent string) bool {
	return d.Decide(ctx, remoteIP, userAgent).IsGoodBot()
}

// Decide classifies a client and returns the reason for the classification.
// An empty user agent counts as a missing one
func (d *Detector) Decide(ctx context.Context, remoteIP, userAgent string) Decision {
	return d.DecideAgent(ctx, remoteIP, userAgent, userAgent != "")
}

// DecideRequest classifies the client that sent r from remoteIP. A User-Agent header
// that is present but empty is a user agent that matches no crawler, so published
// crawler addresses are still admitted
func (d *Detector) DecideRequest(r *http.Request, remoteIP string) Decision {
	_, present := r.Header["User-Agent"]
	return d.DecideAgent(r.Context(), remoteIP, r.UserAgent(), present)
}

// DecideAgent is Decide with the presence of the user agent given explicitly
func (d *Detector) DecideAgent(ctx context.Context, remoteIP, userAgent string, present bool) Decision {
	dec := d.decide(ctx, remoteIP, userAgent, present)
	log.Tracef("%s [%s]: %s", remoteIP, userAgent, dec)

	now := time.Now()
	for _, o := range d.observers {
		o.Observe(remoteIP, userAgent, dec, now)
	}

	return dec
}

func (d *Detector) decide(ctx context.Context, remoteIP, userAgent string, present bool) Decision {
	// all crawlers must send a user agent
	if !present {
		return MissingUserAgent
	}

	ip := net.ParseIP(remoteIP)

	addr := remoteIP
	if ip != nil {
		addr = canonicalIP(ip)
	}

	if ok, _ := d.signatures.IsFixedIP(addr); ok {
		return FixedIP
	}

	strategy, vendor, ok := d.signatures.MatchUserAgent(userAgent)
	if !ok {
		return Unknown
	}

	if ip == nil {
		log.Debugf("%s claims to be %s but %q is not an IP address", userAgent, vendor, remoteIP)
		return MalformedAddress
	}

	key := cacheKey(strategy, ip)

	verified, found, err := d.cache.Get(key)
	if err != nil {
		log.Warnf("cache lookup of %s failed, verifying again: %s", key, err)
	} else if found {
		if verified {
			return CachedVerified
		}
		return CachedRejected
	}

	verified = d.verifier.Verify(ctx, addr)

	if err := d.cache.Set(key, verified); err != nil {
		log.Warnf("failed to cache verification result for %s: %s", key, err)
	}

	if verified {
		return Verified
	}
	return Rejected
}

// ClearCache removes all cached verification results
func (d *Detector) ClearCache() error {
	return d.cache.Clear()
}

// Signatures returns the signature set the detector uses
func (d *Detector) Signatures() *Signatures {
	return d.signatures
}

// cacheKey returns the first three octets of an IPv4 address for network block
// vendors and the whole address for everything else
func cacheKey(strategy matchers.Strategy, ip net.IP) string {
	if ip4 := ip.To4(); ip4 != nil && strategy == matchers.NetworkBlock {
		return fmt.Sprintf("%d.%d.%d", ip4[0], ip4[1], ip4[2])
	}

	return canonicalIP(ip)
}

func canonicalIP(ip net.IP) string {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4.String()
	}
	return ip.String()
}
