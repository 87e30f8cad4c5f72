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
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	log "github.com/sirupsen/logrus"
)

// ErrNoRecords is returned when a lookup succeeded but had no usable answer
var ErrNoRecords = errors.New("no records")

// Resolver performs the DNS lookups that are needed to verify a crawler
type Resolver interface {
	// ReverseLookup returns the PTR hostnames of ip
	ReverseLookup(ctx context.Context, ip net.IP) ([]string, error)
	// ForwardLookup returns the A and AAAA addresses of host
	ForwardLookup(ctx context.Context, host string) ([]net.IP, error)
}

// DNSResolver is a Resolver that queries a single DNS server
type DNSResolver struct {
	server string
	client *dns.Client
}

// NewDNSResolver creates a resolver that sends its queries to server (host:port).
// A query that takes longer than timeout fails
func NewDNSResolver(server string, timeout time.Duration) *DNSResolver {
	return &DNSResolver{
		server: server,
		client: &dns.Client{
			Timeout: timeout,
		},
	}
}

// ReverseLookup implements Resolver
func (r *DNSResolver) ReverseLookup(ctx context.Context, ip net.IP) ([]string, error) {
	if ip == nil {
		return nil, fmt.Errorf("ip is nil")
	}

	reverse, err := dns.ReverseAddr(ip.String())
	if err != nil {
		return nil, err
	}

	resp, err := r.exchange(ctx, reverse, dns.TypePTR)
	if err != nil {
		return nil, err
	}

	hostnames := make([]string, 0, len(resp.Answer))
	for _, answer := range resp.Answer {
		if t, ok := answer.(*dns.PTR); ok {
			hostnames = append(hostnames, strings.TrimSuffix(t.Ptr, "."))
		}
	}

	if len(hostnames) == 0 {
		return nil, fmt.Errorf("PTR %s: %w", ip, ErrNoRecords)
	}

	return hostnames, nil
}

// ForwardLookup implements Resolver
func (r *DNSResolver) ForwardLookup(ctx context.Context, host string) ([]net.IP, error) {
	ips := make([]net.IP, 0)
	var lastErr error

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		resp, err := r.exchange(ctx, host, qtype)
		if err != nil {
			lastErr = err
			continue
		}

		for _, answer := range resp.Answer {
			switch t := answer.(type) {
			case *dns.A:
				ips = append(ips, t.A)
			case *dns.AAAA:
				ips = append(ips, t.AAAA)
			}
		}
	}

	if len(ips) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("A/AAAA %s: %w", host, ErrNoRecords)
	}

	return ips, nil
}

func (r *DNSResolver) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	q := new(dns.Msg)
	q.Id = dns.Id()
	q.RecursionDesired = true
	q.SetQuestion(dns.Fqdn(name), qtype)

	resp, _, err := r.client.ExchangeContext(ctx, q, r.server)
	if err != nil {
		return nil, fmt.Errorf("dns exchange error for %s %s: %w", dns.TypeToString[qtype], name, err)
	}

	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%s %s: %s", dns.TypeToString[qtype], name, dns.RcodeToString[resp.Rcode])
	}

	return resp, nil
}

// Verifier confirms that an IP address belongs to a crawler
type Verifier interface {
	Verify(ctx context.Context, remoteIP string) bool
}

// HostnameMatcher decides whether a hostname belongs to a crawler domain
type HostnameMatcher interface {
	MatchHostname(host string) bool
}

// DNSVerifier verifies crawlers with a reverse DNS lookup followed by a forward lookup
// of the hostname. The forward lookup has to return the original address since PTR
// records are controlled by the owner of the address, not by the owner of the domain.
type DNSVerifier struct {
	resolver Resolver
	hosts    HostnameMatcher
}

// NewDNSVerifier creates a DNSVerifier
func NewDNSVerifier(resolver Resolver, hosts HostnameMatcher) *DNSVerifier {
	return &DNSVerifier{
		resolver: resolver,
		hosts:    hosts,
	}
}

// Verify returns true if remoteIP reverse-resolves to a crawler hostname that resolves
// back to remoteIP. Lookup errors are not reported, they simply mean "not verified"
func (v *DNSVerifier) Verify(ctx context.Context, remoteIP string) bool {
	ip := net.ParseIP(remoteIP)
	if ip == nil {
		return false
	}

	hostnames, err := v.resolver.ReverseLookup(ctx, ip)
	if err != nil {
		log.Debugf("reverse lookup of %s failed: %s", remoteIP, err)
		return false
	}

	for _, hostname := range hostnames {
		if !v.hosts.MatchHostname(hostname) {
			log.Tracef("%s: %s is not a crawler hostname", remoteIP, hostname)
			continue
		}

		addrs, err := v.resolver.ForwardLookup(ctx, hostname)
		if err != nil {
			log.Debugf("forward lookup of %s (%s) failed: %s", hostname, remoteIP, err)
			continue
		}

		for _, addr := range addrs {
			if addr.Equal(ip) {
				log.Tracef("%s verified as %s", remoteIP, hostname)
				return true
			}
		}

		log.Debugf("%s resolves to %v, not to %s", hostname, addrs, remoteIP)
	}

	return false
}
