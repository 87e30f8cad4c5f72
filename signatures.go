package friendlybots

import (
	"context"
	"fmt"
	"io/ioutil"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/scraperwall/friendlybots/matchers"
	log "github.com/sirupsen/logrus"
	fsnotify "gopkg.in/fsnotify.v1"
)

// Signatures is the enabled part of the built-in crawler table, compiled for fast lookups
type Signatures struct {
	mutex         sync.RWMutex
	vendors       []matchers.Vendor
	fixedIPs      map[string]string
	blockAgents   []agentRule
	addressAgents []agentRule
	hostnames     []string
	UpdatedAt     time.Time
	vendorsTOML   string
	rulesWatcher  *fsnotify.Watcher
	ctx           context.Context
}

// VendorRules is the content of the vendor selection file
type VendorRules struct {
	Enabled  []string
	Disabled []string
}

type agentRule struct {
	substring string
	vendor    string
}

// NewSignatures creates the signature set. If vendorsTOML is empty the vendors that are
// enabled by default are used. Otherwise the file is loaded and watched for changes
func NewSignatures(ctx context.Context, vendorsTOML string) (*Signatures, error) {
	s := &Signatures{
		ctx:         ctx,
		vendorsTOML: vendorsTOML,
	}

	if err := s.Load(); err != nil {
		return nil, err
	}

	if vendorsTOML != "" {
		if err := s.reloadOnConfigChanges(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Load reads the vendor selection file and activates the selected vendors
func (s *Signatures) Load() error {
	var rules VendorRules

	if s.vendorsTOML != "" {
		data, err := ioutil.ReadFile(s.vendorsTOML)
		if err != nil {
			return err
		}

		if err = toml.Unmarshal(data, &rules); err != nil {
			return fmt.Errorf("can't parse vendor rules %s: %w", s.vendorsTOML, err)
		}
	}

	vendors, err := SelectVendors(rules)
	if err != nil {
		return err
	}

	s.apply(vendors)
	log.Infof("%d crawler vendors enabled", len(vendors))

	return nil
}

// SelectVendors returns the default vendors plus the ones enabled by rules minus the
// ones disabled by rules
func SelectVendors(rules VendorRules) ([]matchers.Vendor, error) {
	enabled := make(map[string]bool)
	for _, v := range matchers.Vendors {
		enabled[v.Name] = v.Default
	}

	for _, name := range rules.Enabled {
		if _, ok := matchers.Lookup(name); !ok {
			return nil, fmt.Errorf("unknown crawler vendor %q", name)
		}
		enabled[name] = true
	}

	for _, name := range rules.Disabled {
		if _, ok := matchers.Lookup(name); !ok {
			return nil, fmt.Errorf("unknown crawler vendor %q", name)
		}
		enabled[name] = false
	}

	vendors := make([]matchers.Vendor, 0, len(matchers.Vendors))
	for _, v := range matchers.Vendors {
		if enabled[v.Name] {
			vendors = append(vendors, v)
		}
	}

	return vendors, nil
}

func (s *Signatures) apply(vendors []matchers.Vendor) {
	fixedIPs := make(map[string]string)
	blockAgents := make([]agentRule, 0)
	addressAgents := make([]agentRule, 0)
	hostnames := make([]string, 0)

	for _, v := range vendors {
		for _, ip := range v.IPs {
			fixedIPs[ip] = v.Name
		}

		for _, ua := range v.UserAgents {
			switch v.Strategy {
			case matchers.NetworkBlock:
				blockAgents = append(blockAgents, agentRule{substring: ua, vendor: v.Name})
			case matchers.Address:
				addressAgents = append(addressAgents, agentRule{substring: ua, vendor: v.Name})
			}
		}

		for _, h := range v.Hostnames {
			hostnames = append(hostnames, strings.ToLower(h))
		}
	}

	s.mutex.Lock()
	s.vendors = vendors
	s.fixedIPs = fixedIPs
	s.blockAgents = blockAgents
	s.addressAgents = addressAgents
	s.hostnames = hostnames
	s.UpdatedAt = time.Now()
	s.mutex.Unlock()
}

// Vendors returns the enabled vendors
func (s *Signatures) Vendors() []matchers.Vendor {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	res := make([]matchers.Vendor, len(s.vendors))
	copy(res, s.vendors)
	return res
}

// IsFixedIP determines whether ip belongs to a vendor with published crawler
// addresses. It returns the vendor's name
func (s *Signatures) IsFixedIP(ip string) (bool, string) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	vendor, ok := s.fixedIPs[ip]
	return ok, vendor
}

// MatchUserAgent finds the first vendor whose user agent substring is contained in ua.
// Network block vendors are tried before address vendors
func (s *Signatures) MatchUserAgent(ua string) (strategy matchers.Strategy, vendor string, ok bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, r := range s.blockAgents {
		if strings.Contains(ua, r.substring) {
			return matchers.NetworkBlock, r.vendor, true
		}
	}

	for _, r := range s.addressAgents {
		if strings.Contains(ua, r.substring) {
			return matchers.Address, r.vendor, true
		}
	}

	return matchers.FixedIP, "", false
}

// MatchHostname determines whether host belongs to one of the crawler domains.
// A suffix only matches at a label boundary, i.e. evilgoogle.com doesn't match google.com
func (s *Signatures) MatchHostname(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, suffix := range s.hostnames {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}

	return false
}

func (s *Signatures) reloadOnConfigChanges() error {
	if s.rulesWatcher != nil {
		log.Warn("vendor rules file watcher already exists")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("couldn't start vendor rules fsnotify watcher: %w", err)
	}

	if err = watcher.Add(s.vendorsTOML); err != nil {
		watcher.Close()
		return err
	}
	s.rulesWatcher = watcher

	go func() {
		for {
			select {
			case <-s.ctx.Done():
				log.Infof("vendor rules watcher exiting")
				watcher.Close()
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := s.Load(); err != nil {
						log.Errorf("failed to reload vendor rules from %s: %s", s.vendorsTOML, err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("vendor rules watcher error event: %s", err)
			}
		}
	}()

	return nil
}
