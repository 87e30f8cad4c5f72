package friendlybots

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/scraperwall/friendlybots/store"
	log "github.com/sirupsen/logrus"
)

const statsNamespace = "stats"
const statsKeepPersisted = 24 * time.Hour

// Stats counts decisions
type Stats struct {
	Total            int64     `json:"total"`
	GoodBots         int64     `json:"good_bots"`
	FixedIP          int64     `json:"fixed_ip"`
	Verified         int64     `json:"verified"`
	Rejected         int64     `json:"rejected"`
	CacheHits        int64     `json:"cache_hits"`
	Unknown          int64     `json:"unknown"`
	MissingUserAgent int64     `json:"missing_useragent"`
	Time             time.Time `json:"time"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (s *Stats) add(d Decision, sign int64) {
	s.Total += sign

	if d.IsGoodBot() {
		s.GoodBots += sign
	}

	switch d {
	case FixedIP:
		s.FixedIP += sign
	case Verified:
		s.Verified += sign
	case CachedVerified:
		s.Verified += sign
		s.CacheHits += sign
	case Rejected, MalformedAddress:
		s.Rejected += sign
	case CachedRejected:
		s.Rejected += sign
		s.CacheHits += sign
	case MissingUserAgent:
		s.MissingUserAgent += sign
	default:
		s.Unknown += sign
	}
}

func (s *Stats) merge(o Stats, sign int64) {
	s.Total += sign * o.Total
	s.GoodBots += sign * o.GoodBots
	s.FixedIP += sign * o.FixedIP
	s.Verified += sign * o.Verified
	s.Rejected += sign * o.Rejected
	s.CacheHits += sign * o.CacheHits
	s.Unknown += sign * o.Unknown
	s.MissingUserAgent += sign * o.MissingUserAgent
}

// StatsWindows keeps decision statistics for numWindows windows of windowSize each.
// Finished windows are written to the key/value store if there is one
type StatsWindows struct {
	Stats
	Map        *treemap.Map
	windowSize time.Duration
	numWindows int
	store      store.KVStore
	mutex      sync.RWMutex
}

// NewStatsWindows creates a new StatsWindows instance. Expired windows are removed
// until ctx is done
func NewStatsWindows(ctx context.Context, windowSize time.Duration, numWindows int, kv store.KVStore) *StatsWindows {
	s := &StatsWindows{
		Map:        treemap.NewWith(utils.TimeComparator),
		windowSize: windowSize,
		numWindows: numWindows,
		store:      kv,
	}

	go s.expire(ctx)

	return s
}

// Observe implements Observer
func (s *StatsWindows) Observe(remoteIP, userAgent string, d Decision, t time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	k := s.keyFor(t)
	var stats Stats

	statsRaw, ok := s.Map.Get(k)
	if !ok {
		s.persistLatest()

		stats = Stats{
			Time: k,
		}
	} else {
		stats = statsRaw.(Stats)
	}

	stats.add(d, 1)
	stats.UpdatedAt = time.Now()
	s.Stats.add(d, 1)
	s.Stats.UpdatedAt = stats.UpdatedAt

	s.Map.Put(k, stats)
}

// persistLatest writes the most recent window to the store. The caller must hold the lock
func (s *StatsWindows) persistLatest() {
	if s.store == nil || s.Map.Size() == 0 {
		return
	}

	latestKey, latestValue := s.Map.Max()
	latestBytes, err := json.Marshal(latestValue)
	if err != nil {
		log.Errorf("json encoding error of Stats: %s", err)
		return
	}

	key := []byte(fmt.Sprintf("%d", latestKey.(time.Time).UnixNano()))
	if err := s.store.SetEx([]byte(statsNamespace), key, latestBytes, statsKeepPersisted); err != nil {
		log.Warnf("failed to persist stats window %s: %s", latestKey, err)
	}
}

// All returns the statistics of all windows keyed by their start time
func (s *StatsWindows) All() map[string]Stats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	res := make(map[string]Stats)

	iter := s.Map.Iterator()
	for iter.Next() {
		key := iter.Key().(time.Time)
		res[key.Format(time.RFC3339Nano)] = iter.Value().(Stats)
	}

	return res
}

// Totals returns the statistics of all windows combined
func (s *StatsWindows) Totals() Stats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.Stats
}

// Expire removes windows that are older than windowSize * numWindows
func (s *StatsWindows) Expire() {
	threshold := time.Now().Add(s.windowSize * -time.Duration(s.numWindows))

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for {
		if s.Map.Empty() {
			return
		}

		key, value := s.Map.Min()
		if key.(time.Time).After(threshold) {
			return
		}

		s.Stats.merge(value.(Stats), -1)
		s.Map.Remove(key)
	}
}

func (s *StatsWindows) expire(ctx context.Context) {
	ticker := time.NewTicker(s.windowSize)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Expire()
		}
	}
}

func (s *StatsWindows) keyFor(t time.Time) time.Time {
	return t.Truncate(s.windowSize)
}
