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
	"container/list"
	"sync"
	"time"

	"github.com/scraperwall/friendlybots/data"
	log "github.com/sirupsen/logrus"
)

// DecisionWindow contains the most recent decisions.
// The number of decisions is limited by maxSize and by ttl, the time decisions
// stay in the list before they expire and are removed
type DecisionWindow struct {
	data    *list.List
	maxSize int
	ttl     time.Duration
	mutex   sync.RWMutex
}

// NewDecisionWindow creates a new DecisionWindow
func NewDecisionWindow(maxSize int, ttl time.Duration) *DecisionWindow {
	return &DecisionWindow{
		data:    list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Observe implements Observer
func (dw *DecisionWindow) Observe(remoteIP, userAgent string, d Decision, t time.Time) {
	dw.Add(&data.CheckResult{
		IP:        remoteIP,
		UserAgent: userAgent,
		GoodBot:   d.IsGoodBot(),
		Decision:  d.String(),
		Time:      t,
	})
}

// Add adds a single decision
func (dw *DecisionWindow) Add(r *data.CheckResult) {
	dw.mutex.Lock()
	defer dw.mutex.Unlock()

	dw.data.PushFront(r)
	if dw.data.Len() > dw.maxSize {
		dw.data.Remove(dw.data.Back())
	}
}

// Latest returns all decisions in the list, most recent first
func (dw *DecisionWindow) Latest() []*data.CheckResult {
	dw.mutex.RLock()
	defer dw.mutex.RUnlock()

	res := make([]*data.CheckResult, 0, dw.data.Len())
	for e := dw.data.Front(); e != nil; e = e.Next() {
		res = append(res, e.Value.(*data.CheckResult))
	}

	return res
}

// Len returns the number of decisions in the window
func (dw *DecisionWindow) Len() int {
	dw.mutex.RLock()
	defer dw.mutex.RUnlock()

	return dw.data.Len()
}

// Expire removes expired decisions from the window and returns the number of
// remaining ones
func (dw *DecisionWindow) Expire() int {
	now := time.Now()

	dw.mutex.Lock()
	defer dw.mutex.Unlock()

	for {
		oldest := dw.data.Back()
		if oldest == nil {
			break
		}

		r := oldest.Value.(*data.CheckResult)
		if now.Sub(r.Time) <= dw.ttl {
			break
		}

		dw.data.Remove(oldest)
		log.Tracef("expiring decision for %s (%v)", r.IP, now.Sub(r.Time))
	}

	return dw.data.Len()
}
