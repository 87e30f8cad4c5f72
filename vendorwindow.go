package friendlybots

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
)

// Window is a rolling counter that uses a TreeMap as storage
type Window struct {
	data  *treemap.Map
	mutex sync.RWMutex

	windowSize time.Duration
	numWindows int
}

// NewWindow creates a new Window with numWindows buckets that each cover a windowSize time range
func NewWindow(windowSize time.Duration, numWindows int) *Window {
	return &Window{
		data:       treemap.NewWithIntComparator(),
		windowSize: windowSize,
		numWindows: numWindows,
	}
}

// Add counts one item at time t
func (w *Window) Add(t time.Time) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	key := w.keyFor(t)
	var val int64

	if v, ok := w.data.Get(key); ok {
		val = v.(int64)
	}

	w.data.Put(key, val+1)
}

// Count returns the total count of items in all buckets
func (w *Window) Count() int64 {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	var total int64

	iter := w.data.Iterator()
	for iter.Next() {
		total += iter.Value().(int64)
	}

	return total
}

func (w *Window) keyFor(t time.Time) int {
	return int(t.UnixNano() - t.UnixNano()%w.windowSize.Nanoseconds())
}

// removeExpired drops all buckets older than windowSize * numWindows and
// reports whether the window is empty afterwards
func (w *Window) removeExpired(now time.Time) bool {
	threshold := int(now.Add(-1 * w.windowSize * time.Duration(w.numWindows)).UnixNano())

	w.mutex.Lock()
	defer w.mutex.Unlock()

	for !w.data.Empty() {
		key, _ := w.data.Min()
		if key.(int) >= threshold {
			break
		}
		w.data.Remove(key)
	}

	return w.data.Empty()
}

// VendorCounts are the rolling counts of a single crawler vendor
type VendorCounts struct {
	Verified int64 `json:"verified"`
	Fake     int64 `json:"fake"`
}

type vendorWindow struct {
	verified *Window
	fake     *Window
}

// VendorWindows counts verified and fake crawler requests per vendor
type VendorWindows struct {
	signatures *Signatures
	windowSize time.Duration
	numWindows int
	data       map[string]*vendorWindow
	mutex      sync.RWMutex
}

// NewVendorWindows creates a new VendorWindows instance. Expired counts are removed until ctx is done
func NewVendorWindows(ctx context.Context, signatures *Signatures, windowSize time.Duration, numWindows int) *VendorWindows {
	vw := &VendorWindows{
		signatures: signatures,
		windowSize: windowSize,
		numWindows: numWindows,
		data:       make(map[string]*vendorWindow),
	}

	go vw.expire(ctx)

	return vw
}

// Observe implements Observer
func (vw *VendorWindows) Observe(remoteIP, userAgent string, d Decision, t time.Time) {
	var fake bool

	switch d {
	case FixedIP, Verified, CachedVerified:
	case Rejected, CachedRejected, MalformedAddress:
		fake = true
	default:
		return
	}

	vendor := vw.vendorOf(remoteIP, userAgent, d)
	if vendor == "" {
		return
	}

	// Expire must not drop the vendor between lookup and Add
	vw.mutex.Lock()
	defer vw.mutex.Unlock()

	w, ok := vw.data[vendor]
	if !ok {
		w = &vendorWindow{
			verified: NewWindow(vw.windowSize, vw.numWindows),
			fake:     NewWindow(vw.windowSize, vw.numWindows),
		}
		vw.data[vendor] = w
	}

	if fake {
		w.fake.Add(t)
	} else {
		w.verified.Add(t)
	}
}

func (vw *VendorWindows) vendorOf(remoteIP, userAgent string, d Decision) string {
	if d == FixedIP {
		addr := remoteIP
		if ip := net.ParseIP(remoteIP); ip != nil {
			addr = canonicalIP(ip)
		}
		_, vendor := vw.signatures.IsFixedIP(addr)
		return vendor
	}

	_, vendor, _ := vw.signatures.MatchUserAgent(userAgent)
	return vendor
}

// Counts returns the rolling counts of all vendors that were seen recently
func (vw *VendorWindows) Counts() map[string]VendorCounts {
	vw.mutex.RLock()
	defer vw.mutex.RUnlock()

	res := make(map[string]VendorCounts, len(vw.data))
	for vendor, w := range vw.data {
		res[vendor] = VendorCounts{
			Verified: w.verified.Count(),
			Fake:     w.fake.Count(),
		}
	}

	return res
}

// Expire removes expired counts and vendors without recent requests
func (vw *VendorWindows) Expire() {
	now := time.Now()

	vw.mutex.Lock()
	defer vw.mutex.Unlock()

	for vendor, w := range vw.data {
		verifiedEmpty := w.verified.removeExpired(now)
		fakeEmpty := w.fake.removeExpired(now)
		if verifiedEmpty && fakeEmpty {
			delete(vw.data, vendor)
		}
	}
}

func (vw *VendorWindows) expire(ctx context.Context) {
	ticker := time.NewTicker(vw.windowSize)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			vw.Expire()
		}
	}
}
