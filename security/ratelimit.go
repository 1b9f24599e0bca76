package security

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultMaxTracked   = 10000
	defaultSweepEvery   = 5 * time.Minute
	defaultMaxIdleTime  = 30 * time.Minute
	defaultAttemptRate  = 5
	defaultAttemptBurst = 10
)

// limiterEntry pairs a token bucket with its last access time so idle
// identifiers can be swept.
type limiterEntry struct {
	identifier string
	limiter    *rate.Limiter
	lastAccess time.Time
}

// AttemptLimiter rate-limits authentication attempts per identifier
// (username or client ID) using a token bucket per identifier. Entries
// are bounded by LRU eviction and a background sweep of idle buckets.
type AttemptLimiter struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	lru      *list.List // front = most recently used *limiterEntry
	perSec   rate.Limit
	burst    int
	maxSize  int
	logger   *slog.Logger
	stopOnce sync.Once
	stop     chan struct{}
}

// NewAttemptLimiter creates a limiter allowing perSecond sustained
// attempts with the given burst per identifier. Non-positive arguments
// fall back to defaults.
func NewAttemptLimiter(perSecond, burst int, logger *slog.Logger) *AttemptLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if perSecond <= 0 {
		perSecond = defaultAttemptRate
	}
	if burst <= 0 {
		burst = defaultAttemptBurst
	}

	al := &AttemptLimiter{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		perSec:  rate.Limit(perSecond),
		burst:   burst,
		maxSize: defaultMaxTracked,
		logger:  logger,
		stop:    make(chan struct{}),
	}

	go al.sweepLoop()

	return al
}

// Allow reports whether an attempt from the given identifier is within
// its budget.
func (al *AttemptLimiter) Allow(identifier string) bool {
	now := time.Now()

	al.mu.Lock()
	defer al.mu.Unlock()

	if elem, ok := al.entries[identifier]; ok {
		al.lru.MoveToFront(elem)
		entry := elem.Value.(*limiterEntry)
		entry.lastAccess = now
		return entry.limiter.Allow()
	}

	if len(al.entries) >= al.maxSize {
		al.evictOldest()
	}

	entry := &limiterEntry{
		identifier: identifier,
		limiter:    rate.NewLimiter(al.perSec, al.burst),
		lastAccess: now,
	}
	al.entries[identifier] = al.lru.PushFront(entry)

	return entry.limiter.Allow()
}

// evictOldest drops the least recently used entry. Caller holds al.mu.
func (al *AttemptLimiter) evictOldest() {
	elem := al.lru.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*limiterEntry)
	delete(al.entries, entry.identifier)
	al.lru.Remove(elem)

	al.logger.Debug("attempt limiter evicted LRU entry",
		"tracked", len(al.entries))
}

func (al *AttemptLimiter) sweepLoop() {
	ticker := time.NewTicker(defaultSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			al.sweep(defaultMaxIdleTime)
		case <-al.stop:
			return
		}
	}
}

// sweep removes entries idle longer than maxIdle.
func (al *AttemptLimiter) sweep(maxIdle time.Duration) {
	al.mu.Lock()
	defer al.mu.Unlock()

	now := time.Now()
	removed := 0

	var next *list.Element
	for elem := al.lru.Front(); elem != nil; elem = next {
		next = elem.Next()
		entry := elem.Value.(*limiterEntry)
		if now.Sub(entry.lastAccess) > maxIdle {
			delete(al.entries, entry.identifier)
			al.lru.Remove(elem)
			removed++
		}
	}

	if removed > 0 {
		al.logger.Debug("attempt limiter sweep",
			"removed", removed,
			"remaining", len(al.entries))
	}
}

// Stop terminates the background sweep goroutine. Safe to call more
// than once.
func (al *AttemptLimiter) Stop() {
	al.stopOnce.Do(func() { close(al.stop) })
}
