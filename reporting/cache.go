package reporting

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warp/jaspel-engine/generic"
)

// =============================================================================
// CACHE KEY
// =============================================================================

// Key identifies one cached summary. Period is generic.Period.Key().
type Key struct {
	UserID generic.UserID
	Period string
}

func KeyFor(user generic.UserID, p generic.Period) Key {
	return Key{UserID: user, Period: p.Key()}
}

// MonthKey is the key of the calendar month containing date.
func MonthKey(user generic.UserID, date time.Time) Key {
	return KeyFor(user, generic.MonthPeriod(date.Year(), date.Month(), date.Location()))
}

// KeyPrefix starts every Key.String().
const KeyPrefix = "report:summary:"

func (k Key) String() string {
	return fmt.Sprintf("%s%s:%s", KeyPrefix, k.UserID, k.Period)
}

// =============================================================================
// CACHE
// =============================================================================

// Cache stores summaries. A miss is (Summary{}, false, nil).
type Cache interface {
	Get(ctx context.Context, key Key) (Summary, bool, error)
	Set(ctx context.Context, key Key, s Summary, ttl time.Duration) error
	Delete(ctx context.Context, keys ...Key) error
	// Purge drops every summary.
	Purge(ctx context.Context) error
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	summary   Summary
	expiresAt time.Time // zero: never
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[Key]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key Key) (Summary, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || (!e.expiresAt.IsZero() && c.now().After(e.expiresAt)) {
		return Summary{}, false, nil
	}
	return e.summary, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key Key, s Summary, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{summary: s}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *MemoryCache) Purge(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]memoryEntry)
	return nil
}

// =============================================================================
// INVALIDATOR - Called by every edit of a source record
// =============================================================================

type Invalidator struct {
	Cache  Cache
	Logger *log.Logger
}

func NewInvalidator(cache Cache, logger *log.Logger) *Invalidator {
	if logger == nil {
		logger = log.Default()
	}
	return &Invalidator{Cache: cache, Logger: logger}
}

// Invalidate drops the summary of the month containing date. Cache errors
// are logged; a stale report never fails an edit.
func (i *Invalidator) Invalidate(ctx context.Context, user generic.UserID, date time.Time) {
	if i == nil || i.Cache == nil {
		return
	}
	key := MonthKey(user, date)
	if err := i.Cache.Delete(ctx, key); err != nil {
		i.Logger.Printf("[Reporting] failed to invalidate %s: %v", key, err)
	}
}

// InvalidateAll drops every cached summary. Used when a shift template or
// rate card changes, since any month of any user may depend on it.
func (i *Invalidator) InvalidateAll(ctx context.Context) {
	if i == nil || i.Cache == nil {
		return
	}
	if err := i.Cache.Purge(ctx); err != nil {
		i.Logger.Printf("[Reporting] failed to purge summaries: %v", err)
	}
}
