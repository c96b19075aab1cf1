// Package locality caches locality timezone lookups and formats game
// times in local wall clock. Localities change rarely; entries are held
// for 24h and staleness within that window is acceptable.
package locality

import (
	"context"
	"sync"
	"time"

	"teamup/internal/domain"
	logx "teamup/pkg/logx"
)

const cacheTTL = 24 * time.Hour

type entry struct {
	loc      *time.Location
	fetched  time.Time
	locality domain.Locality
}

// Cache is a read-through locality/timezone cache over domain.Reader.
type Cache struct {
	reader domain.Reader
	log    logx.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[int64]entry
}

func NewCache(reader domain.Reader, log logx.Logger) *Cache {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Cache{
		reader:  reader,
		log:     log,
		now:     time.Now,
		entries: map[int64]entry{},
	}
}

// Locality returns the cached locality snapshot, fetching on miss/expiry.
func (c *Cache) Locality(ctx context.Context, id int64) (domain.Locality, error) {
	e, err := c.lookup(ctx, id)
	if err != nil {
		return domain.Locality{}, err
	}
	return e.locality, nil
}

// Location returns the locality's *time.Location, defaulting to UTC when
// the locality is unknown or its timezone name does not resolve.
func (c *Cache) Location(ctx context.Context, id int64) *time.Location {
	e, err := c.lookup(ctx, id)
	if err != nil {
		return time.UTC
	}
	return e.loc
}

// TimeLabel formats t in the locality's wall clock for notification text.
func (c *Cache) TimeLabel(ctx context.Context, localityID int64, t time.Time) string {
	return t.In(c.Location(ctx, localityID)).Format("Mon 15:04")
}

func (c *Cache) lookup(ctx context.Context, id int64) (entry, error) {
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[id]
	c.mu.Unlock()
	if ok && now.Sub(e.fetched) < cacheTTL {
		return e, nil
	}

	l, err := c.reader.Locality(ctx, id)
	if err != nil {
		// Serve the stale entry if we have one; the underlying values
		// change rarely enough that stale beats missing.
		if ok {
			return e, nil
		}
		return entry{}, err
	}

	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		c.log.Warn("unknown locality timezone", logx.Int64("locality", id), logx.String("tz", l.Timezone))
		loc = time.UTC
	}

	e = entry{loc: loc, fetched: now, locality: l}
	c.mu.Lock()
	c.entries[id] = e
	c.mu.Unlock()
	return e, nil
}
