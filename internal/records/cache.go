// Package records keeps the local snapshot of ledger records and the
// view owned by the connected identity.
package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ppiankov/langlearn/internal/ledger"
	"github.com/ppiankov/langlearn/internal/logging"
	"github.com/ppiankov/langlearn/internal/model"
	"github.com/ppiankov/langlearn/internal/worker"
)

// DefaultWorkers bounds concurrent record fetches during a refresh
const DefaultWorkers = 4

// ErrStale is returned when a refresh finished after the identity changed
var ErrStale = errors.New("refresh superseded by identity change")

// Cache is the client-side record snapshot. A refresh replaces the whole
// snapshot; overlapping refreshes resolve last-write-wins.
type Cache struct {
	reader  ledger.Reader
	fetcher *worker.BatchFetcher
	log     *logging.Logger
	now     func() time.Time

	mu          sync.RWMutex
	records     map[uint64]model.Record
	identity    string
	epoch       uint64
	refreshedAt time.Time

	busy atomic.Int32
}

// New creates an empty cache reading from reader with up to workers
// concurrent fetches
func New(reader ledger.Reader, workers int, log *logging.Logger) *Cache {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Cache{
		reader:  reader,
		fetcher: worker.NewBatchFetcher(reader, workers),
		log:     log,
		now:     time.Now,
		records: make(map[uint64]model.Record),
	}
}

// Refresh reloads every record from the ledger. Records that fail to load
// are logged and left out; a failed id listing keeps the old snapshot.
func (c *Cache) Refresh(ctx context.Context) error {
	c.busy.Add(1)
	defer c.busy.Add(-1)

	epoch := c.Epoch()

	ids, err := c.reader.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}

	results := c.fetcher.FetchIDs(ctx, ids)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("refresh records: %w", err)
	}

	next := make(map[uint64]model.Record, len(results))
	failed := 0
	for _, res := range results {
		if res.Error != nil {
			failed++
			c.log.Warn("record fetch failed", "id", res.ID, "error", res.Error)
			continue
		}
		next[res.Record.ID] = res.Record
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		c.log.Debug("discarding stale refresh", "epoch", epoch, "current", c.epoch)
		return ErrStale
	}
	c.records = next
	c.refreshedAt = c.now()

	c.log.Debug("records refreshed", "total", len(ids), "loaded", len(next), "failed", failed)
	return nil
}

// Busy reports whether any refresh is in progress
func (c *Cache) Busy() bool {
	return c.busy.Load() > 0
}

// SetIdentity changes the identity the owned view is computed for.
// Refreshes started before the change will not be applied.
func (c *Cache) SetIdentity(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
	c.epoch++
}

// Identity returns the identity of the owned view
func (c *Cache) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// Epoch increments on every identity change
func (c *Cache) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// RefreshedAt is the time of the last applied refresh
func (c *Cache) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

// All returns every cached record, newest first
func (c *Cache) All() []model.Record {
	return c.filter(func(model.Record) bool { return true })
}

// Owned returns the records created by the current identity, newest first
func (c *Cache) Owned() []model.Record {
	c.mu.RLock()
	identity := c.identity
	c.mu.RUnlock()
	return c.filter(func(r model.Record) bool { return r.OwnedBy(identity) })
}

// Get returns one cached record
func (c *Cache) Get(id uint64) (model.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[id]
	if !ok {
		return model.Record{}, false
	}
	return rec.Clone(), true
}

// Search returns records whose label or owner contains term, ignoring case
func (c *Cache) Search(term string) []model.Record {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return c.All()
	}
	return c.filter(func(r model.Record) bool {
		return strings.Contains(strings.ToLower(r.Label), term) ||
			strings.Contains(strings.ToLower(r.Owner), term)
	})
}

// Len is the number of cached records
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

func (c *Cache) filter(keep func(model.Record) bool) []model.Record {
	c.mu.RLock()
	out := make([]model.Record, 0, len(c.records))
	for _, rec := range c.records {
		if keep(rec) {
			out = append(out, rec.Clone())
		}
	}
	c.mu.RUnlock()

	sortNewestFirst(out)
	return out
}

func sortNewestFirst(recs []model.Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})
}
