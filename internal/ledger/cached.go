package ledger

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/ppiankov/langlearn/internal/cache"
	"github.com/ppiankov/langlearn/internal/logging"
	"github.com/ppiankov/langlearn/internal/model"
)

// CachedGateway serves immutable ledger data from a cache. Handles never
// change once written and verified records are terminal, so both are
// safe to cache; unverified records are always read from the ledger.
type CachedGateway struct {
	Gateway
	cache    cache.Cache
	contract string
	log      *logging.Logger
}

// NewCachedGateway decorates inner. contract scopes the keys so caches
// for different deployments never mix.
func NewCachedGateway(inner Gateway, c cache.Cache, contract string, log *logging.Logger) *CachedGateway {
	if log == nil {
		log = logging.Nop()
	}
	return &CachedGateway{
		Gateway:  inner,
		cache:    c,
		contract: contract,
		log:      log.With("component", "ledger_cache"),
	}
}

func (g *CachedGateway) GetRecord(ctx context.Context, id uint64) (model.Record, error) {
	key := cache.Key(g.contract, "record", strconv.FormatUint(id, 10))
	if data, ok := g.cache.Get(key); ok {
		var rec model.Record
		if err := json.Unmarshal(data, &rec); err == nil && rec.Verified && rec.ID == id {
			return rec, nil
		}
		_ = g.cache.Delete(key)
	}

	rec, err := g.Gateway.GetRecord(ctx, id)
	if err != nil {
		return model.Record{}, err
	}
	if rec.Verified {
		if data, err := json.Marshal(rec); err == nil {
			if err := g.cache.Set(key, data, 0); err != nil {
				g.log.Warn("cache record", "record_id", id, "error", err)
			}
		}
	}
	return rec, nil
}

func (g *CachedGateway) GetEncryptedHandle(ctx context.Context, id uint64) (model.Handle, error) {
	key := cache.Key(g.contract, "handle", strconv.FormatUint(id, 10))
	if data, ok := g.cache.Get(key); ok && len(data) > 0 {
		return model.Handle(data), nil
	}

	h, err := g.Gateway.GetEncryptedHandle(ctx, id)
	if err != nil {
		return "", err
	}
	if err := g.cache.Set(key, []byte(h), 0); err != nil {
		g.log.Warn("cache handle", "record_id", id, "error", err)
	}
	return h, nil
}

// ContractAddress returns the contract the cache is scoped to
func (g *CachedGateway) ContractAddress(ctx context.Context) (string, error) {
	if g.contract != "" {
		return g.contract, nil
	}
	return g.Gateway.ContractAddress(ctx)
}
