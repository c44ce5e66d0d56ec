package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache stores immutable ledger data by key
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a cache key scoped to a ledger contract. Parts are joined
// before hashing so keys stay filesystem safe.
func Key(contract string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(contract)))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return "langlearn:v1:" + hex.EncodeToString(h.Sum(nil))
}

// New builds the cache described by the arguments: memory only when
// diskDir is empty, memory over disk otherwise.
func New(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) Cache {
	if diskDir == "" {
		return NewMemoryCache(memoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(memoryTTL, diskDir, diskTTL)
}
