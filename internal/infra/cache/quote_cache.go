// Package cache stores computed quotes in Redis keyed by source URL and
// pricing parameters.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"stlquote/internal/domain"
	"stlquote/internal/infra/logging"
)

const keyPrefix = "quotecache:"

// QuoteCache is a thin Redis wrapper. A nil *QuoteCache is a disabled cache.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New returns a cache over rdb. Non-positive ttl falls back to one minute.
func New(rdb *redis.Client, ttl time.Duration) *QuoteCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &QuoteCache{rdb: rdb, ttl: ttl}
}

// Key derives the cache key for url. salt should capture every setting that
// changes the quote (units, pricing).
func Key(url, salt string) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte{0})
	h.Write([]byte(salt))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached quote, or nil on a miss.
func (qc *QuoteCache) Get(ctx context.Context, key string) (*domain.Quote, error) {
	if qc == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	b, err := qc.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		logging.Warn("Redis read failed", "error", err)
		return nil, err
	}

	var q domain.Quote
	if err := json.Unmarshal(b, &q); err != nil {
		logging.Warn("Dropping undecodable cached quote", "key", key, "error", err)
		return nil, err
	}
	logging.Info("Quote cache hit", "key", key)
	return &q, nil
}

// Set stores q under key. Failures are logged, not returned: a cache write
// never fails a quote.
func (qc *QuoteCache) Set(ctx context.Context, key string, q domain.Quote) {
	if qc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	b, err := json.Marshal(q)
	if err != nil {
		return
	}
	if err := qc.rdb.Set(ctx, key, b, qc.ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "error", err)
	}
}
