package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/user/credit-sentinel/pkg/covenant"
	"github.com/user/credit-sentinel/pkg/logging"
)

// Cache stores extraction results by key. Get reports a miss with
// found == false and a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// fallbackExtractor is implemented by extractors that can tell a canned
// fallback result apart from a real one.
type fallbackExtractor interface {
	extract(ctx context.Context, text string) (defs []covenant.Definition, fallback bool)
}

// CachedExtractor memoises another extractor by a hash of its configuration
// scope and the document text. Empty results are never cached so a
// transient model failure is retried on the next call, and neither are
// demo fallback results.
type CachedExtractor struct {
	inner Extractor
	cache Cache
	ttl   time.Duration
	scope string
	log   *zap.Logger
}

// NewCachedExtractor wraps inner. scope identifies the configuration that
// produced inner (see ExtractorFingerprint); extractors built from different
// configurations never share entries.
func NewCachedExtractor(inner Extractor, cache Cache, ttl time.Duration, scope string, log *zap.Logger) *CachedExtractor {
	return &CachedExtractor{inner: inner, cache: cache, ttl: ttl, scope: scope, log: logging.OrNop(log)}
}

func (c *CachedExtractor) Extract(ctx context.Context, text string) []covenant.Definition {
	key := cacheKey(c.scope, text)

	if data, found, err := c.cache.Get(ctx, key); err != nil {
		c.log.Warn("extraction cache read failed", zap.String("key", key), zap.Error(err))
	} else if found {
		var defs []covenant.Definition
		if err := json.Unmarshal(data, &defs); err == nil {
			c.log.Debug("extraction cache hit", zap.String("key", key))
			return defs
		}
		c.log.Warn("discarding corrupt extraction cache entry", zap.String("key", key))
	}

	var defs []covenant.Definition
	if fx, ok := c.inner.(fallbackExtractor); ok {
		var fallback bool
		if defs, fallback = fx.extract(ctx, text); fallback {
			return defs
		}
	} else {
		defs = c.inner.Extract(ctx, text)
	}
	if len(defs) == 0 {
		return defs
	}

	data, err := json.Marshal(defs)
	if err != nil {
		return defs
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.log.Warn("extraction cache write failed", zap.String("key", key), zap.Error(err))
	}
	return defs
}

func cacheKey(scope, text string) string {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return "covenants:" + hex.EncodeToString(h.Sum(nil))
}
