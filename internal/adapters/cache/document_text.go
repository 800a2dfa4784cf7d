package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/zatekoja/referralintake/internal/domain/providers"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
)

const documentTextKeyPrefix = "document:text:"

// DocumentTextCache caches converted document text by file URL
type DocumentTextCache struct {
	inner providers.DocumentTextProvider
	cache providers.CacheProvider
	ttl   time.Duration
}

// NewDocumentTextCache wraps inner with cache. A ttl under one second
// disables caching and returns inner unchanged.
func NewDocumentTextCache(inner providers.DocumentTextProvider, cache providers.CacheProvider, ttl time.Duration) providers.DocumentTextProvider {
	if cache == nil || ttl < time.Second {
		return inner
	}
	return &DocumentTextCache{inner: inner, cache: cache, ttl: ttl}
}

// DocumentTextKey returns the cache key of a document URL
func DocumentTextKey(fileURL string) string {
	sum := sha256.Sum256([]byte(fileURL))
	return documentTextKeyPrefix + hex.EncodeToString(sum[:])
}

// ToText returns the cached text or converts and caches it. Cache failures
// fall through to the converter.
func (c *DocumentTextCache) ToText(ctx context.Context, fileURL string) (string, error) {
	logger := observability.LoggerFromContext(ctx)
	key := DocumentTextKey(fileURL)

	cached, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		logger.Debug().Str("key", key).Msg("Document text cache hit")
		return string(cached), nil
	case !errors.Is(err, providers.ErrCacheMiss):
		logger.Warn().Err(err).Msg("Document text cache read failed")
	}

	text, err := c.inner.ToText(ctx, fileURL)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(ctx, key, []byte(text), int(c.ttl/time.Second)); err != nil {
		logger.Warn().Err(err).Msg("Document text cache write failed")
	}
	return text, nil
}
