package imagetruth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"log/slog"
	"sync"

	"github.com/corona10/goimagehash"
)

const classifierCachePrefix = "cls"

// Fingerprint returns the perceptual difference hash of img. Visually
// identical images (re-encoded, resized) share a fingerprint.
// ok is false if hashing fails.
func Fingerprint(img image.Image) (string, bool) {
	if img == nil {
		return "", false
	}
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", false
	}
	return hash.ToString(), true
}

// contentKey identifies the exact classifier input. Near-duplicates share
// the perceptual fingerprint prefix but never the digest, so an edited copy
// of an image is always classified on its own.
func contentKey(buf *PixelBuffer, src image.Image) string {
	sum := sha256.Sum256(buf.Pix)
	digest := hex.EncodeToString(sum[:])
	if fp, ok := Fingerprint(src); ok {
		return fp + ":" + digest
	}
	return digest
}

// classify runs the configured classifier, reusing a cached result for an
// identical model input when a Cache is configured.
func (cfg *Config) classify(ctx context.Context, buf *PixelBuffer, src image.Image) (res *ClassifierResult, err error) {
	if cfg.Classifier == nil {
		return nil, nil
	}

	var cacheKey string
	if cfg.Cache != nil && buf != nil {
		cacheKey = cfg.Cache.Key(classifierCachePrefix, contentKey(buf, src))
		var cached ClassifierResult
		if cfg.Cache.Get(ctx, cacheKey, &cached) {
			slog.Debug("imagetruth: classifier cache hit", "key", cacheKey)
			return &cached, nil
		}
	}

	defer func() {
		if r := recover(); r != nil {
			if cfg.OnPanic != nil {
				cfg.OnPanic("classify", r)
			}
			res, err = nil, errClassifierPanic
		}
	}()

	res, err = cfg.Classifier.Classify(ctx, buf)
	if err != nil {
		return nil, err
	}
	if res != nil && cacheKey != "" {
		cfg.Cache.Set(ctx, cacheKey, *res)
	}
	return res, nil
}

// MemoryCache is an in-process Cache. Values round-trip through JSON so
// callers see the same semantics as a remote cache. Safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

// Key joins prefix and value.
func (c *MemoryCache) Key(prefix, value string) string {
	return prefix + ":" + value
}

// Get decodes the value under key into dest.
func (c *MemoryCache) Get(_ context.Context, key string, dest any) bool {
	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

// Set stores value under key. Unencodable values are dropped.
func (c *MemoryCache) Set(_ context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Debug("imagetruth: cache set failed", "key", key, "error", err.Error())
		return
	}
	c.mu.Lock()
	c.entries[key] = data
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
