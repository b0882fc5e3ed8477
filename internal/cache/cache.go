// Package cache memoizes per-file detection results so unchanged files are
// not re-detected across builds.
package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/Benny93/codenode/internal/detect"
)

// Cache stores detection results by content key. Implementations must be
// safe for concurrent use. Cached results are shared and must not be
// mutated by callers.
type Cache interface {
	Get(key string) (*detect.Result, bool)
	Put(key string, res *detect.Result)
	Close() error
}

// Key derives the cache key for one detector invocation. The known-files
// fingerprint is part of the key because resolution depends on which files
// exist.
func Key(category detect.Category, path, text, knownFingerprint string) string {
	h := sha256.New()
	for _, part := range []string{string(category), path, text, knownFingerprint} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Tiered checks a fast front cache before a slower back cache and promotes
// back-cache hits to the front.
type Tiered struct {
	front Cache
	back  Cache
}

// NewTiered combines two caches.
func NewTiered(front, back Cache) *Tiered {
	return &Tiered{front: front, back: back}
}

// Get looks up key in the front cache, then the back cache.
func (t *Tiered) Get(key string) (*detect.Result, bool) {
	if res, ok := t.front.Get(key); ok {
		return res, true
	}
	res, ok := t.back.Get(key)
	if ok {
		t.front.Put(key, res)
	}
	return res, ok
}

// Put stores res in both tiers.
func (t *Tiered) Put(key string, res *detect.Result) {
	t.front.Put(key, res)
	t.back.Put(key, res)
}

// Close closes both tiers.
func (t *Tiered) Close() error {
	ferr := t.front.Close()
	if err := t.back.Close(); err != nil {
		return err
	}
	return ferr
}
