package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Benny93/codenode/internal/detect"
)

// LRU is a bounded in-memory cache.
type LRU struct {
	entries *lru.Cache[string, *detect.Result]
}

// NewLRU creates an in-memory cache holding at most size results.
func NewLRU(size int) (*LRU, error) {
	entries, err := lru.New[string, *detect.Result](size)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}
	return &LRU{entries: entries}, nil
}

func (c *LRU) Get(key string) (*detect.Result, bool) {
	return c.entries.Get(key)
}

func (c *LRU) Put(key string, res *detect.Result) {
	c.entries.Add(key, res)
}

// Len returns the number of cached results.
func (c *LRU) Len() int {
	return c.entries.Len()
}

func (c *LRU) Close() error {
	c.entries.Purge()
	return nil
}
