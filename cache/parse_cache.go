package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultParseCacheSize bounds caches created with a non-positive size.
const DefaultParseCacheSize = 1024

// ParseCache memoises the result of parsing a SQL fragment, keyed by the
// fragment text. It is safe for concurrent use.
type ParseCache[V any] struct {
	cache *lru.Cache[string, V]
}

func NewParseCache[V any](size int) *ParseCache[V] {
	if size <= 0 {
		size = DefaultParseCacheSize
	}
	c, _ := lru.New[string, V](size)
	return &ParseCache[V]{cache: c}
}

// GetOrParse returns the cached value for key, calling parse and storing its
// result on a miss.
func (p *ParseCache[V]) GetOrParse(key string, parse func(string) V) V {
	if v, ok := p.cache.Get(key); ok {
		return v
	}
	v := parse(key)
	p.cache.Add(key, v)
	return v
}

func (p *ParseCache[V]) Get(key string) (V, bool) {
	return p.cache.Get(key)
}

func (p *ParseCache[V]) Len() int {
	return p.cache.Len()
}

func (p *ParseCache[V]) Purge() {
	p.cache.Purge()
}
