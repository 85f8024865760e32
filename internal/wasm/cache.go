package wasm

import (
	"container/list"
	"fmt"
	"regexp"
	"sync"
)

const (
	// DefaultRegexCacheSize is how many compiled patterns a plugin keeps.
	DefaultRegexCacheSize = 100

	// MaxPatternLength is the longest pattern a plugin may ask the host to
	// compile.
	MaxPatternLength = 512
)

// regexCache is a least-recently-used cache of compiled patterns shared by
// every instance of one plugin.
type regexCache struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front is most recently used
	size  int
}

type cachedRegex struct {
	pattern string
	re      *regexp.Regexp
}

func newRegexCache(size int) *regexCache {
	if size <= 0 {
		size = DefaultRegexCacheSize
	}
	return &regexCache{
		items: make(map[string]*list.Element),
		order: list.New(),
		size:  size,
	}
}

// Get returns the compiled form of pattern, compiling and caching it on a
// miss. Invalid patterns are not cached.
func (c *regexCache) Get(pattern string) (*regexp.Regexp, error) {
	if len(pattern) > MaxPatternLength {
		return nil, fmt.Errorf("pattern is %d bytes (max %d)", len(pattern), MaxPatternLength)
	}

	c.mu.Lock()
	if el, ok := c.items[pattern]; ok {
		c.order.MoveToFront(el)
		re := el.Value.(*cachedRegex).re
		c.mu.Unlock()
		return re, nil
	}
	c.mu.Unlock()

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another instance may have compiled it meanwhile.
	if el, ok := c.items[pattern]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*cachedRegex).re, nil
	}
	if c.order.Len() >= c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cachedRegex).pattern)
	}
	c.items[pattern] = c.order.PushFront(&cachedRegex{pattern: pattern, re: re})
	return re, nil
}

// Len returns the number of cached patterns.
func (c *regexCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
