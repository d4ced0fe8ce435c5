package bvfold

import (
	"github.com/benbjohnson/immutable"
)

// CacheEntry is a memoized evaluation: the constant node produced for an
// input node, and whether a division error was swallowed while computing it.
type CacheEntry struct {
	Result            ExprID
	DivisionException bool
}

// exprIDHasher implements immutable.Hasher for ExprID keys.
type exprIDHasher struct{}

func (exprIDHasher) Hash(key interface{}) uint32 {
	return uint32(key.(ExprID))
}

func (exprIDHasher) Equal(a, b interface{}) bool {
	return a.(ExprID) == b.(ExprID)
}

// Cache maps input nodes to their evaluated constants. It is backed by a
// persistent map, so Snapshot is O(1) and later inserts on either copy are
// not visible to the other.
type Cache struct {
	m *immutable.Map
}

func NewCache() *Cache {
	return &Cache{m: immutable.NewMap(exprIDHasher{})}
}

func (c *Cache) Lookup(id ExprID) (CacheEntry, bool) {
	v, ok := c.m.Get(id)
	if !ok {
		return CacheEntry{}, false
	}
	return v.(CacheEntry), true
}

func (c *Cache) Insert(id ExprID, entry CacheEntry) {
	c.m = c.m.Set(id, entry)
}

func (c *Cache) Len() int {
	return c.m.Len()
}

func (c *Cache) Snapshot() *Cache {
	return &Cache{m: c.m}
}
