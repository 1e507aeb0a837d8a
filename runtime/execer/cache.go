package execer

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/zeebo/xxh3"

	"github.com/brine-lang/brine/runtime/parser"
)

// rewriteCache memoizes the retry loop's output. Rewriting is deterministic
// per source text and parse mode, so interactive sessions that re-enter the
// same line skip the whole loop. Only the rewritten source is kept, never
// trees: callers mutate trees, and reparsing cached text is cheap.
type rewriteCache struct {
	entries *xsync.Map[string, string]
}

func newRewriteCache() *rewriteCache {
	return &rewriteCache{entries: xsync.NewMap[string, string]()}
}

func cacheKey(src string, mode parser.Mode) string {
	hash := xxh3.HashString128(src)
	return fmt.Sprintf("%x%x:%s", hash.Hi, hash.Lo, mode)
}

func (c *rewriteCache) lookup(src string, mode parser.Mode) (string, bool) {
	return c.entries.Load(cacheKey(src, mode))
}

func (c *rewriteCache) store(src string, mode parser.Mode, rewritten string) {
	c.entries.Store(cacheKey(src, mode), rewritten)
}

func (c *rewriteCache) drop(src string, mode parser.Mode) {
	c.entries.Delete(cacheKey(src, mode))
}
