package bridge

import (
	"github.com/coocood/freecache"
)

// ReadCache 缓存只读动作的应答；任何写动作后整体清空。
type ReadCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Clear()
}

type freeCache struct {
	cache *freecache.Cache
	ttl   int
}

// NewReadCache 创建 sizeMB 大小、ttl 秒过期的缓存；sizeMB<=0 时禁用。
func NewReadCache(sizeMB, ttl int) ReadCache {
	if sizeMB <= 0 {
		return noopCache{}
	}
	if ttl <= 0 {
		ttl = 30
	}
	return &freeCache{cache: freecache.NewCache(sizeMB * 1024 * 1024), ttl: ttl}
}

func (c *freeCache) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *freeCache) Set(key string, value []byte) {
	_ = c.cache.Set([]byte(key), value, c.ttl)
}

func (c *freeCache) Clear() { c.cache.Clear() }

type noopCache struct{}

func (noopCache) Get(_ string) ([]byte, bool) { return nil, false }
func (noopCache) Set(_ string, _ []byte)      {}
func (noopCache) Clear()                      {}
