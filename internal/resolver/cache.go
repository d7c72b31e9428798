package resolver

import (
	"sync"

	"lazyview/internal/model"
)

// CachedModule is a fetched module together with its parsed ABI.
type CachedModule struct {
	ID       model.ModuleID
	Bytecode []byte
	ABI      *model.ModuleABI
}

// ModuleCache holds modules by cache key for the lifetime of one resolver.
type ModuleCache struct {
	mu   sync.RWMutex
	data map[string]CachedModule
}

func NewModuleCache() *ModuleCache {
	return &ModuleCache{data: make(map[string]CachedModule)}
}

func (c *ModuleCache) Get(key string) (CachedModule, bool) {
	c.mu.RLock()
	mod, ok := c.data[key]
	c.mu.RUnlock()
	return mod, ok
}

func (c *ModuleCache) Set(key string, mod CachedModule) {
	c.mu.Lock()
	c.data[key] = mod
	c.mu.Unlock()
}

func (c *ModuleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Clone returns an independent copy. Entries are never mutated after
// insertion, so bytecode and ABI values are shared.
func (c *ModuleCache) Clone() *ModuleCache {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]CachedModule, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return &ModuleCache{data: out}
}
