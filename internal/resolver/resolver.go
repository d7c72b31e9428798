// Package resolver loads module bytecode through a memory cache, an optional
// disk cache and finally the node.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"lazyview/internal/chain"
	"lazyview/internal/model"
	"lazyview/internal/movebin"
)

// ModuleSource lists the modules published under an account.
type ModuleSource interface {
	AccountModules(ctx context.Context, addr model.Address, version uint64) ([]chain.ModuleBytecode, error)
}

// DiskStore is the persistent tier. ethdb.KeyValueStore satisfies it.
type DiskStore interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
}

// Options configures a Resolver.
type Options struct {
	// Network labels cache keys so modules of different networks never mix.
	Network string
	// EnableModuleCaching persists modules of every address, not only the
	// system addresses.
	EnableModuleCaching bool
	Logger              *zap.Logger
}

// Stats counts where resolved modules came from.
type Stats struct {
	MemoryHits     int64 `json:"memory_hits"`
	DiskHits       int64 `json:"disk_hits"`
	NetworkFetches int64 `json:"network_fetches"`
}

type counters struct {
	memory  atomic.Int64
	disk    atomic.Int64
	network atomic.Int64
}

// Resolver resolves module ids to bytecode and ABI.
type Resolver struct {
	source  ModuleSource
	disk    DiskStore
	opts    Options
	logger  *zap.Logger
	cache   *ModuleCache
	counter *counters
}

// New creates a resolver. disk may be nil, in which case only the memory
// cache is used.
func New(source ModuleSource, disk DiskStore, opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		source:  source,
		disk:    disk,
		opts:    opts,
		logger:  logger,
		cache:   NewModuleCache(),
		counter: &counters{},
	}
}

// Clone returns a resolver sharing the node source and disk store with an
// independent copy of the memory cache.
func (r *Resolver) Clone() *Resolver {
	return &Resolver{
		source:  r.source,
		disk:    r.disk,
		opts:    r.opts,
		logger:  r.logger,
		cache:   r.cache.Clone(),
		counter: &counters{},
	}
}

// Network returns the network label of the resolver.
func (r *Resolver) Network() string {
	return r.opts.Network
}

// Stats returns a snapshot of the resolution counters.
func (r *Resolver) Stats() Stats {
	return Stats{
		MemoryHits:     r.counter.memory.Load(),
		DiskHits:       r.counter.disk.Load(),
		NetworkFetches: r.counter.network.Load(),
	}
}

// CacheKey is the key a module is stored under in both cache tiers.
func (r *Resolver) CacheKey(id model.ModuleID) string {
	return id.Address.String() + id.Name + r.opts.Network
}

// DiskEligible reports whether modules of addr are persisted to disk.
func (r *Resolver) DiskEligible(addr model.Address) bool {
	return r.opts.EnableModuleCaching || addr == model.CoreAddress || addr == model.TokenAddress
}

// Resolve returns the module for id. It returns model.ErrModuleNotFound when
// the owning account publishes no module with that name.
func (r *Resolver) Resolve(ctx context.Context, id model.ModuleID) (CachedModule, error) {
	key := r.CacheKey(id)
	if mod, ok := r.cache.Get(key); ok {
		r.counter.memory.Add(1)
		r.logger.Debug("module from memory cache", zap.String("module", id.String()))
		return mod, nil
	}

	eligible := r.DiskEligible(id.Address)
	if eligible && r.disk != nil {
		if mod, ok := r.loadFromDisk(id, key); ok {
			r.counter.disk.Add(1)
			r.cache.Set(key, mod)
			return mod, nil
		}
	}

	r.counter.network.Add(1)
	modules, err := r.source.AccountModules(ctx, id.Address, 0)
	if err != nil {
		return CachedModule{}, fmt.Errorf("fetch modules of %s: %w", id.Address, err)
	}

	var (
		found CachedModule
		ok    bool
	)
	for i, m := range modules {
		abi, err := movebin.ParseABI(m.Bytecode)
		if err != nil {
			r.logger.Warn("skip unparsable module",
				zap.String("address", id.Address.String()),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		mod := CachedModule{ID: abi.ID(), Bytecode: m.Bytecode, ABI: abi}
		modKey := r.CacheKey(mod.ID)
		r.cache.Set(modKey, mod)
		if r.disk != nil && r.DiskEligible(mod.ID.Address) {
			if err := r.disk.Put([]byte(modKey), mod.Bytecode); err != nil {
				return CachedModule{}, fmt.Errorf("cache module %s to disk: %w", mod.ID, err)
			}
			r.logger.Debug("cached module to disk", zap.String("module", mod.ID.String()))
		}
		if mod.ID == id {
			found, ok = mod, true
		}
	}
	if !ok {
		return CachedModule{}, fmt.Errorf("%s: %w", id, model.ErrModuleNotFound)
	}
	r.logger.Debug("module from node", zap.String("module", id.String()))
	return found, nil
}

// ABI returns the parsed ABI of the module.
func (r *Resolver) ABI(ctx context.Context, id model.ModuleID) (*model.ModuleABI, error) {
	mod, err := r.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return mod.ABI, nil
}

// Struct returns the declared layout of a struct.
func (r *Resolver) Struct(ctx context.Context, tag model.StructTag) (model.StructABI, error) {
	abi, err := r.ABI(ctx, tag.ModuleID())
	if err != nil {
		return model.StructABI{}, err
	}
	st, ok := abi.Struct(tag.Name)
	if !ok {
		return model.StructABI{}, fmt.Errorf("struct %s: %w", tag.Name, ErrStructNotFound)
	}
	return st, nil
}

// Function returns the signature of a function.
func (r *Resolver) Function(ctx context.Context, fn model.FunctionID) (model.FunctionABI, error) {
	abi, err := r.ABI(ctx, fn.Module)
	if err != nil {
		return model.FunctionABI{}, err
	}
	f, ok := abi.Function(fn.Name)
	if !ok {
		return model.FunctionABI{}, fmt.Errorf("function %s: %w", fn, ErrFunctionNotFound)
	}
	return f, nil
}

var (
	// ErrStructNotFound is returned when a module declares no struct with the requested name.
	ErrStructNotFound = errors.New("struct not found")
	// ErrFunctionNotFound is returned when a module declares no function with the requested name.
	ErrFunctionNotFound = errors.New("function not found")
)

func (r *Resolver) loadFromDisk(id model.ModuleID, key string) (CachedModule, bool) {
	code, err := r.disk.Get([]byte(key))
	if err != nil || len(code) == 0 {
		r.logger.Debug("module not in disk cache", zap.String("module", id.String()), zap.Error(err))
		return CachedModule{}, false
	}
	abi, err := movebin.ParseABI(code)
	if err != nil {
		r.logger.Warn("discard unparsable cached module", zap.String("module", id.String()), zap.Error(err))
		return CachedModule{}, false
	}
	r.logger.Debug("module from disk cache", zap.String("module", id.String()))
	return CachedModule{ID: id, Bytecode: code, ABI: abi}, true
}
