// Package state exposes ledger state to the execution engine. Modules go
// through the caching resolver; resources and table items are read from the
// node on every request.
package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"lazyview/internal/chain"
	"lazyview/internal/model"
	"lazyview/internal/resolver"
)

// Store is what the engine calls back into while interpreting. A missing
// item is reported as found == false with a nil error.
type Store interface {
	GetModule(ctx context.Context, id model.ModuleID) ([]byte, bool, error)
	GetResource(ctx context.Context, addr model.Address, tag model.StructTag) ([]byte, bool, error)
	ResolveTableEntry(ctx context.Context, handle model.Address, key []byte) ([]byte, bool, error)
}

// Ledger is the node API used for mutable state.
type Ledger interface {
	AccountResources(ctx context.Context, addr model.Address, version uint64) ([]chain.Resource, error)
	TableItemRaw(ctx context.Context, handle model.Address, key []byte, version uint64) ([]byte, bool, error)
}

// LazyStorage is a Store backed by the node.
type LazyStorage struct {
	ledger  Ledger
	modules *resolver.Resolver
	version uint64
	logger  *zap.Logger
}

// NewLazyStorage creates a store pinned to version; zero reads the latest
// ledger state.
func NewLazyStorage(ledger Ledger, modules *resolver.Resolver, version uint64, logger *zap.Logger) *LazyStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LazyStorage{ledger: ledger, modules: modules, version: version, logger: logger}
}

// LedgerVersion returns the pinned version.
func (s *LazyStorage) LedgerVersion() uint64 {
	return s.version
}

// Modules returns the module resolver behind the store.
func (s *LazyStorage) Modules() *resolver.Resolver {
	return s.modules
}

func (s *LazyStorage) GetModule(ctx context.Context, id model.ModuleID) ([]byte, bool, error) {
	mod, err := s.modules.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrModuleNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return mod.Bytecode, true, nil
}

// GetResource fetches the whole resource map of addr and picks tag out of it.
func (s *LazyStorage) GetResource(ctx context.Context, addr model.Address, tag model.StructTag) ([]byte, bool, error) {
	resources, err := s.ledger.AccountResources(ctx, addr, s.version)
	if err != nil {
		return nil, false, fmt.Errorf("load resources of %s: %w", addr, err)
	}
	want := tag.String()
	for _, res := range resources {
		if res.Type.String() == want {
			s.logger.Debug("resource loaded",
				zap.String("address", addr.String()),
				zap.String("type", want),
			)
			return res.Data, true, nil
		}
	}
	return nil, false, nil
}

func (s *LazyStorage) ResolveTableEntry(ctx context.Context, handle model.Address, key []byte) ([]byte, bool, error) {
	value, found, err := s.ledger.TableItemRaw(ctx, handle, key, s.version)
	if err != nil {
		return nil, false, fmt.Errorf("load table item %s[%s]: %w", handle, hexutil.Encode(key), err)
	}
	return value, found, nil
}
