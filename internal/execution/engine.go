package execution

import (
	"context"
	"fmt"

	"lazyview/internal/chain"
	"lazyview/internal/model"
	"lazyview/internal/state"
)

// Call is one function invocation with encoded arguments.
type Call struct {
	Function model.FunctionID
	TypeArgs []model.TypeTag
	Args     [][]byte
}

// Engine interprets a call against the given store and returns the encoded
// return values in declaration order.
type Engine interface {
	Execute(ctx context.Context, store state.Store, call Call) ([][]byte, error)
}

// Viewer executes view functions remotely.
type Viewer interface {
	View(ctx context.Context, req chain.ViewRequest, version uint64) ([][]byte, error)
}

// NodeEngine runs calls on the node's view endpoint at the store's pinned
// ledger version. The module is loaded through the store first so a missing
// function module is reported before anything is sent.
type NodeEngine struct {
	viewer Viewer
}

func NewNodeEngine(viewer Viewer) *NodeEngine {
	return &NodeEngine{viewer: viewer}
}

type versioned interface {
	LedgerVersion() uint64
}

func (e *NodeEngine) Execute(ctx context.Context, store state.Store, call Call) ([][]byte, error) {
	if _, found, err := store.GetModule(ctx, call.Function.Module); err != nil {
		return nil, err
	} else if !found {
		return nil, fmt.Errorf("module %s: %w", call.Function.Module, model.ErrModuleNotFound)
	}

	var version uint64
	if v, ok := store.(versioned); ok {
		version = v.LedgerVersion()
	}
	return e.viewer.View(ctx, chain.ViewRequest{
		Function: call.Function,
		TypeArgs: call.TypeArgs,
		Args:     call.Args,
	}, version)
}
