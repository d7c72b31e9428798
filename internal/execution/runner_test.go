package execution

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lazyview/internal/bcs"
	"lazyview/internal/chain"
	"lazyview/internal/chain/chaintest"
	"lazyview/internal/model"
	"lazyview/internal/movebin/movebintest"
	"lazyview/internal/resolver"
	"lazyview/internal/state"
)

var vaultAddr = model.MustParseAddress("0xcafe")

func vaultInfoTag() model.StructTag {
	return model.StructTag{Address: vaultAddr, Module: "vault", Name: "Info"}
}

func vaultModule() []byte {
	return movebintest.Module{
		Address: vaultAddr,
		Name:    "vault",
		Structs: []movebintest.Struct{{
			Name: "Info",
			Fields: []model.FieldABI{
				{Name: "total", Type: model.Primitive(model.KindU128)},
				{Name: "label", Type: model.VectorOf(model.Primitive(model.KindU8))},
			},
		}},
		Functions: []movebintest.Function{
			{
				Name:       "balance",
				TypeParams: 1,
				Params:     []model.TypeTag{model.Primitive(model.KindAddress)},
				Returns:    []model.TypeTag{model.Primitive(model.KindU64)},
			},
			{
				Name:    "info",
				Params:  []model.TypeTag{model.Primitive(model.KindAddress)},
				Returns: []model.TypeTag{model.StructOf(vaultInfoTag()), model.Primitive(model.KindBool)},
			},
		},
	}.Bytes()
}

func newRunner(t *testing.T, node *chaintest.Node, engine Engine) (*Runner, *chain.Client) {
	t.Helper()
	client, err := chain.NewClient(node.URL(), 0)
	require.NoError(t, err)
	modules := resolver.New(client, nil, resolver.Options{Network: "testnet"})
	if engine == nil {
		engine = NewNodeEngine(client)
	}
	return NewRunner(RunConfig{LogPath: "logs/run.log"}, engine, client, modules, nil), client
}

func TestCallThroughNodeEngine(t *testing.T) {
	node := chaintest.NewNode(t.Cleanup)
	node.AddModule(vaultAddr, vaultModule())
	node.SetView(func([]byte) ([][]byte, int) {
		enc := bcs.NewEncoder()
		enc.U64(500)
		return [][]byte{enc.Bytes()}, http.StatusOK
	})
	runner, _ := newRunner(t, node, nil)

	res, err := runner.Call(context.Background(), Request{
		Function:      "0xcafe::vault::balance",
		TypeArgs:      []string{"0x1::aptos_coin::AptosCoin"},
		Args:          []string{"0xa11ce"},
		LedgerVersion: 9,
	})
	require.NoError(t, err)
	require.Equal(t, "logs/run.log", res.LogPath)
	require.Equal(t, []any{uint64(500)}, res.ReturnValues)
	require.EqualValues(t, 1, node.ViewCalls())
	require.Contains(t, node.LedgerVersions(), "9")
}

func TestNodeEngineErrorIsFatal(t *testing.T) {
	node := chaintest.NewNode(t.Cleanup)
	node.AddModule(vaultAddr, vaultModule())
	node.SetView(func([]byte) ([][]byte, int) { return nil, http.StatusBadRequest })
	runner, _ := newRunner(t, node, nil)

	_, err := runner.Call(context.Background(), Request{
		Function: "0xcafe::vault::balance",
		TypeArgs: []string{"u8"},
		Args:     []string{"0x1"},
	})
	var apiErr *chain.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

// resourceEngine reads the Info resource of the address argument and
// returns it together with a constant flag.
type resourceEngine struct{}

func (resourceEngine) Execute(ctx context.Context, store state.Store, call Call) ([][]byte, error) {
	owner, err := model.DecodeAddress(bcs.NewDecoder(call.Args[0]))
	if err != nil {
		return nil, err
	}
	data, found, err := store.GetResource(ctx, owner, vaultInfoTag())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New("missing resource")
	}
	return [][]byte{data, {1}}, nil
}

func TestCallDecodesStructResults(t *testing.T) {
	node := chaintest.NewNode(t.Cleanup)
	node.AddModule(vaultAddr, vaultModule())
	owner := model.MustParseAddress("0xb0b")
	enc := bcs.NewEncoder()
	enc.U64(7)
	enc.U64(0)
	enc.ByteSlice([]byte("usdc"))
	node.AddResource(owner, vaultInfoTag(), enc.Bytes())
	runner, _ := newRunner(t, node, resourceEngine{})

	res, err := runner.Call(context.Background(), Request{
		Function: "0xcafe::vault::info",
		Args:     []string{"0xb0b"},
	})
	require.NoError(t, err)
	out, err := json.Marshal(res)
	require.NoError(t, err)
	require.Equal(t, `{"log_path":"logs/run.log","return_values":[{"total":"7","label":"0x75736463"},true]}`, string(out))
	require.EqualValues(t, 1, node.ModuleCalls())
	require.EqualValues(t, 1, node.ResourceCalls())
}

func TestCallValidation(t *testing.T) {
	node := chaintest.NewNode(t.Cleanup)
	node.AddModule(vaultAddr, vaultModule())
	runner, _ := newRunner(t, node, resourceEngine{})
	ctx := context.Background()

	_, err := runner.Call(ctx, Request{Function: "0xcafe::vault"})
	require.Error(t, err)

	_, err = runner.Call(ctx, Request{Function: "0xcafe::vault::balance", Args: []string{"0x1"}})
	require.ErrorContains(t, err, "expects 1 type arguments")

	_, err = runner.Call(ctx, Request{Function: "0xcafe::vault::info", Args: []string{"0x1", "2"}})
	require.True(t, errors.Is(err, model.ErrArity))

	_, err = runner.Call(ctx, Request{Function: "0xcafe::vault::missing"})
	require.True(t, errors.Is(err, resolver.ErrFunctionNotFound))

	_, err = runner.Call(ctx, Request{Function: "0xcafe::nothere::f"})
	require.True(t, errors.Is(err, model.ErrModuleNotFound))
}

func TestParseTypeArgs(t *testing.T) {
	got, err := ParseTypeArgs([]string{" u8 ", "", "vector<address>"})
	require.NoError(t, err)
	require.Equal(t, []model.TypeTag{
		model.Primitive(model.KindU8),
		model.VectorOf(model.Primitive(model.KindAddress)),
	}, got)

	_, err = ParseTypeArgs([]string{"vector<"})
	require.Error(t, err)
}

func TestNewCallRecord(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	req := Request{Function: "0x1::coin::balance", Args: []string{"0x1"}}

	rec := NewCallRecord("mainnet", req, Result{ReturnValues: []any{"1"}}, nil, at)
	require.Equal(t, `["1"]`, string(rec.ReturnValues))
	require.Empty(t, rec.Error)
	require.Equal(t, "2024-05-01T12:00:00Z", rec.ExecutedAt)

	rec = NewCallRecord("mainnet", req, Result{}, errors.New("boom"), at)
	require.Equal(t, "boom", rec.Error)
	require.Nil(t, rec.ReturnValues)
}
