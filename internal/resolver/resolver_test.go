package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/stretchr/testify/require"

	"lazyview/internal/chain"
	"lazyview/internal/chain/chaintest"
	"lazyview/internal/diskcache"
	"lazyview/internal/model"
	"lazyview/internal/movebin/movebintest"
)

func testModule(addr model.Address, name string) []byte {
	return movebintest.Module{
		Address: addr,
		Name:    name,
		Structs: []movebintest.Struct{{
			Name:   "Info",
			Fields: []model.FieldABI{{Name: "value", Type: model.Primitive(model.KindU64)}},
		}},
		Functions: []movebintest.Function{{
			Name:    "get",
			Params:  []model.TypeTag{model.Primitive(model.KindAddress)},
			Returns: []model.TypeTag{model.Primitive(model.KindU64)},
		}},
	}.Bytes()
}

func newClient(t *testing.T, node *chaintest.Node) *chain.Client {
	t.Helper()
	c, err := chain.NewClient(node.URL(), 0)
	require.NoError(t, err)
	return c
}

func TestSystemModuleServedFromDiskAfterRestart(t *testing.T) {
	node := chaintest.NewNode(t.Cleanup)
	node.AddModule(model.CoreAddress, testModule(model.CoreAddress, "coin"))
	node.AddModule(model.CoreAddress, testModule(model.CoreAddress, "account"))
	dir := t.TempDir()
	id := model.ModuleID{Address: model.CoreAddress, Name: "coin"}

	db, err := diskcache.Open(dir)
	require.NoError(t, err)
	first := New(newClient(t, node), db, Options{Network: "mainnet"})
	mod, err := first.Resolve(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "coin", mod.ABI.Name)
	require.EqualValues(t, 1, node.ModuleCalls())
	require.NoError(t, db.Close())

	db, err = diskcache.Open(dir)
	require.NoError(t, err)
	defer db.Close()
	second := New(newClient(t, node), db, Options{Network: "mainnet"})
	mod, err = second.Resolve(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, testModule(model.CoreAddress, "coin"), mod.Bytecode)
	require.EqualValues(t, 1, node.ModuleCalls())

	// the sibling was persisted by the first scan
	_, err = second.Resolve(context.Background(), model.ModuleID{Address: model.CoreAddress, Name: "account"})
	require.NoError(t, err)
	require.EqualValues(t, 1, node.ModuleCalls())
	require.Equal(t, Stats{DiskHits: 2}, second.Stats())
}

func TestMemoryHitSkipsDiskAndNetwork(t *testing.T) {
	node := chaintest.NewNode(t.Cleanup)
	addr := model.MustParseAddress("0xcafe")
	node.AddModule(addr, testModule(addr, "pool"))
	disk := &countingStore{Database: memorydb.New()}

	r := New(newClient(t, node), disk, Options{Network: "testnet", EnableModuleCaching: true})
	id := model.ModuleID{Address: addr, Name: "pool"}
	_, err := r.Resolve(context.Background(), id)
	require.NoError(t, err)
	gets := disk.gets

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), id)
		require.NoError(t, err)
	}
	require.Equal(t, gets, disk.gets)
	require.EqualValues(t, 1, node.ModuleCalls())
	require.Equal(t, Stats{MemoryHits: 3, NetworkFetches: 1}, r.Stats())
}

func TestNonSystemModuleNotPersistedByDefault(t *testing.T) {
	node := chaintest.NewNode(t.Cleanup)
	addr := model.MustParseAddress("0xcafe")
	node.AddModule(addr, testModule(addr, "pool"))
	disk := &countingStore{Database: memorydb.New()}

	r := New(newClient(t, node), disk, Options{Network: "mainnet"})
	_, err := r.Resolve(context.Background(), model.ModuleID{Address: addr, Name: "pool"})
	require.NoError(t, err)
	require.Zero(t, disk.gets)
	require.Zero(t, disk.puts)
}

func TestMalformedSiblingIsSkipped(t *testing.T) {
	node := chaintest.NewNode(t.Cleanup)
	addr := model.MustParseAddress("0xbeef")
	node.AddModule(addr, []byte{0xde, 0xad})
	node.AddModule(addr, testModule(addr, "vault"))

	r := New(newClient(t, node), nil, Options{Network: "mainnet"})
	mod, err := r.Resolve(context.Background(), model.ModuleID{Address: addr, Name: "vault"})
	require.NoError(t, err)
	fn, ok := mod.ABI.Function("get")
	require.True(t, ok)
	require.Equal(t, []model.TypeTag{model.Primitive(model.KindU64)}, fn.Returns)
}

func TestVersion7SiblingWithAccessSpecifiersIsSkipped(t *testing.T) {
	node := chaintest.NewNode(t.Cleanup)
	addr := model.MustParseAddress("0xbeef")
	guarded := movebintest.Module{
		Address: addr,
		Name:    "guarded",
		Version: 7,
		Functions: []movebintest.Function{{
			Name:            "peek",
			Returns:         []model.TypeTag{model.Primitive(model.KindBool)},
			AccessSpecified: true,
		}},
	}
	vault := movebintest.Module{
		Address: addr,
		Name:    "vault",
		Version: 7,
		Structs: []movebintest.Struct{{
			Name:     "State",
			Variants: []movebintest.Variant{{Name: "Open"}, {Name: "Closed"}},
		}},
		Functions: []movebintest.Function{{
			Name:    "get",
			Params:  []model.TypeTag{model.Primitive(model.KindAddress)},
			Returns: []model.TypeTag{model.Primitive(model.KindU64)},
		}},
	}
	node.AddModule(addr, guarded.Bytes())
	node.AddModule(addr, vault.Bytes())

	r := New(newClient(t, node), nil, Options{Network: "mainnet"})
	mod, err := r.Resolve(context.Background(), model.ModuleID{Address: addr, Name: "vault"})
	require.NoError(t, err)
	_, ok := mod.ABI.Function("get")
	require.True(t, ok)

	_, err = r.Resolve(context.Background(), model.ModuleID{Address: addr, Name: "guarded"})
	require.True(t, errors.Is(err, model.ErrModuleNotFound))
	require.EqualValues(t, 2, node.ModuleCalls())
}

func TestModuleNotFound(t *testing.T) {
	node := chaintest.NewNode(t.Cleanup)
	addr := model.MustParseAddress("0xbeef")
	node.AddModule(addr, testModule(addr, "vault"))

	r := New(newClient(t, node), nil, Options{Network: "mainnet"})
	_, err := r.Resolve(context.Background(), model.ModuleID{Address: addr, Name: "missing"})
	require.True(t, errors.Is(err, model.ErrModuleNotFound))

	_, err = r.Struct(context.Background(), model.StructTag{Address: addr, Module: "vault", Name: "Nope"})
	require.True(t, errors.Is(err, ErrStructNotFound))
}

func TestDiskWriteFailureIsFatal(t *testing.T) {
	node := chaintest.NewNode(t.Cleanup)
	node.AddModule(model.CoreAddress, testModule(model.CoreAddress, "coin"))

	r := New(newClient(t, node), failingStore{}, Options{Network: "mainnet"})
	_, err := r.Resolve(context.Background(), model.ModuleID{Address: model.CoreAddress, Name: "coin"})
	require.ErrorIs(t, err, errDiskFull)
}

func TestCloneHasIndependentMemory(t *testing.T) {
	node := chaintest.NewNode(t.Cleanup)
	addr := model.MustParseAddress("0xcafe")
	node.AddModule(addr, testModule(addr, "pool"))
	node.AddModule(addr, testModule(addr, "router"))

	r := New(newClient(t, node), nil, Options{Network: "mainnet"})
	_, err := r.Resolve(context.Background(), model.ModuleID{Address: addr, Name: "pool"})
	require.NoError(t, err)

	clone := r.Clone()
	require.Equal(t, r.cache.Len(), clone.cache.Len())
	clone.cache.Set("extra", CachedModule{})
	require.NotEqual(t, r.cache.Len(), clone.cache.Len())

	_, err = clone.Resolve(context.Background(), model.ModuleID{Address: addr, Name: "router"})
	require.NoError(t, err)
	require.EqualValues(t, 1, node.ModuleCalls())
}

func TestCacheKey(t *testing.T) {
	r := New(nil, nil, Options{Network: "devnet"})
	require.Equal(t, "0x1coindevnet", r.CacheKey(model.ModuleID{Address: model.CoreAddress, Name: "coin"}))
	require.True(t, r.DiskEligible(model.TokenAddress))
	require.False(t, r.DiskEligible(model.MustParseAddress("0x4")))
}

type countingStore struct {
	*memorydb.Database
	gets, puts int
}

func (s *countingStore) Get(key []byte) ([]byte, error) {
	s.gets++
	return s.Database.Get(key)
}

func (s *countingStore) Put(key, value []byte) error {
	s.puts++
	return s.Database.Put(key, value)
}

var errDiskFull = errors.New("disk full")

type failingStore struct{}

func (failingStore) Get([]byte) ([]byte, error) { return nil, errors.New("miss") }
func (failingStore) Put([]byte, []byte) error   { return errDiskFull }
