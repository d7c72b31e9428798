package movebin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lazyview/internal/model"
	"lazyview/internal/movebin/movebintest"
)

func coinModule() movebintest.Module {
	coinT := model.StructOf(model.StructTag{
		Address:  model.CoreAddress,
		Module:   "coin",
		Name:     "Coin",
		TypeArgs: []model.TypeTag{model.GenericParam(0)},
	})
	return movebintest.Module{
		Address: model.CoreAddress,
		Name:    "coin",
		Structs: []movebintest.Struct{
			{
				Name:       "Coin",
				TypeParams: 1,
				Fields:     []model.FieldABI{{Name: "value", Type: model.Primitive(model.KindU64)}},
			},
			{
				Name:       "CoinStore",
				TypeParams: 1,
				Fields: []model.FieldABI{
					{Name: "coin", Type: coinT},
					{Name: "frozen", Type: model.Primitive(model.KindBool)},
				},
			},
		},
		Functions: []movebintest.Function{
			{
				Name:       "balance",
				TypeParams: 1,
				Params:     []model.TypeTag{model.Primitive(model.KindAddress)},
				Returns:    []model.TypeTag{model.Primitive(model.KindU64)},
			},
			{
				Name:    "name",
				Params:  []model.TypeTag{},
				Returns: []model.TypeTag{model.VectorOf(model.Primitive(model.KindU8))},
			},
		},
	}
}

func TestParseABI(t *testing.T) {
	abi, err := ParseABI(coinModule().Bytes())
	require.NoError(t, err)

	require.Equal(t, model.CoreAddress, abi.Address)
	require.Equal(t, "coin", abi.Name)

	require.Len(t, abi.Structs, 2)
	store, ok := abi.Struct("CoinStore")
	require.True(t, ok)
	require.Equal(t, 1, store.TypeParamCount)
	require.Len(t, store.Fields, 2)
	require.Equal(t, "coin", store.Fields[0].Name)
	require.Equal(t, "0x1::coin::Coin<T0>", store.Fields[0].Type.String())
	require.Equal(t, "frozen", store.Fields[1].Name)

	balance, ok := abi.Function("balance")
	require.True(t, ok)
	require.Equal(t, 1, balance.TypeParamCount)
	require.Equal(t, []model.TypeTag{model.Primitive(model.KindAddress)}, balance.Params)
	require.Equal(t, []model.TypeTag{model.Primitive(model.KindU64)}, balance.Returns)

	name, ok := abi.Function("name")
	require.True(t, ok)
	require.Empty(t, name.Params)
	require.True(t, name.Returns[0].IsByteVector())
}

func TestParseABIRejectsGarbage(t *testing.T) {
	_, err := ParseABI([]byte("not a module"))
	require.ErrorIs(t, err, ErrBadMagic)

	code := coinModule().Bytes()
	code[4] = 99
	_, err = ParseABI(code)
	require.ErrorIs(t, err, ErrUnsupportedVersion)

	code = coinModule().Bytes()
	_, err = ParseABI(code[:len(code)/2])
	require.Error(t, err)
}

func optionModule(version uint32) movebintest.Module {
	u64 := model.Primitive(model.KindU64)
	return movebintest.Module{
		Address: model.MustParseAddress("0xcafe"),
		Name:    "option_ext",
		Version: version,
		Structs: []movebintest.Struct{
			{
				Name: "Choice",
				Variants: []movebintest.Variant{
					{Name: "None"},
					{Name: "Some", Fields: []model.FieldABI{{Name: "value", Type: u64}}},
				},
			},
			{
				Name:   "Holder",
				Fields: []model.FieldABI{{Name: "amount", Type: u64}},
			},
		},
		Functions: []movebintest.Function{
			{Name: "amount", Params: []model.TypeTag{model.Primitive(model.KindAddress)}, Returns: []model.TypeTag{u64}},
		},
	}
}

func TestParseABIVersion7SkipsEnums(t *testing.T) {
	abi, err := ParseABI(optionModule(7).Bytes())
	require.NoError(t, err)
	require.Equal(t, "option_ext", abi.Name)

	_, ok := abi.Struct("Choice")
	require.False(t, ok)
	holder, ok := abi.Struct("Holder")
	require.True(t, ok)
	require.Equal(t, []model.FieldABI{{Name: "amount", Type: model.Primitive(model.KindU64)}}, holder.Fields)

	fn, ok := abi.Function("amount")
	require.True(t, ok)
	require.Equal(t, []model.TypeTag{model.Primitive(model.KindU64)}, fn.Returns)
}

func TestParseABIVersion8Attributes(t *testing.T) {
	m := optionModule(8)
	m.Functions = append(m.Functions, movebintest.Function{
		Name:       "peek",
		Returns:    []model.TypeTag{model.Primitive(model.KindBool)},
		Attributes: []byte{0x1, 0x2},
	})

	abi, err := ParseABI(m.Bytes())
	require.NoError(t, err)
	require.Len(t, abi.Functions, 2)
	peek, ok := abi.Function("peek")
	require.True(t, ok)
	require.Equal(t, []model.TypeTag{model.Primitive(model.KindBool)}, peek.Returns)
	amount, ok := abi.Function("amount")
	require.True(t, ok)
	require.Equal(t, []model.TypeTag{model.Primitive(model.KindAddress)}, amount.Params)
}

func TestParseABIRejectsAccessSpecifiers(t *testing.T) {
	m := optionModule(7)
	m.Functions[0].AccessSpecified = true
	_, err := ParseABI(m.Bytes())
	require.Error(t, err)
	require.Contains(t, err.Error(), "access specifiers")

	// the flag byte only exists from version 7
	m.Version = 6
	m.Structs = m.Structs[1:]
	_, err = ParseABI(m.Bytes())
	require.NoError(t, err)
}
