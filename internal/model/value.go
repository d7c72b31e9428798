package model

import "github.com/holiman/uint256"

// Value is a Move value tree. Struct values produced by the engine's decoder
// are positional (Labeled false, empty field names); the annotator produces
// labeled copies whose field names follow the ABI declaration order.
type Value struct {
	Type    TypeTag
	Bool    bool
	Int     *uint256.Int
	Addr    Address
	Elems   []Value
	Fields  []Field
	Labeled bool
}

// Field is one struct field. Name is empty in positional trees.
type Field struct {
	Name  string
	Value Value
}

func BoolValue(b bool) Value { return Value{Type: Primitive(KindBool), Bool: b} }

func U8Value(n uint8) Value { return UintValue(KindU8, uint256.NewInt(uint64(n))) }

func U64Value(n uint64) Value { return UintValue(KindU64, uint256.NewInt(n)) }

func U128Value(n *uint256.Int) Value { return UintValue(KindU128, n) }

// UintValue builds an unsigned integer value of the given width kind.
func UintValue(kind Kind, n *uint256.Int) Value {
	return Value{Type: Primitive(kind), Int: new(uint256.Int).Set(n)}
}

func AddressValue(addr Address) Value { return Value{Type: Primitive(KindAddress), Addr: addr} }

func SignerValue(addr Address) Value { return Value{Type: Primitive(KindSigner), Addr: addr} }

// VectorValue builds a vector value with the given element type.
func VectorValue(elem TypeTag, elems []Value) Value {
	return Value{Type: VectorOf(elem), Elems: elems}
}

// BytesValue builds a vector<u8> value.
func BytesValue(data []byte) Value {
	elems := make([]Value, len(data))
	for i, b := range data {
		elems[i] = U8Value(b)
	}
	return VectorValue(Primitive(KindU8), elems)
}

// PositionalStruct builds an unlabeled struct value.
func PositionalStruct(tag StructTag, values []Value) Value {
	fields := make([]Field, len(values))
	for i, v := range values {
		fields[i] = Field{Value: v}
	}
	return Value{Type: StructOf(tag), Fields: fields}
}

// Bytes returns the contents of a vector<u8> value.
func (v Value) Bytes() ([]byte, bool) {
	if !v.Type.IsByteVector() {
		return nil, false
	}
	out := make([]byte, len(v.Elems))
	for i, elem := range v.Elems {
		if elem.Int == nil || !elem.Int.IsUint64() || elem.Int.Uint64() > 0xff {
			return nil, false
		}
		out[i] = byte(elem.Int.Uint64())
	}
	return out, true
}
