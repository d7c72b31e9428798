package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"lazyview/internal/model"
)

// Member is one key of an Object.
type Member struct {
	Key   string
	Value any
}

// Object is a JSON object that keeps its keys in insertion order.
type Object []Member

// Get returns the value stored under key.
func (o Object) Get(key string) (any, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", m.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Project renders v as a JSON-ready value:
//   - u8 to u64 become numbers, u128 and u256 decimal strings
//   - vector<u8> becomes a 0x-prefixed hex string, other vectors arrays
//   - labeled structs become Objects in declared field order, positional
//     structs arrays
func Project(v model.Value) (any, error) {
	return model.VisitType[any](v.Type, projection{value: v})
}

// ProjectAll projects each value in order.
func ProjectAll(values []model.Value) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		p, err := Project(v)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

type projection struct {
	value model.Value
}

func (p projection) Bool() (any, error) { return p.value.Bool, nil }

func (p projection) small() (any, error) {
	if p.value.Int == nil {
		return nil, fmt.Errorf("%s value without integer", p.value.Type)
	}
	return p.value.Int.Uint64(), nil
}

func (p projection) big() (any, error) {
	if p.value.Int == nil {
		return nil, fmt.Errorf("%s value without integer", p.value.Type)
	}
	return p.value.Int.Dec(), nil
}

func (p projection) U8() (any, error)   { return p.small() }
func (p projection) U16() (any, error)  { return p.small() }
func (p projection) U32() (any, error)  { return p.small() }
func (p projection) U64() (any, error)  { return p.small() }
func (p projection) U128() (any, error) { return p.big() }
func (p projection) U256() (any, error) { return p.big() }

func (p projection) Address() (any, error) { return p.value.Addr.String(), nil }
func (p projection) Signer() (any, error)  { return p.value.Addr.String(), nil }

func (p projection) Vector(elem model.TypeTag) (any, error) {
	if elem.Kind == model.KindU8 {
		data, ok := p.value.Bytes()
		if !ok {
			return nil, fmt.Errorf("malformed vector<u8> value")
		}
		return hexutil.Encode(data), nil
	}
	out := make([]any, len(p.value.Elems))
	for i, e := range p.value.Elems {
		v, err := Project(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p projection) Struct(model.StructTag) (any, error) {
	if !p.value.Labeled {
		out := make([]any, len(p.value.Fields))
		for i, f := range p.value.Fields {
			v, err := Project(f.Value)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	out := make(Object, len(p.value.Fields))
	for i, f := range p.value.Fields {
		v, err := Project(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		out[i] = Member{Key: f.Name, Value: v}
	}
	return out, nil
}

func (p projection) Generic(index uint16) (any, error) {
	return nil, fmt.Errorf("cannot project value of type parameter T%d", index)
}

func (p projection) Reference(inner model.TypeTag, mutable bool) (any, error) {
	return nil, fmt.Errorf("cannot project reference %s", model.ReferenceTo(inner, mutable))
}

func (p projection) Unparsable(raw string) (any, error) {
	return nil, fmt.Errorf("cannot project unparsable type %q", raw)
}
