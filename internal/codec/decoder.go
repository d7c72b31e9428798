package codec

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"lazyview/internal/bcs"
	"lazyview/internal/model"
)

// StructSource provides declared struct layouts. resolver.Resolver
// satisfies it.
type StructSource interface {
	Struct(ctx context.Context, tag model.StructTag) (model.StructABI, error)
}

// maxDepth bounds value nesting while decoding.
const maxDepth = 128

// Decoder turns encoded values into positional value trees.
type Decoder struct {
	structs StructSource
}

func NewDecoder(structs StructSource) *Decoder {
	return &Decoder{structs: structs}
}

// Decode decodes data as a single value of type t. The whole input must be
// consumed.
func (d *Decoder) Decode(ctx context.Context, data []byte, t model.TypeTag) (model.Value, error) {
	dec := bcs.NewDecoder(data)
	v, err := model.VisitType[model.Value](t, &valueDecoder{ctx: ctx, dec: dec, structs: d.structs})
	if err != nil {
		return model.Value{}, fmt.Errorf("decode %s: %w", t, err)
	}
	if err := dec.Finish(); err != nil {
		return model.Value{}, fmt.Errorf("decode %s: %w", t, err)
	}
	return v, nil
}

type valueDecoder struct {
	ctx     context.Context
	dec     *bcs.Decoder
	structs StructSource
	depth   int
}

func (d *valueDecoder) Bool() (model.Value, error) {
	b, err := d.dec.Bool()
	if err != nil {
		return model.Value{}, err
	}
	return model.BoolValue(b), nil
}

func (d *valueDecoder) U8() (model.Value, error) {
	n, err := d.dec.U8()
	if err != nil {
		return model.Value{}, err
	}
	return model.U8Value(n), nil
}

func (d *valueDecoder) U16() (model.Value, error) {
	n, err := d.dec.U16()
	if err != nil {
		return model.Value{}, err
	}
	return model.UintValue(model.KindU16, uint256.NewInt(uint64(n))), nil
}

func (d *valueDecoder) U32() (model.Value, error) {
	n, err := d.dec.U32()
	if err != nil {
		return model.Value{}, err
	}
	return model.UintValue(model.KindU32, uint256.NewInt(uint64(n))), nil
}

func (d *valueDecoder) U64() (model.Value, error) {
	n, err := d.dec.U64()
	if err != nil {
		return model.Value{}, err
	}
	return model.U64Value(n), nil
}

func (d *valueDecoder) U128() (model.Value, error) {
	n, err := d.dec.U128()
	if err != nil {
		return model.Value{}, err
	}
	return model.U128Value(n), nil
}

func (d *valueDecoder) U256() (model.Value, error) {
	n, err := d.dec.U256()
	if err != nil {
		return model.Value{}, err
	}
	return model.UintValue(model.KindU256, n), nil
}

func (d *valueDecoder) Address() (model.Value, error) {
	addr, err := model.DecodeAddress(d.dec)
	if err != nil {
		return model.Value{}, err
	}
	return model.AddressValue(addr), nil
}

func (d *valueDecoder) Signer() (model.Value, error) {
	addr, err := model.DecodeAddress(d.dec)
	if err != nil {
		return model.Value{}, err
	}
	return model.SignerValue(addr), nil
}

func (d *valueDecoder) Vector(elem model.TypeTag) (model.Value, error) {
	n, err := d.dec.Uleb128()
	if err != nil {
		return model.Value{}, err
	}
	if int(n) > d.dec.Remaining() {
		return model.Value{}, fmt.Errorf("vector length %d exceeds input: %w", n, bcs.ErrUnexpectedEOF)
	}
	if err := d.enter(); err != nil {
		return model.Value{}, err
	}
	defer d.leave()

	elems := make([]model.Value, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := model.VisitType[model.Value](elem, d)
		if err != nil {
			return model.Value{}, err
		}
		elems = append(elems, v)
	}
	return model.VectorValue(elem, elems), nil
}

func (d *valueDecoder) Struct(tag model.StructTag) (model.Value, error) {
	if d.structs == nil {
		return model.Value{}, fmt.Errorf("no struct layout source for %s", tag)
	}
	layout, err := d.structs.Struct(d.ctx, tag)
	if err != nil {
		return model.Value{}, fmt.Errorf("layout of %s: %w", tag, err)
	}
	if layout.Native {
		return model.Value{}, fmt.Errorf("native struct %s has no layout", tag)
	}
	if err := d.enter(); err != nil {
		return model.Value{}, err
	}
	defer d.leave()

	values := make([]model.Value, 0, len(layout.Fields))
	for _, f := range layout.Fields {
		v, err := model.VisitType[model.Value](f.Type.Substitute(tag.TypeArgs), d)
		if err != nil {
			return model.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
		values = append(values, v)
	}
	return model.PositionalStruct(tag, values), nil
}

func (d *valueDecoder) Generic(index uint16) (model.Value, error) {
	return model.Value{}, fmt.Errorf("cannot decode uninstantiated type parameter T%d", index)
}

func (d *valueDecoder) Reference(inner model.TypeTag, mutable bool) (model.Value, error) {
	return model.Value{}, fmt.Errorf("cannot decode reference type %s", model.ReferenceTo(inner, mutable))
}

func (d *valueDecoder) Unparsable(raw string) (model.Value, error) {
	return model.Value{}, fmt.Errorf("cannot decode unparsable type %q", raw)
}

func (d *valueDecoder) enter() error {
	if d.depth >= maxDepth {
		return fmt.Errorf("value nesting exceeds %d", maxDepth)
	}
	d.depth++
	return nil
}

func (d *valueDecoder) leave() { d.depth-- }
