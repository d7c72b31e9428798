package codec

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"lazyview/internal/model"
	"lazyview/internal/resolver"
)

// Annotator attaches declared field names to positional struct values.
type Annotator struct {
	structs StructSource
	logger  *zap.Logger
}

func NewAnnotator(structs StructSource, logger *zap.Logger) *Annotator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Annotator{structs: structs, logger: logger}
}

// Annotate returns a copy of v whose structs carry field names. Structs
// whose layout cannot be found are left positional. Annotating a labeled
// tree again yields the same tree.
func (a *Annotator) Annotate(ctx context.Context, v model.Value, t model.TypeTag) (model.Value, error) {
	return model.VisitType[model.Value](t, &annotation{ctx: ctx, a: a, value: v})
}

type annotation struct {
	ctx   context.Context
	a     *Annotator
	value model.Value
}

func (n *annotation) keep() (model.Value, error) { return n.value, nil }

func (n *annotation) Bool() (model.Value, error)    { return n.keep() }
func (n *annotation) U8() (model.Value, error)      { return n.keep() }
func (n *annotation) U16() (model.Value, error)     { return n.keep() }
func (n *annotation) U32() (model.Value, error)     { return n.keep() }
func (n *annotation) U64() (model.Value, error)     { return n.keep() }
func (n *annotation) U128() (model.Value, error)    { return n.keep() }
func (n *annotation) U256() (model.Value, error)    { return n.keep() }
func (n *annotation) Address() (model.Value, error) { return n.keep() }
func (n *annotation) Signer() (model.Value, error)  { return n.keep() }

func (n *annotation) Generic(uint16) (model.Value, error)                 { return n.keep() }
func (n *annotation) Reference(model.TypeTag, bool) (model.Value, error) { return n.keep() }
func (n *annotation) Unparsable(string) (model.Value, error)             { return n.keep() }

func (n *annotation) Vector(elem model.TypeTag) (model.Value, error) {
	if len(n.value.Elems) == 0 || isScalar(elem) {
		return n.value, nil
	}
	out := n.value
	out.Elems = make([]model.Value, len(n.value.Elems))
	for i, e := range n.value.Elems {
		labeled, err := n.a.Annotate(n.ctx, e, elem)
		if err != nil {
			return model.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		out.Elems[i] = labeled
	}
	return out, nil
}

func (n *annotation) Struct(tag model.StructTag) (model.Value, error) {
	layout, err := n.a.structs.Struct(n.ctx, tag)
	if err != nil {
		if errors.Is(err, model.ErrModuleNotFound) || errors.Is(err, resolver.ErrStructNotFound) {
			n.a.logger.Debug("struct layout unavailable, leaving value positional",
				zap.String("type", tag.String()),
				zap.Error(err),
			)
			return n.value, nil
		}
		return model.Value{}, fmt.Errorf("layout of %s: %w", tag, err)
	}
	if len(layout.Fields) != len(n.value.Fields) {
		return model.Value{}, fmt.Errorf("%w: %s declares %d fields, value has %d",
			model.ErrFieldArity, tag, len(layout.Fields), len(n.value.Fields))
	}

	out := n.value
	out.Fields = make([]model.Field, len(layout.Fields))
	for i, f := range layout.Fields {
		labeled, err := n.a.Annotate(n.ctx, n.value.Fields[i].Value, f.Type.Substitute(tag.TypeArgs))
		if err != nil {
			return model.Value{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
		out.Fields[i] = model.Field{Name: f.Name, Value: labeled}
	}
	out.Labeled = true
	return out, nil
}

func isScalar(t model.TypeTag) bool {
	switch t.Kind {
	case model.KindVector, model.KindStruct:
		return false
	default:
		return true
	}
}
