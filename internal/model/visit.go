package model

import "fmt"

// TypeVisitor handles every TypeTag variant. Encoding, decoding, annotation
// and projection are all written as implementations of this interface, so a
// new variant fails to compile until each of them handles it.
type TypeVisitor[R any] interface {
	Bool() (R, error)
	U8() (R, error)
	U16() (R, error)
	U32() (R, error)
	U64() (R, error)
	U128() (R, error)
	U256() (R, error)
	Address() (R, error)
	Signer() (R, error)
	Vector(elem TypeTag) (R, error)
	Struct(tag StructTag) (R, error)
	Generic(index uint16) (R, error)
	Reference(inner TypeTag, mutable bool) (R, error)
	Unparsable(raw string) (R, error)
}

// VisitType dispatches t to the matching visitor method.
func VisitType[R any](t TypeTag, v TypeVisitor[R]) (R, error) {
	switch t.Kind {
	case KindBool:
		return v.Bool()
	case KindU8:
		return v.U8()
	case KindU16:
		return v.U16()
	case KindU32:
		return v.U32()
	case KindU64:
		return v.U64()
	case KindU128:
		return v.U128()
	case KindU256:
		return v.U256()
	case KindAddress:
		return v.Address()
	case KindSigner:
		return v.Signer()
	case KindVector:
		return v.Vector(*t.Elem)
	case KindStruct:
		return v.Struct(*t.Struct)
	case KindGeneric:
		return v.Generic(t.Index)
	case KindReference:
		return v.Reference(*t.Elem, t.Mutable)
	case KindUnparsable:
		return v.Unparsable(t.Raw)
	default:
		var zero R
		return zero, fmt.Errorf("invalid type kind %d", t.Kind)
	}
}
