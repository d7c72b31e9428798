package model

import (
	"fmt"

	"lazyview/internal/bcs"
)

// Variant indices of the on-chain TypeTag enum.
const (
	typeTagBool    = 0
	typeTagU8      = 1
	typeTagU64     = 2
	typeTagU128    = 3
	typeTagAddress = 4
	typeTagSigner  = 5
	typeTagVector  = 6
	typeTagStruct  = 7
	typeTagU16     = 8
	typeTagU32     = 9
	typeTagU256    = 10
)

var kindToTypeTag = map[Kind]uint64{
	KindBool:    typeTagBool,
	KindU8:      typeTagU8,
	KindU64:     typeTagU64,
	KindU128:    typeTagU128,
	KindAddress: typeTagAddress,
	KindSigner:  typeTagSigner,
	KindU16:     typeTagU16,
	KindU32:     typeTagU32,
	KindU256:    typeTagU256,
}

// EncodeTypeTag writes the canonical encoding of a fully instantiated type.
func EncodeTypeTag(enc *bcs.Encoder, t TypeTag) error {
	if variant, ok := kindToTypeTag[t.Kind]; ok {
		enc.Uleb128(variant)
		return nil
	}
	switch t.Kind {
	case KindVector:
		enc.Uleb128(typeTagVector)
		return EncodeTypeTag(enc, *t.Elem)
	case KindStruct:
		enc.Uleb128(typeTagStruct)
		return EncodeStructTag(enc, *t.Struct)
	default:
		return fmt.Errorf("type %s has no type tag encoding", t)
	}
}

// EncodeStructTag writes address, module, name and type arguments.
func EncodeStructTag(enc *bcs.Encoder, s StructTag) error {
	enc.Fixed(s.Address[:])
	enc.Str(s.Module)
	enc.Str(s.Name)
	enc.Uleb128(uint64(len(s.TypeArgs)))
	for _, arg := range s.TypeArgs {
		if err := EncodeTypeTag(enc, arg); err != nil {
			return err
		}
	}
	return nil
}

// DecodeAddress reads a fixed-length address.
func DecodeAddress(dec *bcs.Decoder) (Address, error) {
	raw, err := dec.Fixed(AddressLength)
	if err != nil {
		return Address{}, err
	}
	var addr Address
	copy(addr[:], raw)
	return addr, nil
}

// DecodeTypeTag reads a canonical TypeTag.
func DecodeTypeTag(dec *bcs.Decoder) (TypeTag, error) {
	variant, err := dec.Uleb128()
	if err != nil {
		return TypeTag{}, err
	}
	for kind, v := range kindToTypeTag {
		if uint64(variant) == v {
			return Primitive(kind), nil
		}
	}
	switch variant {
	case typeTagVector:
		elem, err := DecodeTypeTag(dec)
		if err != nil {
			return TypeTag{}, err
		}
		return VectorOf(elem), nil
	case typeTagStruct:
		tag, err := DecodeStructTag(dec)
		if err != nil {
			return TypeTag{}, err
		}
		return StructOf(tag), nil
	default:
		return TypeTag{}, fmt.Errorf("unknown type tag variant %d", variant)
	}
}

// DecodeStructTag reads a canonical StructTag.
func DecodeStructTag(dec *bcs.Decoder) (StructTag, error) {
	addr, err := DecodeAddress(dec)
	if err != nil {
		return StructTag{}, err
	}
	module, err := dec.Str()
	if err != nil {
		return StructTag{}, err
	}
	name, err := dec.Str()
	if err != nil {
		return StructTag{}, err
	}
	count, err := dec.Uleb128()
	if err != nil {
		return StructTag{}, err
	}
	tag := StructTag{Address: addr, Module: module, Name: name}
	for i := uint32(0); i < count; i++ {
		arg, err := DecodeTypeTag(dec)
		if err != nil {
			return StructTag{}, err
		}
		tag.TypeArgs = append(tag.TypeArgs, arg)
	}
	return tag, nil
}
