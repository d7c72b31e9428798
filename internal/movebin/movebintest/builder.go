// Package movebintest serializes small modules in the Move binary format for
// tests that need real bytecode to flow through the resolver.
package movebintest

import (
	"encoding/binary"
	"fmt"

	"lazyview/internal/bcs"
	"lazyview/internal/model"
)

// Module describes the module to serialize.
type Module struct {
	Address model.Address
	Name    string
	// Version of the binary format; zero means 6.
	Version   uint32
	Structs   []Struct
	Functions []Function
}

// Struct is a struct or, when Variants is set, an enum (version 7 and up).
type Struct struct {
	Name       string
	TypeParams int
	Fields     []model.FieldABI
	Variants   []Variant
}

type Variant struct {
	Name   string
	Fields []model.FieldABI
}

type Function struct {
	Name       string
	TypeParams int
	Params     []model.TypeTag
	Returns    []model.TypeTag
	// AccessSpecified marks the handle as carrying an (empty) access
	// specifier list. Written from version 7.
	AccessSpecified bool
	// Attributes are raw attribute bytes. Written from version 8.
	Attributes []byte
}

type builder struct {
	idents     []string
	identIdx   map[string]uint64
	addrs      []model.Address
	addrIdx    map[model.Address]uint64
	modules    [][2]uint64
	moduleIdx  map[model.ModuleID]uint64
	structs    []*bcs.Encoder
	structIdx  map[string]uint64
	sigs       []*bcs.Encoder
	sigIdx     map[string]uint64
	functions  *bcs.Encoder
	structDefs *bcs.Encoder
}

// Bytes serializes m in the binary format of m.Version.
func (m Module) Bytes() []byte {
	version := m.Version
	if version == 0 {
		version = 6
	}
	b := &builder{
		identIdx:   map[string]uint64{},
		addrIdx:    map[model.Address]uint64{},
		moduleIdx:  map[model.ModuleID]uint64{},
		structIdx:  map[string]uint64{},
		sigIdx:     map[string]uint64{},
		functions:  bcs.NewEncoder(),
		structDefs: bcs.NewEncoder(),
	}
	self := model.ModuleID{Address: m.Address, Name: m.Name}
	selfIdx := b.module(self)

	for _, st := range m.Structs {
		b.structHandle(model.StructTag{Address: m.Address, Module: m.Name, Name: st.Name}, st.TypeParams)
	}
	for _, st := range m.Structs {
		idx := b.structIdx[model.StructTag{Address: m.Address, Module: m.Name, Name: st.Name}.String()]
		b.structDefs.Uleb128(idx)
		if st.Variants != nil {
			b.structDefs.U8(0x3)
			b.structDefs.Uleb128(uint64(len(st.Variants)))
			for _, v := range st.Variants {
				b.structDefs.Uleb128(b.ident(v.Name))
				b.fields(b.structDefs, v.Fields)
			}
			continue
		}
		b.structDefs.U8(0x2)
		b.fields(b.structDefs, st.Fields)
	}
	for _, fn := range m.Functions {
		b.functions.Uleb128(selfIdx)
		b.functions.Uleb128(b.ident(fn.Name))
		b.functions.Uleb128(b.signature(fn.Params))
		b.functions.Uleb128(b.signature(fn.Returns))
		b.functions.Uleb128(uint64(fn.TypeParams))
		for i := 0; i < fn.TypeParams; i++ {
			b.functions.Uleb128(0)
		}
		if version >= 7 {
			if fn.AccessSpecified {
				b.functions.U8(1)
				b.functions.Uleb128(0)
			} else {
				b.functions.U8(0)
			}
		}
		if version >= 8 {
			b.functions.ByteSlice(fn.Attributes)
		}
	}

	modules := bcs.NewEncoder()
	for _, mh := range b.modules {
		modules.Uleb128(mh[0])
		modules.Uleb128(mh[1])
	}
	idents := bcs.NewEncoder()
	for _, s := range b.idents {
		idents.Str(s)
	}
	addrs := bcs.NewEncoder()
	for _, a := range b.addrs {
		addrs.Fixed(a[:])
	}

	tables := []struct {
		kind uint8
		data []byte
	}{
		{0x1, modules.Bytes()},
		{0x2, concat(b.structs)},
		{0x3, b.functions.Bytes()},
		{0x5, concat(b.sigs)},
		{0x7, idents.Bytes()},
		{0x8, addrs.Bytes()},
		{0xA, b.structDefs.Bytes()},
	}

	out := bcs.NewEncoder()
	out.Fixed([]byte{0xA1, 0x1C, 0xEB, 0x0B})
	out.Fixed(binary.LittleEndian.AppendUint32(nil, version))
	out.Uleb128(uint64(len(tables)))
	var offset uint64
	for _, t := range tables {
		out.U8(t.kind)
		out.Uleb128(offset)
		out.Uleb128(uint64(len(t.data)))
		offset += uint64(len(t.data))
	}
	for _, t := range tables {
		out.Fixed(t.data)
	}
	out.Uleb128(selfIdx)
	return out.Bytes()
}

func concat(encs []*bcs.Encoder) []byte {
	var out []byte
	for _, e := range encs {
		out = append(out, e.Bytes()...)
	}
	return out
}

func (b *builder) fields(enc *bcs.Encoder, fields []model.FieldABI) {
	enc.Uleb128(uint64(len(fields)))
	for _, f := range fields {
		enc.Uleb128(b.ident(f.Name))
		b.token(enc, f.Type)
	}
}

func (b *builder) ident(s string) uint64 {
	if idx, ok := b.identIdx[s]; ok {
		return idx
	}
	idx := uint64(len(b.idents))
	b.idents = append(b.idents, s)
	b.identIdx[s] = idx
	return idx
}

func (b *builder) address(a model.Address) uint64 {
	if idx, ok := b.addrIdx[a]; ok {
		return idx
	}
	idx := uint64(len(b.addrs))
	b.addrs = append(b.addrs, a)
	b.addrIdx[a] = idx
	return idx
}

func (b *builder) module(id model.ModuleID) uint64 {
	if idx, ok := b.moduleIdx[id]; ok {
		return idx
	}
	idx := uint64(len(b.modules))
	b.modules = append(b.modules, [2]uint64{b.address(id.Address), b.ident(id.Name)})
	b.moduleIdx[id] = idx
	return idx
}

func (b *builder) structHandle(tag model.StructTag, typeParams int) uint64 {
	key := model.StructTag{Address: tag.Address, Module: tag.Module, Name: tag.Name}.String()
	if idx, ok := b.structIdx[key]; ok {
		return idx
	}
	enc := bcs.NewEncoder()
	enc.Uleb128(b.module(tag.ModuleID()))
	enc.Uleb128(b.ident(tag.Name))
	enc.Uleb128(0x7) // copy, drop, store
	enc.Uleb128(uint64(typeParams))
	for i := 0; i < typeParams; i++ {
		enc.Uleb128(0)
		enc.U8(0)
	}
	idx := uint64(len(b.structs))
	b.structs = append(b.structs, enc)
	b.structIdx[key] = idx
	return idx
}

func (b *builder) signature(types []model.TypeTag) uint64 {
	enc := bcs.NewEncoder()
	enc.Uleb128(uint64(len(types)))
	for _, t := range types {
		b.token(enc, t)
	}
	key := string(enc.Bytes())
	if idx, ok := b.sigIdx[key]; ok {
		return idx
	}
	idx := uint64(len(b.sigs))
	b.sigs = append(b.sigs, enc)
	b.sigIdx[key] = idx
	return idx
}

func (b *builder) token(enc *bcs.Encoder, t model.TypeTag) {
	switch t.Kind {
	case model.KindBool:
		enc.U8(0x1)
	case model.KindU8:
		enc.U8(0x2)
	case model.KindU64:
		enc.U8(0x3)
	case model.KindU128:
		enc.U8(0x4)
	case model.KindAddress:
		enc.U8(0x5)
	case model.KindReference:
		if t.Mutable {
			enc.U8(0x7)
		} else {
			enc.U8(0x6)
		}
		b.token(enc, *t.Elem)
	case model.KindStruct:
		idx := b.structHandle(*t.Struct, len(t.Struct.TypeArgs))
		if len(t.Struct.TypeArgs) == 0 {
			enc.U8(0x8)
			enc.Uleb128(idx)
			return
		}
		enc.U8(0xB)
		enc.Uleb128(idx)
		enc.Uleb128(uint64(len(t.Struct.TypeArgs)))
		for _, arg := range t.Struct.TypeArgs {
			b.token(enc, arg)
		}
	case model.KindGeneric:
		enc.U8(0x9)
		enc.Uleb128(uint64(t.Index))
	case model.KindVector:
		enc.U8(0xA)
		b.token(enc, *t.Elem)
	case model.KindSigner:
		enc.U8(0xC)
	case model.KindU16:
		enc.U8(0xD)
	case model.KindU32:
		enc.U8(0xE)
	case model.KindU256:
		enc.U8(0xF)
	default:
		panic(fmt.Sprintf("movebintest: cannot serialize %s", t))
	}
}
