package movebin

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"lazyview/internal/bcs"
	"lazyview/internal/model"
)

var (
	ErrBadMagic           = errors.New("movebin: bad magic")
	ErrUnsupportedVersion = errors.New("movebin: unsupported bytecode version")
)

type tableHeader struct {
	offset uint32
	length uint32
}

type moduleHandle struct {
	address uint32
	name    uint32
}

type structHandle struct {
	module     uint32
	name       uint32
	typeParams int
}

type functionHandle struct {
	module     uint32
	name       uint32
	params     uint32
	returns    uint32
	typeParams int
}

type reader struct {
	version    uint32
	tables     map[uint8]tableHeader
	content    []byte
	contentEnd int

	idents     []string
	addresses  []model.Address
	modules    []moduleHandle
	structs    []structHandle
	signatures [][]model.TypeTag
	functions  []functionHandle
}

// ParseABI extracts the ABI of a serialized module.
func ParseABI(code []byte) (*model.ModuleABI, error) {
	r, err := newReader(code)
	if err != nil {
		return nil, err
	}
	return r.abi()
}

func newReader(code []byte) (*reader, error) {
	if len(code) < 8 || !bytes.Equal(code[:4], Magic[:]) {
		return nil, ErrBadMagic
	}
	version := binary.LittleEndian.Uint32(code[4:8]) & versionMask
	if version < minVersion || version > maxVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	dec := bcs.NewDecoder(code[8:])
	count, err := dec.Uleb128()
	if err != nil {
		return nil, fmt.Errorf("movebin: table count: %w", err)
	}
	r := &reader{version: version, tables: make(map[uint8]tableHeader, count)}
	var end uint64
	for i := uint32(0); i < count; i++ {
		kind, err := dec.U8()
		if err != nil {
			return nil, fmt.Errorf("movebin: table header: %w", err)
		}
		offset, err := dec.Uleb128()
		if err != nil {
			return nil, fmt.Errorf("movebin: table offset: %w", err)
		}
		length, err := dec.Uleb128()
		if err != nil {
			return nil, fmt.Errorf("movebin: table length: %w", err)
		}
		if _, dup := r.tables[kind]; dup {
			return nil, fmt.Errorf("movebin: duplicate table %#x", kind)
		}
		r.tables[kind] = tableHeader{offset: offset, length: length}
		if e := uint64(offset) + uint64(length); e > end {
			end = e
		}
	}
	start := 8 + dec.Offset()
	if uint64(len(code)-start) < end {
		return nil, errors.New("movebin: tables exceed module size")
	}
	r.content = code[start:]
	r.contentEnd = int(end)
	return r, nil
}

func (r *reader) table(kind uint8) *bcs.Decoder {
	h, ok := r.tables[kind]
	if !ok {
		return bcs.NewDecoder(nil)
	}
	return bcs.NewDecoder(r.content[h.offset : h.offset+h.length])
}

func (r *reader) abi() (*model.ModuleABI, error) {
	loaders := []struct {
		name string
		load func() error
	}{
		{"identifiers", r.loadIdentifiers},
		{"address identifiers", r.loadAddresses},
		{"module handles", r.loadModuleHandles},
		{"struct handles", r.loadStructHandles},
		{"signatures", r.loadSignatures},
		{"function handles", r.loadFunctionHandles},
	}
	for _, l := range loaders {
		if err := l.load(); err != nil {
			return nil, fmt.Errorf("movebin: %s: %w", l.name, err)
		}
	}

	selfIdx, err := bcs.NewDecoder(r.content[r.contentEnd:]).Uleb128()
	if err != nil {
		return nil, fmt.Errorf("movebin: self module handle: %w", err)
	}
	self, err := r.moduleHandle(selfIdx)
	if err != nil {
		return nil, err
	}
	addr, name, err := r.moduleIdentity(self)
	if err != nil {
		return nil, err
	}

	out := &model.ModuleABI{Address: addr, Name: name}
	if out.Structs, err = r.loadStructDefs(); err != nil {
		return nil, fmt.Errorf("movebin: struct defs: %w", err)
	}
	for _, fh := range r.functions {
		if fh.module != selfIdx {
			continue
		}
		fn := model.FunctionABI{TypeParamCount: fh.typeParams}
		if fn.Name, err = r.ident(fh.name); err != nil {
			return nil, err
		}
		if fn.Params, err = r.signature(fh.params); err != nil {
			return nil, err
		}
		if fn.Returns, err = r.signature(fh.returns); err != nil {
			return nil, err
		}
		out.Functions = append(out.Functions, fn)
	}
	return out, nil
}

func (r *reader) loadIdentifiers() error {
	dec := r.table(tableIdentifiers)
	for dec.Remaining() > 0 {
		s, err := dec.Str()
		if err != nil {
			return err
		}
		r.idents = append(r.idents, s)
	}
	return nil
}

func (r *reader) loadAddresses() error {
	dec := r.table(tableAddressIdentifiers)
	if dec.Remaining()%model.AddressLength != 0 {
		return fmt.Errorf("table length %d is not a multiple of %d", dec.Remaining(), model.AddressLength)
	}
	for dec.Remaining() > 0 {
		addr, err := model.DecodeAddress(dec)
		if err != nil {
			return err
		}
		r.addresses = append(r.addresses, addr)
	}
	return nil
}

func (r *reader) loadModuleHandles() error {
	dec := r.table(tableModuleHandles)
	for dec.Remaining() > 0 {
		addr, err := dec.Uleb128()
		if err != nil {
			return err
		}
		name, err := dec.Uleb128()
		if err != nil {
			return err
		}
		r.modules = append(r.modules, moduleHandle{address: addr, name: name})
	}
	return nil
}

func (r *reader) loadStructHandles() error {
	dec := r.table(tableStructHandles)
	for dec.Remaining() > 0 {
		var h structHandle
		var err error
		if h.module, err = dec.Uleb128(); err != nil {
			return err
		}
		if h.name, err = dec.Uleb128(); err != nil {
			return err
		}
		if _, err = dec.Uleb128(); err != nil { // abilities
			return err
		}
		count, err := dec.Uleb128()
		if err != nil {
			return err
		}
		for i := uint32(0); i < count; i++ {
			if _, err := dec.Uleb128(); err != nil { // constraints
				return err
			}
			if _, err := dec.U8(); err != nil { // is_phantom
				return err
			}
		}
		h.typeParams = int(count)
		r.structs = append(r.structs, h)
	}
	return nil
}

func (r *reader) loadSignatures() error {
	dec := r.table(tableSignatures)
	for dec.Remaining() > 0 {
		count, err := dec.Uleb128()
		if err != nil {
			return err
		}
		sig := make([]model.TypeTag, 0, count)
		for i := uint32(0); i < count; i++ {
			tok, err := r.token(dec, 0)
			if err != nil {
				return err
			}
			sig = append(sig, tok)
		}
		r.signatures = append(r.signatures, sig)
	}
	return nil
}

func (r *reader) loadFunctionHandles() error {
	dec := r.table(tableFunctionHandles)
	for dec.Remaining() > 0 {
		var h functionHandle
		var err error
		for _, dst := range []*uint32{&h.module, &h.name, &h.params, &h.returns} {
			if *dst, err = dec.Uleb128(); err != nil {
				return err
			}
		}
		count, err := dec.Uleb128()
		if err != nil {
			return err
		}
		for i := uint32(0); i < count; i++ {
			if _, err := dec.Uleb128(); err != nil {
				return err
			}
		}
		h.typeParams = int(count)
		if r.version >= 7 {
			present, err := dec.U8()
			if err != nil {
				return err
			}
			if present != 0 {
				return errors.New("access specifiers are not supported")
			}
		}
		if r.version >= 8 {
			attrs, err := dec.Uleb128()
			if err != nil {
				return err
			}
			if _, err := dec.Fixed(int(attrs)); err != nil {
				return err
			}
		}
		r.functions = append(r.functions, h)
	}
	return nil
}

func (r *reader) loadStructDefs() ([]model.StructABI, error) {
	dec := r.table(tableStructDefs)
	var out []model.StructABI
	for dec.Remaining() > 0 {
		handleIdx, err := dec.Uleb128()
		if err != nil {
			return nil, err
		}
		if int(handleIdx) >= len(r.structs) {
			return nil, fmt.Errorf("struct handle %d out of range", handleIdx)
		}
		handle := r.structs[handleIdx]
		name, err := r.ident(handle.name)
		if err != nil {
			return nil, err
		}
		st := model.StructABI{Name: name, TypeParamCount: handle.typeParams}

		tag, err := dec.U8()
		if err != nil {
			return nil, err
		}
		switch tag {
		case fieldsNative:
			st.Native = true
		case fieldsDeclared:
			if st.Fields, err = r.fields(dec); err != nil {
				return nil, err
			}
		case fieldsVariants:
			// enum layouts have no positional field list; skip the variants
			variants, err := dec.Uleb128()
			if err != nil {
				return nil, err
			}
			for i := uint32(0); i < variants; i++ {
				if _, err := dec.Uleb128(); err != nil {
					return nil, err
				}
				if _, err := r.fields(dec); err != nil {
					return nil, err
				}
			}
			continue
		default:
			return nil, fmt.Errorf("unknown field information tag %#x", tag)
		}
		out = append(out, st)
	}
	return out, nil
}

func (r *reader) fields(dec *bcs.Decoder) ([]model.FieldABI, error) {
	count, err := dec.Uleb128()
	if err != nil {
		return nil, err
	}
	fields := make([]model.FieldABI, 0, count)
	for i := uint32(0); i < count; i++ {
		nameIdx, err := dec.Uleb128()
		if err != nil {
			return nil, err
		}
		name, err := r.ident(nameIdx)
		if err != nil {
			return nil, err
		}
		typ, err := r.token(dec, 0)
		if err != nil {
			return nil, err
		}
		fields = append(fields, model.FieldABI{Name: name, Type: typ})
	}
	return fields, nil
}

func (r *reader) token(dec *bcs.Decoder, depth int) (model.TypeTag, error) {
	if depth > maxTokenDepth {
		return model.TypeTag{}, errors.New("signature token nesting too deep")
	}
	tag, err := dec.U8()
	if err != nil {
		return model.TypeTag{}, err
	}
	switch tag {
	case tokBool:
		return model.Primitive(model.KindBool), nil
	case tokU8:
		return model.Primitive(model.KindU8), nil
	case tokU16:
		return model.Primitive(model.KindU16), nil
	case tokU32:
		return model.Primitive(model.KindU32), nil
	case tokU64:
		return model.Primitive(model.KindU64), nil
	case tokU128:
		return model.Primitive(model.KindU128), nil
	case tokU256:
		return model.Primitive(model.KindU256), nil
	case tokAddress:
		return model.Primitive(model.KindAddress), nil
	case tokSigner:
		return model.Primitive(model.KindSigner), nil
	case tokVector:
		elem, err := r.token(dec, depth+1)
		if err != nil {
			return model.TypeTag{}, err
		}
		return model.VectorOf(elem), nil
	case tokReference, tokMutReference:
		inner, err := r.token(dec, depth+1)
		if err != nil {
			return model.TypeTag{}, err
		}
		return model.ReferenceTo(inner, tag == tokMutReference), nil
	case tokTypeParam:
		idx, err := dec.Uleb128()
		if err != nil {
			return model.TypeTag{}, err
		}
		return model.GenericParam(uint16(idx)), nil
	case tokStruct, tokStructInst:
		idx, err := dec.Uleb128()
		if err != nil {
			return model.TypeTag{}, err
		}
		st, err := r.structTag(idx)
		if err != nil {
			return model.TypeTag{}, err
		}
		if tag == tokStructInst {
			count, err := dec.Uleb128()
			if err != nil {
				return model.TypeTag{}, err
			}
			for i := uint32(0); i < count; i++ {
				arg, err := r.token(dec, depth+1)
				if err != nil {
					return model.TypeTag{}, err
				}
				st.TypeArgs = append(st.TypeArgs, arg)
			}
		}
		return model.StructOf(st), nil
	default:
		return model.TypeTag{}, fmt.Errorf("unknown signature token %#x", tag)
	}
}

func (r *reader) structTag(idx uint32) (model.StructTag, error) {
	if int(idx) >= len(r.structs) {
		return model.StructTag{}, fmt.Errorf("struct handle %d out of range", idx)
	}
	h := r.structs[idx]
	mh, err := r.moduleHandle(h.module)
	if err != nil {
		return model.StructTag{}, err
	}
	addr, module, err := r.moduleIdentity(mh)
	if err != nil {
		return model.StructTag{}, err
	}
	name, err := r.ident(h.name)
	if err != nil {
		return model.StructTag{}, err
	}
	return model.StructTag{Address: addr, Module: module, Name: name}, nil
}

func (r *reader) moduleHandle(idx uint32) (moduleHandle, error) {
	if int(idx) >= len(r.modules) {
		return moduleHandle{}, fmt.Errorf("movebin: module handle %d out of range", idx)
	}
	return r.modules[idx], nil
}

func (r *reader) moduleIdentity(h moduleHandle) (model.Address, string, error) {
	if int(h.address) >= len(r.addresses) {
		return model.Address{}, "", fmt.Errorf("movebin: address %d out of range", h.address)
	}
	name, err := r.ident(h.name)
	if err != nil {
		return model.Address{}, "", err
	}
	return r.addresses[h.address], name, nil
}

func (r *reader) ident(idx uint32) (string, error) {
	if int(idx) >= len(r.idents) {
		return "", fmt.Errorf("movebin: identifier %d out of range", idx)
	}
	return r.idents[idx], nil
}

func (r *reader) signature(idx uint32) ([]model.TypeTag, error) {
	if int(idx) >= len(r.signatures) {
		return nil, fmt.Errorf("movebin: signature %d out of range", idx)
	}
	return r.signatures[idx], nil
}
