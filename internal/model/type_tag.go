package model

import (
	"fmt"
	"strings"
)

// Kind enumerates the variants of a TypeTag.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindU256
	KindAddress
	KindSigner
	KindVector
	KindStruct
	KindGeneric
	KindReference
	KindUnparsable
)

var kindNames = map[Kind]string{
	KindBool:    "bool",
	KindU8:      "u8",
	KindU16:     "u16",
	KindU32:     "u32",
	KindU64:     "u64",
	KindU128:    "u128",
	KindU256:    "u256",
	KindAddress: "address",
	KindSigner:  "signer",
}

// TypeTag describes a Move type. Only the fields relevant to Kind are set.
type TypeTag struct {
	Kind    Kind       `json:"kind"`
	Elem    *TypeTag   `json:"elem,omitempty"`
	Struct  *StructTag `json:"struct,omitempty"`
	Index   uint16     `json:"index,omitempty"`
	Mutable bool       `json:"mutable,omitempty"`
	Raw     string     `json:"raw,omitempty"`
}

// StructTag names a struct type with its instantiation.
type StructTag struct {
	Address  Address   `json:"address"`
	Module   string    `json:"module"`
	Name     string    `json:"name"`
	TypeArgs []TypeTag `json:"type_args,omitempty"`
}

func Primitive(kind Kind) TypeTag { return TypeTag{Kind: kind} }

func VectorOf(elem TypeTag) TypeTag { return TypeTag{Kind: KindVector, Elem: &elem} }

func StructOf(tag StructTag) TypeTag { return TypeTag{Kind: KindStruct, Struct: &tag} }

func GenericParam(index uint16) TypeTag { return TypeTag{Kind: KindGeneric, Index: index} }

func ReferenceTo(inner TypeTag, mutable bool) TypeTag {
	return TypeTag{Kind: KindReference, Elem: &inner, Mutable: mutable}
}

func Unparsable(raw string) TypeTag { return TypeTag{Kind: KindUnparsable, Raw: raw} }

// ModuleID returns the module that declares the struct.
func (s StructTag) ModuleID() ModuleID {
	return ModuleID{Address: s.Address, Name: s.Module}
}

func (s StructTag) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s::%s::%s", s.Address, s.Module, s.Name)
	if len(s.TypeArgs) > 0 {
		b.WriteByte('<')
		for i, arg := range s.TypeArgs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(arg.String())
		}
		b.WriteByte('>')
	}
	return b.String()
}

func (t TypeTag) String() string {
	if name, ok := kindNames[t.Kind]; ok {
		return name
	}
	switch t.Kind {
	case KindVector:
		return "vector<" + t.Elem.String() + ">"
	case KindStruct:
		return t.Struct.String()
	case KindGeneric:
		return fmt.Sprintf("T%d", t.Index)
	case KindReference:
		if t.Mutable {
			return "&mut " + t.Elem.String()
		}
		return "&" + t.Elem.String()
	case KindUnparsable:
		return "unparsable(" + t.Raw + ")"
	default:
		return "invalid"
	}
}

// IsByteVector reports whether t is vector<u8>.
func (t TypeTag) IsByteVector() bool {
	return t.Kind == KindVector && t.Elem != nil && t.Elem.Kind == KindU8
}

// Substitute replaces generic parameters with the given type arguments.
// Parameters without a matching argument are left in place.
func (t TypeTag) Substitute(args []TypeTag) TypeTag {
	if len(args) == 0 {
		return t
	}
	switch t.Kind {
	case KindGeneric:
		if int(t.Index) < len(args) {
			return args[t.Index]
		}
		return t
	case KindVector:
		return VectorOf(t.Elem.Substitute(args))
	case KindReference:
		return ReferenceTo(t.Elem.Substitute(args), t.Mutable)
	case KindStruct:
		tag := *t.Struct
		if len(tag.TypeArgs) > 0 {
			subst := make([]TypeTag, len(tag.TypeArgs))
			for i, arg := range tag.TypeArgs {
				subst[i] = arg.Substitute(args)
			}
			tag.TypeArgs = subst
		}
		return StructOf(tag)
	default:
		return t
	}
}

// ParseTypeTag parses Move type syntax such as "u64", "vector<u8>" or
// "0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>".
func ParseTypeTag(input string) (TypeTag, error) {
	p := &typeParser{input: input}
	tag, err := p.parse()
	if err != nil {
		return TypeTag{}, err
	}
	p.skipSpaces()
	if p.pos != len(p.input) {
		return TypeTag{}, fmt.Errorf("invalid type %q: trailing input at %d", input, p.pos)
	}
	return tag, nil
}

// MustParseTypeTag is like ParseTypeTag but panics on error.
func MustParseTypeTag(input string) TypeTag {
	tag, err := ParseTypeTag(input)
	if err != nil {
		panic(err)
	}
	return tag
}

// ParseStructTag parses a struct type and rejects any other kind.
func ParseStructTag(input string) (StructTag, error) {
	tag, err := ParseTypeTag(input)
	if err != nil {
		return StructTag{}, err
	}
	if tag.Kind != KindStruct {
		return StructTag{}, fmt.Errorf("invalid struct type %q", input)
	}
	return *tag.Struct, nil
}

type typeParser struct {
	input string
	pos   int
}

func (p *typeParser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) ident() string {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

func (p *typeParser) expect(token string) error {
	p.skipSpaces()
	if !strings.HasPrefix(p.input[p.pos:], token) {
		return fmt.Errorf("invalid type %q: expected %q at %d", p.input, token, p.pos)
	}
	p.pos += len(token)
	return nil
}

func (p *typeParser) parse() (TypeTag, error) {
	word := p.ident()
	if word == "" {
		return TypeTag{}, fmt.Errorf("invalid type %q: expected identifier at %d", p.input, p.pos)
	}
	for kind, name := range kindNames {
		if word == name {
			return Primitive(kind), nil
		}
	}
	if word == "vector" {
		if err := p.expect("<"); err != nil {
			return TypeTag{}, err
		}
		elem, err := p.parse()
		if err != nil {
			return TypeTag{}, err
		}
		if err := p.expect(">"); err != nil {
			return TypeTag{}, err
		}
		return VectorOf(elem), nil
	}

	addr, err := ParseAddress(word)
	if err != nil {
		return TypeTag{}, fmt.Errorf("invalid type %q: %w", p.input, err)
	}
	if err := p.expect("::"); err != nil {
		return TypeTag{}, err
	}
	module := p.ident()
	if err := p.expect("::"); err != nil {
		return TypeTag{}, err
	}
	name := p.ident()
	if module == "" || name == "" {
		return TypeTag{}, fmt.Errorf("invalid type %q: empty module or name", p.input)
	}
	tag := StructTag{Address: addr, Module: module, Name: name}

	p.skipSpaces()
	if p.pos < len(p.input) && p.input[p.pos] == '<' {
		p.pos++
		for {
			arg, err := p.parse()
			if err != nil {
				return TypeTag{}, err
			}
			tag.TypeArgs = append(tag.TypeArgs, arg)
			p.skipSpaces()
			if p.pos < len(p.input) && p.input[p.pos] == ',' {
				p.pos++
				continue
			}
			if err := p.expect(">"); err != nil {
				return TypeTag{}, err
			}
			break
		}
	}
	return StructOf(tag), nil
}
