// Package codec converts between text arguments, encoded values and JSON.
// Every conversion is a model.TypeVisitor, so each one handles the full set
// of type variants.
package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"lazyview/internal/bcs"
	"lazyview/internal/model"
)

// Encode converts text tokens into encoded arguments for the declared
// parameter types. Blank tokens produce no argument and do not consume a
// type: the next non-blank token takes it. Vectors of anything but u8
// produce no argument either.
func Encode(tokens []string, types []model.TypeTag) ([][]byte, error) {
	if len(tokens) != len(types) {
		return nil, fmt.Errorf("%w: %d arguments for %d parameters", model.ErrArity, len(tokens), len(types))
	}
	out := make([][]byte, 0, len(tokens))
	next := 0
	for i, token := range tokens {
		trimmed := strings.TrimSpace(token)
		if trimmed == "" {
			continue
		}
		typ := types[next]
		next++
		arg, err := model.VisitType[[]byte](typ, argEncoder{token: trimmed})
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		if arg != nil {
			out = append(out, arg)
		}
	}
	return out, nil
}

type argEncoder struct {
	token string
}

func (e argEncoder) Bool() ([]byte, error) {
	switch strings.ToLower(e.token) {
	case "true", "t", "1":
		return []byte{1}, nil
	default:
		return []byte{0}, nil
	}
}

func (e argEncoder) U8() ([]byte, error) {
	n, err := strconv.ParseUint(e.token, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("parse u8 %q: %w", e.token, err)
	}
	return []byte{byte(n)}, nil
}

func (e argEncoder) U64() ([]byte, error) {
	n, err := strconv.ParseUint(e.token, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse u64 %q: %w", e.token, err)
	}
	enc := bcs.NewEncoder()
	enc.U64(n)
	return enc.Bytes(), nil
}

func (e argEncoder) U128() ([]byte, error) {
	n, err := parseUint(e.token, 128)
	if err != nil {
		return nil, fmt.Errorf("parse u128 %q: %w", e.token, err)
	}
	enc := bcs.NewEncoder()
	enc.U128(n)
	return enc.Bytes(), nil
}

func (e argEncoder) Address() ([]byte, error) {
	addr, err := model.ParseAddress(e.token)
	if err != nil {
		return nil, err
	}
	return addr[:], nil
}

func (e argEncoder) Signer() ([]byte, error) { return e.Address() }

func (e argEncoder) Vector(elem model.TypeTag) ([]byte, error) {
	if elem.Kind != model.KindU8 {
		return nil, nil
	}
	enc := bcs.NewEncoder()
	enc.ByteSlice([]byte(e.token))
	return enc.Bytes(), nil
}

func (e argEncoder) U16() ([]byte, error)  { return nil, unsupported(model.Primitive(model.KindU16)) }
func (e argEncoder) U32() ([]byte, error)  { return nil, unsupported(model.Primitive(model.KindU32)) }
func (e argEncoder) U256() ([]byte, error) { return nil, unsupported(model.Primitive(model.KindU256)) }

func (e argEncoder) Struct(tag model.StructTag) ([]byte, error) {
	return nil, unsupported(model.StructOf(tag))
}

func (e argEncoder) Generic(index uint16) ([]byte, error) {
	return nil, unsupported(model.GenericParam(index))
}

func (e argEncoder) Reference(inner model.TypeTag, mutable bool) ([]byte, error) {
	return nil, unsupported(model.ReferenceTo(inner, mutable))
}

func (e argEncoder) Unparsable(raw string) ([]byte, error) {
	return nil, unsupported(model.Unparsable(raw))
}

func unsupported(t model.TypeTag) error {
	return fmt.Errorf("%w: %s", model.ErrUnsupportedType, t)
}

// parseUint parses a decimal integer that must fit in bits.
func parseUint(s string, bits int) (*uint256.Int, error) {
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("invalid decimal")
	}
	n, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, err
	}
	if n.BitLen() > bits {
		return nil, fmt.Errorf("value out of range")
	}
	return n, nil
}
