// Package bcs adapts the Aptos SDK serializer to the error-returning style
// used across this module. Lengths and indices are ULEB128 values bounded
// by u32, integers are little-endian, and a Decoder can be asked to Finish
// so trailing input is reported.
package bcs

import (
	"errors"
	"fmt"
	"math"

	aptosbcs "github.com/aptos-labs/aptos-go-sdk/bcs"
	"github.com/holiman/uint256"
)

// ErrUnexpectedEOF is returned when the input ends before a value is complete.
var ErrUnexpectedEOF = errors.New("bcs: unexpected end of input")

// Encoder accumulates encoded bytes.
type Encoder struct {
	ser aptosbcs.Serializer
	err error
}

func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the encoded output.
func (e *Encoder) Bytes() []byte { return e.ser.ToBytes() }

// Err returns the first encoding failure, if any.
func (e *Encoder) Err() error {
	if e.err != nil {
		return e.err
	}
	if err := e.ser.Error(); err != nil {
		return fmt.Errorf("bcs: %w", err)
	}
	return nil
}

func (e *Encoder) Bool(b bool) { e.ser.Bool(b) }

func (e *Encoder) U8(n uint8) { e.ser.U8(n) }

func (e *Encoder) U16(n uint16) { e.ser.U16(n) }

func (e *Encoder) U32(n uint32) { e.ser.U32(n) }

func (e *Encoder) U64(n uint64) { e.ser.U64(n) }

// U128 writes the low 128 bits of n.
func (e *Encoder) U128(n *uint256.Int) {
	low := uint256.Int{n[0], n[1], 0, 0}
	e.ser.U128(*low.ToBig())
}

func (e *Encoder) U256(n *uint256.Int) { e.ser.U256(*n.ToBig()) }

// Uleb128 writes a length or index. Values above u32 are rejected and
// reported by Err.
func (e *Encoder) Uleb128(n uint64) {
	if n > math.MaxUint32 {
		if e.err == nil {
			e.err = fmt.Errorf("bcs: uleb128 value %d overflows u32", n)
		}
		return
	}
	e.ser.Uleb128(uint32(n))
}

// Fixed writes raw bytes without a length prefix.
func (e *Encoder) Fixed(data []byte) { e.ser.FixedBytes(data) }

// ByteSlice writes a length-prefixed byte sequence.
func (e *Encoder) ByteSlice(data []byte) { e.ser.WriteBytes(data) }

// Str writes a length-prefixed UTF-8 string.
func (e *Encoder) Str(s string) { e.ser.WriteString(s) }

// Decoder reads encoded values from a byte slice.
type Decoder struct {
	data []byte
	des  *aptosbcs.Deserializer
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data, des: aptosbcs.NewDeserializer(data)}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return d.des.Remaining() }

// Offset returns the current read position.
func (d *Decoder) Offset() int { return len(d.data) - d.des.Remaining() }

func (d *Decoder) need(n int) error {
	if n < 0 || d.Remaining() < n {
		return ErrUnexpectedEOF
	}
	return nil
}

func (d *Decoder) check() error {
	if err := d.des.Error(); err != nil {
		return fmt.Errorf("bcs: %w", err)
	}
	return nil
}

func (d *Decoder) Bool() (bool, error) {
	b, err := d.U8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("bcs: invalid bool byte %#x", b)
	}
}

func (d *Decoder) U8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	n := d.des.U8()
	return n, d.check()
}

func (d *Decoder) U16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	n := d.des.U16()
	return n, d.check()
}

func (d *Decoder) U32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	n := d.des.U32()
	return n, d.check()
}

func (d *Decoder) U64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	n := d.des.U64()
	return n, d.check()
}

func (d *Decoder) U128() (*uint256.Int, error) {
	if err := d.need(16); err != nil {
		return nil, err
	}
	v := d.des.U128()
	if err := d.check(); err != nil {
		return nil, err
	}
	n, overflow := uint256.FromBig(&v)
	if overflow {
		return nil, errors.New("bcs: u128 out of range")
	}
	return n, nil
}

func (d *Decoder) U256() (*uint256.Int, error) {
	if err := d.need(32); err != nil {
		return nil, err
	}
	v := d.des.U256()
	if err := d.check(); err != nil {
		return nil, err
	}
	n, overflow := uint256.FromBig(&v)
	if overflow {
		return nil, errors.New("bcs: u256 out of range")
	}
	return n, nil
}

// Uleb128 reads a variable-length unsigned integer that must fit in 32 bits,
// which bounds every length and index in the encoding. Encodings padded with
// trailing zero groups are rejected.
func (d *Decoder) Uleb128() (uint32, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	start := d.Offset()
	for i, b := range d.data[start:] {
		if i == 4 && b > 0x0f {
			return 0, errors.New("bcs: uleb128 overflows u32")
		}
		if b&0x80 == 0 {
			break
		}
	}
	n := d.des.Uleb128()
	if err := d.check(); err != nil {
		return 0, err
	}
	if end := d.Offset(); end-start > 1 && d.data[end-1] == 0 {
		return 0, errors.New("bcs: non-canonical uleb128")
	}
	return n, nil
}

// Fixed reads n raw bytes.
func (d *Decoder) Fixed(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	raw := d.des.ReadFixedBytes(n)
	if err := d.check(); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, raw)
	return out, nil
}

// ByteSlice reads a length-prefixed byte sequence.
func (d *Decoder) ByteSlice() ([]byte, error) {
	n, err := d.Uleb128()
	if err != nil {
		return nil, err
	}
	return d.Fixed(int(n))
}

// Str reads a length-prefixed UTF-8 string.
func (d *Decoder) Str() (string, error) {
	raw, err := d.ByteSlice()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Finish returns an error when unread bytes remain.
func (d *Decoder) Finish() error {
	if d.Remaining() != 0 {
		return fmt.Errorf("bcs: %d trailing bytes", d.Remaining())
	}
	return nil
}
