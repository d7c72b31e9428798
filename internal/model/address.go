package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AddressLength is the byte length of an account address.
const AddressLength = 32

// Address is an on-ledger account address.
type Address [AddressLength]byte

var (
	// CoreAddress hosts the framework modules (0x1).
	CoreAddress = Address{AddressLength - 1: 0x1}
	// TokenAddress hosts the legacy token modules (0x3).
	TokenAddress = Address{AddressLength - 1: 0x3}
)

// ParseAddress parses a hex literal such as "0x1" or a full 64-digit address.
// The "0x" prefix is required and short forms are left-padded with zeros.
func ParseAddress(input string) (Address, error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "0x") && !strings.HasPrefix(input, "0X") {
		return Address{}, fmt.Errorf("invalid address %q: missing 0x prefix", input)
	}
	digits := input[2:]
	if digits == "" || len(digits) > AddressLength*2 {
		return Address{}, fmt.Errorf("invalid address %q: bad length", input)
	}
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	raw, err := hexutil.Decode("0x" + digits)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", input, err)
	}
	var addr Address
	copy(addr[AddressLength-len(raw):], raw)
	return addr, nil
}

// MustParseAddress is ParseAddress for constants; it panics on bad input.
func MustParseAddress(input string) Address {
	addr, err := ParseAddress(input)
	if err != nil {
		panic(err)
	}
	return addr
}

// IsSpecial reports whether the address is one of 0x0..0xf.
func (a Address) IsSpecial() bool {
	for _, b := range a[:AddressLength-1] {
		if b != 0 {
			return false
		}
	}
	return a[AddressLength-1] < 0x10
}

// String returns the canonical form: short for special addresses, full
// 64 hex digits otherwise.
func (a Address) String() string {
	if a.IsSpecial() {
		return fmt.Sprintf("0x%x", a[AddressLength-1])
	}
	return a.Long()
}

// Long returns the full zero-padded hex form.
func (a Address) Long() string {
	return hexutil.Encode(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	addr, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}
