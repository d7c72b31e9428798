package model

import "errors"

var (
	// ErrModuleNotFound is returned when an account publishes no module with the requested name.
	ErrModuleNotFound = errors.New("module not found")
	// ErrFieldArity signals that a struct value does not match its ABI field list.
	ErrFieldArity = errors.New("struct field count mismatch")
	// ErrUnsupportedType is returned for argument types the encoder cannot produce.
	ErrUnsupportedType = errors.New("unsupported argument type")
	// ErrArity is returned when argument tokens and declared types differ in length.
	ErrArity = errors.New("argument count mismatch")
)
