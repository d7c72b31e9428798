package model

import (
	"fmt"
	"strings"
)

// ModuleID identifies a published module.
type ModuleID struct {
	Address Address `json:"address"`
	Name    string  `json:"name"`
}

func (m ModuleID) String() string {
	return m.Address.String() + "::" + m.Name
}

// ParseModuleID parses "<address>::<name>".
func ParseModuleID(input string) (ModuleID, error) {
	parts := strings.Split(strings.TrimSpace(input), "::")
	if len(parts) != 2 || parts[1] == "" {
		return ModuleID{}, fmt.Errorf("invalid module id %q", input)
	}
	addr, err := ParseAddress(parts[0])
	if err != nil {
		return ModuleID{}, err
	}
	return ModuleID{Address: addr, Name: parts[1]}, nil
}

// FunctionID identifies a function inside a module.
type FunctionID struct {
	Module ModuleID
	Name   string
}

func (f FunctionID) String() string {
	return f.Module.String() + "::" + f.Name
}

// ParseFunctionID parses "<address>::<module>::<function>".
func ParseFunctionID(input string) (FunctionID, error) {
	parts := strings.Split(strings.TrimSpace(input), "::")
	if len(parts) != 3 {
		return FunctionID{}, fmt.Errorf("invalid function id %q: want <address>::<module>::<function>", input)
	}
	for _, part := range parts[1:] {
		if part == "" {
			return FunctionID{}, fmt.Errorf("invalid function id %q: empty identifier", input)
		}
	}
	addr, err := ParseAddress(parts[0])
	if err != nil {
		return FunctionID{}, err
	}
	return FunctionID{Module: ModuleID{Address: addr, Name: parts[1]}, Name: parts[2]}, nil
}

// ModuleABI is the structural surface of a module derived from its bytecode.
type ModuleABI struct {
	Address   Address       `json:"address"`
	Name      string        `json:"name"`
	Functions []FunctionABI `json:"exposed_functions"`
	Structs   []StructABI   `json:"structs"`
}

// FunctionABI is one function signature.
type FunctionABI struct {
	Name           string    `json:"name"`
	TypeParamCount int       `json:"generic_type_params"`
	Params         []TypeTag `json:"params"`
	Returns        []TypeTag `json:"return"`
}

// StructABI is one struct definition with its ordered fields.
type StructABI struct {
	Name           string     `json:"name"`
	TypeParamCount int        `json:"generic_type_params"`
	Native         bool       `json:"is_native"`
	Fields         []FieldABI `json:"fields"`
}

// FieldABI is one declared struct field.
type FieldABI struct {
	Name string  `json:"name"`
	Type TypeTag `json:"type"`
}

// ID returns the module id described by the ABI.
func (m *ModuleABI) ID() ModuleID {
	return ModuleID{Address: m.Address, Name: m.Name}
}

// Function looks up a function by name.
func (m *ModuleABI) Function(name string) (FunctionABI, bool) {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return FunctionABI{}, false
}

// Struct looks up a struct definition by name.
func (m *ModuleABI) Struct(name string) (StructABI, bool) {
	for _, st := range m.Structs {
		if st.Name == name {
			return st, true
		}
	}
	return StructABI{}, false
}
