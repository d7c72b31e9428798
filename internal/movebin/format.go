// Package movebin reads the Move binary module format far enough to recover
// a module's ABI: its identity, the signatures of the functions it defines
// and the ordered field lists of its structs.
package movebin

// Magic prefixes every serialized module or script.
var Magic = [4]byte{0xA1, 0x1C, 0xEB, 0x0B}

const (
	minVersion = 5
	maxVersion = 8
	// upper bits of the version word carry a binary flavor
	versionMask = 0x00FFFFFF
)

// Table kinds in the table header.
const (
	tableModuleHandles      = 0x1
	tableStructHandles      = 0x2
	tableFunctionHandles    = 0x3
	tableSignatures         = 0x5
	tableIdentifiers        = 0x7
	tableAddressIdentifiers = 0x8
	tableStructDefs         = 0xA
)

// Signature token tags.
const (
	tokBool         = 0x1
	tokU8           = 0x2
	tokU64          = 0x3
	tokU128         = 0x4
	tokAddress      = 0x5
	tokReference    = 0x6
	tokMutReference = 0x7
	tokStruct       = 0x8
	tokTypeParam    = 0x9
	tokVector       = 0xA
	tokStructInst   = 0xB
	tokSigner       = 0xC
	tokU16          = 0xD
	tokU32          = 0xE
	tokU256         = 0xF
)

// Struct field information tags.
const (
	fieldsNative   = 0x1
	fieldsDeclared = 0x2
	fieldsVariants = 0x3
)

const maxTokenDepth = 256
