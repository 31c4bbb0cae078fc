package ir

type (
	// Type is the type of a Value or of an instruction result.
	Type uint8
)

const (
	TypeVoid Type = iota
	TypeA32Reg
	TypeA32ExtReg
	TypeA64Reg
	TypeA64Vec
	TypeOpaque
	TypeU1
	TypeU8
	TypeU16
	TypeU32
	TypeU64
	TypeU128
	TypeCoprocInfo
	TypeNZCV
	TypeCond
	TypeAccType

	typeCount
)

var typeNames = [typeCount]string{
	TypeVoid:       "Void",
	TypeA32Reg:     "A32Reg",
	TypeA32ExtReg:  "A32ExtReg",
	TypeA64Reg:     "A64Reg",
	TypeA64Vec:     "A64Vec",
	TypeOpaque:     "Opaque",
	TypeU1:         "U1",
	TypeU8:         "U8",
	TypeU16:        "U16",
	TypeU32:        "U32",
	TypeU64:        "U64",
	TypeU128:       "U128",
	TypeCoprocInfo: "CoprocInfo",
	TypeNZCV:       "NZCV",
	TypeCond:       "Cond",
	TypeAccType:    "AccType",
}

func (t Type) String() string {
	if t < typeCount {
		return typeNames[t]
	}

	return "Type(?)"
}

// AreTypesCompatible reports whether a value of type a may be used where b is expected.
// Opaque is compatible with everything.
func AreTypesCompatible(a, b Type) bool {
	return a == b || a == TypeOpaque || b == TypeOpaque
}

func IsValuelessType(t Type) bool {
	return t == TypeVoid
}

// BitWidth is the number of bits needed to hold a value of the type in a host location.
func (t Type) BitWidth() int {
	switch t {
	case TypeU1:
		return 1
	case TypeU8:
		return 8
	case TypeU16:
		return 16
	case TypeU32, TypeNZCV:
		return 32
	case TypeU64:
		return 64
	case TypeU128:
		return 128
	default:
		return 0
	}
}
