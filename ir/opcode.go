package ir

type (
	Opcode uint16

	opInfo struct {
		name  string
		ret   Type
		args  []Type
		flags opFlags
	}

	opFlags uint32
)

const (
	fPseudo opFlags = 1 << iota
	fMemRead
	fMemWrite
	fReadCoreReg
	fWriteCoreReg
	fReadCPSR
	fWriteCPSR
	fCoproc
	fException
	fSideEffect
	fNZCVFromOp
	fCarryFromOp
	fLogicalShift
	fArithShift
	fCircularShift
)

const (
	OpVoid Opcode = iota
	OpIdentity
	OpBreakpoint
	OpCallHostFunction

	OpGetCarryFromOp
	OpGetOverflowFromOp
	OpGetNZCVFromOp
	OpNZCVFromPackedFlags

	OpA32GetRegister
	OpA32GetExtendedRegister32
	OpA32GetExtendedRegister64
	OpA32SetRegister
	OpA32SetExtendedRegister32
	OpA32SetExtendedRegister64
	OpA32GetCpsr
	OpA32SetCpsr
	OpA32SetCpsrNZCV
	OpA32GetCFlag
	OpA32ExceptionRaised
	OpA32CoprocSendOneWord
	OpA32CoprocGetOneWord
	OpA32ReadMemory8
	OpA32ReadMemory16
	OpA32ReadMemory32
	OpA32ReadMemory64
	OpA32WriteMemory8
	OpA32WriteMemory16
	OpA32WriteMemory32
	OpA32WriteMemory64

	OpA64GetW
	OpA64GetX
	OpA64GetQ
	OpA64SetW
	OpA64SetX
	OpA64SetQ
	OpA64SetNZCV
	OpA64ReadMemory64
	OpA64WriteMemory64

	OpPack2x32To1x64
	OpLeastSignificantWord
	OpLeastSignificantHalf
	OpLeastSignificantByte
	OpMostSignificantBit
	OpIsZero32
	OpIsZero64
	OpTestBit
	OpConditionalSelect32
	OpConditionalSelect64
	OpLogicalShiftLeft32
	OpLogicalShiftRight32
	OpArithmeticShiftRight32
	OpRotateRight32
	OpLogicalShiftLeft64
	OpLogicalShiftRight64
	OpAdd32
	OpAdd64
	OpSub32
	OpSub64
	OpMul32
	OpMul64
	OpAnd32
	OpAnd64
	OpEor32
	OpEor64
	OpOr32
	OpOr64
	OpNot32
	OpNot64
	OpSignExtendByteToWord
	OpSignExtendHalfToWord
	OpZeroExtendByteToWord
	OpZeroExtendHalfToWord
	OpSignExtendWordToLong
	OpZeroExtendWordToLong

	OpZeroVector
	OpVectorAdd32
	OpVectorSub32
	OpVectorAnd
	OpVectorGetElement32
	OpVectorSetElement32

	opCount
)

var opTable = [opCount]opInfo{
	OpVoid:             {"Void", TypeVoid, nil, 0},
	OpIdentity:         {"Identity", TypeOpaque, []Type{TypeOpaque}, 0},
	OpBreakpoint:       {"Breakpoint", TypeVoid, nil, fSideEffect},
	OpCallHostFunction: {"CallHostFunction", TypeVoid, []Type{TypeU64, TypeOpaque, TypeOpaque, TypeOpaque}, fSideEffect},

	OpGetCarryFromOp:      {"GetCarryFromOp", TypeU1, []Type{TypeOpaque}, fPseudo},
	OpGetOverflowFromOp:   {"GetOverflowFromOp", TypeU1, []Type{TypeOpaque}, fPseudo},
	OpGetNZCVFromOp:       {"GetNZCVFromOp", TypeNZCV, []Type{TypeOpaque}, fPseudo},
	OpNZCVFromPackedFlags: {"NZCVFromPackedFlags", TypeNZCV, []Type{TypeU32}, 0},

	OpA32GetRegister:           {"A32GetRegister", TypeU32, []Type{TypeA32Reg}, fReadCoreReg},
	OpA32GetExtendedRegister32: {"A32GetExtendedRegister32", TypeU32, []Type{TypeA32ExtReg}, fReadCoreReg},
	OpA32GetExtendedRegister64: {"A32GetExtendedRegister64", TypeU64, []Type{TypeA32ExtReg}, fReadCoreReg},
	OpA32SetRegister:           {"A32SetRegister", TypeVoid, []Type{TypeA32Reg, TypeU32}, fWriteCoreReg},
	OpA32SetExtendedRegister32: {"A32SetExtendedRegister32", TypeVoid, []Type{TypeA32ExtReg, TypeU32}, fWriteCoreReg},
	OpA32SetExtendedRegister64: {"A32SetExtendedRegister64", TypeVoid, []Type{TypeA32ExtReg, TypeU64}, fWriteCoreReg},
	OpA32GetCpsr:               {"A32GetCpsr", TypeU32, nil, fReadCPSR},
	OpA32SetCpsr:               {"A32SetCpsr", TypeVoid, []Type{TypeU32}, fWriteCPSR},
	OpA32SetCpsrNZCV:           {"A32SetCpsrNZCV", TypeVoid, []Type{TypeNZCV}, fWriteCPSR},
	OpA32GetCFlag:              {"A32GetCFlag", TypeU1, nil, fReadCPSR},
	OpA32ExceptionRaised:       {"A32ExceptionRaised", TypeVoid, []Type{TypeU32, TypeU64}, fException},
	OpA32CoprocSendOneWord:     {"A32CoprocSendOneWord", TypeVoid, []Type{TypeCoprocInfo, TypeU32}, fCoproc},
	OpA32CoprocGetOneWord:      {"A32CoprocGetOneWord", TypeU32, []Type{TypeCoprocInfo}, fCoproc},
	OpA32ReadMemory8:           {"A32ReadMemory8", TypeU8, []Type{TypeU32, TypeAccType}, fMemRead},
	OpA32ReadMemory16:          {"A32ReadMemory16", TypeU16, []Type{TypeU32, TypeAccType}, fMemRead},
	OpA32ReadMemory32:          {"A32ReadMemory32", TypeU32, []Type{TypeU32, TypeAccType}, fMemRead},
	OpA32ReadMemory64:          {"A32ReadMemory64", TypeU64, []Type{TypeU32, TypeAccType}, fMemRead},
	OpA32WriteMemory8:          {"A32WriteMemory8", TypeVoid, []Type{TypeU32, TypeU8, TypeAccType}, fMemWrite},
	OpA32WriteMemory16:         {"A32WriteMemory16", TypeVoid, []Type{TypeU32, TypeU16, TypeAccType}, fMemWrite},
	OpA32WriteMemory32:         {"A32WriteMemory32", TypeVoid, []Type{TypeU32, TypeU32, TypeAccType}, fMemWrite},
	OpA32WriteMemory64:         {"A32WriteMemory64", TypeVoid, []Type{TypeU32, TypeU64, TypeAccType}, fMemWrite},

	OpA64GetW:          {"A64GetW", TypeU32, []Type{TypeA64Reg}, fReadCoreReg},
	OpA64GetX:          {"A64GetX", TypeU64, []Type{TypeA64Reg}, fReadCoreReg},
	OpA64GetQ:          {"A64GetQ", TypeU128, []Type{TypeA64Vec}, fReadCoreReg},
	OpA64SetW:          {"A64SetW", TypeVoid, []Type{TypeA64Reg, TypeU32}, fWriteCoreReg},
	OpA64SetX:          {"A64SetX", TypeVoid, []Type{TypeA64Reg, TypeU64}, fWriteCoreReg},
	OpA64SetQ:          {"A64SetQ", TypeVoid, []Type{TypeA64Vec, TypeU128}, fWriteCoreReg},
	OpA64SetNZCV:       {"A64SetNZCV", TypeVoid, []Type{TypeNZCV}, fWriteCPSR},
	OpA64ReadMemory64:  {"A64ReadMemory64", TypeU64, []Type{TypeU64, TypeAccType}, fMemRead},
	OpA64WriteMemory64: {"A64WriteMemory64", TypeVoid, []Type{TypeU64, TypeU64, TypeAccType}, fMemWrite},

	OpPack2x32To1x64:         {"Pack2x32To1x64", TypeU64, []Type{TypeU32, TypeU32}, 0},
	OpLeastSignificantWord:   {"LeastSignificantWord", TypeU32, []Type{TypeU64}, 0},
	OpLeastSignificantHalf:   {"LeastSignificantHalf", TypeU16, []Type{TypeU32}, 0},
	OpLeastSignificantByte:   {"LeastSignificantByte", TypeU8, []Type{TypeU32}, 0},
	OpMostSignificantBit:     {"MostSignificantBit", TypeU1, []Type{TypeU32}, 0},
	OpIsZero32:               {"IsZero32", TypeU1, []Type{TypeU32}, 0},
	OpIsZero64:               {"IsZero64", TypeU1, []Type{TypeU64}, 0},
	OpTestBit:                {"TestBit", TypeU1, []Type{TypeU64, TypeU8}, 0},
	OpConditionalSelect32:    {"ConditionalSelect32", TypeU32, []Type{TypeCond, TypeU32, TypeU32}, fReadCPSR},
	OpConditionalSelect64:    {"ConditionalSelect64", TypeU64, []Type{TypeCond, TypeU64, TypeU64}, fReadCPSR},
	OpLogicalShiftLeft32:     {"LogicalShiftLeft32", TypeU32, []Type{TypeU32, TypeU8, TypeU1}, fLogicalShift | fCarryFromOp},
	OpLogicalShiftRight32:    {"LogicalShiftRight32", TypeU32, []Type{TypeU32, TypeU8, TypeU1}, fLogicalShift | fCarryFromOp},
	OpArithmeticShiftRight32: {"ArithmeticShiftRight32", TypeU32, []Type{TypeU32, TypeU8, TypeU1}, fArithShift | fCarryFromOp},
	OpRotateRight32:          {"RotateRight32", TypeU32, []Type{TypeU32, TypeU8, TypeU1}, fCircularShift | fCarryFromOp},
	OpLogicalShiftLeft64:     {"LogicalShiftLeft64", TypeU64, []Type{TypeU64, TypeU8}, fLogicalShift},
	OpLogicalShiftRight64:    {"LogicalShiftRight64", TypeU64, []Type{TypeU64, TypeU8}, fLogicalShift},
	OpAdd32:                  {"Add32", TypeU32, []Type{TypeU32, TypeU32, TypeU1}, fNZCVFromOp | fCarryFromOp},
	OpAdd64:                  {"Add64", TypeU64, []Type{TypeU64, TypeU64, TypeU1}, fNZCVFromOp | fCarryFromOp},
	OpSub32:                  {"Sub32", TypeU32, []Type{TypeU32, TypeU32, TypeU1}, fNZCVFromOp | fCarryFromOp},
	OpSub64:                  {"Sub64", TypeU64, []Type{TypeU64, TypeU64, TypeU1}, fNZCVFromOp | fCarryFromOp},
	OpMul32:                  {"Mul32", TypeU32, []Type{TypeU32, TypeU32}, 0},
	OpMul64:                  {"Mul64", TypeU64, []Type{TypeU64, TypeU64}, 0},
	OpAnd32:                  {"And32", TypeU32, []Type{TypeU32, TypeU32}, fNZCVFromOp},
	OpAnd64:                  {"And64", TypeU64, []Type{TypeU64, TypeU64}, fNZCVFromOp},
	OpEor32:                  {"Eor32", TypeU32, []Type{TypeU32, TypeU32}, fNZCVFromOp},
	OpEor64:                  {"Eor64", TypeU64, []Type{TypeU64, TypeU64}, fNZCVFromOp},
	OpOr32:                   {"Or32", TypeU32, []Type{TypeU32, TypeU32}, fNZCVFromOp},
	OpOr64:                   {"Or64", TypeU64, []Type{TypeU64, TypeU64}, fNZCVFromOp},
	OpNot32:                  {"Not32", TypeU32, []Type{TypeU32}, fNZCVFromOp},
	OpNot64:                  {"Not64", TypeU64, []Type{TypeU64}, fNZCVFromOp},
	OpSignExtendByteToWord:   {"SignExtendByteToWord", TypeU32, []Type{TypeU8}, 0},
	OpSignExtendHalfToWord:   {"SignExtendHalfToWord", TypeU32, []Type{TypeU16}, 0},
	OpZeroExtendByteToWord:   {"ZeroExtendByteToWord", TypeU32, []Type{TypeU8}, 0},
	OpZeroExtendHalfToWord:   {"ZeroExtendHalfToWord", TypeU32, []Type{TypeU16}, 0},
	OpSignExtendWordToLong:   {"SignExtendWordToLong", TypeU64, []Type{TypeU32}, 0},
	OpZeroExtendWordToLong:   {"ZeroExtendWordToLong", TypeU64, []Type{TypeU32}, 0},

	OpZeroVector:         {"ZeroVector", TypeU128, nil, 0},
	OpVectorAdd32:        {"VectorAdd32", TypeU128, []Type{TypeU128, TypeU128}, 0},
	OpVectorSub32:        {"VectorSub32", TypeU128, []Type{TypeU128, TypeU128}, 0},
	OpVectorAnd:          {"VectorAnd", TypeU128, []Type{TypeU128, TypeU128}, 0},
	OpVectorGetElement32: {"VectorGetElement32", TypeU32, []Type{TypeU128, TypeU8}, 0},
	OpVectorSetElement32: {"VectorSetElement32", TypeU128, []Type{TypeU128, TypeU8, TypeU32}, 0},
}

var opByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opTable))

	for op, info := range opTable {
		m[info.name] = Opcode(op)
	}

	return m
}()

func (op Opcode) info() *opInfo {
	assertf(op < opCount, "opcode out of range: %d", uint16(op))

	return &opTable[op]
}

func (op Opcode) String() string {
	if op >= opCount {
		return "Opcode(?)"
	}

	return opTable[op].name
}

// LookupOpcode finds an opcode by its printed name.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opByName[name]

	return op, ok
}

// GetTypeOf is the result type declared for op. Identity is Opaque here, see Inst.Type.
func GetTypeOf(op Opcode) Type { return op.info().ret }

func GetNumArgsOf(op Opcode) int { return len(op.info().args) }

func GetArgTypeOf(op Opcode, i int) Type {
	info := op.info()

	assertf(i >= 0 && i < len(info.args), "%v: argument index %d out of range", op, i)

	return info.args[i]
}

func (op Opcode) has(f opFlags) bool { return op.info().flags&f != 0 }

func IsAPseudoOperation(op Opcode) bool { return op.has(fPseudo) }
