package ir

import (
	"fmt"
	"strconv"
	"strings"
)

type (
	// A32Reg is an AArch32 core register: R0..R15.
	A32Reg uint8

	// A32ExtReg is an AArch32 extension register: S0..S31, D0..D31, Q0..Q15.
	A32ExtReg uint8

	// A64Reg is an AArch64 general register: R0..R30, SP, ZR.
	A64Reg uint8

	// A64Vec is an AArch64 vector register: V0..V31.
	A64Vec uint8

	Cond uint8

	// AccType is the access type of a guest memory operation.
	AccType uint8

	// CoprocInfo is an opaque coprocessor instruction descriptor.
	CoprocInfo [8]uint8
)

const (
	A32SP A32Reg = 13
	A32LR A32Reg = 14
	A32PC A32Reg = 15

	A32S0 A32ExtReg = 0
	A32D0 A32ExtReg = 32
	A32Q0 A32ExtReg = 64

	a32ExtRegEnd A32ExtReg = 80

	A64SP A64Reg = 31
	A64ZR A64Reg = 32
)

const (
	CondEQ Cond = iota
	CondNE
	CondCS
	CondCC
	CondMI
	CondPL
	CondVS
	CondVC
	CondHI
	CondLS
	CondGE
	CondLT
	CondGT
	CondLE
	CondAL
	CondNV
)

const (
	AccNormal AccType = iota
	AccVec
	AccStream
	AccUnpriv
	AccOrdered
	AccAtomic
	AccIfetch

	accTypeCount
)

var condNames = [...]string{"eq", "ne", "cs", "cc", "mi", "pl", "vs", "vc", "hi", "ls", "ge", "lt", "gt", "le", "al", "nv"}

var accTypeNames = [accTypeCount]string{"normal", "vec", "stream", "unpriv", "ordered", "atomic", "ifetch"}

func (r A32Reg) String() string {
	switch r {
	case A32SP:
		return "sp"
	case A32LR:
		return "lr"
	case A32PC:
		return "pc"
	}

	return fmt.Sprintf("r%d", uint8(r))
}

func (r A32ExtReg) IsSingle() bool { return r < A32D0 }
func (r A32ExtReg) IsDouble() bool { return r >= A32D0 && r < A32Q0 }
func (r A32ExtReg) IsQuad() bool { return r >= A32Q0 && r < a32ExtRegEnd }

// Index is the register number within its bank.
func (r A32ExtReg) Index() int {
	switch {
	case r.IsSingle():
		return int(r - A32S0)
	case r.IsDouble():
		return int(r - A32D0)
	default:
		return int(r - A32Q0)
	}
}

func (r A32ExtReg) String() string {
	switch {
	case r.IsSingle():
		return fmt.Sprintf("s%d", r.Index())
	case r.IsDouble():
		return fmt.Sprintf("d%d", r.Index())
	case r.IsQuad():
		return fmt.Sprintf("q%d", r.Index())
	}

	return fmt.Sprintf("ext?%d", uint8(r))
}

func (r A64Reg) String() string {
	switch r {
	case A64SP:
		return "sp"
	case A64ZR:
		return "zr"
	}

	return fmt.Sprintf("x%d", uint8(r))
}

func (v A64Vec) String() string {
	return fmt.Sprintf("v%d", uint8(v))
}

func (c Cond) String() string {
	if int(c) < len(condNames) {
		return condNames[c]
	}

	return fmt.Sprintf("cond?%d", uint8(c))
}

func (a AccType) String() string {
	if a < accTypeCount {
		return accTypeNames[a]
	}

	return fmt.Sprintf("acc?%d", uint8(a))
}

func (c CoprocInfo) String() string {
	var b strings.Builder

	b.WriteByte('[')

	for i, x := range c {
		if i != 0 {
			b.WriteByte(',')
		}

		b.WriteString(strconv.Itoa(int(x)))
	}

	b.WriteByte(']')

	return b.String()
}

// ParseA32Reg parses r0..r15, sp, lr, pc.
func ParseA32Reg(s string) (A32Reg, bool) {
	switch s {
	case "sp":
		return A32SP, true
	case "lr":
		return A32LR, true
	case "pc":
		return A32PC, true
	}

	n, ok := regNum(s, "r", 15)

	return A32Reg(n), ok
}

// ParseA32ExtReg parses s0..s31, d0..d31, q0..q15.
func ParseA32ExtReg(s string) (A32ExtReg, bool) {
	if n, ok := regNum(s, "s", 31); ok {
		return A32S0 + A32ExtReg(n), true
	}

	if n, ok := regNum(s, "d", 31); ok {
		return A32D0 + A32ExtReg(n), true
	}

	if n, ok := regNum(s, "q", 15); ok {
		return A32Q0 + A32ExtReg(n), true
	}

	return 0, false
}

// ParseA64Reg parses x0..x30, sp, zr.
func ParseA64Reg(s string) (A64Reg, bool) {
	switch s {
	case "sp":
		return A64SP, true
	case "zr":
		return A64ZR, true
	}

	n, ok := regNum(s, "x", 30)

	return A64Reg(n), ok
}

func ParseA64Vec(s string) (A64Vec, bool) {
	n, ok := regNum(s, "v", 31)

	return A64Vec(n), ok
}

func ParseCond(s string) (Cond, bool) {
	for i, n := range condNames {
		if n == s {
			return Cond(i), true
		}
	}

	return 0, false
}

func ParseAccType(s string) (AccType, bool) {
	for i, n := range accTypeNames {
		if n == s {
			return AccType(i), true
		}
	}

	return 0, false
}

// ParseCoprocInfo parses the [a,b,c,d,e,f,g,h] form printed by CoprocInfo.String.
func ParseCoprocInfo(s string) (c CoprocInfo, ok bool) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return c, false
	}

	parts := strings.Split(s[1:len(s)-1], ",")
	if len(parts) != len(c) {
		return c, false
	}

	for i, p := range parts {
		x, err := strconv.ParseUint(strings.TrimSpace(p), 0, 8)
		if err != nil {
			return c, false
		}

		c[i] = uint8(x)
	}

	return c, true
}

func regNum(s, prefix string, max int) (int, bool) {
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}

	n, err := strconv.Atoi(s[len(prefix):])
	if err != nil || n < 0 || n > max {
		return 0, false
	}

	return n, true
}
