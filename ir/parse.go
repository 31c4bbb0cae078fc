package ir

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"tlog.app/go/errors"
)

type (
	parser struct {
		b    *Block
		defs map[string]*Inst
	}
)

// Parse reads a block in the form printed by Block.Dump.
//
//	block a32 0x1000
//	%0 = A32GetRegister r1
//	%1 = Add32 %0, #5, #0
//	A32SetRegister r2, %1
//	terminal LinkBlock 0x1004
func Parse(text []byte) (b *Block, err error) {
	p := &parser{
		defs: make(map[string]*Inst),
	}

	s := bufio.NewScanner(bytes.NewReader(text))
	line := 0
	terminated := false

	for s.Scan() {
		line++

		l := s.Text()
		if c := strings.IndexByte(l, ';'); c >= 0 {
			l = l[:c]
		}

		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}

		if terminated {
			return nil, errors.New("line %d: instructions after terminal", line)
		}

		switch {
		case p.b == nil:
			err = p.header(l)
		case strings.HasPrefix(l, "terminal "):
			err = p.terminal(strings.TrimPrefix(l, "terminal "))
			terminated = true
		default:
			err = p.inst(l)
		}

		if err != nil {
			return nil, errors.Wrap(err, "line %d", line)
		}
	}

	if err = s.Err(); err != nil {
		return nil, errors.Wrap(err, "scan")
	}

	if p.b == nil {
		return nil, errors.New("no block header")
	}

	return p.b, nil
}

func (p *parser) header(l string) error {
	f := strings.Fields(l)
	if len(f) != 3 || f[0] != "block" {
		return errors.New("want: block <a32|a64> <pc>")
	}

	var loc Location

	switch f[1] {
	case "a32":
		loc.Arch = GuestA32
	case "a64":
		loc.Arch = GuestA64
	default:
		return errors.New("unknown guest arch: %v", f[1])
	}

	pc, err := strconv.ParseUint(f[2], 0, 64)
	if err != nil {
		return errors.Wrap(err, "pc")
	}

	loc.PC = pc

	p.b = NewBlock(loc)

	return nil
}

func (p *parser) terminal(l string) error {
	f := strings.Fields(l)

	switch {
	case len(f) == 1 && f[0] == "ReturnToDispatch":
		p.b.Terminal = ReturnToDispatch{}
	case len(f) == 2 && f[0] == "LinkBlock":
		next, err := strconv.ParseUint(f[1], 0, 64)
		if err != nil {
			return errors.Wrap(err, "link target")
		}

		p.b.Terminal = LinkBlock{Next: next}
	default:
		return errors.New("unknown terminal: %v", l)
	}

	return nil
}

func (p *parser) inst(l string) (err error) {
	var name string

	if eq := strings.Index(l, "="); eq >= 0 {
		name = strings.TrimSpace(l[:eq])
		l = strings.TrimSpace(l[eq+1:])

		if !strings.HasPrefix(name, "%") {
			return errors.New("bad result name: %q", name)
		}

		if _, ok := p.defs[name]; ok {
			return errors.New("%v redefined", name)
		}
	}

	opname, rest, _ := strings.Cut(l, " ")

	op, ok := LookupOpcode(opname)
	if !ok {
		return errors.New("unknown opcode: %v", opname)
	}

	if name != "" && GetTypeOf(op) == TypeVoid {
		return errors.New("%v has no result", op)
	}

	var fields []string
	if rest = strings.TrimSpace(rest); rest != "" {
		fields = splitArgs(rest)
	}

	if len(fields) != GetNumArgsOf(op) {
		return errors.New("%v: want %d arguments, got %d", op, GetNumArgsOf(op), len(fields))
	}

	args := make([]Value, len(fields))

	for n, f := range fields {
		want := GetArgTypeOf(op, n)

		args[n], err = p.arg(strings.TrimSpace(f), want)
		if err != nil {
			return errors.Wrap(err, "argument %d", n)
		}

		if !AreTypesCompatible(args[n].Type(), want) {
			return errors.New("argument %d: type mismatch: have %v, want %v", n, args[n].Type(), want)
		}
	}

	v, err := p.append(op, args)
	if err != nil {
		return err
	}

	if name != "" {
		p.defs[name] = v.Inst()
	}

	return nil
}

// splitArgs splits at commas outside of brackets.
func splitArgs(s string) (r []string) {
	depth := 0
	st := 0

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				r = append(r, s[st:i])
				st = i + 1
			}
		}
	}

	return append(r, s[st:])
}

// append converts broken IR invariants, like a second carry of the same op, into errors.
func (p *parser) append(op Opcode, args []Value) (v Value, err error) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}

		if e, ok := p.(error); ok {
			err = errors.Wrap(e, "%v", op)
			return
		}

		panic(p)
	}()

	return p.b.Append(op, args...), nil
}

func (p *parser) arg(s string, t Type) (Value, error) {
	if strings.HasPrefix(s, "%") {
		i, ok := p.defs[s]
		if !ok {
			return Value{}, errors.New("%v is not defined", s)
		}

		return InstValue(i), nil
	}

	if strings.HasPrefix(s, "#") {
		if t == TypeOpaque {
			num, tname, ok := strings.Cut(s, ":")
			if !ok {
				return Value{}, errors.New("immediate needs a type here: %v", s)
			}

			t, ok = lookupType(tname)
			if !ok {
				return Value{}, errors.New("unknown type: %v", tname)
			}

			s = num
		}

		return parseImm(s[1:], t)
	}

	var v Value
	ok := false

	switch t {
	case TypeA32Reg:
		var r A32Reg
		r, ok = ParseA32Reg(s)
		v = ImmA32Reg(r)
	case TypeA32ExtReg:
		var r A32ExtReg
		r, ok = ParseA32ExtReg(s)
		v = ImmA32ExtReg(r)
	case TypeA64Reg:
		var r A64Reg
		r, ok = ParseA64Reg(s)
		v = ImmA64Reg(r)
	case TypeA64Vec:
		var r A64Vec
		r, ok = ParseA64Vec(s)
		v = ImmA64Vec(r)
	case TypeCond:
		var c Cond
		c, ok = ParseCond(s)
		v = ImmCond(c)
	case TypeAccType:
		var a AccType
		a, ok = ParseAccType(s)
		v = ImmAccType(a)
	case TypeCoprocInfo:
		var c CoprocInfo
		c, ok = ParseCoprocInfo(s)
		v = ImmCoprocInfo(c)
	}

	if !ok {
		return Value{}, errors.New("bad %v: %q", t, s)
	}

	return v, nil
}

func parseImm(s string, t Type) (Value, error) {
	switch t {
	case TypeU1, TypeU8, TypeU16, TypeU32, TypeU64:
	default:
		return Value{}, errors.New("no immediates of type %v", t)
	}

	w := t.BitWidth()

	x, err := strconv.ParseUint(s, 0, w)
	if err != nil {
		return Value{}, errors.Wrap(err, "immediate %v", t)
	}

	return ImmOfType(t, x), nil
}

func lookupType(name string) (Type, bool) {
	for t, n := range typeNames {
		if n == name {
			return Type(t), true
		}
	}

	return 0, false
}
