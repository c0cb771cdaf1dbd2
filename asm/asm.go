// Package asm provides a two-pass assembler for Milo832 assembly. Label
// references patch to absolute instruction indices after the first pass, the
// way the hardware's branch targets expect them.
//
// Syntax sketch:
//
//	loop:                    ; labels end with a colon
//	    tid  r1
//	    ldr  r2, [r1+64]     ; base register plus offset
//	    addi r1, r1, 1       ; immediate variant
//	    isetp p0, r1, r3, lt
//	    @p0 bra loop         ; guard predicate prefix
//	    exit
package asm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sarchlab/milosim/insts"
)

// fixup is a label reference awaiting resolution.
type fixup struct {
	index int
	label string
	line  int
}

// Assembler translates Milo832 assembly source into instruction words.
type Assembler struct {
	code   []uint64
	labels map[string]uint64
	fixups []fixup
}

// NewAssembler creates an assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]uint64),
	}
}

// Assemble translates a full source text and returns the instruction words.
func Assemble(source string) ([]uint64, error) {
	return NewAssembler().Assemble(source)
}

// Assemble runs both passes over the source.
func (a *Assembler) Assemble(source string) ([]uint64, error) {
	a.code = a.code[:0]
	a.fixups = a.fixups[:0]
	clear(a.labels)

	for i, line := range strings.Split(source, "\n") {
		if err := a.assembleLine(line, i+1); err != nil {
			return nil, err
		}
	}

	if err := a.resolve(); err != nil {
		return nil, err
	}
	return a.code, nil
}

func (a *Assembler) assembleLine(line string, lineNum int) error {
	if i := strings.IndexAny(line, ";"); i >= 0 {
		line = line[:i]
	}
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if i := strings.Index(line, ":"); i >= 0 {
		label := strings.TrimSpace(line[:i])
		if label == "" {
			return fmt.Errorf("line %d: empty label", lineNum)
		}
		if _, dup := a.labels[label]; dup {
			return fmt.Errorf("line %d: duplicate label %q", lineNum, label)
		}
		a.labels[label] = uint64(len(a.code))
		line = strings.TrimSpace(line[i+1:])
		if line == "" {
			return nil
		}
	}

	inst := &insts.Instruction{
		Rs1:  insts.RegNone,
		Rs2:  insts.RegNone,
		Pred: insts.PredAlways,
	}

	// Optional @P / @!P guard prefix.
	if strings.HasPrefix(line, "@") {
		fields := strings.SplitN(line[1:], " ", 2)
		if len(fields) != 2 {
			return fmt.Errorf("line %d: guard without instruction", lineNum)
		}
		guard := strings.ToUpper(strings.TrimSpace(fields[0]))
		if strings.HasPrefix(guard, "!") {
			inst.PredNegate = true
			guard = guard[1:]
		}
		p, ok := parsePred(guard)
		if !ok {
			return fmt.Errorf("line %d: bad guard predicate %q", lineNum, fields[0])
		}
		inst.Pred = p
		line = strings.TrimSpace(fields[1])
	}

	mnemonic := line
	rest := ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		mnemonic, rest = line[:i], strings.TrimSpace(line[i+1:])
	}
	mnemonic = strings.ToUpper(mnemonic)

	// Immediate variants (ADDI, SHLI, ...) assemble to the base opcode with
	// the immediate as operand B.
	forceImm := false
	if base, ok := strings.CutSuffix(mnemonic, "I"); ok {
		if _, known := insts.OpByMnemonic(mnemonic); !known {
			if _, baseKnown := insts.OpByMnemonic(base); baseKnown {
				mnemonic = base
				forceImm = true
			}
		}
	}

	op, ok := insts.OpByMnemonic(mnemonic)
	if !ok {
		return fmt.Errorf("line %d: unknown instruction %q", lineNum, mnemonic)
	}
	inst.Op = op

	args := splitOperands(rest)
	if err := a.encodeOperands(inst, args, forceImm, lineNum); err != nil {
		return err
	}

	a.code = append(a.code, insts.Encode(inst))
	return nil
}

// encodeOperands fills the instruction fields per the opcode's operand
// layout.
func (a *Assembler) encodeOperands(inst *insts.Instruction, args []string, forceImm bool, lineNum int) error {
	fail := func(format string, fargs ...any) error {
		return fmt.Errorf("line %d: %s", lineNum, fmt.Sprintf(format, fargs...))
	}
	need := func(n int) error {
		if len(args) != n {
			return fail("%s takes %d operands, got %d", inst.Op.Mnemonic(), n, len(args))
		}
		return nil
	}

	switch inst.Op {
	case insts.OpNOP, insts.OpEXIT, insts.OpJOIN, insts.OpRET:
		return need(0)

	case insts.OpBAR:
		// The barrier index operand is accepted for source compatibility;
		// the model has a single barrier.
		if len(args) > 1 {
			return fail("BAR takes at most one operand")
		}
		return nil

	case insts.OpTID:
		if err := need(1); err != nil {
			return err
		}
		return a.wantReg(&inst.Rd, args[0], lineNum)

	case insts.OpBRA, insts.OpSSY, insts.OpCALL:
		if err := need(1); err != nil {
			return err
		}
		return a.wantTarget(inst, args[0], lineNum)

	case insts.OpBEQ, insts.OpBNE:
		if err := need(3); err != nil {
			return err
		}
		if err := a.wantReg(&inst.Rs1, args[0], lineNum); err != nil {
			return err
		}
		if err := a.wantReg(&inst.Rs2, args[1], lineNum); err != nil {
			return err
		}
		return a.wantTarget(inst, args[2], lineNum)

	case insts.OpLDR, insts.OpLDS:
		if err := need(2); err != nil {
			return err
		}
		if err := a.wantReg(&inst.Rd, args[0], lineNum); err != nil {
			return err
		}
		return a.wantMemRef(inst, args[1], lineNum)

	case insts.OpSTR, insts.OpSTS:
		if err := need(2); err != nil {
			return err
		}
		// The data register travels in Rs2; Rs1 is the address base.
		if err := a.wantReg(&inst.Rs2, args[0], lineNum); err != nil {
			return err
		}
		return a.wantMemRef(inst, args[1], lineNum)

	case insts.OpISETP, insts.OpFSETP:
		if err := need(4); err != nil {
			return err
		}
		p, ok := parsePred(strings.ToUpper(args[0]))
		if !ok {
			return fail("bad destination predicate %q", args[0])
		}
		inst.Rd = p
		if err := a.wantReg(&inst.Rs1, args[1], lineNum); err != nil {
			return err
		}
		if err := a.wantReg(&inst.Rs2, args[2], lineNum); err != nil {
			return err
		}
		cmp, ok := parseCmp(args[3])
		if !ok {
			return fail("bad comparison %q", args[3])
		}
		inst.Imm = cmp
		return nil

	case insts.OpSELP:
		if err := need(4); err != nil {
			return err
		}
		if err := a.wantReg(&inst.Rd, args[0], lineNum); err != nil {
			return err
		}
		if err := a.wantReg(&inst.Rs1, args[1], lineNum); err != nil {
			return err
		}
		if err := a.wantReg(&inst.Rs2, args[2], lineNum); err != nil {
			return err
		}
		p, ok := parsePred(strings.ToUpper(args[3]))
		if !ok {
			return fail("bad selector predicate %q", args[3])
		}
		inst.Rs3 = p
		inst.HasRs3 = true
		return nil

	case insts.OpIMAD, insts.OpFFMA:
		if err := need(4); err != nil {
			return err
		}
		if err := a.wantReg(&inst.Rd, args[0], lineNum); err != nil {
			return err
		}
		if err := a.wantReg(&inst.Rs1, args[1], lineNum); err != nil {
			return err
		}
		if err := a.wantReg(&inst.Rs2, args[2], lineNum); err != nil {
			return err
		}
		if err := a.wantReg(&inst.Rs3, args[3], lineNum); err != nil {
			return err
		}
		inst.HasRs3 = true
		return nil
	}

	// Remaining forms: MOV and the one- and two-operand arithmetic group.
	switch len(args) {
	case 2:
		if err := a.wantReg(&inst.Rd, args[0], lineNum); err != nil {
			return err
		}
		if isRegToken(args[1]) && !forceImm {
			return a.wantReg(&inst.Rs1, args[1], lineNum)
		}
		imm, ok := parseImm(args[1])
		if !ok {
			return fail("bad operand %q", args[1])
		}
		if !fitsImm20(imm) {
			return fail("immediate %s does not fit in 20 bits", args[1])
		}
		inst.Imm = uint32(imm) & 0xFFFFF
		return nil
	case 3:
		if err := a.wantReg(&inst.Rd, args[0], lineNum); err != nil {
			return err
		}
		if err := a.wantReg(&inst.Rs1, args[1], lineNum); err != nil {
			return err
		}
		if isRegToken(args[2]) && !forceImm {
			return a.wantReg(&inst.Rs2, args[2], lineNum)
		}
		imm, ok := parseImm(args[2])
		if !ok {
			return fail("bad operand %q", args[2])
		}
		if !fitsImm20(imm) {
			return fail("immediate %s does not fit in 20 bits", args[2])
		}
		inst.Imm = uint32(imm) & 0xFFFFF
		return nil
	default:
		return fail("%s: unsupported operand count %d", inst.Op.Mnemonic(), len(args))
	}
}

// wantTarget records a label fixup or encodes a numeric absolute target.
func (a *Assembler) wantTarget(inst *insts.Instruction, arg string, lineNum int) error {
	if imm, ok := parseImm(arg); ok {
		if imm < 0 || imm >= 1<<20 {
			return fmt.Errorf("line %d: branch target %s out of range", lineNum, arg)
		}
		inst.Imm = uint32(imm)
		return nil
	}
	a.fixups = append(a.fixups, fixup{index: len(a.code), label: arg, line: lineNum})
	return nil
}

// wantMemRef parses [Rn], [Rn+off], or [Rn-off].
func (a *Assembler) wantMemRef(inst *insts.Instruction, arg string, lineNum int) error {
	s := strings.TrimSpace(arg)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return fmt.Errorf("line %d: bad memory operand %q", lineNum, arg)
	}
	s = strings.TrimSpace(s[1 : len(s)-1])

	base := s
	off := ""
	if i := strings.IndexAny(s, "+-"); i > 0 {
		base, off = strings.TrimSpace(s[:i]), strings.TrimSpace(s[i:])
	}

	if err := a.wantReg(&inst.Rs1, base, lineNum); err != nil {
		return err
	}
	if off != "" {
		v, err := strconv.ParseInt(off, 0, 32)
		if err != nil {
			return fmt.Errorf("line %d: bad memory offset %q", lineNum, off)
		}
		if !fitsImm20(v) {
			return fmt.Errorf("line %d: memory offset %s does not fit in 20 bits", lineNum, off)
		}
		inst.Imm = uint32(v) & 0xFFFFF
	}
	return nil
}

func (a *Assembler) wantReg(dst *uint8, arg string, lineNum int) error {
	r, ok := parseReg(arg)
	if !ok {
		return fmt.Errorf("line %d: bad register %q", lineNum, arg)
	}
	*dst = r
	return nil
}

// resolve patches all recorded label references.
func (a *Assembler) resolve() error {
	for _, f := range a.fixups {
		addr, ok := a.labels[f.label]
		if !ok {
			return fmt.Errorf("line %d: undefined label %q", f.line, f.label)
		}
		a.code[f.index] = a.code[f.index]&^uint64(0xFFFFF) | (addr & 0xFFFFF)
	}
	return nil
}

func splitOperands(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func isRegToken(s string) bool {
	_, ok := parseReg(s)
	return ok
}

func parseReg(s string) (uint8, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 || s[0] != 'R' {
		return 0, false
	}
	v, err := strconv.Atoi(s[1:])
	if err != nil || v < 0 || v > 63 {
		return 0, false
	}
	return uint8(v), true
}

func parsePred(s string) (uint8, bool) {
	if s == "PT" {
		return insts.PredAlways, true
	}
	if len(s) != 2 || s[0] != 'P' || s[1] < '0' || s[1] > '7' {
		return 0, false
	}
	return s[1] - '0', true
}

// parseImm accepts decimal, 0x-hex, #-prefixed, and float literals. A float
// yields its IEEE-754 bit pattern, which is subject to the same 20-bit field
// check as any other immediate at the call sites.
func parseImm(s string) (int64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return 0, false
	}

	if strings.ContainsAny(s, ".eE") && !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "f"), 32)
		if err == nil {
			return int64(math.Float32bits(float32(f))), true
		}
	}

	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// fitsImm20 reports whether a value is representable in the 20-bit immediate
// field, either as a signed value or as a raw bit pattern.
func fitsImm20(v int64) bool {
	return v >= -(1<<19) && v < 1<<20
}

func parseCmp(s string) (uint32, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LT":
		return insts.CmpLT, true
	case "LE":
		return insts.CmpLE, true
	case "EQ":
		return insts.CmpEQ, true
	case "NE":
		return insts.CmpNE, true
	case "GE":
		return insts.CmpGE, true
	case "GT":
		return insts.CmpGT, true
	}
	return 0, false
}
