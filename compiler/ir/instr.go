package ir

import (
	"tlog.app/go/errors"
	"tlog.app/go/tlog/tlwire"
)

type (
	Op int

	Pred string

	// Instr is a single instruction. It is also a Value: its result.
	//
	// Operand layout by Op:
	//	alloca:  -
	//	load:    ptr
	//	store:   val, ptr
	//	add, sub, mul, icmp: x, y
	//	gep:     ptr, index
	//	br:      -                 succs: dst
	//	condbr:  cond              succs: then, else
	//	switch:  val, case...      succs: default, dst...
	//	ret:     [val]
	Instr struct {
		userList

		Op Op

		name string
		typ  Type

		// Elem is the allocated type of an alloca and the element type of a gep.
		Elem Type

		Align    int
		Volatile bool
		Pred     Pred

		// Weights are profile branch weights, one per successor.
		Weights []uint32

		ops   []Value
		succs []*Block

		block *Block
	}
)

const (
	OpAlloca Op = iota
	OpLoad
	OpStore
	OpAdd
	OpSub
	OpMul
	OpICmp
	OpGEP
	OpBr
	OpCondBr
	OpSwitch
	OpRet

	numOps
)

const (
	EQ  Pred = "eq"
	NE  Pred = "ne"
	SLT Pred = "slt"
	SLE Pred = "sle"
	SGT Pred = "sgt"
	SGE Pred = "sge"
)

var opNames = [numOps]string{
	OpAlloca: "alloca",
	OpLoad:   "load",
	OpStore:  "store",
	OpAdd:    "add",
	OpSub:    "sub",
	OpMul:    "mul",
	OpICmp:   "icmp",
	OpGEP:    "gep",
	OpBr:     "br",
	OpCondBr: "condbr",
	OpSwitch: "switch",
	OpRet:    "ret",
}

func ParseOp(s string) (Op, error) {
	for op, n := range opNames {
		if n == s {
			return Op(op), nil
		}
	}

	return -1, errors.New("unknown op: %q", s)
}

func (op Op) String() string {
	if op < 0 || op >= numOps {
		return "op(?)"
	}

	return opNames[op]
}

func (op Op) IsTerminator() bool {
	switch op {
	case OpBr, OpCondBr, OpSwitch, OpRet:
		return true
	case OpAlloca, OpLoad, OpStore, OpAdd, OpSub, OpMul, OpICmp, OpGEP:
		return false
	default:
		panic(op)
	}
}

func ParsePred(s string) (Pred, error) {
	switch p := Pred(s); p {
	case EQ, NE, SLT, SLE, SGT, SGE:
		return p, nil
	default:
		return "", errors.New("unknown predicate: %q", s)
	}
}

// NewInstr creates a detached instruction and registers it as a user of ops.
func NewInstr(op Op, name string, tp Type, ops []Value, succs []*Block) *Instr {
	x := &Instr{
		Op:    op,
		name:  name,
		typ:   tp,
		ops:   append([]Value(nil), ops...),
		succs: append([]*Block(nil), succs...),
	}

	for _, v := range x.ops {
		v.uses().add(x)
	}

	return x
}

func (x *Instr) Name() string { return x.name }
func (x *Instr) Type() Type   { return x.typ }

func (x *Instr) SetName(n string) { x.name = n }

// Block is the block containing x or nil if x is detached.
func (x *Instr) Block() *Block { return x.block }

func (x *Instr) IsTerminator() bool { return x.Op.IsTerminator() }

func (x *Instr) NumOperands() int { return len(x.ops) }

func (x *Instr) Operand(i int) Value { return x.ops[i] }

// Operands returns a copy of the operand list.
func (x *Instr) Operands() []Value {
	return append([]Value(nil), x.ops...)
}

// SetOperand replaces operand i keeping def-use lists consistent.
func (x *Instr) SetOperand(i int, v Value) {
	old := x.ops[i]
	if old == v {
		return
	}

	old.uses().remove(x)
	v.uses().add(x)

	x.ops[i] = v
}

// Pointer is the address operand of a load or a store.
func (x *Instr) Pointer() Value {
	switch x.Op {
	case OpLoad:
		return x.ops[0]
	case OpStore:
		return x.ops[1]
	case OpAlloca, OpAdd, OpSub, OpMul, OpICmp, OpGEP, OpBr, OpCondBr, OpSwitch, OpRet:
		panic(errors.New("%v has no pointer operand", x.Op))
	default:
		panic(x.Op)
	}
}

// Stored is the value operand of a store.
func (x *Instr) Stored() Value {
	if x.Op != OpStore {
		panic(errors.New("%v is not a store", x.Op))
	}

	return x.ops[0]
}

func (x *Instr) Succs() []*Block {
	return append([]*Block(nil), x.succs...)
}

func (x *Instr) NumSuccs() int { return len(x.succs) }

func (x *Instr) Succ(i int) *Block { return x.succs[i] }

// SetSucc retargets successor i updating predecessor lists if x is attached.
func (x *Instr) SetSucc(i int, to *Block) {
	old := x.succs[i]
	if old == to {
		return
	}

	if x.block != nil {
		old.removePred(x.block)
		to.preds = append(to.preds, x.block)
	}

	x.succs[i] = to
}

// Clone returns a detached copy of x with the same operands, type,
// alignment and volatility. The copy has no name.
func (x *Instr) Clone() *Instr {
	c := NewInstr(x.Op, "", x.typ, x.ops, x.succs)

	c.Elem = x.Elem
	c.Align = x.Align
	c.Volatile = x.Volatile
	c.Pred = x.Pred
	c.Weights = append([]uint32(nil), x.Weights...)

	return c
}

// Discard unregisters a detached x from its operands.
// x must not be used afterwards.
func (x *Instr) Discard() error {
	if x.block != nil {
		return errors.New("discard %v: in block %v", x.Op, x.block.name)
	}

	if n := x.NumUsers(); n != 0 {
		return errors.New("discard %v: still has %d users", x.Op, n)
	}

	x.dropOperands()
	x.ops = nil

	return nil
}

// dropOperands unregisters x from every operand.
func (x *Instr) dropOperands() {
	for _, v := range x.ops {
		v.uses().remove(x)
	}
}

func (x *Instr) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	if x.name != "" {
		return e.AppendString(b, "%"+x.name)
	}

	if x.block != nil {
		return e.AppendString(b, x.Op.String()+"@"+x.block.name)
	}

	return e.AppendString(b, x.Op.String())
}
