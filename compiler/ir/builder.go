package ir

import "tlog.app/go/errors"

type (
	// Builder appends instructions to the end of a block.
	// It panics on misuse, as construction errors are programming errors.
	Builder struct {
		b *Block
	}
)

func NewBuilder(b *Block) *Builder {
	return &Builder{b: b}
}

func (bl *Builder) Block() *Block { return bl.b }

func (bl *Builder) SetBlock(b *Block) { bl.b = b }

func (bl *Builder) Alloca(name string, elem Type) *Instr {
	x := NewInstr(OpAlloca, name, Ptr, nil, nil)
	x.Elem = elem
	x.Align = elem.Align()

	return bl.add(x)
}

func (bl *Builder) Load(name string, tp Type, ptr Value) *Instr {
	bl.checkPtr(ptr)

	x := NewInstr(OpLoad, name, tp, []Value{ptr}, nil)
	x.Align = tp.Align()

	return bl.add(x)
}

func (bl *Builder) Store(val, ptr Value) *Instr {
	bl.checkPtr(ptr)

	x := NewInstr(OpStore, "", Void, []Value{val, ptr}, nil)
	x.Align = val.Type().Align()

	return bl.add(x)
}

func (bl *Builder) Add(name string, l, r Value) *Instr {
	return bl.add(NewInstr(OpAdd, name, l.Type(), []Value{l, r}, nil))
}

func (bl *Builder) Sub(name string, l, r Value) *Instr {
	return bl.add(NewInstr(OpSub, name, l.Type(), []Value{l, r}, nil))
}

func (bl *Builder) Mul(name string, l, r Value) *Instr {
	return bl.add(NewInstr(OpMul, name, l.Type(), []Value{l, r}, nil))
}

func (bl *Builder) ICmp(name string, p Pred, l, r Value) *Instr {
	x := NewInstr(OpICmp, name, I1, []Value{l, r}, nil)
	x.Pred = p

	return bl.add(x)
}

func (bl *Builder) GEP(name string, elem Type, ptr, idx Value) *Instr {
	bl.checkPtr(ptr)

	x := NewInstr(OpGEP, name, Ptr, []Value{ptr, idx}, nil)
	x.Elem = elem

	return bl.add(x)
}

func (bl *Builder) Br(dst *Block) *Instr {
	return bl.add(NewInstr(OpBr, "", Void, nil, []*Block{dst}))
}

// CondBr branches to then if cond holds. Weights are optional profile
// branch weights for then and else.
func (bl *Builder) CondBr(cond Value, then, els *Block, weights ...uint32) *Instr {
	if len(weights) != 0 && len(weights) != 2 {
		panic(errors.New("condbr: want 2 weights, got %d", len(weights)))
	}

	x := NewInstr(OpCondBr, "", Void, []Value{cond}, []*Block{then, els})
	x.Weights = weights

	return bl.add(x)
}

func (bl *Builder) Switch(val Value, def *Block, cases []*Const, dsts []*Block) *Instr {
	if len(cases) != len(dsts) {
		panic(errors.New("switch: %d cases for %d destinations", len(cases), len(dsts)))
	}

	ops := []Value{val}
	for _, c := range cases {
		ops = append(ops, c)
	}

	succs := append([]*Block{def}, dsts...)

	return bl.add(NewInstr(OpSwitch, "", Void, ops, succs))
}

// Ret returns from the function. val may be nil.
func (bl *Builder) Ret(val Value) *Instr {
	var ops []Value
	if val != nil {
		ops = []Value{val}
	}

	return bl.add(NewInstr(OpRet, "", Void, ops, nil))
}

func (bl *Builder) add(x *Instr) *Instr {
	err := bl.b.Append(x)
	if err != nil {
		panic(err)
	}

	return x
}

func (bl *Builder) checkPtr(v Value) {
	if v.Type() != Ptr {
		panic(errors.New("%v: not a pointer: %v", v.Name(), v.Type()))
	}
}
