package ir

import "tlog.app/go/errors"

var ErrMalformed = errors.New("malformed ir")

// Verify checks structural consistency of f: terminators, CFG edges and def-use lists.
func Verify(f *Func) error {
	if len(f.blocks) == 0 {
		return errors.Wrap(ErrMalformed, "func %v: no blocks", f.Name)
	}

	edges := map[[2]*Block]int{}

	for _, b := range f.blocks {
		if b.fn != f {
			return errors.Wrap(ErrMalformed, "block %v: belongs to another func", b.name)
		}

		if b.Terminator() == nil {
			return errors.Wrap(ErrMalformed, "block %v: not terminated", b.name)
		}

		for i, x := range b.code {
			if x.block != b {
				return errors.Wrap(ErrMalformed, "block %v: instr %d: parent mismatch", b.name, i)
			}

			if x.IsTerminator() && i != len(b.code)-1 {
				return errors.Wrap(ErrMalformed, "block %v: %v in the middle of block", b.name, x.Op)
			}

			err := verifyOperands(f, x)
			if err != nil {
				return errors.Wrap(err, "block %v: instr %d", b.name, i)
			}
		}

		for _, s := range b.Succs() {
			if s.fn != f {
				return errors.Wrap(ErrMalformed, "block %v: successor %v from another func", b.name, s.name)
			}

			edges[[2]*Block{b, s}]++
		}
	}

	for _, b := range f.blocks {
		for _, p := range b.preds {
			edges[[2]*Block{p, b}]--
		}
	}

	for e, n := range edges {
		if n != 0 {
			return errors.Wrap(ErrMalformed, "edge %v -> %v: preds and succs disagree by %d", e[0].name, e[1].name, n)
		}
	}

	return nil
}

func verifyOperands(f *Func, x *Instr) error {
	want := -1

	switch x.Op {
	case OpAlloca:
		want = 0
	case OpLoad:
		want = 1
	case OpStore, OpAdd, OpSub, OpMul, OpICmp, OpGEP:
		want = 2
	case OpBr:
		want = 0

		if len(x.succs) != 1 {
			return errors.Wrap(ErrMalformed, "br: %d successors", len(x.succs))
		}
	case OpCondBr:
		want = 1

		if len(x.succs) != 2 {
			return errors.Wrap(ErrMalformed, "condbr: %d successors", len(x.succs))
		}
	case OpSwitch:
		if len(x.ops) != len(x.succs) || len(x.ops) == 0 {
			return errors.Wrap(ErrMalformed, "switch: %d operands for %d successors", len(x.ops), len(x.succs))
		}
	case OpRet:
		if len(x.ops) > 1 {
			return errors.Wrap(ErrMalformed, "ret: %d operands", len(x.ops))
		}
	default:
		panic(x.Op)
	}

	if want >= 0 && len(x.ops) != want {
		return errors.Wrap(ErrMalformed, "%v: %d operands, want %d", x.Op, len(x.ops), want)
	}

	switch x.Op {
	case OpLoad, OpStore:
		if p := x.Pointer(); p.Type() != Ptr {
			return errors.Wrap(ErrMalformed, "%v: pointer operand has type %v", x.Op, p.Type())
		}
	}

	for i, v := range x.ops {
		if v == nil {
			return errors.Wrap(ErrMalformed, "%v: operand %d is nil", x.Op, i)
		}

		if !v.uses().has(x) {
			return errors.Wrap(ErrMalformed, "%v: operand %d does not list instr as user", x.Op, i)
		}

		y, ok := v.(*Instr)
		if !ok {
			continue
		}

		if y.block == nil {
			return errors.Wrap(ErrMalformed, "%v: operand %d is detached", x.Op, i)
		}

		if y.block.fn != f {
			return errors.Wrap(ErrMalformed, "%v: operand %d is defined in func %v", x.Op, i, y.block.fn.Name)
		}
	}

	return nil
}
