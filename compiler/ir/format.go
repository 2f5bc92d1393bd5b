package ir

import (
	"strconv"
	"strings"

	"github.com/nikandfor/hacked/hfmt"
)

type (
	slots struct {
		ids map[Value]int
	}
)

func FormatModule(m *Module) string {
	var b []byte

	if m.Name != "" {
		b = hfmt.Appendf(b, "; module %s\n", m.Name)
	}

	for _, g := range m.Globals {
		b = hfmt.Appendf(b, "@%s = global %s\n", g.name, g.elem)
	}

	for _, f := range m.Funcs {
		b = append(b, '\n')
		b = AppendFunc(b, f)
	}

	return string(b)
}

func Format(f *Func) string {
	return string(AppendFunc(nil, f))
}

func AppendFunc(b []byte, f *Func) []byte {
	s := numberSlots(f)

	b = hfmt.Appendf(b, "define %s @%s(", f.Ret, f.Name)

	for i, p := range f.Params {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = hfmt.Appendf(b, "%s %s", p.typ, s.ref(p))
	}

	b = append(b, ") {\n"...)

	for i, bb := range f.blocks {
		if i != 0 {
			b = append(b, '\n')
		}

		b = append(b, blockLabel(bb)...)
		b = append(b, ':')

		if len(bb.preds) != 0 {
			b = append(b, "\t\t; preds ="...)

			for j, p := range bb.preds {
				if j != 0 {
					b = append(b, ',')
				}

				b = append(b, " %"...)
				b = append(b, blockLabel(p)...)
			}
		}

		b = append(b, '\n')

		for _, x := range bb.code {
			b = append(b, "  "...)
			b = s.appendInstr(b, x)
			b = append(b, '\n')
		}
	}

	b = append(b, "}\n"...)

	return b
}

// FormatInstr formats a single instruction with slots numbered over its function.
func FormatInstr(x *Instr) string {
	var s slots

	if x.block != nil && x.block.fn != nil {
		s = numberSlots(x.block.fn)
	}

	return string(s.appendInstr(nil, x))
}

func numberSlots(f *Func) slots {
	s := slots{ids: make(map[Value]int)}
	n := 0

	for _, p := range f.Params {
		if p.name == "" {
			s.ids[p] = n
			n++
		}
	}

	for _, bb := range f.blocks {
		for _, x := range bb.code {
			if x.name == "" && x.typ != Void {
				s.ids[x] = n
				n++
			}
		}
	}

	return s
}

func (s slots) ref(v Value) string {
	switch v := v.(type) {
	case *Const:
		return strconv.FormatInt(v.val, 10)
	case *Global:
		return "@" + v.name
	}

	if n := v.Name(); n != "" {
		return "%" + n
	}

	if id, ok := s.ids[v]; ok {
		return "%" + strconv.Itoa(id)
	}

	return "%?"
}

func (s slots) typed(v Value) string {
	return string(v.Type()) + " " + s.ref(v)
}

func (s slots) appendInstr(b []byte, x *Instr) []byte {
	if x.typ != Void {
		b = append(b, s.ref(x)...)
		b = append(b, " = "...)
	}

	vol := ""
	if x.Volatile {
		vol = "volatile "
	}

	switch x.Op {
	case OpAlloca:
		b = hfmt.Appendf(b, "alloca %s", x.Elem)
	case OpLoad:
		b = hfmt.Appendf(b, "load %s%s, %s", vol, x.typ, s.typed(x.ops[0]))
	case OpStore:
		b = hfmt.Appendf(b, "store %s%s, %s", vol, s.typed(x.ops[0]), s.typed(x.ops[1]))
	case OpAdd, OpSub, OpMul:
		b = hfmt.Appendf(b, "%v %s, %s", x.Op, s.typed(x.ops[0]), s.ref(x.ops[1]))
	case OpICmp:
		b = hfmt.Appendf(b, "icmp %s %s, %s", x.Pred, s.typed(x.ops[0]), s.ref(x.ops[1]))
	case OpGEP:
		b = hfmt.Appendf(b, "gep %s, %s, %s", x.Elem, s.typed(x.ops[0]), s.typed(x.ops[1]))
	case OpBr:
		b = hfmt.Appendf(b, "br label %%%s", blockLabel(x.succs[0]))
	case OpCondBr:
		b = hfmt.Appendf(b, "br %s, label %%%s, label %%%s", s.typed(x.ops[0]), blockLabel(x.succs[0]), blockLabel(x.succs[1]))
	case OpSwitch:
		b = hfmt.Appendf(b, "switch %s, label %%%s [", s.typed(x.ops[0]), blockLabel(x.succs[0]))

		for i, c := range x.ops[1:] {
			if i != 0 {
				b = append(b, ' ')
			}

			b = hfmt.Appendf(b, "%s, label %%%s", s.typed(c), blockLabel(x.succs[i+1]))
		}

		b = append(b, ']')
	case OpRet:
		if len(x.ops) == 0 {
			b = append(b, "ret void"...)
		} else {
			b = hfmt.Appendf(b, "ret %s", s.typed(x.ops[0]))
		}
	default:
		panic(x.Op)
	}

	if x.Align != 0 {
		b = hfmt.Appendf(b, ", align %d", x.Align)
	}

	if len(x.Weights) != 0 {
		w := make([]string, len(x.Weights))
		for i, v := range x.Weights {
			w[i] = strconv.FormatUint(uint64(v), 10)
		}

		b = hfmt.Appendf(b, ", !prof [%s]", strings.Join(w, ", "))
	}

	return b
}

func blockLabel(b *Block) string {
	if b.name != "" {
		return b.name
	}

	return "bb" + strconv.Itoa(b.ID)
}
