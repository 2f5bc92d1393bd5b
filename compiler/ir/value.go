package ir

import (
	"strconv"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Value is anything an instruction can take as an operand.
	Value interface {
		Name() string
		Type() Type

		// Users returns an owned snapshot, one entry per operand slot
		// referring to the value. Callers may mutate the IR while iterating it.
		Users() []*Instr

		uses() *userList
	}

	userList struct {
		list []*Instr
	}

	Param struct {
		userList

		name string
		typ  Type
	}

	Global struct {
		userList

		name string
		elem Type
	}

	Const struct {
		userList

		typ Type
		val int64
	}
)

var (
	_ Value = &Param{}
	_ Value = &Global{}
	_ Value = &Const{}
	_ Value = &Instr{}
)

func NewParam(name string, tp Type) *Param {
	return &Param{name: name, typ: tp}
}

func (p *Param) Name() string { return p.name }
func (p *Param) Type() Type   { return p.typ }

func NewGlobal(name string, elem Type) *Global {
	return &Global{name: name, elem: elem}
}

func (g *Global) Name() string { return g.name }
func (g *Global) Type() Type   { return Ptr }
func (g *Global) Elem() Type   { return g.elem }

func ConstInt(tp Type, v int64) *Const {
	return &Const{typ: tp, val: v}
}

func (c *Const) Name() string { return strconv.FormatInt(c.val, 10) }
func (c *Const) Type() Type   { return c.typ }
func (c *Const) Int() int64   { return c.val }

func (u *userList) Users() []*Instr {
	return append([]*Instr(nil), u.list...)
}

func (u *userList) NumUsers() int { return len(u.list) }

func (u *userList) uses() *userList { return u }

func (u *userList) add(x *Instr) {
	u.list = append(u.list, x)
}

func (u *userList) remove(x *Instr) {
	for i, y := range u.list {
		if y != x {
			continue
		}

		copy(u.list[i:], u.list[i+1:])
		u.list = u.list[:len(u.list)-1]

		return
	}
}

func (u *userList) has(x *Instr) bool {
	for _, y := range u.list {
		if y == x {
			return true
		}
	}

	return false
}

func (p *Param) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, "%"+p.name)
}

func (g *Global) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, "@"+g.name)
}
