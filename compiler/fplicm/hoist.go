package fplicm

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/fplicm/compiler/ir"
	"github.com/slowlang/fplicm/compiler/loops"
)

type (
	// Hoisted describes the code added for one candidate load.
	Hoisted struct {
		Load *ir.Instr

		Slot  *ir.Instr // alloca
		Clone *ir.Instr // load in the preheader
		Store *ir.Instr // clone -> slot

		// Rewritten is the number of operand slots redirected from
		// the load's pointer to Slot.
		Rewritten int
	}
)

// Preheader returns the unique block outside the loop entering the first frequent block.
func Preheader(l *loops.Loop, p Paths) (*ir.Block, error) {
	first := p.First()
	if first == nil {
		return nil, errors.Wrap(loops.ErrNoPreheader, "empty frequent path")
	}

	var pre *ir.Block

	for _, b := range first.Preds() {
		if l.Contains(b) || b == pre {
			continue
		}

		if pre != nil {
			return nil, errors.Wrap(loops.ErrNoPreheader, "block %v: entered from %v and %v", first.Name(), pre.Name(), b.Name())
		}

		pre = b
	}

	if pre == nil {
		return nil, errors.Wrap(loops.ErrNoPreheader, "block %v: no predecessors outside the loop", first.Name())
	}

	return pre, nil
}

// Hoist copies each candidate load into the preheader, saves its value
// into a new stack slot and redirects users of the load's pointer to the slot.
// Users inside the preheader, users in other functions
// and the clone itself keep the pointer.
// The candidate stays in place and users of its result are not touched.
func Hoist(ctx context.Context, l *loops.Loop, p Paths, cands []*ir.Instr) (hs []Hoisted, err error) {
	for _, ld := range cands {
		h, err := hoist(ctx, l, p, ld)
		if err != nil {
			return hs, errors.Wrap(err, "hoist %v", ld.Name())
		}

		hs = append(hs, h)
	}

	return hs, nil
}

func hoist(ctx context.Context, l *loops.Loop, p Paths, ld *ir.Instr) (h Hoisted, err error) {
	tr := tlog.SpanFromContext(ctx)

	pre, err := Preheader(l, p)
	if err != nil {
		return h, err
	}

	term := pre.Terminator()
	if term == nil {
		return h, errors.Wrap(ir.ErrMalformed, "preheader %v: no terminator", pre.Name())
	}

	ptr := ld.Pointer()

	h.Load = ld

	h.Slot = ir.NewInstr(ir.OpAlloca, "", ir.Ptr, nil, nil)
	h.Slot.Elem = ld.Type()
	h.Slot.Align = ld.Align

	h.Clone = ld.Clone()

	h.Store = ir.NewInstr(ir.OpStore, "", ir.Void, []ir.Value{h.Clone, h.Slot}, nil)
	h.Store.Align = ld.Align

	for _, x := range []*ir.Instr{h.Slot, h.Clone, h.Store} {
		err = pre.InsertBefore(term, x)
		if err == nil {
			continue
		}

		if uerr := unhoist(pre, h.Slot, h.Clone, h.Store); uerr != nil {
			return Hoisted{}, errors.Wrap(uerr, "insert %v: %v: undo", x.Op, err)
		}

		return Hoisted{}, errors.Wrap(err, "insert %v", x.Op)
	}

	for _, u := range ptr.Users() {
		if u == h.Clone || u.Block() == nil || u.Block() == pre || u.Block().Func() != pre.Func() {
			continue
		}

		for i := 0; i < u.NumOperands(); i++ {
			if u.Operand(i) != ptr {
				continue
			}

			u.SetOperand(i, h.Slot)
			h.Rewritten++

			tr.V("fplicm_hoist").Printw("rewrite operand", "user", u, "op", u.Op.String(), "block", u.Block(), "operand", i)
		}
	}

	tr.V("fplicm_hoist").Printw("hoisted", "load", ld, "ptr", ptr.Name(), "preheader", pre, "rewritten", h.Rewritten)

	return h, nil
}

// unhoist takes the code added for one load out of pre.
// Users go first, so xs are expected in definition order.
func unhoist(pre *ir.Block, xs ...*ir.Instr) (err error) {
	for i := len(xs) - 1; i >= 0; i-- {
		x := xs[i]

		if x.Block() == nil {
			err = x.Discard()
		} else {
			err = pre.Remove(x)
		}

		if err != nil {
			return err
		}
	}

	return nil
}
