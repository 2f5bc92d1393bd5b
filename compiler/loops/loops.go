package loops

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/fplicm/compiler/ir"
	"github.com/slowlang/fplicm/compiler/set"
)

type (
	// Loop is a natural loop: a header and every block that reaches
	// one of its back edges without passing through the header.
	Loop struct {
		Header *ir.Block

		// Blocks are in reverse postorder, header first.
		Blocks []*ir.Block

		latches []*ir.Block
		in      set.Bitmap
	}
)

var ErrNoPreheader = errors.New("no preheader")

// Find returns the outermost natural loops of f ordered by header position
// in reverse postorder. Back edges sharing a header form one loop.
func Find(ctx context.Context, f *ir.Func) (ls []*Loop, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "loops: find", "func", f.Name)
	defer tr.Finish("err", &err)

	if f.Entry() == nil {
		return nil, errors.Wrap(ir.ErrMalformed, "func %v: no entry", f.Name)
	}

	d := Dominators(f)
	rpo := d.RPO()

	byHeader := map[*ir.Block]*Loop{}
	var all []*Loop

	for _, b := range rpo {
		for _, h := range b.Succs() {
			if !d.Dominates(h, b) {
				continue
			}

			l := byHeader[h]
			if l == nil {
				l = &Loop{Header: h, in: set.MakeBitmap(f.NumBlocks())}
				l.in.Set(h.ID)

				byHeader[h] = l
				all = append(all, l)
			}

			if !containsBlock(l.latches, b) {
				l.latches = append(l.latches, b)
			}

			l.collect(d, b)
		}
	}

	for _, l := range all {
		outer := false

		for _, m := range all {
			if m != l && m.Contains(l.Header) {
				outer = true
				break
			}
		}

		if outer {
			tr.V("loops").Printw("skip nested loop", "header", l.Header)
			continue
		}

		for _, b := range rpo {
			if l.in.IsSet(b.ID) {
				l.Blocks = append(l.Blocks, b)
			}
		}

		ls = append(ls, l)
	}

	if tr.If("loops") {
		for _, l := range ls {
			tr.Printw("loop", "header", l.Header, "blocks", l.Blocks, "latches", l.latches)
		}
	}

	return ls, nil
}

// collect adds blocks reaching latch backwards up to the header.
func (l *Loop) collect(d *Dom, latch *ir.Block) {
	q := []*ir.Block{latch}

	for len(q) != 0 {
		b := q[len(q)-1]
		q = q[:len(q)-1]

		if l.in.IsSet(b.ID) {
			continue
		}

		l.in.Set(b.ID)

		for _, p := range b.Preds() {
			if d.Reachable(p) && !l.in.IsSet(p.ID) {
				q = append(q, p)
			}
		}
	}
}

func (l *Loop) Contains(b *ir.Block) bool {
	return b != nil && b.Func() == l.Header.Func() && l.in.IsSet(b.ID)
}

// Latches are the sources of the back edges.
func (l *Loop) Latches() []*ir.Block {
	return append([]*ir.Block(nil), l.latches...)
}

// Set returns loop membership keyed by block id.
func (l *Loop) Set() set.Bitmap {
	return l.in.Copy()
}

// Preheader returns the unique block outside the loop that branches to the header.
func (l *Loop) Preheader() (*ir.Block, error) {
	var pre *ir.Block

	for _, p := range l.Header.Preds() {
		if l.Contains(p) || p == pre {
			continue
		}

		if pre != nil {
			return nil, errors.Wrap(ErrNoPreheader, "header %v: entered from %v and %v", l.Header.Name(), pre.Name(), p.Name())
		}

		pre = p
	}

	if pre == nil {
		return nil, errors.Wrap(ErrNoPreheader, "header %v: no predecessors outside the loop", l.Header.Name())
	}

	return pre, nil
}

func (l *Loop) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 2)
	b = e.AppendKeyString(b, "header", l.Header.Name())
	b = e.AppendKeyInt(b, "blocks", l.in.Size())

	return b
}

func containsBlock(bs []*ir.Block, b *ir.Block) bool {
	for _, x := range bs {
		if x == b {
			return true
		}
	}

	return false
}
