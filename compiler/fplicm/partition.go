package fplicm

import (
	"context"

	"nikand.dev/go/heap"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/fplicm/compiler/ir"
	"github.com/slowlang/fplicm/compiler/loops"
	"github.com/slowlang/fplicm/compiler/prob"
	"github.com/slowlang/fplicm/compiler/set"
)

type (
	// Paths splits loop blocks into the dominant route from the header
	// and the blocks reachable off its unchosen branches.
	Paths struct {
		Frequent   []*ir.Block
		Infrequent []*ir.Block
	}

	visits struct {
		heap.Heap[visit]
	}

	visit struct {
		b     *ir.Block
		depth int
	}
)

// ErrNonCanonical is returned for a loop whose frequent walk meets
// a terminator other than an unconditional or a two-way branch.
var ErrNonCanonical = errors.New("non-canonical terminator")

// Partition walks from the loop header following the likely successor until
// it gets back to the header, leaves the loop or revisits a frequent block.
// The unchosen successors seed a breadth-first closure inside the loop
// which never enters frequent blocks.
func Partition(ctx context.Context, l *loops.Loop, probs prob.Provider, opts Options) (p Paths, err error) {
	tr := tlog.SpanFromContext(ctx)
	opts = opts.withDefaults()

	header := l.Header
	n := header.Func().NumBlocks()

	freq := set.MakeBitmap(n)
	var seeds []*ir.Block

	for cur := header; ; {
		p.Frequent = append(p.Frequent, cur)
		freq.Set(cur.ID)

		t := cur.Terminator()
		if t == nil {
			return Paths{}, errors.Wrap(ir.ErrMalformed, "block %v: no terminator", cur.Name())
		}

		var next *ir.Block

		switch t.Op {
		case ir.OpBr:
			next = t.Succ(0)
		case ir.OpCondBr:
			first, second := t.Succ(0), t.Succ(1)

			pr := probs.Edge(cur, first)
			if opts.taken(pr) {
				next = first
				seeds = append(seeds, second)
			} else {
				next = second
				seeds = append(seeds, first)
			}

			tr.V("fplicm_paths").Printw("branch", "block", cur, "first", first, "prob", pr, "next", next)
		case ir.OpSwitch:
			return Paths{}, errors.Wrap(ErrNonCanonical, "block %v: %v", cur.Name(), t.Op)
		case ir.OpRet:
		case ir.OpAlloca, ir.OpLoad, ir.OpStore, ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpICmp, ir.OpGEP:
			panic(t.Op)
		default:
			panic(t.Op)
		}

		if next == nil || next == header || !l.Contains(next) || freq.IsSet(next.ID) {
			break
		}

		cur = next
	}

	visited := freq.Copy()
	q := visits{Heap: heap.Heap[visit]{Less: visitLess}}

	push := func(b *ir.Block, depth int) {
		if !l.Contains(b) || visited.IsSet(b.ID) {
			return
		}

		visited.Set(b.ID)
		q.Push(visit{b: b, depth: depth})
	}

	for _, s := range seeds {
		push(s, 0)
	}

	for q.Len() != 0 {
		v := q.Pop()

		p.Infrequent = append(p.Infrequent, v.b)

		for _, s := range v.b.Succs() {
			push(s, v.depth+1)
		}
	}

	tr.V("fplicm_paths").Printw("paths", "header", header, "paths", p)

	return p, nil
}

// visitLess keeps breadth-first order and breaks ties by block id.
func visitLess(d []visit, i, j int) bool {
	if d[i].depth != d[j].depth {
		return d[i].depth < d[j].depth
	}

	return d[i].b.ID < d[j].b.ID
}

// First is the block the frequent walk starts from.
func (p Paths) First() *ir.Block {
	if len(p.Frequent) == 0 {
		return nil
	}

	return p.Frequent[0]
}

func (p Paths) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	names := func(b []byte, bs []*ir.Block) []byte {
		b = e.AppendArray(b, len(bs))

		for _, x := range bs {
			b = e.AppendString(b, x.Name())
		}

		return b
	}

	b = e.AppendMap(b, 2)

	b = e.AppendString(b, "frequent")
	b = names(b, p.Frequent)

	b = e.AppendString(b, "infrequent")
	b = names(b, p.Infrequent)

	return b
}
