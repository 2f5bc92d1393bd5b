package prob

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/fplicm/compiler/ir"
	"github.com/slowlang/fplicm/compiler/loops"
)

type (
	// Provider yields taken probabilities of CFG edges.
	Provider interface {
		Edge(from, to *ir.Block) float64
	}

	Table struct {
		m map[edge]float64
	}

	edge struct {
		from, to *ir.Block
	}
)

// Static loop branch heuristic weights: staying in a loop against leaving it.
const (
	TakenWeight    = 124
	NotTakenWeight = 4
)

func NewTable() *Table {
	return &Table{m: make(map[edge]float64)}
}

// Analyze estimates edge probabilities of f. Profile weights on the
// terminator win; otherwise branches that stay in a loop are considered
// likely against ones that leave it, and the rest are uniform.
func Analyze(ctx context.Context, f *ir.Func, ls []*loops.Loop) (t *Table, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "prob: analyze", "func", f.Name)
	defer tr.Finish("err", &err)

	t = NewTable()

	loopOf := func(b *ir.Block) *loops.Loop {
		for _, l := range ls {
			if l.Contains(b) {
				return l
			}
		}

		return nil
	}

	for _, b := range f.Blocks() {
		x := b.Terminator()
		if x == nil || x.NumSuccs() == 0 {
			continue
		}

		succs := x.Succs()
		w := make([]float64, len(succs))

		switch {
		case len(x.Weights) == len(succs) && sum32(x.Weights) != 0:
			for i, v := range x.Weights {
				w[i] = float64(v)
			}
		case x.Op == ir.OpCondBr && loopOf(b) != nil:
			l := loopOf(b)

			for i, s := range succs {
				if l.Contains(s) {
					w[i] = TakenWeight
				} else {
					w[i] = NotTakenWeight
				}
			}
		default:
			for i := range w {
				w[i] = 1
			}
		}

		var total float64
		for _, v := range w {
			total += v
		}

		for i, s := range succs {
			t.m[edge{b, s}] += w[i] / total
		}

		if tr.If("prob") {
			for _, s := range succs {
				tr.Printw("edge", "from", b, "to", s, "prob", t.m[edge{b, s}])
			}
		}
	}

	return t, nil
}

func (t *Table) Edge(from, to *ir.Block) float64 {
	return t.m[edge{from, to}]
}

// Set pins the probability of an edge.
func (t *Table) Set(from, to *ir.Block, p float64) {
	t.m[edge{from, to}] = p
}

// Merge overrides t with every edge pinned in o.
func (t *Table) Merge(o *Table) {
	for e, p := range o.m {
		t.m[e] = p
	}
}

func (t *Table) Len() int { return len(t.m) }

func sum32(w []uint32) (s uint64) {
	for _, v := range w {
		s += uint64(v)
	}

	return s
}
