package prob

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/fplicm/compiler/ir"
	"github.com/slowlang/fplicm/compiler/loops"
)

type (
	// Freq is the estimated execution count of each block per function entry.
	Freq map[*ir.Block]float64
)

// MaxLoopScale caps the trip count estimate of a loop whose back edges
// carry almost all of the header's mass.
const MaxLoopScale = 4096

// Freqs propagates the entry frequency through the CFG in reverse postorder.
// Retreating edges are ignored; instead a loop header is scaled by
// 1 / (1 - p) where p is the probability to get back to it from itself.
func Freqs(ctx context.Context, f *ir.Func, p Provider, ls []*loops.Loop) (fr Freq, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "prob: block freq", "func", f.Name)
	defer tr.Finish("err", &err)

	d := loops.Dominators(f)
	rpo := d.RPO()

	scale := map[*ir.Block]float64{}

	for _, l := range ls {
		back := propagate(l.Blocks, p, l.Header, nil)

		var mass float64
		for _, lt := range l.Latches() {
			mass += back[lt] * p.Edge(lt, l.Header)
		}

		s := float64(MaxLoopScale)
		if mass < 1-1.0/MaxLoopScale {
			s = 1 / (1 - mass)
		}

		scale[l.Header] = s

		tr.V("freq").Printw("loop scale", "header", l.Header, "backedge_mass", mass, "scale", s)
	}

	fr = propagate(rpo, p, f.Entry(), scale)

	return fr, nil
}

// propagate pushes mass 1 from start along forward edges of order.
func propagate(order []*ir.Block, p Provider, start *ir.Block, scale map[*ir.Block]float64) Freq {
	pos := make(map[*ir.Block]int, len(order))
	for i, b := range order {
		pos[b] = i
	}

	fr := Freq{}

	for i, b := range order {
		var v float64

		if b == start {
			v = 1
		} else {
			seen := map[*ir.Block]bool{}

			for _, pr := range b.Preds() {
				j, ok := pos[pr]
				if !ok || j >= i || seen[pr] {
					continue
				}

				seen[pr] = true
				v += fr[pr] * p.Edge(pr, b)
			}
		}

		if s, ok := scale[b]; ok {
			v *= s
		}

		fr[b] = v
	}

	return fr
}

func (fr Freq) Of(b *ir.Block) float64 { return fr[b] }
