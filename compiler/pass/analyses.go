package pass

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/fplicm/compiler/ir"
	"github.com/slowlang/fplicm/compiler/loops"
	"github.com/slowlang/fplicm/compiler/prob"
)

type (
	// Analyses lazily computes and caches per-function analyses.
	Analyses struct {
		pinned map[*ir.Func]*prob.Table
		cache  map[*ir.Func]*results
	}

	results struct {
		loops    []*loops.Loop
		hasLoops bool

		probs *prob.Table
		freq  prob.Freq
	}
)

func NewAnalyses() *Analyses {
	return &Analyses{
		pinned: make(map[*ir.Func]*prob.Table),
		cache:  make(map[*ir.Func]*results),
	}
}

// Pin fixes edge probabilities of f on top of the estimated ones.
// Pinned edges survive invalidation.
func (a *Analyses) Pin(f *ir.Func, t *prob.Table) {
	if p := a.pinned[f]; p != nil {
		p.Merge(t)
	} else {
		a.pinned[f] = t
	}

	a.Invalidate(f, None().Preserve(CFG, Loops))
}

func (a *Analyses) get(f *ir.Func) *results {
	r := a.cache[f]
	if r == nil {
		r = &results{}
		a.cache[f] = r
	}

	return r
}

func (a *Analyses) Loops(ctx context.Context, f *ir.Func) ([]*loops.Loop, error) {
	r := a.get(f)
	if r.hasLoops {
		return r.loops, nil
	}

	ls, err := loops.Find(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "loops")
	}

	r.loops, r.hasLoops = ls, true

	return ls, nil
}

func (a *Analyses) BranchProb(ctx context.Context, f *ir.Func) (*prob.Table, error) {
	r := a.get(f)
	if r.probs != nil {
		return r.probs, nil
	}

	ls, err := a.Loops(ctx, f)
	if err != nil {
		return nil, err
	}

	t, err := prob.Analyze(ctx, f, ls)
	if err != nil {
		return nil, errors.Wrap(err, "branch prob")
	}

	if p := a.pinned[f]; p != nil {
		t.Merge(p)
	}

	r.probs = t

	return t, nil
}

func (a *Analyses) BlockFreq(ctx context.Context, f *ir.Func) (prob.Freq, error) {
	r := a.get(f)
	if r.freq != nil {
		return r.freq, nil
	}

	ls, err := a.Loops(ctx, f)
	if err != nil {
		return nil, err
	}

	t, err := a.BranchProb(ctx, f)
	if err != nil {
		return nil, err
	}

	fr, err := prob.Freqs(ctx, f, t, ls)
	if err != nil {
		return nil, errors.Wrap(err, "block freq")
	}

	r.freq = fr

	return fr, nil
}

// Invalidate drops results of f not kept by p.
// An analysis is kept only if it and everything it is derived from are preserved.
func (a *Analyses) Invalidate(f *ir.Func, p Preserved) {
	r := a.cache[f]
	if r == nil || p.AreAll() {
		return
	}

	cfg := p.Preserves(CFG)
	keepLoops := cfg && p.Preserves(Loops)
	keepProb := keepLoops && p.Preserves(BranchProb)
	keepFreq := keepProb && p.Preserves(BlockFreq)

	if !keepLoops {
		r.loops, r.hasLoops = nil, false
	}

	if !keepProb {
		r.probs = nil
	}

	if !keepFreq {
		r.freq = nil
	}

	tlog.V("analyses").Printw("invalidate", "func", f.Name, "loops", keepLoops, "prob", keepProb, "freq", keepFreq)
}
