package fplicm

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/fplicm/compiler/ir"
	"github.com/slowlang/fplicm/compiler/loops"
	"github.com/slowlang/fplicm/compiler/pass"
)

type (
	// LoopPlan is a loop ready to be transformed.
	LoopPlan struct {
		Loop      *loops.Loop
		Paths     Paths
		Preheader *ir.Block

		// Freq is the estimated header frequency per function entry.
		Freq float64
	}

	Skipped struct {
		Loop *loops.Loop
		Err  error
	}

	Stats struct {
		Loops      int
		Skipped    int
		Candidates int
		Hoisted    int
	}

	CorrectnessPass struct {
		opts Options

		Stats Stats
	}

	// PerformancePass is reserved for more aggressive heuristics.
	// It changes nothing.
	PerformancePass struct{}
)

const (
	CorrectnessName = "fplicm-correctness"
	PerformanceName = "fplicm-performance"
)

var (
	_ pass.Pass = &CorrectnessPass{}
	_ pass.Pass = PerformancePass{}
)

func Register(r *pass.Registry, opts Options) error {
	err := r.Register(CorrectnessName, func() pass.Pass { return NewCorrectness(opts) })
	if err != nil {
		return err
	}

	return r.Register(PerformanceName, func() pass.Pass { return PerformancePass{} })
}

// Plan partitions every loop of f before anything is mutated.
// Loops which can't be classified are returned as skipped.
func Plan(ctx context.Context, f *ir.Func, am *pass.Analyses, opts Options) (plans []LoopPlan, skipped []Skipped, err error) {
	ls, err := am.Loops(ctx, f)
	if err != nil {
		return nil, nil, err
	}

	probs, err := am.BranchProb(ctx, f)
	if err != nil {
		return nil, nil, err
	}

	freq, err := am.BlockFreq(ctx, f)
	if err != nil {
		return nil, nil, err
	}

	for _, l := range ls {
		p, err := Partition(ctx, l, probs, opts)
		if errors.Is(err, ErrNonCanonical) {
			skipped = append(skipped, Skipped{Loop: l, Err: err})
			continue
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "partition loop %v", l.Header.Name())
		}

		pre, err := Preheader(l, p)
		if errors.Is(err, loops.ErrNoPreheader) {
			skipped = append(skipped, Skipped{Loop: l, Err: err})
			continue
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "loop %v", l.Header.Name())
		}

		plans = append(plans, LoopPlan{
			Loop:      l,
			Paths:     p,
			Preheader: pre,
			Freq:      freq.Of(l.Header),
		})
	}

	return plans, skipped, nil
}

func NewCorrectness(opts Options) *CorrectnessPass {
	return &CorrectnessPass{opts: opts.withDefaults()}
}

func (*CorrectnessPass) Name() string { return CorrectnessName }

func (c *CorrectnessPass) Run(ctx context.Context, f *ir.Func, am *pass.Analyses) (_ pass.Preserved, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "fplicm: correctness", "func", f.Name)
	defer tr.Finish("err", &err)

	plans, skipped, err := Plan(ctx, f, am, c.opts)
	if err != nil {
		return pass.None(), errors.Wrap(err, "plan")
	}

	c.Stats.Loops += len(plans) + len(skipped)
	c.Stats.Skipped += len(skipped)

	for _, s := range skipped {
		tr.Printw("skip loop", "header", s.Loop.Header, "reason", s.Err)
	}

	for _, pl := range plans {
		cands := FindCandidates(pl.Paths, c.opts.Alias)

		c.Stats.Candidates += len(cands)

		tr.Printw("loop", "header", pl.Loop.Header, "preheader", pl.Preheader, "freq", pl.Freq, "paths", pl.Paths, "candidates", len(cands))

		hs, err := Hoist(ctx, pl.Loop, pl.Paths, cands)
		c.Stats.Hoisted += len(hs)
		if err != nil {
			return pass.None(), errors.Wrap(err, "loop %v", pl.Loop.Header.Name())
		}
	}

	return pass.None(), nil
}

func (PerformancePass) Name() string { return PerformanceName }

func (PerformancePass) Run(ctx context.Context, f *ir.Func, am *pass.Analyses) (pass.Preserved, error) {
	tlog.SpanFromContext(ctx).V("fplicm").Printw("performance variant is not implemented", "func", f.Name)

	return pass.All(), nil
}
