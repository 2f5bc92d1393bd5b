package compiler

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/fplicm/compiler/fplicm"
	"github.com/slowlang/fplicm/compiler/ir"
	"github.com/slowlang/fplicm/compiler/irfile"
	"github.com/slowlang/fplicm/compiler/pass"
)

type (
	Options struct {
		// Passes is a comma separated pipeline.
		Passes string

		FPLICM fplicm.Options
		Pass   pass.Options
	}

	// LoopReport is what the partitioner decided about one loop.
	LoopReport struct {
		Func       string
		Header     string
		Preheader  string
		Freq       float64
		Frequent   []string
		Infrequent []string
		Candidates []string

		// Skip is set if the loop can't be transformed.
		Skip error
	}
)

const DefaultPasses = fplicm.CorrectnessName

func DefaultOptions() Options {
	return Options{
		Passes: DefaultPasses,
		FPLICM: fplicm.DefaultOptions(),
	}
}

// NewRegistry returns a registry with all known passes.
func NewRegistry(opts fplicm.Options) (*pass.Registry, error) {
	r := pass.NewRegistry()

	err := fplicm.Register(r, opts)
	if err != nil {
		return nil, errors.Wrap(err, "register fplicm")
	}

	return r, nil
}

func OptimizeFile(ctx context.Context, name string, opts Options) (m *ir.Module, err error) {
	f, err := irfile.Load(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "load")
	}

	tlog.SpanFromContext(ctx).Printw("loaded module", "name", name, "funcs", len(f.Module.Funcs))

	err = Optimize(ctx, f, opts)
	if err != nil {
		return nil, err
	}

	return f.Module, nil
}

// Optimize runs the pipeline over the module in place.
func Optimize(ctx context.Context, f *irfile.File, opts Options) (err error) {
	if opts.Passes == "" {
		opts.Passes = DefaultPasses
	}

	r, err := NewRegistry(opts.FPLICM)
	if err != nil {
		return err
	}

	ps, err := r.Parse(opts.Passes)
	if err != nil {
		return errors.Wrap(err, "parse pipeline")
	}

	am := newAnalyses(f)

	err = pass.Run(ctx, f.Module, ps, am, opts.Pass)
	if err != nil {
		return errors.Wrap(err, "run pipeline")
	}

	return nil
}

// Inspect partitions every loop and lists its candidates without changing the module.
func Inspect(ctx context.Context, f *irfile.File, opts fplicm.Options) (rs []LoopReport, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compiler: inspect", "module", f.Module.Name)
	defer tr.Finish("err", &err)

	am := newAnalyses(f)

	for _, fn := range f.Module.Funcs {
		plans, skipped, err := fplicm.Plan(ctx, fn, am, opts)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", fn.Name)
		}

		for _, pl := range plans {
			r := LoopReport{
				Func:       fn.Name,
				Header:     pl.Loop.Header.Name(),
				Preheader:  pl.Preheader.Name(),
				Freq:       pl.Freq,
				Frequent:   blockNames(pl.Paths.Frequent),
				Infrequent: blockNames(pl.Paths.Infrequent),
			}

			for _, x := range fplicm.FindCandidates(pl.Paths, opts.Alias) {
				r.Candidates = append(r.Candidates, ir.FormatInstr(x))
			}

			rs = append(rs, r)
		}

		for _, s := range skipped {
			rs = append(rs, LoopReport{
				Func:   fn.Name,
				Header: s.Loop.Header.Name(),
				Skip:   s.Err,
			})
		}
	}

	return rs, nil
}

func newAnalyses(f *irfile.File) *pass.Analyses {
	am := pass.NewAnalyses()

	for fn, t := range f.Probs {
		am.Pin(fn, t)
	}

	return am
}

func blockNames(bs []*ir.Block) []string {
	r := make([]string, len(bs))

	for i, b := range bs {
		r[i] = b.Name()
	}

	return r
}
