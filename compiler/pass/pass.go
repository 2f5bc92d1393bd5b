package pass

import (
	"context"
	"sort"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/fplicm/compiler/ir"
)

type (
	// Pass is a function-level transformation or a no-op.
	// It reports which analyses remain valid after it ran.
	Pass interface {
		Name() string
		Run(ctx context.Context, f *ir.Func, am *Analyses) (Preserved, error)
	}

	Factory func() Pass

	Registry struct {
		m map[string]Factory
	}

	Options struct {
		// VerifyEach runs ir.Verify after every pass on every function.
		VerifyEach bool
	}
)

var ErrUnknownPass = errors.New("unknown pass")

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Factory)}
}

func (r *Registry) Register(name string, f Factory) error {
	if name == "" || strings.ContainsAny(name, ", \t") {
		return errors.New("bad pass name: %q", name)
	}

	if _, ok := r.m[name]; ok {
		return errors.New("pass already registered: %v", name)
	}

	r.m[name] = f

	return nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.m))

	for n := range r.m {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Parse builds passes from a comma separated pipeline string like
// "fplicm-correctness,fplicm-performance".
func (r *Registry) Parse(pipeline string) ([]Pass, error) {
	var ps []Pass

	for i, name := range strings.Split(pipeline, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.New("pipeline element %d: empty pass name", i)
		}

		f, ok := r.m[name]
		if !ok {
			return nil, errors.Wrap(ErrUnknownPass, "pipeline element %d: %v", i, name)
		}

		ps = append(ps, f())
	}

	return ps, nil
}

// Run runs every pass over every function of m.
func Run(ctx context.Context, m *ir.Module, ps []Pass, am *Analyses, opts Options) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "pass: run pipeline", "module", m.Name, "passes", len(ps))
	defer tr.Finish("err", &err)

	for _, f := range m.Funcs {
		for _, p := range ps {
			err = RunFunc(ctx, f, p, am, opts)
			if err != nil {
				return errors.Wrap(err, "func %v", f.Name)
			}
		}
	}

	return nil
}

func RunFunc(ctx context.Context, f *ir.Func, p Pass, am *Analyses, opts Options) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "pass: run", "pass", p.Name(), "func", f.Name)
	defer tr.Finish("err", &err)

	if tr.If("dump_func_before") {
		tr.Printw("func before", "pass", p.Name(), "ir", ir.Format(f))
	}

	pr, err := p.Run(ctx, f, am)
	if err != nil {
		return errors.Wrap(err, "pass %v", p.Name())
	}

	am.Invalidate(f, pr)

	if tr.If("dump_func_after") {
		tr.Printw("func after", "pass", p.Name(), "ir", ir.Format(f))
	}

	if !opts.VerifyEach {
		return nil
	}

	err = ir.Verify(f)
	if err != nil {
		return errors.Wrap(err, "verify after %v", p.Name())
	}

	return nil
}
