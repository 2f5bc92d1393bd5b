package fplicm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slowlang/fplicm/compiler/ir"
	"github.com/slowlang/fplicm/compiler/loops"
	"github.com/slowlang/fplicm/compiler/pass"
)

type scenario struct {
	f *ir.Func

	p, q *ir.Param

	entry, header, a, b, latch, exit *ir.Block

	load  *ir.Instr // %x = load p in a
	add   *ir.Instr // %s = add x, 1 in a
	store *ir.Instr // store 0, p in b
}

// newScenario builds
//
//	entry -> header
//	header -> a (9) | b (1)
//	a: x = load p; s = x + 1; store s, q
//	b: store 0, p
//	a, b -> latch
//	latch -> exit (1) | header (9)
func newScenario(t testing.TB) *scenario {
	t.Helper()

	s := &scenario{
		p: ir.NewParam("p", ir.Ptr),
		q: ir.NewParam("q", ir.Ptr),
	}

	cond := ir.NewParam("cond", ir.I1)
	done := ir.NewParam("done", ir.I1)

	s.f = ir.NewFunc("scenario", ir.Void, s.p, s.q, cond, done)

	s.entry = s.f.NewBlock("entry")
	s.header = s.f.NewBlock("header")
	s.a = s.f.NewBlock("a")
	s.b = s.f.NewBlock("b")
	s.latch = s.f.NewBlock("latch")
	s.exit = s.f.NewBlock("exit")

	bl := ir.NewBuilder(s.entry)
	bl.Br(s.header)

	bl.SetBlock(s.header)
	bl.CondBr(cond, s.a, s.b, 9, 1)

	bl.SetBlock(s.a)
	s.load = bl.Load("x", ir.I32, s.p)
	s.add = bl.Add("s", s.load, ir.ConstInt(ir.I32, 1))
	bl.Store(s.add, s.q)
	bl.Br(s.latch)

	bl.SetBlock(s.b)
	s.store = bl.Store(ir.ConstInt(ir.I32, 0), s.p)
	bl.Br(s.latch)

	bl.SetBlock(s.latch)
	bl.CondBr(done, s.exit, s.header, 1, 9)

	bl.SetBlock(s.exit)
	bl.Ret(nil)

	require.NoError(t, ir.Verify(s.f))

	return s
}

func onlyLoop(t testing.TB, f *ir.Func) *loops.Loop {
	t.Helper()

	ls, err := loops.Find(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, ls, 1)

	return ls[0]
}

func partition(t testing.TB, f *ir.Func) (*loops.Loop, Paths) {
	t.Helper()

	ctx := context.Background()
	am := pass.NewAnalyses()

	l := onlyLoop(t, f)

	probs, err := am.BranchProb(ctx, f)
	require.NoError(t, err)

	p, err := Partition(ctx, l, probs, DefaultOptions())
	require.NoError(t, err)

	return l, p
}

func operandsOf(f *ir.Func) map[*ir.Instr][]ir.Value {
	m := map[*ir.Instr][]ir.Value{}

	f.Instrs(func(_ *ir.Block, x *ir.Instr) {
		m[x] = x.Operands()
	})

	return m
}

func refersTo(ops []ir.Value, v ir.Value) bool {
	for _, o := range ops {
		if o == v {
			return true
		}
	}

	return false
}
