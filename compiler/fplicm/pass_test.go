package fplicm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/fplicm/compiler/ir"
	"github.com/slowlang/fplicm/compiler/pass"
)

func TestRegister(t *testing.T) {
	r := pass.NewRegistry()
	require.NoError(t, Register(r, DefaultOptions()))

	assert.Equal(t, []string{CorrectnessName, PerformanceName}, r.Names())

	ps, err := r.Parse("fplicm-correctness, fplicm-performance")
	require.NoError(t, err)
	require.Len(t, ps, 2)

	assert.IsType(t, &CorrectnessPass{}, ps[0])
	assert.IsType(t, PerformancePass{}, ps[1])

	assert.Error(t, Register(r, DefaultOptions()))
}

func TestCorrectnessPass(t *testing.T) {
	s := newScenario(t)

	ctx := context.Background()
	am := pass.NewAnalyses()
	c := NewCorrectness(DefaultOptions())

	pr, err := c.Run(ctx, s.f, am)
	require.NoError(t, err)

	assert.True(t, pr.AreNone())
	assert.Equal(t, Stats{Loops: 1, Candidates: 1, Hoisted: 1}, c.Stats)

	assert.Equal(t, 4, s.entry.Len())
	assert.NoError(t, ir.Verify(s.f))
}

func TestCorrectnessPassNoCandidates(t *testing.T) {
	s := newScenario(t)
	require.NoError(t, s.b.Remove(s.store))

	before := ir.Format(s.f)

	c := NewCorrectness(DefaultOptions())

	pr, err := c.Run(context.Background(), s.f, pass.NewAnalyses())
	require.NoError(t, err)

	assert.True(t, pr.AreNone())
	assert.Equal(t, 0, c.Stats.Hoisted)
	assert.Equal(t, before, ir.Format(s.f))
}

func TestCorrectnessPassSkipsLoopWithoutPreheader(t *testing.T) {
	c := ir.NewParam("c", ir.I1)
	p := ir.NewParam("p", ir.Ptr)
	f := ir.NewFunc("f", ir.Void, c, p)

	entry := f.NewBlock("entry")
	side := f.NewBlock("side")
	header := f.NewBlock("header")
	hot := f.NewBlock("hot")
	cold := f.NewBlock("cold")
	exit := f.NewBlock("exit")

	bl := ir.NewBuilder(entry)
	bl.CondBr(c, header, side)

	bl.SetBlock(side)
	bl.Br(header)

	bl.SetBlock(header)
	bl.CondBr(c, hot, cold, 9, 1)

	bl.SetBlock(hot)
	bl.Load("x", ir.I32, p)
	bl.CondBr(c, header, exit, 9, 1)

	bl.SetBlock(cold)
	bl.Store(ir.ConstInt(ir.I32, 1), p)
	bl.Br(header)

	bl.SetBlock(exit)
	bl.Ret(nil)

	require.NoError(t, ir.Verify(f))

	before := ir.Format(f)

	cp := NewCorrectness(DefaultOptions())

	_, err := cp.Run(context.Background(), f, pass.NewAnalyses())
	require.NoError(t, err)

	assert.Equal(t, Stats{Loops: 1, Skipped: 1}, cp.Stats)
	assert.Equal(t, before, ir.Format(f))
}

func TestPerformancePass(t *testing.T) {
	s := newScenario(t)
	before := ir.Format(s.f)

	pr, err := PerformancePass{}.Run(context.Background(), s.f, pass.NewAnalyses())
	require.NoError(t, err)

	assert.True(t, pr.AreAll())
	assert.Equal(t, before, ir.Format(s.f))
}

func TestPipeline(t *testing.T) {
	s := newScenario(t)
	m := &ir.Module{Name: "m", Funcs: []*ir.Func{s.f}}

	r := pass.NewRegistry()
	require.NoError(t, Register(r, DefaultOptions()))

	ps, err := r.Parse("fplicm-performance,fplicm-correctness")
	require.NoError(t, err)

	err = pass.Run(context.Background(), m, ps, pass.NewAnalyses(), pass.Options{VerifyEach: true})
	require.NoError(t, err)

	assert.Equal(t, 1, ps[1].(*CorrectnessPass).Stats.Hoisted)
}
