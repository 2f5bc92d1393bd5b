package fplicm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/fplicm/compiler/ir"
)

func TestIsInvariant(t *testing.T) {
	s := newScenario(t)

	assert.True(t, IsInvariant(s.load, nil, nil))
	assert.True(t, IsInvariant(s.load, []*ir.Block{s.header, s.a, s.latch}, nil))
	assert.False(t, IsInvariant(s.load, []*ir.Block{s.b}, nil))
	assert.False(t, IsInvariant(s.load, []*ir.Block{s.a, s.b}, IdentityAlias{}))
}

func TestIsInvariantSyntacticIdentity(t *testing.T) {
	s := newScenario(t)

	// gep p, 0 addresses the same memory as p but is a different value.
	bl := ir.NewBuilder(s.latch)
	term := s.latch.Terminator()
	require.NoError(t, s.latch.Remove(term))

	g := bl.GEP("g", ir.I32, s.p, ir.ConstInt(ir.I64, 0))
	bl.Store(ir.ConstInt(ir.I32, 7), g)
	bl.CondBr(term.Operand(0), s.exit, s.header, 1, 9)

	require.NoError(t, ir.Verify(s.f))

	path := []*ir.Block{s.header, s.a, s.latch}

	assert.True(t, IsInvariant(s.load, path, nil))

	gepAware := AliasFunc(func(a, b ir.Value) bool {
		if x, ok := b.(*ir.Instr); ok && x.Op == ir.OpGEP {
			b = x.Operand(0)
		}

		return a == b
	})

	assert.False(t, IsInvariant(s.load, path, gepAware))
}

func TestIsInvariantTypeMismatch(t *testing.T) {
	s := newScenario(t)

	// i64 store through the pointer the i32 load reads.
	st := ir.NewInstr(ir.OpStore, "", ir.Void, []ir.Value{ir.ConstInt(ir.I64, 1), s.p}, nil)
	require.NoError(t, s.latch.InsertBefore(s.latch.Terminator(), st))

	assert.False(t, IsInvariant(s.load, []*ir.Block{s.latch}, nil))
	assert.True(t, IsInvariant(s.load, []*ir.Block{s.header, s.a}, nil))
}

func TestFindCandidatesScenario(t *testing.T) {
	s := newScenario(t)

	_, p := partition(t, s.f)

	assert.Equal(t, []*ir.Instr{s.load}, FindCandidates(p, nil))
}

func TestFindCandidatesSelection(t *testing.T) {
	s := newScenario(t)

	// r: invariant on both paths, w: invariant on neither.
	r := ir.NewParam("r", ir.Ptr)
	w := ir.NewParam("w", ir.Ptr)

	s.f.Params = append(s.f.Params, r, w)

	a := s.a
	term := a.Terminator()

	lr := ir.NewInstr(ir.OpLoad, "lr", ir.I32, []ir.Value{r}, nil)
	lw := ir.NewInstr(ir.OpLoad, "lw", ir.I32, []ir.Value{w}, nil)
	sw := ir.NewInstr(ir.OpStore, "", ir.Void, []ir.Value{lw, w}, nil)

	require.NoError(t, a.InsertBefore(term, lr))
	require.NoError(t, a.InsertBefore(term, lw))
	require.NoError(t, a.InsertBefore(term, sw))

	sb := ir.NewInstr(ir.OpStore, "", ir.Void, []ir.Value{lw, w}, nil)
	require.NoError(t, s.b.InsertBefore(s.b.Terminator(), sb))

	require.NoError(t, ir.Verify(s.f))

	_, p := partition(t, s.f)

	cands := FindCandidates(p, nil)

	assert.Equal(t, []*ir.Instr{s.load}, cands)
	assert.NotContains(t, cands, lr)
	assert.NotContains(t, cands, lw)
}

func TestFindCandidatesNoStores(t *testing.T) {
	s := newScenario(t)

	require.NoError(t, s.b.Remove(s.store))

	_, p := partition(t, s.f)

	assert.Empty(t, FindCandidates(p, nil))
}
