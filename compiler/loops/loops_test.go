package loops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/slowlang/fplicm/compiler/ir"
)

func diamondLoop(t *testing.T) (f *ir.Func, entry, header, a, b, latch, exit *ir.Block) {
	t.Helper()

	c := ir.NewParam("c", ir.I1)
	f = ir.NewFunc("f", ir.Void, c)

	entry = f.NewBlock("entry")
	header = f.NewBlock("header")
	a = f.NewBlock("a")
	b = f.NewBlock("b")
	latch = f.NewBlock("latch")
	exit = f.NewBlock("exit")

	bl := ir.NewBuilder(entry)
	bl.Br(header)

	bl.SetBlock(header)
	bl.CondBr(c, a, b)

	bl.SetBlock(a)
	bl.Br(latch)

	bl.SetBlock(b)
	bl.Br(latch)

	bl.SetBlock(latch)
	bl.CondBr(c, header, exit)

	bl.SetBlock(exit)
	bl.Ret(nil)

	require.NoError(t, ir.Verify(f))

	return
}

func TestDominators(t *testing.T) {
	f, entry, header, a, b, latch, exit := diamondLoop(t)

	d := Dominators(f)

	assert.Equal(t, entry, d.Idom(entry))
	assert.Equal(t, entry, d.Idom(header))
	assert.Equal(t, header, d.Idom(a))
	assert.Equal(t, header, d.Idom(b))
	assert.Equal(t, header, d.Idom(latch))
	assert.Equal(t, latch, d.Idom(exit))

	assert.True(t, d.Dominates(header, exit))
	assert.True(t, d.Dominates(a, a))
	assert.False(t, d.Dominates(a, latch))
	assert.False(t, d.Dominates(exit, header))

	rpo := d.RPO()
	require.Len(t, rpo, 6)
	assert.Equal(t, entry, rpo[0])
	assert.Equal(t, header, rpo[1])
}

func TestDominatorsUnreachable(t *testing.T) {
	f := ir.NewFunc("f", ir.Void)

	entry := f.NewBlock("entry")
	dead := f.NewBlock("dead")

	bl := ir.NewBuilder(entry)
	bl.Ret(nil)

	bl.SetBlock(dead)
	bl.Br(entry)

	d := Dominators(f)

	assert.False(t, d.Reachable(dead))
	assert.Nil(t, d.Idom(dead))
	assert.False(t, d.Dominates(entry, dead))
	assert.Equal(t, []*ir.Block{entry}, d.RPO())
}

func TestFind(t *testing.T) {
	f, entry, header, a, b, latch, exit := diamondLoop(t)

	ls, err := Find(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, ls, 1)

	l := ls[0]

	assert.Equal(t, header, l.Header)
	assert.Equal(t, header, l.Blocks[0])
	assert.ElementsMatch(t, []*ir.Block{header, a, b, latch}, l.Blocks)
	assert.Equal(t, []*ir.Block{latch}, l.Latches())

	assert.False(t, l.Contains(entry))
	assert.False(t, l.Contains(exit))
	assert.False(t, l.Contains(nil))

	pre, err := l.Preheader()
	require.NoError(t, err)
	assert.Equal(t, entry, pre)
}

func TestFindNested(t *testing.T) {
	c := ir.NewParam("c", ir.I1)
	f := ir.NewFunc("f", ir.Void, c)

	entry := f.NewBlock("entry")
	outer := f.NewBlock("outer")
	inner := f.NewBlock("inner")
	olatch := f.NewBlock("olatch")
	exit := f.NewBlock("exit")

	bl := ir.NewBuilder(entry)
	bl.Br(outer)

	bl.SetBlock(outer)
	bl.Br(inner)

	bl.SetBlock(inner)
	bl.CondBr(c, inner, olatch)

	bl.SetBlock(olatch)
	bl.CondBr(c, outer, exit)

	bl.SetBlock(exit)
	bl.Ret(nil)

	ls, err := Find(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, ls, 1)

	assert.Equal(t, outer, ls[0].Header)
	assert.Equal(t, []*ir.Block{outer, inner, olatch}, ls[0].Blocks)
}

func TestFindSharedHeader(t *testing.T) {
	c := ir.NewParam("c", ir.I1)
	f := ir.NewFunc("f", ir.Void, c)

	entry := f.NewBlock("entry")
	header := f.NewBlock("header")
	l1 := f.NewBlock("l1")
	l2 := f.NewBlock("l2")

	bl := ir.NewBuilder(entry)
	bl.Br(header)

	bl.SetBlock(header)
	bl.CondBr(c, l1, l2)

	bl.SetBlock(l1)
	bl.Br(header)

	bl.SetBlock(l2)
	bl.Br(header)

	ls, err := Find(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, ls, 1)

	assert.ElementsMatch(t, []*ir.Block{l1, l2}, ls[0].Latches())
	assert.Len(t, ls[0].Blocks, 3)
}

func TestFindNoEntry(t *testing.T) {
	_, err := Find(context.Background(), ir.NewFunc("empty", ir.Void))
	assert.True(t, errors.Is(err, ir.ErrMalformed), "err: %v", err)
}

func TestPreheaderMissing(t *testing.T) {
	c := ir.NewParam("c", ir.I1)
	f := ir.NewFunc("f", ir.Void, c)

	entry := f.NewBlock("entry")
	side := f.NewBlock("side")
	header := f.NewBlock("header")
	exit := f.NewBlock("exit")

	bl := ir.NewBuilder(entry)
	bl.CondBr(c, header, side)

	bl.SetBlock(side)
	bl.Br(header)

	bl.SetBlock(header)
	bl.CondBr(c, header, exit)

	bl.SetBlock(exit)
	bl.Ret(nil)

	ls, err := Find(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, ls, 1)

	_, err = ls[0].Preheader()
	assert.True(t, errors.Is(err, ErrNoPreheader), "err: %v", err)
}
