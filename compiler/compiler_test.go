package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/slowlang/fplicm/compiler/ir"
	"github.com/slowlang/fplicm/compiler/irfile"
	"github.com/slowlang/fplicm/compiler/pass"
)

const scenarioFile = "irfile/testdata/scenario.yaml"

func TestOptimizeFile(t *testing.T) {
	opts := DefaultOptions()
	opts.Pass.VerifyEach = true

	m, err := OptimizeFile(context.Background(), scenarioFile, opts)
	require.NoError(t, err)

	exp := `define void @scenario(ptr %p, ptr %q, i1 %cond, i1 %done) {
entry:
  %0 = alloca i32, align 4
  %1 = load i32, ptr %p, align 4
  store i32 %1, ptr %0, align 4
  br label %header

header:		; preds = %entry, %latch
  br i1 %cond, label %a, label %b, !prof [9, 1]

a:		; preds = %header
  %x = load i32, ptr %0, align 4
  %s = add i32 %x, 1
  store i32 %s, ptr %q, align 4
  br label %latch

b:		; preds = %header
  store i32 0, ptr %0, align 4
  br label %latch

latch:		; preds = %a, %b
  %n = load i32, ptr @counter, align 4
  %n1 = add i32 %n, 1
  store i32 %n1, ptr @counter, align 4
  br i1 %done, label %exit, label %header

exit:		; preds = %latch
  ret void
}
`

	assert.Equal(t, exp, ir.Format(m.Func("scenario")))
}

func TestOptimizePerformanceOnly(t *testing.T) {
	ctx := context.Background()

	f, err := irfile.Load(ctx, scenarioFile)
	require.NoError(t, err)

	before := ir.FormatModule(f.Module)

	err = Optimize(ctx, f, Options{Passes: "fplicm-performance"})
	require.NoError(t, err)

	assert.Equal(t, before, ir.FormatModule(f.Module))
}

func TestOptimizeUnknownPass(t *testing.T) {
	ctx := context.Background()

	f, err := irfile.Load(ctx, scenarioFile)
	require.NoError(t, err)

	err = Optimize(ctx, f, Options{Passes: "fplicm-correctness,licm"})
	assert.True(t, errors.Is(err, pass.ErrUnknownPass), "err: %v", err)
}

func TestInspect(t *testing.T) {
	ctx := context.Background()

	f, err := irfile.Load(ctx, scenarioFile)
	require.NoError(t, err)

	before := ir.FormatModule(f.Module)

	rs, err := Inspect(ctx, f, DefaultOptions().FPLICM)
	require.NoError(t, err)
	require.Len(t, rs, 1)

	r := rs[0]

	assert.Equal(t, "scenario", r.Func)
	assert.Equal(t, "header", r.Header)
	assert.Equal(t, "entry", r.Preheader)
	assert.Equal(t, []string{"header", "a", "latch"}, r.Frequent)
	assert.Equal(t, []string{"b"}, r.Infrequent)
	assert.Equal(t, []string{"%x = load i32, ptr %p, align 4"}, r.Candidates)
	assert.InDelta(t, 10.0, r.Freq, 1e-9)
	assert.NoError(t, r.Skip)

	assert.Equal(t, before, ir.FormatModule(f.Module))
}

func TestOptimizeSharedGlobal(t *testing.T) {
	data := `
globals: [{name: g, type: i32}]
funcs:
  - name: f
    params: [{name: c, type: i1}]
    blocks:
      - {name: entry, instrs: [{op: br, succs: [header]}]}
      - {name: header, instrs: [{op: condbr, args: [c], succs: [hot, cold], weights: [9, 1]}]}
      - name: hot
        instrs:
          - {op: load, name: x, type: i32, args: [g]}
          - {op: condbr, args: [c], succs: [header, exit], weights: [9, 1]}
      - name: cold
        instrs:
          - {op: store, args: [1, g]}
          - {op: br, succs: [header]}
      - {name: exit, instrs: [{op: ret}]}
  - name: h
    ret: i32
    blocks:
      - name: entry
        instrs:
          - {op: load, name: y, type: i32, args: [g]}
          - {op: ret, args: [y]}
`

	ctx := context.Background()

	f, err := irfile.Parse(ctx, []byte(data))
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Pass.VerifyEach = true

	err = Optimize(ctx, f, opts)
	require.NoError(t, err)

	exp := `define i32 @h() {
entry:
  %y = load i32, ptr @g, align 4
  ret i32 %y
}
`

	assert.Equal(t, exp, ir.Format(f.Module.Func("h")))
	assert.NoError(t, ir.Verify(f.Module.Func("h")))

	assert.Equal(t, "%x = load i32, ptr %0, align 4", ir.FormatInstr(f.Module.Func("f").Block("hot").Instr(0)))
}
