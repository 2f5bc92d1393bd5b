package irfile

import (
	"context"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/fplicm/compiler/ir"
	"github.com/slowlang/fplicm/compiler/prob"
)

type (
	// File is a loaded module and the edge probabilities it pins.
	File struct {
		Module *ir.Module
		Probs  map[*ir.Func]*prob.Table
	}

	module struct {
		Module  string   `yaml:"module"`
		Globals []global `yaml:"globals"`
		Funcs   []fn     `yaml:"funcs"`
	}

	global struct {
		Name string `yaml:"name"`
		Type string `yaml:"type"`
	}

	fn struct {
		Name   string   `yaml:"name"`
		Ret    string   `yaml:"ret"`
		Params []global `yaml:"params"`
		Blocks []block  `yaml:"blocks"`
		Probs  []edge   `yaml:"probs"`
	}

	block struct {
		Name   string  `yaml:"name"`
		Instrs []instr `yaml:"instrs"`
	}

	// instr is one instruction. Integer args are constants
	// of the type implied by the op; others are value names.
	//
	// type is the result type except for:
	//	alloca, gep: element type
	//	store: stored value type
	//	icmp: operand type
	instr struct {
		Op       string   `yaml:"op"`
		Name     string   `yaml:"name"`
		Type     string   `yaml:"type"`
		Args     []string `yaml:"args"`
		Succs    []string `yaml:"succs"`
		Weights  []uint32 `yaml:"weights"`
		Align    int      `yaml:"align"`
		Pred     string   `yaml:"pred"`
		Volatile bool     `yaml:"volatile"`
	}

	edge struct {
		From string  `yaml:"from"`
		To   string  `yaml:"to"`
		Prob float64 `yaml:"prob"`
	}

	scope struct {
		vals   map[string]ir.Value
		blocks map[string]*ir.Block
	}
)

func Load(ctx context.Context, name string) (*File, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read")
	}

	f, err := Parse(ctx, data)
	if err != nil {
		return nil, errors.Wrap(err, "%v", name)
	}

	if f.Module.Name == "" {
		f.Module.Name = name
	}

	return f, nil
}

// Parse builds a module from its yaml description.
// Values must be defined earlier in the file than they are used.
func Parse(ctx context.Context, data []byte) (_ *File, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "irfile: parse", "size", len(data))
	defer tr.Finish("err", &err)

	var y module

	err = yaml.Unmarshal(data, &y)
	if err != nil {
		return nil, errors.Wrap(err, "yaml")
	}

	m := &ir.Module{Name: y.Module}
	r := &File{
		Module: m,
		Probs:  map[*ir.Func]*prob.Table{},
	}

	globals := map[string]ir.Value{}

	for _, g := range y.Globals {
		tp, err := parseType(g.Type)
		if err != nil {
			return nil, errors.Wrap(err, "global %v", g.Name)
		}

		if _, ok := globals[g.Name]; ok || g.Name == "" {
			return nil, errors.New("global %q: bad or duplicate name", g.Name)
		}

		gl := ir.NewGlobal(g.Name, tp)

		globals[g.Name] = gl
		m.Globals = append(m.Globals, gl)
	}

	for _, yf := range y.Funcs {
		if m.Func(yf.Name) != nil {
			return nil, errors.New("func %v: duplicate", yf.Name)
		}

		f, probs, err := parseFunc(globals, yf)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", yf.Name)
		}

		err = ir.Verify(f)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", yf.Name)
		}

		m.Funcs = append(m.Funcs, f)

		if probs != nil {
			r.Probs[f] = probs
		}

		tr.V("irfile").Printw("func", "name", f.Name, "blocks", f.NumBlocks(), "pinned", probs != nil)
	}

	return r, nil
}

func parseFunc(globals map[string]ir.Value, yf fn) (f *ir.Func, probs *prob.Table, err error) {
	ret := ir.Void

	if yf.Ret != "" {
		ret, err = parseType(yf.Ret)
		if err != nil {
			return nil, nil, errors.Wrap(err, "ret")
		}
	}

	s := scope{
		vals:   map[string]ir.Value{},
		blocks: map[string]*ir.Block{},
	}

	for k, v := range globals {
		s.vals[k] = v
	}

	var params []*ir.Param

	for _, p := range yf.Params {
		tp, err := parseType(p.Type)
		if err != nil {
			return nil, nil, errors.Wrap(err, "param %v", p.Name)
		}

		x := ir.NewParam(p.Name, tp)
		params = append(params, x)

		if p.Name == "" {
			continue
		}

		err = s.define(p.Name, x)
		if err != nil {
			return nil, nil, err
		}
	}

	f = ir.NewFunc(yf.Name, ret, params...)

	if len(yf.Blocks) == 0 {
		return nil, nil, errors.New("no blocks")
	}

	for _, yb := range yf.Blocks {
		if _, ok := s.blocks[yb.Name]; ok || yb.Name == "" {
			return nil, nil, errors.New("block %q: bad or duplicate name", yb.Name)
		}

		s.blocks[yb.Name] = f.NewBlock(yb.Name)
	}

	for _, yb := range yf.Blocks {
		b := s.blocks[yb.Name]

		for i, yx := range yb.Instrs {
			x, err := s.instr(f, yx)
			if err != nil {
				return nil, nil, errors.Wrap(err, "block %v: instr %d", yb.Name, i)
			}

			err = b.Append(x)
			if err != nil {
				return nil, nil, errors.Wrap(err, "block %v: instr %d", yb.Name, i)
			}

			if x.Name() != "" {
				err = s.define(x.Name(), x)
				if err != nil {
					return nil, nil, errors.Wrap(err, "block %v", yb.Name)
				}
			}
		}
	}

	if len(yf.Probs) == 0 {
		return f, nil, nil
	}

	probs = prob.NewTable()

	for _, e := range yf.Probs {
		from, to := s.blocks[e.From], s.blocks[e.To]
		if from == nil || to == nil {
			return nil, nil, errors.New("prob %v -> %v: no such block", e.From, e.To)
		}

		if !hasSucc(from, to) {
			return nil, nil, errors.New("prob %v -> %v: no such edge", e.From, e.To)
		}

		if e.Prob < 0 || e.Prob > 1 {
			return nil, nil, errors.New("prob %v -> %v: %v out of range", e.From, e.To, e.Prob)
		}

		probs.Set(from, to, e.Prob)
	}

	return f, probs, nil
}

func (s scope) define(name string, v ir.Value) error {
	if _, ok := s.vals[name]; ok {
		return errors.New("value %v: redefined", name)
	}

	s.vals[name] = v

	return nil
}

func (s scope) instr(f *ir.Func, y instr) (x *ir.Instr, err error) {
	op, err := ir.ParseOp(y.Op)
	if err != nil {
		return nil, err
	}

	var tp ir.Type

	if y.Type != "" {
		tp, err = parseType(y.Type)
		if err != nil {
			return nil, err
		}
	}

	var res, elem ir.Type
	var argTypes func(i int) ir.Type

	same := func(int) ir.Type { return tp }

	switch op {
	case ir.OpAlloca:
		res, elem = ir.Ptr, tp
		argTypes = same
	case ir.OpLoad:
		res = tp
		argTypes = same
	case ir.OpStore:
		res = ir.Void
		argTypes = same
	case ir.OpAdd, ir.OpSub, ir.OpMul:
		res = tp
		argTypes = same
	case ir.OpICmp:
		res = ir.I1
		argTypes = same
	case ir.OpGEP:
		res, elem = ir.Ptr, tp
		argTypes = func(int) ir.Type { return ir.I64 }
	case ir.OpBr, ir.OpRet:
		res = ir.Void
		argTypes = func(int) ir.Type { return f.Ret }
	case ir.OpCondBr:
		res = ir.Void
		argTypes = func(int) ir.Type { return ir.I1 }
	case ir.OpSwitch:
		res = ir.Void
		argTypes = same
	default:
		panic(op)
	}

	if tp == "" && (op == ir.OpAlloca || op == ir.OpLoad || op == ir.OpAdd || op == ir.OpSub || op == ir.OpMul || op == ir.OpGEP) {
		return nil, errors.New("%v: type required", op)
	}

	if tp == "" {
		tp = ir.I32
	}

	ops := make([]ir.Value, len(y.Args))

	for i, a := range y.Args {
		ops[i], err = s.value(a, argTypes(i))
		if err != nil {
			return nil, errors.Wrap(err, "%v: arg %d", op, i)
		}
	}

	succs := make([]*ir.Block, len(y.Succs))

	for i, name := range y.Succs {
		succs[i] = s.blocks[name]
		if succs[i] == nil {
			return nil, errors.New("%v: no such block: %v", op, name)
		}
	}

	if len(succs) == 0 {
		succs = nil
	}

	x = ir.NewInstr(op, y.Name, res, ops, succs)
	x.Elem = elem
	x.Align = y.Align
	x.Volatile = y.Volatile
	x.Weights = y.Weights

	if y.Pred != "" {
		x.Pred, err = ir.ParsePred(y.Pred)
		if err != nil {
			return nil, err
		}
	}

	if x.Align == 0 && (op == ir.OpAlloca || op == ir.OpLoad || op == ir.OpStore) {
		x.Align = tp.Align()
	}

	if len(x.Weights) != 0 && len(x.Weights) != len(succs) {
		return nil, errors.New("%v: %d weights for %d successors", op, len(x.Weights), len(succs))
	}

	return x, nil
}

func (s scope) value(a string, tp ir.Type) (ir.Value, error) {
	if v, ok := s.vals[a]; ok {
		return v, nil
	}

	n, err := strconv.ParseInt(a, 0, 64)
	if err == nil {
		return ir.ConstInt(tp, n), nil
	}

	return nil, errors.New("undefined value: %v", a)
}

func parseType(s string) (ir.Type, error) {
	tp, err := ir.ParseType(s)
	if err != nil {
		return "", errors.Wrap(err, "type %q", s)
	}

	return tp, nil
}

func hasSucc(b, s *ir.Block) bool {
	for _, x := range b.Succs() {
		if x == s {
			return true
		}
	}

	return false
}
