package fplicm

import "github.com/slowlang/fplicm/compiler/ir"

// IsInvariant reports whether no store in path may write the address load reads.
// It is vacuously true for an empty path.
func IsInvariant(load *ir.Instr, path []*ir.Block, alias AliasOracle) bool {
	if alias == nil {
		alias = IdentityAlias{}
	}

	ptr := load.Pointer()

	for _, b := range path {
		for _, x := range b.Instrs() {
			w, ok := written(x)
			if ok && alias.MayAlias(ptr, w) {
				return false
			}
		}
	}

	return true
}

// FindCandidates returns loads on the frequent path which are invariant
// along it but not along the infrequent path, in block then program order.
// Loads invariant on both paths are left to ordinary licm.
func FindCandidates(p Paths, alias AliasOracle) (r []*ir.Instr) {
	for _, b := range p.Frequent {
		for _, x := range b.Instrs() {
			if !reads(x) {
				continue
			}

			if IsInvariant(x, p.Frequent, alias) && !IsInvariant(x, p.Infrequent, alias) {
				r = append(r, x)
			}
		}
	}

	return r
}

func reads(x *ir.Instr) bool {
	switch x.Op {
	case ir.OpLoad:
		return true
	case ir.OpAlloca, ir.OpStore, ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpICmp, ir.OpGEP,
		ir.OpBr, ir.OpCondBr, ir.OpSwitch, ir.OpRet:
		return false
	default:
		panic(x.Op)
	}
}

func written(x *ir.Instr) (ir.Value, bool) {
	switch x.Op {
	case ir.OpStore:
		return x.Pointer(), true
	case ir.OpAlloca, ir.OpLoad, ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpICmp, ir.OpGEP,
		ir.OpBr, ir.OpCondBr, ir.OpSwitch, ir.OpRet:
		return nil, false
	default:
		panic(x.Op)
	}
}
