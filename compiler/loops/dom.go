package loops

import "github.com/slowlang/fplicm/compiler/ir"

type (
	// Dom is the dominator tree of the blocks reachable from the entry.
	Dom struct {
		po   []*ir.Block
		pnum []int // block id -> postorder number, -1 if unreachable
		idom []*ir.Block
	}

	blockAndIndex struct {
		b     *ir.Block
		succs []*ir.Block
		index int
	}
)

// Postorder returns blocks reachable from the entry in DFS postorder.
func Postorder(f *ir.Func) []*ir.Block {
	entry := f.Entry()
	if entry == nil {
		return nil
	}

	seen := make([]bool, f.NumBlocks())
	order := make([]*ir.Block, 0, f.NumBlocks())

	s := []blockAndIndex{{b: entry, succs: entry.Succs()}}
	seen[entry.ID] = true

	for len(s) > 0 {
		tos := len(s) - 1
		x := s[tos]

		if i := x.index; i < len(x.succs) {
			s[tos].index++

			bb := x.succs[i]
			if !seen[bb.ID] {
				seen[bb.ID] = true
				s = append(s, blockAndIndex{b: bb, succs: bb.Succs()})
			}

			continue
		}

		s = s[:tos]
		order = append(order, x.b)
	}

	return order
}

// Dominators computes immediate dominators with the iterative algorithm
// of Cooper, Harvey and Kennedy.
func Dominators(f *ir.Func) *Dom {
	d := &Dom{
		po:   Postorder(f),
		pnum: make([]int, f.NumBlocks()),
		idom: make([]*ir.Block, f.NumBlocks()),
	}

	for i := range d.pnum {
		d.pnum[i] = -1
	}

	for i, b := range d.po {
		d.pnum[b.ID] = i
	}

	if len(d.po) == 0 {
		return d
	}

	entry := d.po[len(d.po)-1]
	d.idom[entry.ID] = entry

	for changed := true; changed; {
		changed = false

		for i := len(d.po) - 2; i >= 0; i-- {
			b := d.po[i]

			var nd *ir.Block

			for _, p := range b.Preds() {
				if d.pnum[p.ID] < 0 || d.idom[p.ID] == nil {
					continue
				}

				if nd == nil {
					nd = p
					continue
				}

				nd = d.intersect(nd, p)
			}

			if nd != nil && d.idom[b.ID] != nd {
				d.idom[b.ID] = nd
				changed = true
			}
		}
	}

	return d
}

func (d *Dom) intersect(b, c *ir.Block) *ir.Block {
	for b != c {
		if d.pnum[b.ID] < d.pnum[c.ID] {
			b = d.idom[b.ID]
		} else {
			c = d.idom[c.ID]
		}
	}

	return b
}

// Reachable reports whether b is reachable from the entry.
func (d *Dom) Reachable(b *ir.Block) bool {
	return b.ID < len(d.pnum) && d.pnum[b.ID] >= 0
}

// Idom returns the immediate dominator; the entry is its own.
func (d *Dom) Idom(b *ir.Block) *ir.Block {
	if !d.Reachable(b) {
		return nil
	}

	return d.idom[b.ID]
}

// Dominates reports whether a dominates b. Every block dominates itself.
func (d *Dom) Dominates(a, b *ir.Block) bool {
	if !d.Reachable(a) || !d.Reachable(b) {
		return false
	}

	for {
		if a == b {
			return true
		}

		up := d.idom[b.ID]
		if up == b {
			return false
		}

		b = up
	}
}

// RPO returns reachable blocks in reverse postorder.
func (d *Dom) RPO() []*ir.Block {
	r := make([]*ir.Block, len(d.po))

	for i, b := range d.po {
		r[len(r)-1-i] = b
	}

	return r
}
