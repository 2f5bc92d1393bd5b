package ir

import (
	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/tlwire"
)

type (
	Block struct {
		// ID is the index of the block in its function at creation time.
		ID int

		name string
		fn   *Func

		code  []*Instr
		preds []*Block
	}
)

func (b *Block) Name() string { return b.name }
func (b *Block) Func() *Func  { return b.fn }

func (b *Block) Len() int { return len(b.code) }

// Instrs returns a copy of the instruction list.
func (b *Block) Instrs() []*Instr {
	return append([]*Instr(nil), b.code...)
}

func (b *Block) Instr(i int) *Instr { return b.code[i] }

// Index returns position of x in b or -1.
func (b *Block) Index(x *Instr) int {
	for i, y := range b.code {
		if y == x {
			return i
		}
	}

	return -1
}

// Terminator returns the last instruction if it transfers control, nil otherwise.
func (b *Block) Terminator() *Instr {
	if len(b.code) == 0 {
		return nil
	}

	if x := b.code[len(b.code)-1]; x.IsTerminator() {
		return x
	}

	return nil
}

func (b *Block) Succs() []*Block {
	t := b.Terminator()
	if t == nil {
		return nil
	}

	return t.Succs()
}

// Preds returns predecessors in the order edges were added.
// A block reaching b by several edges is listed once per edge.
func (b *Block) Preds() []*Block {
	return append([]*Block(nil), b.preds...)
}

// Append adds x to the end of b.
func (b *Block) Append(x *Instr) error {
	if x.block != nil {
		return errors.New("append %v: already in block %v", x.Op, x.block.name)
	}

	if b.Terminator() != nil {
		return errors.New("append %v: block %v is terminated", x.Op, b.name)
	}

	b.code = append(b.code, x)
	b.attach(x)

	return nil
}

// InsertBefore inserts x right before pt which must be in b.
func (b *Block) InsertBefore(pt, x *Instr) error {
	if x.block != nil {
		return errors.New("insert %v: already in block %v", x.Op, x.block.name)
	}

	if x.IsTerminator() {
		return errors.New("insert %v: terminator in the middle of block %v", x.Op, b.name)
	}

	i := b.Index(pt)
	if i < 0 {
		return errors.Wrap(ErrMalformed, "insert point %v is not in block %v", pt.Op, b.name)
	}

	b.code = append(b.code, nil)
	copy(b.code[i+1:], b.code[i:])
	b.code[i] = x

	b.attach(x)

	return nil
}

// Remove detaches x from b and drops its operand uses.
// x must have no users left.
func (b *Block) Remove(x *Instr) error {
	i := b.Index(x)
	if i < 0 {
		return errors.New("remove %v: not in block %v", x.Op, b.name)
	}

	if n := x.NumUsers(); n != 0 {
		return errors.New("remove %v: still has %d users", x.Op, n)
	}

	copy(b.code[i:], b.code[i+1:])
	b.code = b.code[:len(b.code)-1]

	if x.IsTerminator() {
		for _, s := range x.succs {
			s.removePred(b)
		}
	}

	x.dropOperands()
	x.block = nil

	return nil
}

func (b *Block) attach(x *Instr) {
	x.block = b

	if x.IsTerminator() {
		for _, s := range x.succs {
			s.preds = append(s.preds, b)
		}
	}

	tlog.V("ir_mutate").Printw("attach", "block", b, "instr", x, "op", x.Op, "from", loc.Caller(2))
}

func (b *Block) removePred(p *Block) {
	for i, q := range b.preds {
		if q != p {
			continue
		}

		copy(b.preds[i:], b.preds[i+1:])
		b.preds = b.preds[:len(b.preds)-1]

		return
	}
}

func (b *Block) TlogAppend(buf []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(buf, b.name)
}
