package ir

type (
	Module struct {
		Name string

		Globals []*Global
		Funcs   []*Func
	}

	Func struct {
		Name   string
		Params []*Param
		Ret    Type

		blocks []*Block
	}
)

func NewFunc(name string, ret Type, params ...*Param) *Func {
	if ret == "" {
		ret = Void
	}

	return &Func{
		Name:   name,
		Params: params,
		Ret:    ret,
	}
}

// NewBlock appends an empty block. The first block is the entry.
func (f *Func) NewBlock(name string) *Block {
	b := &Block{
		ID:   len(f.blocks),
		name: name,
		fn:   f,
	}

	f.blocks = append(f.blocks, b)

	return b
}

func (f *Func) Entry() *Block {
	if len(f.blocks) == 0 {
		return nil
	}

	return f.blocks[0]
}

func (f *Func) Blocks() []*Block {
	return append([]*Block(nil), f.blocks...)
}

func (f *Func) NumBlocks() int { return len(f.blocks) }

func (f *Func) Block(name string) *Block {
	for _, b := range f.blocks {
		if b.name == name {
			return b
		}
	}

	return nil
}

func (f *Func) Param(name string) *Param {
	for _, p := range f.Params {
		if p.name == name {
			return p
		}
	}

	return nil
}

// Instrs calls fn for each instruction in block order.
func (f *Func) Instrs(fn func(b *Block, x *Instr)) {
	for _, b := range f.blocks {
		for _, x := range b.code {
			fn(b, x)
		}
	}
}

func (m *Module) Func(name string) *Func {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}

	return nil
}

func (m *Module) Global(name string) *Global {
	for _, g := range m.Globals {
		if g.name == name {
			return g
		}
	}

	return nil
}
