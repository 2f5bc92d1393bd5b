package pass

// Analysis names a pass may consume and preserve.
const (
	CFG        = "cfg"
	Loops      = "loops"
	BranchProb = "branch-prob"
	BlockFreq  = "block-freq"
)

type (
	// Preserved is the set of analyses still valid after a pass ran.
	Preserved struct {
		all   bool
		names map[string]struct{}
	}
)

func All() Preserved { return Preserved{all: true} }

func None() Preserved { return Preserved{} }

// Preserve returns a copy of p with names added.
func (p Preserved) Preserve(names ...string) Preserved {
	if p.all {
		return p
	}

	r := Preserved{names: make(map[string]struct{}, len(p.names)+len(names))}

	for n := range p.names {
		r.names[n] = struct{}{}
	}

	for _, n := range names {
		r.names[n] = struct{}{}
	}

	return r
}

func (p Preserved) Preserves(name string) bool {
	if p.all {
		return true
	}

	_, ok := p.names[name]

	return ok
}

func (p Preserved) AreAll() bool { return p.all }

func (p Preserved) AreNone() bool { return !p.all && len(p.names) == 0 }
