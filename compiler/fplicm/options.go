package fplicm

import (
	"math"

	"github.com/slowlang/fplicm/compiler/ir"
)

type (
	Options struct {
		// Threshold is the minimal taken probability of the first successor
		// of a conditional branch for it to be on the frequent path.
		Threshold float64

		// Tolerance absorbs rounding of probabilities around Threshold.
		Tolerance float64

		Alias AliasOracle
	}

	// AliasOracle decides whether two pointers may address the same memory.
	AliasOracle interface {
		MayAlias(a, b ir.Value) bool
	}

	// IdentityAlias treats pointers as the same address only if they are
	// the same value. Different expressions for one address are not detected.
	IdentityAlias struct{}

	AliasFunc func(a, b ir.Value) bool
)

const (
	DefaultThreshold = 0.8
	DefaultTolerance = 1e-6
)

func DefaultOptions() Options {
	return Options{
		Threshold: DefaultThreshold,
		Tolerance: DefaultTolerance,
		Alias:     IdentityAlias{},
	}
}

// withDefaults fills the zero Options with DefaultOptions.
// Once either number is set both are taken as is, so Threshold 0 follows every first successor.
func (o Options) withDefaults() Options {
	if o.Threshold == 0 && o.Tolerance == 0 {
		o.Threshold = DefaultThreshold
		o.Tolerance = DefaultTolerance
	}

	if o.Alias == nil {
		o.Alias = IdentityAlias{}
	}

	return o
}

// taken reports whether a first successor with probability p is followed.
// The threshold is inclusive.
func (o Options) taken(p float64) bool {
	return p > o.Threshold || math.Abs(p-o.Threshold) < o.Tolerance
}

func (IdentityAlias) MayAlias(a, b ir.Value) bool { return a == b }

func (f AliasFunc) MayAlias(a, b ir.Value) bool { return f(a, b) }
