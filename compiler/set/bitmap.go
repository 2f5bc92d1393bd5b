package set

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Bitmap is a set of small non-negative ints, usually block ids.
	Bitmap struct {
		b []uint64
	}
)

func MakeBitmap(n int) Bitmap {
	return Bitmap{b: make([]uint64, (n+63)/64)}
}

func Of(ids ...int) Bitmap {
	var s Bitmap

	for _, id := range ids {
		s.Set(id)
	}

	return s
}

func (s *Bitmap) Set(i int) {
	w := i / 64

	for w >= len(s.b) {
		s.b = append(s.b, 0)
	}

	s.b[w] |= 1 << (i % 64)
}

func (s *Bitmap) Clear(i int) {
	if w := i / 64; w < len(s.b) {
		s.b[w] &^= 1 << (i % 64)
	}
}

func (s Bitmap) IsSet(i int) bool {
	w := i / 64

	return w < len(s.b) && s.b[w]&(1<<(i%64)) != 0
}

func (s *Bitmap) Or(x Bitmap) {
	for len(s.b) < len(x.b) {
		s.b = append(s.b, 0)
	}

	for i, w := range x.b {
		s.b[i] |= w
	}
}

func (s Bitmap) Intersects(x Bitmap) bool {
	for i := 0; i < len(s.b) && i < len(x.b); i++ {
		if s.b[i]&x.b[i] != 0 {
			return true
		}
	}

	return false
}

func (s Bitmap) Copy() Bitmap {
	return Bitmap{b: append([]uint64(nil), s.b...)}
}

func (s Bitmap) Size() (n int) {
	for _, w := range s.b {
		n += bits.OnesCount64(w)
	}

	return n
}

// Range calls f for set elements in increasing order until f returns false.
func (s Bitmap) Range(f func(i int) bool) {
	for i, w := range s.b {
		for w != 0 {
			j := bits.TrailingZeros64(w)
			w &^= 1 << j

			if !f(i*64 + j) {
				return
			}
		}
	}
}

func (s Bitmap) Slice() (r []int) {
	s.Range(func(i int) bool {
		r = append(r, i)
		return true
	})

	return r
}

func (s Bitmap) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(i int) bool {
		b = e.AppendInt(b, i)
		return true
	})

	return e.AppendBreak(b)
}
