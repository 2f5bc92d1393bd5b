package ir

import "tlog.app/go/errors"

type Type string

const (
	Void Type = "void"
	I1   Type = "i1"
	I8   Type = "i8"
	I32  Type = "i32"
	I64  Type = "i64"
	F64  Type = "f64"
	Ptr  Type = "ptr"
)

func ParseType(s string) (Type, error) {
	t := Type(s)

	if !t.Valid() {
		return "", errors.New("unknown type: %q", s)
	}

	return t, nil
}

func (t Type) Valid() bool {
	switch t {
	case Void, I1, I8, I32, I64, F64, Ptr:
		return true
	default:
		return false
	}
}

// Size in bytes as laid out in memory.
func (t Type) Size() int {
	switch t {
	case Void:
		return 0
	case I1, I8:
		return 1
	case I32:
		return 4
	case I64, F64, Ptr:
		return 8
	default:
		panic(t)
	}
}

func (t Type) Align() int {
	if s := t.Size(); s > 0 {
		return s
	}

	return 1
}
