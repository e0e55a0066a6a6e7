package csg

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownOperation is returned by ParseOperation for names it does not
// recognize.
var ErrUnknownOperation = errors.New("csg: unknown operation")

// Operation selects which classified regions survive. Each bit keeps the
// regions of one operand on one side of the other operand's surface.
type Operation uint8

const (
	KeepFirstInsideSecond  Operation = 1 << 1
	KeepFirstOutsideSecond Operation = 1 << 2
	KeepSecondInsideFirst  Operation = 1 << 3
	KeepSecondOutsideFirst Operation = 1 << 4
)

const (
	Union     = KeepFirstOutsideSecond | KeepSecondOutsideFirst
	Intersect = KeepFirstInsideSecond | KeepSecondInsideFirst
	Subtract  = KeepFirstOutsideSecond | KeepSecondInsideFirst
	Identity  = KeepFirstInsideSecond | KeepFirstOutsideSecond | KeepSecondInsideFirst | KeepSecondOutsideFirst
)

var flagNames = []struct {
	flag Operation
	name string
}{
	{KeepFirstInsideSecond, "fi"},
	{KeepFirstOutsideSecond, "fo"},
	{KeepSecondInsideFirst, "si"},
	{KeepSecondOutsideFirst, "so"},
}

func (op Operation) String() string {
	switch op {
	case Union:
		return "union"
	case Intersect:
		return "intersect"
	case Subtract:
		return "subtract"
	case Identity:
		return "identity"
	}
	var parts []string
	for _, f := range flagNames {
		if op&f.flag != 0 {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseOperation accepts the named operations and "|"-joined raw flags
// such as "fo|si".
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "union":
		return Union, nil
	case "intersect", "intersection":
		return Intersect, nil
	case "subtract", "difference":
		return Subtract, nil
	case "identity":
		return Identity, nil
	}
	var op Operation
	for _, part := range strings.Split(s, "|") {
		part = strings.ToLower(strings.TrimSpace(part))
		found := false
		for _, f := range flagNames {
			if f.name == part {
				op |= f.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, s)
		}
	}
	return op, nil
}

// keep returns the behavior for regions governed by flag.
func (op Operation) keep(flag Operation, invert bool) Behavior {
	switch {
	case op&flag == 0:
		return Delete
	case invert:
		return Flip
	default:
		return Normal
	}
}

// behaviors returns the inside and outside behaviors of one operand.
func (op Operation) behaviors(operand int, invert bool) (inside, outside Behavior) {
	if operand == 0 {
		return op.keep(KeepFirstInsideSecond, invert), op.keep(KeepFirstOutsideSecond, invert)
	}
	return op.keep(KeepSecondInsideFirst, invert), op.keep(KeepSecondOutsideFirst, invert)
}

// surfaceBehaviors returns the behaviors of one operand's regions that lie
// on the other operand's surface, facing the same way or the opposite way.
// An operand that keeps or drops both sides treats its surface regions the
// same. Otherwise a shared same-facing face is kept once, by the first
// operand, when the output keeps the outside or the inside of both. An
// opposite-facing face is kept when the operand's outside meets the
// other's kept inside.
func (op Operation) surfaceBehaviors(operand int, invert bool) (same, opposite Behavior) {
	inside, outside := op.behaviors(operand, invert)
	if inside == outside {
		return inside, inside
	}
	fi, fo, si, so := op.flags()
	kept := func(ok bool) Behavior {
		switch {
		case !ok:
			return Delete
		case invert:
			return Flip
		default:
			return Normal
		}
	}
	if operand == 0 {
		return kept(fo && so || fi && si), kept(fo && si)
	}
	return Delete, kept(so && fi)
}

func (op Operation) flags() (fi, fo, si, so bool) {
	return op&KeepFirstInsideSecond != 0, op&KeepFirstOutsideSecond != 0,
		op&KeepSecondInsideFirst != 0, op&KeepSecondOutsideFirst != 0
}

// Inversions reports which operands must be flipped for the merged output
// to enclose a solid. An operand that keeps only its inside while the other
// keeps only its outside lines a cavity.
func (op Operation) Inversions() (first, second bool) {
	fi, fo, si, so := op.flags()
	return fi && !fo && so && !si, si && !so && fo && !fi
}
