// Package validate type-checks a rewritten module's function bodies
// against Wasm's stack-polymorphic type system: every numeric/reference
// value type extended with two meta-types that let a single algorithm
// handle the unreachable code following an unconditional branch.
package validate

import "github.com/wasmcore/wasmcore/wasm"

// StackType is a value type on the validation-time type stack, extended
// with the two meta-types the stack-polymorphism rules need. Concrete
// variants reuse wasm.ValueType's own byte encoding so a StackType can be
// compared directly against one without a translation table.
type StackType byte

const (
	// TypeAny represents the unreachable stack: it may stand in for any
	// number of required types when popped, and absorbs anything pushed
	// on top of it.
	TypeAny StackType = 0x00
	// TypeSomething matches any type when compared. No validation rule
	// pushes it: an untyped `select` pushes its operands' type (the
	// non-Any one when one operand is Any).
	TypeSomething StackType = 0x01
)

func fromValueType(t wasm.ValueType) StackType { return StackType(t) }

func (t StackType) isMeta() bool { return t == TypeAny || t == TypeSomething }

func (t StackType) String() string {
	switch t {
	case TypeAny:
		return "<any>"
	case TypeSomething:
		return "<something>"
	}
	return wasm.ValueType(t).String()
}

// matchTypes reports whether two stack types unify: true iff either side
// is a meta-type, or both are the same concrete type.
func matchTypes(req, got StackType) bool {
	if req.isMeta() || got.isMeta() {
		return true
	}
	return req == got
}

// typeStack is the per-function validation-time value-type stack, plus
// the set of control frames it's nested under.
type typeStack struct {
	types  []StackType
	frames []*frame
}

func (s *typeStack) push(t StackType) { s.types = append(s.types, t) }

func (s *typeStack) pushN(ts []StackType) {
	for _, t := range ts {
		s.push(t)
	}
}

func (s *typeStack) height() int { return len(s.types) }

func (s *typeStack) current() *frame { return s.frames[len(s.frames)-1] }

// pop removes and returns the top of the stack, respecting the current
// frame's floor: once the stack has been reset to Any by an unreachable
// branch, popping below the frame's starting height yields an implicit
// Any rather than an error, per the absorption rule.
func (s *typeStack) pop() (StackType, error) {
	f := s.current()
	if len(s.types) == f.startHeight {
		if f.unreachable {
			return TypeAny, nil
		}
		return 0, errTypeMismatch("type mismatch: stack underflow")
	}
	t := s.types[len(s.types)-1]
	s.types = s.types[:len(s.types)-1]
	return t, nil
}

// popExpect pops and matches a single required type.
func (s *typeStack) popExpect(want StackType) (StackType, error) {
	got, err := s.pop()
	if err != nil {
		return 0, err
	}
	if !matchTypes(want, got) {
		return 0, errTypeMismatch("type mismatch: expected " + want.String() + ", got " + got.String())
	}
	return got, nil
}

// popPrefix pops and matches a whole required prefix (in the order it
// would be pushed, so the last element of want is popped first), one
// element at a time: an Any pushed on the stack matches exactly one
// required type, and only the floor of an unreachable frame supplies Any
// for every further element.
func (s *typeStack) popPrefix(want []StackType) error {
	for i := len(want) - 1; i >= 0; i-- {
		if _, err := s.popExpect(want[i]); err != nil {
			return err
		}
	}
	return nil
}

// peekPrefix checks that the top of the stack matches want (in push
// order) without consuming it, honouring the current frame's Any
// absorption the same way pop does. Used for branch-target checks, which
// must not destroy values a fallthrough or sibling target still needs.
func (s *typeStack) peekPrefix(want []StackType) error {
	f := s.current()
	idx := len(s.types)
	for i := len(want) - 1; i >= 0; i-- {
		var got StackType
		if idx <= f.startHeight {
			if !f.unreachable {
				return errTypeMismatch("type mismatch: stack underflow")
			}
			got = TypeAny
		} else {
			idx--
			got = s.types[idx]
		}
		if !matchTypes(want[i], got) {
			return errTypeMismatch("type mismatch: expected " + want[i].String() + ", got " + got.String())
		}
	}
	return nil
}

// setUnreachable marks the current frame polymorphic and discards
// everything pushed since it was entered, per §4.4's `br` rule.
func (s *typeStack) setUnreachable() {
	f := s.current()
	f.unreachable = true
	s.types = s.types[:f.startHeight]
}

type errTypeMismatch string

func (e errTypeMismatch) Error() string { return string(e) }
