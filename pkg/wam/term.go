package wam

import (
	"fmt"
	"math/big"
)

// Cell is a heap or register value: one of RefCell, StackRefCell, LisCell,
// StrCell, ConCell, or HeaderCell (§3). It is a closed interface rather
// than a single tagged struct so that deref/unify/iterator code can branch
// with an ordinary Go type switch, matching the Term/*Var/*Atom pattern
// the teacher uses throughout pkg/minikanren.
type Cell interface {
	isCell()
	fmt.Stringer
}

// RefCell is an unbound (or bound-by-overwrite) heap variable: the heap
// cell at Addr. A self-referential RefCell (Addr == its own heap index)
// is the unbound root of a variable.
type RefCell struct{ Addr int }

func (RefCell) isCell()            {}
func (c RefCell) String() string   { return fmt.Sprintf("_%d", c.Addr) }

// StackRefCell is an unbound permanent variable living in environment
// frame Frame, slot Slot.
type StackRefCell struct{ Frame, Slot int }

func (StackRefCell) isCell()          {}
func (c StackRefCell) String() string { return fmt.Sprintf("_S%d/%d", c.Frame, c.Slot) }

// LisCell points at a list cons-cell: heap[Addr] holds the head,
// heap[Addr+1] holds the tail.
type LisCell struct{ Addr int }

func (LisCell) isCell()          {}
func (c LisCell) String() string { return fmt.Sprintf("Lis(%d)", c.Addr) }

// StrCell points at a HeaderCell at heap[Addr], followed by Arity argument
// cells.
type StrCell struct{ Addr int }

func (StrCell) isCell()          {}
func (c StrCell) String() string { return fmt.Sprintf("Str(%d)", c.Addr) }

// ConCell holds an immediate constant (§3: atom, integer, rational, float,
// string, empty list, or an opaque Usize).
type ConCell struct{ Value Const }

func (ConCell) isCell()          {}
func (c ConCell) String() string { return c.Value.String() }

// HeaderCell is a structure header, stored at the heap address a StrCell
// points to. Fixity is carried for operator-aware printing; it is not
// interpreted by the machine itself.
type HeaderCell struct {
	Name   Atom
	Arity  int
	Fixity Fixity
}

func (HeaderCell) isCell() {}
func (c HeaderCell) String() string {
	return fmt.Sprintf("%d/%d", c.Name, c.Arity)
}

// Fixity records operator associativity/priority metadata attached to a
// structure header. The machine never consults it; it exists purely so a
// printer collaborator can round-trip operator notation.
type Fixity struct {
	Priority int
	Type     string // e.g. "xfx", "yfx", "fy" — opaque to the machine
}

// Const is the payload of a ConCell: an interned atom, an arbitrary
// precision integer or rational (math/big, the out-of-scope "big
// integer/rational library" named in spec.md §1), a float, an interned
// string, the empty-list marker, or an internal Usize used to stash
// choice-point indices inside ordinary term positions (the cut level
// GetLevel stores and CutTo reads).
type Const interface {
	isConst()
	fmt.Stringer
}

// ConAtom is an atom used as a 0-arity term.
type ConAtom Atom

func (ConAtom) isConst()        {}
func (c ConAtom) String() string { return fmt.Sprintf("a%d", Atom(c)) }

// ConInt is an arbitrary-precision integer constant.
type ConInt struct{ *big.Int }

func (ConInt) isConst()          {}
func (c ConInt) String() string  { return c.Int.String() }

// ConRat is an arbitrary-precision rational constant.
type ConRat struct{ *big.Rat }

func (ConRat) isConst()         {}
func (c ConRat) String() string { return c.Rat.RatString() }

// ConFloat is a double-precision float constant.
type ConFloat float64

func (ConFloat) isConst()        {}
func (c ConFloat) String() string { return fmt.Sprintf("%g", float64(c)) }

// ConString is an interned string constant (Prolog "..." when
// double_quotes is set to the string flag, and string/1 literals).
type ConString string

func (ConString) isConst()        {}
func (c ConString) String() string { return string(c) }

// ConNil is the empty-list atom '[]' represented as a constant rather
// than a 0-arity structure, matching the teacher's use of a dedicated nil
// marker in list-shaped terms.
type ConNil struct{}

func (ConNil) isConst()        {}
func (ConNil) String() string { return "[]" }

// ConUsize is an opaque machine-internal index (a choice-point index used
// as a cut level) temporarily parked in a term position by GetLevel and
// read back by CutTo.
type ConUsize uint

func (ConUsize) isConst()        {}
func (c ConUsize) String() string { return fmt.Sprintf("#%d", uint(c)) }

// equalConst reports whether two constants compare equal by value,
// implementing the Con/Con case of unification (§4.2) and the "constants
// compare by value" rule.
func equalConst(a, b Const) bool {
	switch x := a.(type) {
	case ConAtom:
		y, ok := b.(ConAtom)
		return ok && x == y
	case ConInt:
		y, ok := b.(ConInt)
		return ok && x.Int.Cmp(y.Int) == 0
	case ConRat:
		y, ok := b.(ConRat)
		return ok && x.Rat.Cmp(y.Rat) == 0
	case ConFloat:
		y, ok := b.(ConFloat)
		return ok && x == y
	case ConString:
		y, ok := b.(ConString)
		return ok && x == y
	case ConNil:
		_, ok := b.(ConNil)
		return ok
	case ConUsize:
		y, ok := b.(ConUsize)
		return ok && x == y
	default:
		return false
	}
}

// compareConst gives the standard order of terms between two constants of
// possibly different kinds, used by compare/3, @</2, and sort/2. The
// ordering of kinds is: Float/Int/Rat (by numeric value, numbers compare
// together) < Atom < ConString < compound (handled by the caller).
func compareConst(t *AtomTable, a, b Const) int {
	rank := func(c Const) int {
		switch c.(type) {
		case ConFloat, ConInt, ConRat:
			return 0
		case ConAtom, ConNil:
			return 1
		case ConString:
			return 2
		default:
			return 3
		}
	}
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 0:
		return compareNumeric(a, b)
	case 1:
		return t.Compare(constAtom(t, a), constAtom(t, b))
	case 2:
		sa, sb := a.(ConString), b.(ConString)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

// constAtom extracts the Atom identity of a ConAtom or ConNil constant,
// treating '[]' as the atom named "[]" for ordering purposes.
func constAtom(t *AtomTable, c Const) Atom {
	switch v := c.(type) {
	case ConAtom:
		return Atom(v)
	case ConNil:
		return t.CoreAtoms().Nil
	default:
		return 0
	}
}

// compareNumeric orders two numeric constants (Int/Rat/Float) by value.
// When both are Int or Rat the comparison is exact and equal values
// compare equal whatever their kind; when a Float is involved, equal
// values are ordered by kind (Float < Int < Rat).
func compareNumeric(a, b Const) int {
	af, aRat := numericToRat(a)
	bf, bRat := numericToRat(b)
	if aRat != nil && bRat != nil {
		return aRat.Cmp(bRat)
	}
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return numericKind(a) - numericKind(b)
	}
}

func numericKind(c Const) int {
	switch c.(type) {
	case ConFloat:
		return 0
	case ConInt:
		return 1
	case ConRat:
		return 2
	default:
		return 3
	}
}

// numericToRat returns a float64 approximation (always) and, when exact
// rational comparison is possible (both operands Int/Rat), a *big.Rat.
func numericToRat(c Const) (float64, *big.Rat) {
	switch v := c.(type) {
	case ConInt:
		f, _ := new(big.Float).SetInt(v.Int).Float64()
		return f, new(big.Rat).SetInt(v.Int)
	case ConRat:
		f, _ := v.Rat.Float64()
		return f, v.Rat
	case ConFloat:
		return float64(v), nil
	default:
		return 0, nil
	}
}
