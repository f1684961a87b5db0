package wam

import "math/big"

// This file is the machine's term-construction surface for Go callers that
// have no parser of their own (cmd/prolog's demo programs, and any future
// embedder) — the same role NewAtom/NewVariable/CompoundArgs play in
// other_examples's ichiban/prolog engine package. It builds ground or
// partly-unbound terms directly on the heap without going through
// unification, the way asm.go builds instructions directly without going
// through a compiler.

// NewVar pushes a fresh unbound variable and returns it.
func (m *Machine) NewVar() Cell {
	return RefCell{Addr: m.Heap.newRef()}
}

// NewAtom interns name and returns it as a 0-arity term.
func (m *Machine) NewAtom(name string) Cell {
	return atomCell(m.Atoms.Intern(name))
}

// NewInt returns an arbitrary-precision integer term.
func (m *Machine) NewInt(n int64) Cell {
	return ConCell{Value: ConInt{big.NewInt(n)}}
}

// NewStruct builds name(args...) directly on the heap. With no args it
// behaves like NewAtom (arity-0 structures are represented as atoms, §3).
func (m *Machine) NewStruct(name string, args ...Cell) Cell {
	if len(args) == 0 {
		return m.NewAtom(name)
	}
	header, slots := m.Heap.newStructure(m.Atoms.Intern(name), len(args))
	for i, a := range args {
		m.Heap[slots[i]] = a
	}
	return StrCell{Addr: header}
}

// NewList builds a proper list out of elems, terminated by '[]'.
func (m *Machine) NewList(elems ...Cell) Cell {
	return buildList(m, elems)
}

// FormatTerm renders c for host-level reporting (a CLI's answer line, a
// test failure message) — not Prolog-level I/O, which §1/§6 bound to
// display/1 alone.
func (m *Machine) FormatTerm(c Cell) string {
	return writeTerm(m, c)
}

// Solve dispatches goal as a fresh top-level query — continuation StopCP,
// cut barrier at the current choice point — and runs it to its first
// solution, failure, or escaping exception. A true result with Redo-able
// choice points left behind (m.Or non-empty above where Solve started) can
// be asked for another solution via Redo (§6: "press space or ; for the
// next answer").
func (m *Machine) Solve(goal Cell) (bool, error) {
	m.Fail = false
	m.Halted = false
	if _, err := dispatchGoal(m, goal, StopCP, m.B); err != nil {
		return false, err
	}
	return m.Run()
}
