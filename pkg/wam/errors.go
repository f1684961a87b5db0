package wam

import "math/big"

// This file builds ISO-shaped error terms — error(Formal, Context) — for
// the machine's own builtins to throw (§4.4, §4.7). Context is always left
// an unbound variable: filling it in with a culprit predicate indicator is
// a concern of whatever catches and reports the error, not of the throw
// site.

// newErrorTerm wraps formal (already pushed onto the heap) as
// error(Formal, _) and returns the wrapping StrCell.
func newErrorTerm(m *Machine, formal Cell) Cell {
	header, args := m.Heap.newStructure(m.Atoms.Intern("error"), 2)
	m.Heap[args[0]] = formal
	_ = args[1] // left unbound
	return StrCell{Addr: header}
}

func atomCell(a Atom) Cell { return ConCell{Value: ConAtom(a)} }

// instantiationError builds error(instantiation_error, _) (§4.7: thrown
// when an argument that must be bound is an unbound variable).
func instantiationError(m *Machine) Cell {
	return newErrorTerm(m, atomCell(m.Core.InstantiationError))
}

// typeError builds error(type_error(Type, Culprit), _). culprit may be nil
// when the offending term isn't meaningfully identifiable (e.g. a missing
// operator); a fresh unbound variable is substituted in that case.
func typeError(m *Machine, kind string, culprit Cell) Cell {
	if culprit == nil {
		culprit = RefCell{Addr: m.Heap.newRef()}
	}
	header, args := m.Heap.newStructure(m.Core.TypeError, 2)
	m.Heap[args[0]] = atomCell(m.Atoms.Intern(kind))
	m.Heap[args[1]] = culprit
	return newErrorTerm(m, StrCell{Addr: header})
}

// domainError builds error(domain_error(Domain, Culprit), _).
func domainError(m *Machine, domain string, culprit Cell) Cell {
	header, args := m.Heap.newStructure(m.Core.DomainError, 2)
	m.Heap[args[0]] = atomCell(m.Atoms.Intern(domain))
	m.Heap[args[1]] = culprit
	return newErrorTerm(m, StrCell{Addr: header})
}

// evaluationError builds error(evaluation_error(What), _), used for
// zero_divisor, expected_integer_args, and similar arithmetic faults
// (§4.4).
func evaluationError(m *Machine, what string) Cell {
	header, args := m.Heap.newStructure(m.Core.EvaluationError, 1)
	m.Heap[args[0]] = atomCell(m.Atoms.Intern(what))
	return newErrorTerm(m, StrCell{Addr: header})
}

// representationError builds error(representation_error(What), _).
func representationError(m *Machine, what string) Cell {
	header, args := m.Heap.newStructure(m.Core.RepresentationError, 1)
	m.Heap[args[0]] = atomCell(m.Atoms.Intern(what))
	return newErrorTerm(m, StrCell{Addr: header})
}

// resourceError builds error(resource_error(What), _), for a hard machine
// resource limit being hit.
func resourceError(m *Machine, what string) Cell {
	header, args := m.Heap.newStructure(m.Atoms.Intern("resource_error"), 1)
	m.Heap[args[0]] = atomCell(m.Atoms.Intern(what))
	return newErrorTerm(m, StrCell{Addr: header})
}

// existenceError builds error(existence_error(Kind, Culprit), _), thrown by
// dispatchGoal (control.go), behind call/N and the control constructs, when a goal's
// functor/arity names no builtin and no registered predicate (§4.7).
func existenceError(m *Machine, kind string, culprit Cell) Cell {
	header, args := m.Heap.newStructure(m.Atoms.Intern("existence_error"), 2)
	m.Heap[args[0]] = atomCell(m.Atoms.Intern(kind))
	m.Heap[args[1]] = culprit
	return newErrorTerm(m, StrCell{Addr: header})
}

// indicatorTerm builds the Name/Arity predicate indicator existence_error
// names its culprit with.
func indicatorTerm(m *Machine, name Atom, arity int) Cell {
	header, args := m.Heap.newStructure(m.Atoms.Intern("/"), 2)
	m.Heap[args[0]] = atomCell(name)
	m.Heap[args[1]] = ConCell{Value: ConInt{big.NewInt(int64(arity))}}
	return StrCell{Addr: header}
}

// inferenceLimitExceeded builds the distinguished
// inference_limit_exceeded/0 exception term thrown by
// call_with_inference_limit/3 when its budget runs out (§4.6, not wrapped
// in error/2 — this one is thrown bare, matching the de-facto standard
// set by library(ilp_limits) callers).
func inferenceLimitExceeded(m *Machine) Cell {
	return atomCell(m.Core.InferenceLimitExceeded)
}
