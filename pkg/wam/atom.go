// Package wam implements a Warren Abstract Machine runtime for Prolog:
// tagged heap cells, environment and choice-point stacks, a trail, a
// Cheney-style term copier, an arithmetic evaluator, and an instruction
// interpreter driving a fixed builtin bytecode program.
//
// The package does not parse Prolog text, print terms, or load modules —
// those are external collaborators. Callers assemble Code directly (see
// asm.go) or hand the machine a Code table produced elsewhere.
package wam

import "sync"

// Atom is an interned name. The zero Atom is never issued by the table,
// so a zero value reliably signals "no atom".
type Atom uint32

// AtomTable interns atom names into small, comparable identifiers shared
// process-wide. Interning is the only mutation against the table and must
// be safe for concurrent use, since several *Machine values (each
// single-threaded on its own) may share one table (§5).
type AtomTable struct {
	mu     sync.RWMutex
	byName map[string]Atom
	names  []string // names[a-1] is the name of Atom a

	coreOnce sync.Once
	core     *coreAtoms
}

// NewAtomTable returns an empty intern table.
func NewAtomTable() *AtomTable {
	return &AtomTable{byName: make(map[string]Atom)}
}

// Intern returns the Atom for name, creating it on first use.
func (t *AtomTable) Intern(name string) Atom {
	t.mu.RLock()
	if a, ok := t.byName[name]; ok {
		t.mu.RUnlock()
		return a
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok := t.byName[name]; ok {
		return a
	}
	t.names = append(t.names, name)
	a := Atom(len(t.names))
	t.byName[name] = a
	return a
}

// Name returns the interned string for a, or "" if a is unknown.
func (t *AtomTable) Name(a Atom) string {
	if a == 0 {
		return ""
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx := int(a) - 1
	if idx < 0 || idx >= len(t.names) {
		return ""
	}
	return t.names[idx]
}

// Compare orders two atoms: first by identity (fast path for equality),
// then lexicographically by name, matching the standard order of terms
// for atoms of equal "kind".
func (t *AtomTable) Compare(a, b Atom) int {
	if a == b {
		return 0
	}
	na, nb := t.Name(a), t.Name(b)
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	default:
		return 0
	}
}

// coreAtoms collects the atoms the builtin program and error-term
// constructors refer to by name. Keeping them pre-interned avoids
// re-hashing the same handful of strings on every builtin dispatch.
type coreAtoms struct {
	Nil, Dot, Comma, Semicolon, Arrow, True, False, Fail, Cut   Atom
	Call, Catch, Throw, Not, Is, Equals, NotEquals              Atom
	Unify, UnifyEq, StructEq, StandardLt, StandardGt            Atom
	Functor, Arg, Univ, Length, Sort, Keysort, DuplicateTerm    Atom
	Ground, Compare, AcyclicTerm, CyclicTerm                    Atom
	SetupCallCleanup, CallWithInferenceLimit                    Atom
	InstantiationError, TypeError, DomainError, EvaluationError Atom
	RepresentationError, InferenceLimitExceeded                 Atom
	ExceedsMaxArity, ZeroDivisor, ExpectedIntegerArgs           Atom
}

// CoreAtoms interns (once per table) and returns the well-known atoms the
// builtin program and error-term constructors refer to by name. It is a
// method on AtomTable, not a package-level singleton, so that the core
// atoms always share the same namespace as every other atom a Machine
// interns through its own table — a Machine built with WithAtomTable(t)
// gets the same coreAtoms identities as one that let NewMachine create its
// own table.
func (t *AtomTable) CoreAtoms() *coreAtoms {
	t.coreOnce.Do(func() {
		wk := &coreAtoms{}
		t.core = wk
		wk.Nil = t.Intern("[]")
		wk.Dot = t.Intern(".")
		wk.Comma = t.Intern(",")
		wk.Semicolon = t.Intern(";")
		wk.Arrow = t.Intern("->")
		wk.True = t.Intern("true")
		wk.False = t.Intern("false")
		wk.Fail = t.Intern("fail")
		wk.Cut = t.Intern("!")
		wk.Call = t.Intern("call")
		wk.Catch = t.Intern("catch")
		wk.Throw = t.Intern("throw")
		wk.Not = t.Intern("not")
		wk.Is = t.Intern("is")
		wk.Equals = t.Intern("=")
		wk.NotEquals = t.Intern("\\=")
		wk.Unify = t.Intern("=")
		wk.UnifyEq = t.Intern("==")
		wk.StructEq = t.Intern("=@=")
		wk.StandardLt = t.Intern("@<")
		wk.StandardGt = t.Intern("@>")
		wk.Functor = t.Intern("functor")
		wk.Arg = t.Intern("arg")
		wk.Univ = t.Intern("=..")
		wk.Length = t.Intern("length")
		wk.Sort = t.Intern("sort")
		wk.Keysort = t.Intern("keysort")
		wk.DuplicateTerm = t.Intern("duplicate_term")
		wk.Ground = t.Intern("ground")
		wk.Compare = t.Intern("compare")
		wk.AcyclicTerm = t.Intern("acyclic_term")
		wk.CyclicTerm = t.Intern("cyclic_term")
		wk.SetupCallCleanup = t.Intern("setup_call_cleanup")
		wk.CallWithInferenceLimit = t.Intern("call_with_inference_limit")
		wk.InstantiationError = t.Intern("instantiation_error")
		wk.TypeError = t.Intern("type_error")
		wk.DomainError = t.Intern("domain_error")
		wk.EvaluationError = t.Intern("evaluation_error")
		wk.RepresentationError = t.Intern("representation_error")
		wk.InferenceLimitExceeded = t.Intern("inference_limit_exceeded")
		wk.ExceedsMaxArity = t.Intern("exceeds_max_arity")
		wk.ZeroDivisor = t.Intern("zero_divisor")
		wk.ExpectedIntegerArgs = t.Intern("expected_integer_args")
	})
	return t.core
}
