package wam

import orderedmap "github.com/wk8/go-ordered-map/v2"

// This file is the code-assembly helper named in SPEC_FULL.md's package
// mapping: a stand-in for the real compiler (out of scope per spec.md
// §1), used to hand-assemble the builtin bytecode program (builtins.go)
// and, from cmd/prolog, the handful of demo predicates that CLI exercises
// without a real parser/compiler front end.

// procKey identifies a predicate by name/arity, the same indicator
// Prolog itself uses (foo/2).
type procKey struct {
	Name  Atom
	Arity int
}

// asm is an append-only instruction sequence builder. It mirrors a
// single-pass assembler: emit appends and returns the address just
// written, so callers can stash that address to patch a forward jump
// once the real target is known. Exported as Assembler so a Go caller
// with no parser of its own (cmd/prolog's demo clauses) can hand-assemble
// real compiled predicates the same way builtins.go does.
type asm = Assembler

// Assembler is an append-only instruction sequence builder, addresses
// always starting at 0; LoadClauses rebases a finished Assembler's
// addresses onto a live Machine's Code.
type Assembler struct {
	code Code
}

// Here returns the address the next emitted instruction will occupy.
func (a *Assembler) Here() CodePtr { return CodePtr(len(a.code)) }

// here is the package-internal spelling used by builtins.go.
func (a *Assembler) here() CodePtr { return a.Here() }

// Emit appends one instruction and returns its address.
func (a *Assembler) Emit(instr Instruction) CodePtr {
	addr := a.Here()
	a.code = append(a.code, instr)
	return addr
}

func (a *Assembler) emit(instr Instruction) CodePtr { return a.Emit(instr) }

// PatchTarget rewrites the Target field of the instruction at addr, for
// forward references resolved after the fact (e.g. a choice sequence's
// last alternative, compiled before the clause it falls through to).
func (a *Assembler) PatchTarget(addr CodePtr, target CodePtr) {
	a.code[addr].Target = target
}

func (a *Assembler) patchTarget(addr CodePtr, target CodePtr) { a.PatchTarget(addr, target) }

// PatchAlt rewrites the Alt field, for TryMeElse/RetryMeElse chains.
func (a *Assembler) PatchAlt(addr CodePtr, alt CodePtr) {
	a.code[addr].Alt = alt
}

func (a *Assembler) patchAlt(addr CodePtr, alt CodePtr) { a.PatchAlt(addr, alt) }

// LoadClauses appends a finished Assembler's instructions onto m.Code,
// rebasing every address-bearing field by the load offset, and returns
// that offset — the entry point of whatever the Assembler's first
// instruction was. Used by cmd/prolog to install demo predicates after
// the builtin program (which occupies Code[0:] already) has been loaded.
func (m *Machine) LoadClauses(a *Assembler) CodePtr {
	base := CodePtr(len(m.Code))
	for _, instr := range a.code {
		instr.Target += base
		instr.Alt += base
		instr.NoVar += base
		instr.NoCon += base
		instr.NoLis += base
		instr.NoStr += base
		if instr.Table != nil {
			shifted := make(map[Atom]CodePtr, len(instr.Table))
			for k, v := range instr.Table {
				shifted[k] = v + base
			}
			instr.Table = shifted
		}
		m.Code = append(m.Code, instr)
	}
	return base
}

// PredicateTable maps name/arity to an entry-point address, the same
// shape the builtin table uses (§4.8), for predicates assembled outside
// the fixed builtin program — e.g. cmd/prolog's demo predicates, or a
// test that wants a CallClause target to jump to. Kept as a distinct,
// mutable table from BuiltinTable (which is immutable once constructed)
// because user/demo predicates may be registered and re-registered across
// a REPL session while the builtin program never changes.
type PredicateTable struct {
	entries *orderedmap.OrderedMap[procKey, CodePtr]
}

// NewPredicateTable returns an empty table.
func NewPredicateTable() *PredicateTable {
	return &PredicateTable{entries: orderedmap.New[procKey, CodePtr]()}
}

// Define registers (or overwrites) the entry point for name/arity.
func (t *PredicateTable) Define(name Atom, arity int, addr CodePtr) {
	t.entries.Set(procKey{name, arity}, addr)
}

// Lookup returns the entry point for name/arity, if any.
func (t *PredicateTable) Lookup(name Atom, arity int) (CodePtr, bool) {
	return t.entries.Get(procKey{name, arity})
}

// Clear removes every registered predicate, for the CLI's "clear"
// meta-input (§6).
func (t *PredicateTable) Clear() {
	t.entries = orderedmap.New[procKey, CodePtr]()
}

// resolveCallable looks up a callable term's functor/arity in both the
// builtin program and the machine's Predicates table (builtins first, so
// a demo/user definition can never shadow a control construct), returning
// its entry point. dispatchGoal (control.go), behind call/N and the
// control constructs, uses it to turn a goal term into a CodePtr.
func (m *Machine) resolveCallable(name Atom, arity int) (CodePtr, bool) {
	if addr, ok := m.Builtins.Lookup(name, arity); ok {
		return addr, true
	}
	if m.Predicates != nil {
		if addr, ok := m.Predicates.Lookup(name, arity); ok {
			return addr, true
		}
	}
	return 0, false
}

// functorOf inspects a dereferenced callable cell and returns its name and
// arity: an atom is arity 0, a structure is its header's name/arity. Lists
// and anything else are not callable and ok is false.
func functorOf(m *Machine, c Cell) (Atom, int, bool) {
	c = deref(m, c)
	switch v := c.(type) {
	case ConCell:
		if a, ok := v.Value.(ConAtom); ok {
			return Atom(a), 0, true
		}
		return 0, 0, false
	case StrCell:
		h := m.Heap[v.Addr].(HeaderCell)
		return h.Name, h.Arity, true
	default:
		return 0, 0, false
	}
}
