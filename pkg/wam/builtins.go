package wam

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// This file assembles the fixed builtin bytecode program (§4.8): a single
// immutable Code vector, built once per Machine by newBuiltinTable, that
// implements control constructs, meta-call, term inspection, comparison,
// sort, and arithmetic dispatch. Every entry is a NativeCall instruction,
// a Go closure operating directly on *Machine through
// deref/bind/unify/Eval. The control constructs that interact with choice
// points and cut (,/2, ;/2, ->/2, call/N) are "jumper" entries with no
// trailing Proceed: their closures transfer control through dispatchGoal
// (control.go), and ;/2 pushes a real choice point for its else branch.
// not/1, \+/1 and catch/3 run their goal to its first solution in a
// nested run (callOnce). No SwitchOnTerm indexing is emitted for these
// entries, and `!` is not registered as a builtin. Everything else — type
// tests, term decomposition, comparison, sort, arithmetic — is an ordinary
// NativeCall followed by Proceed. Both kinds share one name/arity ->
// address table, so a caller resolving a predicate cannot tell from the
// outside which strategy backs it.

// BuiltinTable is the immutable, already-assembled builtin program plus
// its name/arity -> address directory (§4.8: "Entry points are referenced
// by absolute instruction index in a name-and-arity -> address map").
type BuiltinTable struct {
	code    Code
	entries *orderedmap.OrderedMap[procKey, CodePtr]
}

// Lookup returns the entry point for name/arity, if it names a builtin.
func (b *BuiltinTable) Lookup(name Atom, arity int) (CodePtr, bool) {
	return b.entries.Get(procKey{name, arity})
}

// Names returns every builtin indicator in registration order (call/N
// occupies the lowest addresses, per §4.8).
func (b *BuiltinTable) Names() []procKey {
	names := make([]procKey, 0, b.entries.Len())
	for pair := b.entries.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// newBuiltinTable constructs the whole builtin program against m (whose
// Atoms/Core are already initialized by NewMachine) and returns it.
func newBuiltinTable(m *Machine) *BuiltinTable {
	bt := &BuiltinTable{entries: orderedmap.New[procKey, CodePtr]()}
	a := &asm{}

	reg := func(name string, arity int, addr CodePtr) {
		bt.entries.Set(procKey{m.Atoms.Intern(name), arity}, addr)
	}
	// native registers a one-instruction NativeCall entry followed by
	// Proceed — the shape shared by every builtin that never needs to
	// transfer control itself (everything except ,/2, ;/2, ->/2, call/N,
	// whose Native bodies set m.P directly via dispatchGoal and must not
	// fall through to a trailing Proceed).
	native := func(name string, arity int, fn NativeFunc) {
		addr := a.emit(Instruction{Op: OpNativeCall, Native: fn, NativeID: fmt.Sprintf("%s/%d", name, arity)})
		a.emit(Instruction{Op: OpProceed})
		reg(name, arity, addr)
	}
	// jumper registers a NativeCall entry with no trailing Proceed, for
	// entries whose Native body always transfers control itself.
	jumper := func(name string, arity int, fn NativeFunc) {
		addr := a.emit(Instruction{Op: OpNativeCall, Native: fn, NativeID: fmt.Sprintf("%s/%d", name, arity)})
		reg(name, arity, addr)
	}

	// --- call/N trampoline (§4.5 argument-passing model, §4.8) ---------
	for extra := 0; extra <= 7; extra++ {
		jumper("call", extra+1, biCallN(extra))
	}

	// --- conjunction, disjunction, if-then, negation, exceptions --------
	jumper(",", 2, func(m *Machine) (bool, error) {
		left, right := m.Regs[1], m.Regs[2]
		cont, b0 := m.CP, m.B0
		rightAddr := m.emitNative(func(m *Machine) (bool, error) {
			return dispatchGoal(m, right, cont, b0)
		}, ",/2-right")
		return dispatchGoal(m, left, rightAddr, b0)
	})
	jumper(";", 2, func(m *Machine) (bool, error) {
		left, right := m.Regs[1], m.Regs[2]
		cont, b0 := m.CP, m.B0
		leftD := deref(m, left)
		if s, ok := leftD.(StrCell); ok {
			h := m.Heap[s.Addr].(HeaderCell)
			if h.Name == m.Core.Arrow && h.Arity == 2 {
				cond, then := binArgs(m, s)
				return ifThenElse(m, cond, then, &right, cont, b0)
			}
		}
		altAddr := m.emitNative(func(m *Machine) (bool, error) {
			// Last alternative: drop the choice point that led here, as
			// TrustMe does, so a later backtrack does not retry Else.
			prev := m.Or[m.B].B
			m.Or = m.Or[:m.B]
			m.B = prev
			m.HB = m.heapBarrierFor(m.B)
			return dispatchGoal(m, right, cont, b0)
		}, ";/2-else")
		m.pushChoicePoint(altAddr, 0)
		return dispatchGoal(m, left, cont, b0)
	})
	jumper("->", 2, func(m *Machine) (bool, error) {
		return ifThenElse(m, m.Regs[1], m.Regs[2], nil, m.CP, m.B0)
	})
	native("not", 1, biNot)
	native("\\+", 1, biNot)

	addrCatch := a.emit(Instruction{Op: OpNativeCall, Native: biCatch, NativeID: "catch/3"})
	a.emit(Instruction{Op: OpProceed})
	reg("catch", 3, addrCatch)

	native("throw", 1, func(m *Machine) (bool, error) {
		term := deref(m, m.Regs[1])
		if isRef(term) {
			return false, &EvalError{Term: instantiationError(m)}
		}
		m.throwTerm(term)
		m.nativeJumped = true
		return true, nil
	})

	// --- unification / term comparison ----------------------------------
	native("=", 2, biUnify)
	native("\\=", 2, biNotUnifiable)
	native("==", 2, biTermEqual)
	native("\\==", 2, biTermNotEqual)
	native("@<", 2, biStandardOrder("@<"))
	native("@>", 2, biStandardOrder("@>"))
	native("@=<", 2, biStandardOrder("@=<"))
	native("@>=", 2, biStandardOrder("@>="))
	native("=:=", 2, biArithCompare("=:="))
	native("=\\=", 2, biArithCompare("=\\="))
	native("<", 2, biArithCompare("<"))
	native(">", 2, biArithCompare(">"))
	native("=<", 2, biArithCompare("=<"))
	native(">=", 2, biArithCompare(">="))
	native("is", 2, biIs)
	native("compare", 3, biCompare3)

	// --- term inspection -------------------------------------------------
	native("functor", 3, biFunctor)
	native("arg", 3, biArg)
	native("=..", 2, biUniv)
	native("length", 2, biLength)
	native("duplicate_term", 2, biDuplicateTerm)
	native("copy_term", 2, biDuplicateTerm)
	native("sort", 2, biSort)
	native("keysort", 2, biKeysort)
	native("display", 1, biDisplay)

	// --- type tests --------------------------------------------------
	typeTest := func(name string, fn func(*Machine, Cell) bool) {
		native(name, 1, func(m *Machine) (bool, error) {
			return fn(m, deref(m, m.Regs[1])), nil
		})
	}
	typeTest("var", func(m *Machine, c Cell) bool { return isRef(c) })
	typeTest("nonvar", func(m *Machine, c Cell) bool { return !isRef(c) })
	typeTest("atom", func(m *Machine, c Cell) bool {
		cc, ok := c.(ConCell)
		if !ok {
			return false
		}
		switch cc.Value.(type) {
		case ConAtom, ConNil:
			return true
		default:
			return false
		}
	})
	typeTest("number", func(m *Machine, c Cell) bool {
		cc, ok := c.(ConCell)
		if !ok {
			return false
		}
		switch cc.Value.(type) {
		case ConInt, ConRat, ConFloat:
			return true
		default:
			return false
		}
	})
	typeTest("integer", func(m *Machine, c Cell) bool {
		cc, ok := c.(ConCell)
		if !ok {
			return false
		}
		_, ok = cc.Value.(ConInt)
		return ok
	})
	typeTest("float", func(m *Machine, c Cell) bool {
		cc, ok := c.(ConCell)
		if !ok {
			return false
		}
		_, ok = cc.Value.(ConFloat)
		return ok
	})
	typeTest("atomic", func(m *Machine, c Cell) bool {
		_, ok := c.(ConCell)
		return ok
	})
	typeTest("compound", func(m *Machine, c Cell) bool {
		switch c.(type) {
		case StrCell, LisCell:
			return true
		default:
			return false
		}
	})
	typeTest("callable", func(m *Machine, c Cell) bool {
		_, _, ok := functorOf(m, c)
		return ok
	})
	typeTest("is_list", func(m *Machine, c Cell) bool {
		_, ok := readList(m, c)
		return ok
	})
	typeTest("ground", func(m *Machine, c Cell) bool { return IsGround(m, c) })
	typeTest("acyclic_term", func(m *Machine, c Cell) bool { return IsAcyclic(m, c) })
	typeTest("cyclic_term", func(m *Machine, c Cell) bool { return !IsAcyclic(m, c) })

	// --- meta-predicates with call/cut-policy interaction ----------------
	native("setup_call_cleanup", 3, biSetupCallCleanup)
	native("call_with_inference_limit", 3, biCallWithInferenceLimit)

	addrTrue := a.emit(Instruction{Op: OpProceed})
	reg("true", 0, addrTrue)

	addrFail := a.emit(Instruction{Op: OpNativeCall, NativeID: "fail/0", Native: func(m *Machine) (bool, error) { return false, nil }})
	a.emit(Instruction{Op: OpProceed})
	reg("fail", 0, addrFail)
	reg("false", 0, addrFail)

	bt.code = a.code
	return bt
}

// readList walks a proper list, returning its elements and true, or false
// if c is not nil-terminated (a partial list or an improper tail).
func readList(m *Machine, c Cell) ([]Cell, bool) {
	var out []Cell
	for {
		c = deref(m, c)
		switch v := c.(type) {
		case ConCell:
			if _, ok := v.Value.(ConNil); ok {
				return out, true
			}
			return nil, false
		case LisCell:
			out = append(out, m.Heap[v.Addr])
			c = m.Heap[v.Addr+1]
		default:
			return nil, false
		}
	}
}

// buildList constructs a fresh proper list from elems on the heap.
func buildList(m *Machine, elems []Cell) Cell {
	tail := Cell(ConCell{Value: ConNil{}})
	for i := len(elems) - 1; i >= 0; i-- {
		addr, h, t := m.Heap.newList()
		m.Heap[h] = elems[i]
		m.Heap[t] = tail
		tail = LisCell{Addr: addr}
	}
	return tail
}

func biUnify(m *Machine) (bool, error) {
	return unify(m, m.Regs[1], m.Regs[2]), nil
}

// biNotUnifiable implements \=/2: it must leave no trace of the
// unification it attempted, whichever way the test comes out.
func biNotUnifiable(m *Machine) (bool, error) {
	trailMark := len(m.Trail)
	heapMark := len(m.Heap)
	// Raise the heap barrier so every binding of a pre-existing variable
	// is trailed and can be undone below.
	savedHB := m.HB
	m.HB = heapMark
	ok := unify(m, m.Regs[1], m.Regs[2])
	unwindTrail(m, trailMark, len(m.Trail))
	m.Trail = m.Trail[:trailMark]
	m.Heap = m.Heap[:heapMark]
	m.HB = savedHB
	m.Fail = false
	return !ok, nil
}

func biTermEqual(m *Machine) (bool, error) {
	return Compare(m, m.Regs[1], m.Regs[2]) == 0, nil
}

func biTermNotEqual(m *Machine) (bool, error) {
	return Compare(m, m.Regs[1], m.Regs[2]) != 0, nil
}

func biStandardOrder(op string) NativeFunc {
	return func(m *Machine) (bool, error) {
		c := Compare(m, m.Regs[1], m.Regs[2])
		switch op {
		case "@<":
			return c < 0, nil
		case "@>":
			return c > 0, nil
		case "@=<":
			return c <= 0, nil
		default: // "@>="
			return c >= 0, nil
		}
	}
}

func biArithCompare(op string) NativeFunc {
	return func(m *Machine) (bool, error) {
		a, err := m.Eval(m.Regs[1])
		if err != nil {
			return false, err
		}
		b, err := m.Eval(m.Regs[2])
		if err != nil {
			return false, err
		}
		c := CompareNumeric(a, b)
		switch op {
		case "=:=":
			return c == 0, nil
		case "=\\=":
			return c != 0, nil
		case "<":
			return c < 0, nil
		case ">":
			return c > 0, nil
		case "=<":
			return c <= 0, nil
		default: // ">="
			return c >= 0, nil
		}
	}
}

func biIs(m *Machine) (bool, error) {
	val, err := m.Eval(m.Regs[2])
	if err != nil {
		return false, err
	}
	return unify(m, m.Regs[1], ConCell{Value: val}), nil
}

func biCompare3(m *Machine) (bool, error) {
	c := Compare(m, m.Regs[2], m.Regs[3])
	var name string
	switch {
	case c < 0:
		name = "<"
	case c > 0:
		name = ">"
	default:
		name = "="
	}
	return unify(m, m.Regs[1], atomCell(m.Atoms.Intern(name))), nil
}

func biFunctor(m *Machine) (bool, error) {
	term := deref(m, m.Regs[1])
	if !isRef(term) {
		name, arity, ok := functorOf(m, term)
		if !ok {
			if cc, isCon := term.(ConCell); isCon {
				okName := unify(m, m.Regs[2], ConCell{Value: cc.Value})
				okArity := unify(m, m.Regs[3], ConCell{Value: ConInt{big.NewInt(0)}})
				return okName && okArity, nil
			}
			return false, &EvalError{Term: typeError(m, "callable", term)}
		}
		okArity := unify(m, m.Regs[3], ConCell{Value: ConInt{big.NewInt(int64(arity))}})
		okName := unify(m, m.Regs[2], atomCell(name))
		return okName && okArity, nil
	}

	nameC := deref(m, m.Regs[2])
	arityC := deref(m, m.Regs[3])
	arityCell, ok := arityC.(ConCell)
	if !ok {
		return false, &EvalError{Term: instantiationError(m)}
	}
	ai, ok := arityCell.Value.(ConInt)
	if !ok {
		return false, &EvalError{Term: typeError(m, "integer", arityC)}
	}
	n := int(ai.Int.Int64())
	if n == 0 {
		return unify(m, m.Regs[1], nameC), nil
	}
	nc, ok := nameC.(ConCell)
	if !ok {
		return false, &EvalError{Term: instantiationError(m)}
	}
	na, ok := nc.Value.(ConAtom)
	if !ok {
		return false, &EvalError{Term: typeError(m, "atom", nameC)}
	}
	header, _ := m.Heap.newStructure(Atom(na), n)
	return unify(m, m.Regs[1], StrCell{Addr: header}), nil
}

func biArg(m *Machine) (bool, error) {
	nC := deref(m, m.Regs[1])
	nc, ok := nC.(ConCell)
	if !ok {
		return false, &EvalError{Term: instantiationError(m)}
	}
	ni, ok := nc.Value.(ConInt)
	if !ok {
		return false, &EvalError{Term: typeError(m, "integer", nC)}
	}
	n := int(ni.Int.Int64())
	term := deref(m, m.Regs[2])
	s, ok := term.(StrCell)
	if !ok {
		return false, &EvalError{Term: typeError(m, "compound", term)}
	}
	h := m.Heap[s.Addr].(HeaderCell)
	if n < 1 || n > h.Arity {
		return false, nil
	}
	return unify(m, m.Regs[3], m.Heap[s.Addr+n]), nil
}

func biUniv(m *Machine) (bool, error) {
	term := deref(m, m.Regs[1])
	if !isRef(term) {
		var elems []Cell
		switch v := term.(type) {
		case ConCell:
			elems = []Cell{ConCell{Value: v.Value}}
		case StrCell:
			h := m.Heap[v.Addr].(HeaderCell)
			elems = append(elems, atomCell(h.Name))
			for i := 0; i < h.Arity; i++ {
				elems = append(elems, m.Heap[v.Addr+1+i])
			}
		case LisCell:
			elems = append(elems, atomCell(m.Core.Dot), m.Heap[v.Addr], m.Heap[v.Addr+1])
		default:
			return false, &EvalError{Term: typeError(m, "callable", term)}
		}
		return unify(m, m.Regs[2], buildList(m, elems)), nil
	}

	elems, ok := readList(m, m.Regs[2])
	if !ok || len(elems) == 0 {
		return false, &EvalError{Term: instantiationError(m)}
	}
	if len(elems) == 1 {
		return unify(m, m.Regs[1], elems[0]), nil
	}
	head := deref(m, elems[0])
	hc, ok := head.(ConCell)
	if !ok {
		return false, &EvalError{Term: typeError(m, "atom", head)}
	}
	na, ok := hc.Value.(ConAtom)
	if !ok {
		return false, &EvalError{Term: typeError(m, "atom", head)}
	}
	arity := len(elems) - 1
	header, args := m.Heap.newStructure(Atom(na), arity)
	for i := 0; i < arity; i++ {
		m.Heap[args[i]] = elems[i+1]
	}
	return unify(m, m.Regs[1], StrCell{Addr: header}), nil
}

func biLength(m *Machine) (bool, error) {
	listArg := deref(m, m.Regs[1])
	lenArg := deref(m, m.Regs[2])
	if elems, ok := readList(m, listArg); ok {
		return unify(m, lenArg, ConCell{Value: ConInt{big.NewInt(int64(len(elems)))}}), nil
	}
	if isRef(listArg) {
		lv, ok := lenArg.(ConCell)
		if !ok {
			return false, &EvalError{Term: instantiationError(m)}
		}
		li, ok := lv.Value.(ConInt)
		if !ok {
			return false, &EvalError{Term: typeError(m, "integer", lenArg)}
		}
		n := int(li.Int.Int64())
		if n < 0 {
			return false, nil
		}
		vars := make([]Cell, n)
		for i := range vars {
			vars[i] = RefCell{Addr: m.Heap.newRef()}
		}
		return unify(m, listArg, buildList(m, vars)), nil
	}
	return false, &EvalError{Term: typeError(m, "list", listArg)}
}

func biDuplicateTerm(m *Machine) (bool, error) {
	dup := m.DuplicateTerm(m.Regs[1])
	return unify(m, m.Regs[2], dup), nil
}

func biSort(m *Machine) (bool, error) {
	elems, ok := readList(m, m.Regs[1])
	if !ok {
		return false, &EvalError{Term: typeError(m, "list", m.Regs[1])}
	}
	sorted := make([]Cell, len(elems))
	copy(sorted, elems)
	sort.Slice(sorted, func(i, j int) bool { return Compare(m, sorted[i], sorted[j]) < 0 })
	deduped := sorted[:0:0]
	for i, e := range sorted {
		if i == 0 || Compare(m, sorted[i-1], e) != 0 {
			deduped = append(deduped, e)
		}
	}
	return unify(m, m.Regs[2], buildList(m, deduped)), nil
}

func biKeysort(m *Machine) (bool, error) {
	elems, ok := readList(m, m.Regs[1])
	if !ok {
		return false, &EvalError{Term: typeError(m, "list", m.Regs[1])}
	}
	keyOf := func(c Cell) Cell {
		s, ok := deref(m, c).(StrCell)
		if !ok {
			return c
		}
		return m.Heap[s.Addr+1]
	}
	sorted := make([]Cell, len(elems))
	copy(sorted, elems)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Compare(m, keyOf(sorted[i]), keyOf(sorted[j])) < 0
	})
	return unify(m, m.Regs[2], buildList(m, sorted)), nil
}

func biDisplay(m *Machine) (bool, error) {
	fmt.Fprint(m.Out, writeTerm(m, m.Regs[1]))
	return true, nil
}

// writeTerm is a minimal, non-operator-aware term writer — just enough for
// display/1 (§6: anything richer belongs to an external printer
// collaborator, out of scope per spec.md §1).
func writeTerm(m *Machine, c Cell) string {
	c = deref(m, c)
	switch v := c.(type) {
	case RefCell, StackRefCell:
		return c.String()
	case ConCell:
		if a, ok := v.Value.(ConAtom); ok {
			return m.Atoms.Name(Atom(a))
		}
		return v.Value.String()
	case LisCell:
		if elems, ok := readList(m, c); ok {
			parts := make([]string, len(elems))
			for i, e := range elems {
				parts[i] = writeTerm(m, e)
			}
			return "[" + strings.Join(parts, ",") + "]"
		}
		return fmt.Sprintf("'.'(%s,%s)", writeTerm(m, m.Heap[v.Addr]), writeTerm(m, m.Heap[v.Addr+1]))
	case StrCell:
		h := m.Heap[v.Addr].(HeaderCell)
		parts := make([]string, h.Arity)
		for i := range parts {
			parts[i] = writeTerm(m, m.Heap[v.Addr+1+i])
		}
		return m.Atoms.Name(h.Name) + "(" + strings.Join(parts, ",") + ")"
	default:
		return c.String()
	}
}
