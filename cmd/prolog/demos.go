package main

import "github.com/gitrdm/gowam/pkg/wam"

// namedVar pairs a variable the CLI wants reported in an answer line with
// the label it should be printed under.
type namedVar struct {
	name string
	cell wam.Cell
}

// demo is one pre-registered program this CLI knows how to run, selected
// by name from the REPL or -f/--file (§6: no real parser means queries
// can't be read as arbitrary Prolog text, so the CLI's "query" surface is
// this fixed registry instead). build constructs a fresh goal term (and
// the variables whose bindings are worth reporting) against m's current,
// just-Reset heap.
type demo struct {
	doc   string
	build func(m *wam.Machine) (goal wam.Cell, report []namedVar)
}

// buildDemos registers append/3 as a real compiled predicate (Assembler +
// LoadClauses, exercising choice/recursion the way a compiler would) and returns the fixed name -> demo table covering SPEC_FULL.md
// §8's end-to-end scenarios. Compiled-clause registration happens once,
// here, against m's Code/Predicates tables, which Reset never clears.
func buildDemos(m *wam.Machine) map[string]demo {
	defineAppend(m)

	return map[string]demo{
		"arithmetic": {
			doc: "?- 1 + 2 =:= 3.  (§8 scenario 1)",
			build: func(m *wam.Machine) (wam.Cell, []namedVar) {
				sum := m.NewStruct("+", m.NewInt(1), m.NewInt(2))
				return m.NewStruct("=:=", sum, m.NewInt(3)), nil
			},
		},
		"length": {
			doc: "?- length(L, 3).  (§8 scenario 2)",
			build: func(m *wam.Machine) (wam.Cell, []namedVar) {
				l := m.NewVar()
				return m.NewStruct("length", l, m.NewInt(3)), []namedVar{{"L", l}}
			},
		},
		"append": {
			doc: "?- append([1,2],[3,4],X).",
			build: func(m *wam.Machine) (wam.Cell, []namedVar) {
				a := m.NewList(m.NewInt(1), m.NewInt(2))
				b := m.NewList(m.NewInt(3), m.NewInt(4))
				x := m.NewVar()
				return m.NewStruct("append", a, b, x), []namedVar{{"X", x}}
			},
		},
		"append_backwards": {
			doc: "?- append(X, [3,4], [1,2,3,4]).  (recursion + choice points)",
			build: func(m *wam.Machine) (wam.Cell, []namedVar) {
				x := m.NewVar()
				b := m.NewList(m.NewInt(3), m.NewInt(4))
				whole := m.NewList(m.NewInt(1), m.NewInt(2), m.NewInt(3), m.NewInt(4))
				return m.NewStruct("append", x, b, whole), []namedVar{{"X", x}}
			},
		},
		"sort": {
			doc: "?- sort([3,1,2,1], L).  (§8 'strictly increasing, deduplicated')",
			build: func(m *wam.Machine) (wam.Cell, []namedVar) {
				in := m.NewList(m.NewInt(3), m.NewInt(1), m.NewInt(2), m.NewInt(1))
				l := m.NewVar()
				return m.NewStruct("sort", in, l), []namedVar{{"L", l}}
			},
		},
		"catch": {
			doc: "?- catch(throw(oops(1)), oops(X), true).  (§8 scenario 6)",
			build: func(m *wam.Machine) (wam.Cell, []namedVar) {
				x := m.NewVar()
				goal := m.NewStruct("throw", m.NewStruct("oops", m.NewInt(1)))
				catcher := m.NewStruct("oops", x)
				return m.NewStruct("catch", goal, catcher, m.NewAtom("true")), []namedVar{{"X", x}}
			},
		},
		"if_then_else": {
			doc: "?- ( 1 =:= 2 -> X = left ; X = right ).",
			build: func(m *wam.Machine) (wam.Cell, []namedVar) {
				x := m.NewVar()
				cond := m.NewStruct("=:=", m.NewInt(1), m.NewInt(2))
				then := m.NewStruct("=", x, m.NewAtom("left"))
				els := m.NewStruct("=", x, m.NewAtom("right"))
				ite := m.NewStruct(";", m.NewStruct("->", cond, then), els)
				return ite, []namedVar{{"X", x}}
			},
		},
		"not": {
			doc: "?- \\+ ( 1 =:= 2 ).",
			build: func(m *wam.Machine) (wam.Cell, []namedVar) {
				return m.NewStruct("\\+", m.NewStruct("=:=", m.NewInt(1), m.NewInt(2))), nil
			},
		},
		"inference_limit": {
			doc: "?- call_with_inference_limit(append([1,2],[3,4],X), 0, R).  (§8 scenario 7)",
			build: func(m *wam.Machine) (wam.Cell, []namedVar) {
				x, r := m.NewVar(), m.NewVar()
				goal := m.NewStruct("append", m.NewList(m.NewInt(1), m.NewInt(2)), m.NewList(m.NewInt(3), m.NewInt(4)), x)
				return m.NewStruct("call_with_inference_limit", goal, m.NewInt(0), r), []namedVar{{"R", r}}
			},
		},
		"setup_call_cleanup": {
			doc: "?- setup_call_cleanup(X=setup, X=setup, Y=cleaned).  (§8 scenario 8)",
			build: func(m *wam.Machine) (wam.Cell, []namedVar) {
				x, y := m.NewVar(), m.NewVar()
				setup := m.NewStruct("=", x, m.NewAtom("setup"))
				goal := m.NewStruct("=", x, m.NewAtom("setup"))
				cleanup := m.NewStruct("=", y, m.NewAtom("cleaned"))
				return m.NewStruct("setup_call_cleanup", setup, goal, cleanup), []namedVar{{"X", x}, {"Y", y}}
			},
		},
		"functor": {
			doc: "?- functor(foo(a,b,c), N, A).",
			build: func(m *wam.Machine) (wam.Cell, []namedVar) {
				n, a := m.NewVar(), m.NewVar()
				t := m.NewStruct("foo", m.NewAtom("a"), m.NewAtom("b"), m.NewAtom("c"))
				return m.NewStruct("functor", t, n, a), []namedVar{{"N", n}, {"A", a}}
			},
		},
	}
}

// defineAppend hand-assembles append/3 as two clauses:
//
//	append([], L, L).
//	append([H|T], L, [H|R]) :- append(T, L, R).
//
// using real Execute/TryMeElse/TrustMe/GetList/PutValue instructions
// (pkg/wam's Assembler), the same shape a real compiler's code generator
// would produce for this predicate — demonstrating a TryMeElse/TrustMe
// choice between the clauses and last-call tail recursion without a
// parser. No switch instruction indexes on the first argument.
func defineAppend(m *wam.Machine) {
	a := &wam.Assembler{}

	tryAddr := a.Emit(wam.Instruction{Op: wam.OpTryMeElse, N: 3})

	// Clause 1: append([], L, L).
	a.Emit(wam.Instruction{Op: wam.OpGetConstant, Reg: 1, Con: wam.ConNil{}})
	a.Emit(wam.Instruction{Op: wam.OpGetValue, Reg: 2, Reg2: 3})
	a.Emit(wam.Instruction{Op: wam.OpProceed})

	trustAddr := a.Emit(wam.Instruction{Op: wam.OpTrustMe})
	a.PatchAlt(tryAddr, trustAddr)

	// Clause 2: append([H|T], L, [H|R]) :- append(T, L, R).
	a.Emit(wam.Instruction{Op: wam.OpGetList, Reg: 1})
	a.Emit(wam.Instruction{Op: wam.OpUnifyVariable, Reg: 4}) // H
	a.Emit(wam.Instruction{Op: wam.OpUnifyVariable, Reg: 5}) // T
	a.Emit(wam.Instruction{Op: wam.OpGetList, Reg: 3})
	a.Emit(wam.Instruction{Op: wam.OpUnifyValue, Reg: 4})    // first elem of Reg3 must be H
	a.Emit(wam.Instruction{Op: wam.OpUnifyVariable, Reg: 6}) // R
	a.Emit(wam.Instruction{Op: wam.OpPutValue, Reg: 1, Reg2: 5})
	a.Emit(wam.Instruction{Op: wam.OpPutValue, Reg: 3, Reg2: 6})
	a.Emit(wam.Instruction{Op: wam.OpExecute, Target: tryAddr}) // tail call back to the entry point

	base := m.LoadClauses(a)
	m.Predicates.Define(m.Atoms.Intern("append"), 3, base)
}
