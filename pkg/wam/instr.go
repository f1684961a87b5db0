package wam

// CodePtr addresses a single Instruction in Code. Code is append-only and
// loaded once at machine construction (the builtin program) plus whatever
// a caller assembles afterward (asm.go) — there is no code garbage
// collection.
type CodePtr int

// Code is the flat instruction memory the interpreter fetches from. Clause
// bodies, choice-point retry chains, and the builtin program all live in
// the same address space so CALL/EXECUTE never need to distinguish them.
type Code []Instruction

// OpCode names one instruction family from §4.5. Families are grouped the
// way the section lists them: fact (get/unify), query/set (put), control
// (call/execute/proceed/allocate/deallocate), choice
// (try/retry/trust-me-else and their indexed variants), indexing
// (switch_on_term and friends), cut, exception, and the machine-specific
// NativeCall used by the hybrid builtin program (§4.8 of SPEC_FULL.md),
// which also carries the type checks and arithmetic comparisons.
type OpCode int

const (
	OpNoop OpCode = iota

	// Fact / unification instructions — operate against Regs[n] in either
	// ModeRead or ModeWrite depending on what the argument already holds.
	OpGetStructure
	OpGetList
	OpGetConstant
	OpGetVariable
	OpGetValue
	OpUnifyVariable
	OpUnifyValue
	OpUnifyConstant
	OpUnifyVoid

	// Query / set instructions — build or pass the arguments of the next
	// call.
	OpPutStructure
	OpPutList
	OpPutConstant
	OpPutVariable
	OpPutValue
	OpPutUnsafeValue
	OpSetVariable
	OpSetValue
	OpSetConstant
	OpSetVoid

	// Control instructions.
	OpCall
	OpExecute
	OpProceed
	OpAllocate
	OpDeallocate

	// OpGetYVariable/OpPutYValue move a value between argument register
	// Reg and permanent-variable slot N of the current environment,
	// exactly like the X-register Get/PutVariable forms but addressing Y
	// registers. The builtin program does not emit them: its control
	// constructs (,/2, ;/2, ->/2) are NativeCall entries that keep the
	// later goal in a Go closure instead.
	OpGetYVariable
	OpPutYValue

	// Choice instructions.
	OpTryMeElse
	OpRetryMeElse
	OpTrustMe
	OpTry
	OpRetry
	OpTrust

	// Indexing instructions.
	OpSwitchOnTerm
	OpSwitchOnConstant
	OpSwitchOnStructure

	// Cut instructions.
	OpNeckCut
	OpGetLevel
	OpCutTo

	// Exception instructions (§4.7). InstallNewBlock/CleanUpBlock push and
	// pop a BlockFrame; GetBall materializes the current Ball onto the heap
	// into Reg. The builtin catch/3 (biCatch) does not use them: it pushes
	// and pops its BlockFrame directly in Go.
	OpInstallNewBlock
	OpCleanUpBlock
	OpGetBall

	// The type-check family (var/1, atom/1, ...), =/2, ==/2, is/2, and the
	// arithmetic comparisons are not separate opcodes: §4.8 of
	// SPEC_FULL.md's hybrid builtin-program design resolves them as
	// NativeCall entries (builtins.go) rather than dedicated inlined
	// instructions, the same way functor/3 and sort/2 are — one dispatch
	// mechanism for every builtin whose logic is easier to express in Go
	// than as a hand-assembled instruction sequence.

	// NativeCall dispatches into a Go closure registered in the
	// BuiltinTable (§4.8's hybrid design) instead of continuing the fetch
	// loop at another CodePtr. Used for builtins whose logic is easier to
	// express as Go (functor/3, sort/2, the arithmetic dispatcher's
	// evaluation of is/2's right-hand side, ...) than as a hand-written
	// instruction sequence.
	OpNativeCall

	// Halt stops the interpreter loop outright (used only by the top-level
	// query driver, never by clause bodies).
	OpHalt
)

// Instruction is one fetched-and-decoded machine word. Not every field is
// meaningful for every Op; the per-field comments below and the
// interpreter (interp.go) show which fields each Op actually reads.
type Instruction struct {
	Op OpCode

	Reg  int   // argument/permanent-variable register index
	Reg2 int   // second register, for Get/Put/SetValue-style two-operand forms
	N    int   // arity, permanent-variable count, or numeric literal depending on Op
	Atom Atom  // functor/constant name, when Op addresses one
	Con  Const // immediate constant payload, for *Constant ops

	Alt    CodePtr // alternate clause address, for choice instructions
	Target CodePtr // jump target, for Call/Execute/switch-table default

	Table map[Atom]CodePtr // SwitchOnConstant/SwitchOnStructure dispatch table, keyed by name (and, for structures, folded with arity via atomArityKey)
	NoVar CodePtr          // SwitchOnTerm: where to go when Regs[Reg] is a variable
	NoCon CodePtr          // SwitchOnTerm: where to go when Regs[Reg] is a constant
	NoLis CodePtr          // SwitchOnTerm: where to go when Regs[Reg] is a list
	NoStr CodePtr          // SwitchOnTerm: where to go when Regs[Reg] is a structure

	Native   NativeFunc // OpNativeCall target
	NativeID string     // name the native was registered under, for Trace/error reporting
}

// NativeFunc is a Go-implemented builtin. It inspects/mutates m directly
// (typically its Regs, via deref/unify/Eval) and returns false to signal
// failure (the caller should backtrack exactly as on any other
// instruction failure); a non-nil error is treated as a thrown exception
// via *EvalError-style wrapping (throwTerm wraps it into m.Ball and
// unwinds, §4.6/§4.7).
type NativeFunc func(m *Machine) (bool, error)

// atomArityKey packs a functor name and arity into one map key for
// SwitchOnStructure's dispatch table, since two structures can share a
// name but differ in arity (e.g. foo/1 vs foo/2).
func atomArityKey(name Atom, arity int) Atom {
	return Atom(uint32(name)<<8 | uint32(arity&0xff))
}
