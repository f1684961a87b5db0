package wam

import (
	"fmt"
	"io"
	"os"
)

// MaxArgRegs is the number of argument registers (§4.5): 64 total, of
// which up to MaxCallArity are addressable by call/N — one register is
// reserved for the callable itself.
const (
	MaxArgRegs   = 64
	MaxCallArity = 62
)

// Mode is the fact-instruction state machine mode (§4.5): Read when
// matching against an already-bound structure/list, Write when building a
// fresh skeleton for an unbound argument.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

// Frame is a permanent-variable environment pushed by Allocate and popped
// by Deallocate (§3 "Environment (AND) stack").
type Frame struct {
	CP   CodePtr // continuation to resume after the clause returns
	E    int     // previous environment index
	GI   uint64  // global-index timestamp at allocation time
	Perm []Cell  // permanent variable slots
}

// ChoicePoint is a rollback snapshot pushed by TryMeElse/Try and friends
// (§3 "Choice-point (OR) stack").
type ChoicePoint struct {
	E    int      // environment index to restore
	CP   CodePtr  // continuation to restore
	B    int      // previous choice point index
	BP   CodePtr  // next alternative clause
	TR   int      // trail size at choice point creation
	H    int      // heap size at choice point creation
	B0   int      // cut barrier inherited by the retried clause
	Args []Cell   // saved registers Regs[0..arity] (arguments in 1..arity)
	GI   uint64   // global-index timestamp at choice point creation
}

// TrailKind distinguishes a heap-resident binding from a permanent
// (stack) variable binding recorded on the trail.
type TrailKind int

const (
	TrailHeap TrailKind = iota
	TrailStack
)

// TrailEntry is one undo record (§3 "Trail").
type TrailEntry struct {
	Kind  TrailKind
	Heap  int // valid when Kind == TrailHeap
	Frame int // valid when Kind == TrailStack
	Slot  int
}

// Ball holds the last thrown exception term, deep-copied off-heap by the
// copier so it survives the OR-stack unwind that follows (§3 "Ball").
type Ball struct {
	OriginAddr int
	Cells      []Cell // copied cells, addressed relative to OriginAddr
}

// Empty reports whether no exception is currently in flight.
func (b Ball) Empty() bool { return b.Cells == nil }

// BlockFrame is one catch/3 boundary (§4.7): a snapshot of everything
// throw/1 needs to rewind to before transferring control to the handler,
// plus the handler's own entry point. catch/3 pushes one before calling
// Goal and pops it once Goal has succeeded and the catch is no longer
// reachable by a later throw (InstallNewBlock/CleanUpBlock do the same
// from instruction code).
type BlockFrame struct {
	B       int     // choice point index at catch/3 entry
	TR      int     // trail size at entry
	H       int     // heap size at entry
	E       int     // environment index at entry
	CP      CodePtr // continuation at entry
	Handler CodePtr // where throw/1 transfers control for this frame
}

// NumInterms is the size of the small fixed array of evaluated
// intermediate arithmetic values addressable by instruction operands
// (§3 "Interms").
const NumInterms = 16

// Machine is the whole abstract-machine state: heap, stacks, trail,
// registers, and the installed choice/cut policies (§3, §4.6). The zero
// Machine is not usable; construct one with NewMachine.
type Machine struct {
	Heap  Heap
	And   []Frame
	Or    []ChoicePoint
	Trail []TrailEntry

	Regs    [MaxArgRegs]Cell
	Interms [NumInterms]Const

	E  int // current environment index, -1 if none
	B  int // current choice point index, -1 if none
	HB int // heap barrier: Heap size captured by the current choice point
	B0 int // cut barrier inherited on predicate entry

	CP CodePtr // continuation program counter
	P  CodePtr // program counter

	Mode Mode
	S    int // structure/list read pointer while Mode == ModeRead

	Fail   bool
	Halted bool

	Ball   Ball
	Blocks []BlockFrame // catch/3 boundary stack (§4.7); innermost is Blocks[len-1]

	GlobalIndex uint64

	CallPolicy CallPolicy
	CutPolicy  CutPolicy

	// Out is where display/1 writes (§6: "Prolog-level I/O beyond
	// display/1" is a non-goal, but display/1 itself is in scope).
	Out io.Writer

	Atoms      *AtomTable
	Core       *coreAtoms
	Code       Code
	Builtins   *BuiltinTable
	Predicates *PredicateTable

	// nativeJumped is set by a NativeFunc (builtins.go's call/N trampoline)
	// that has already transferred control by writing m.P directly, so
	// step's trailing m.P++ must not also fire.
	nativeJumped bool

	// Trace, if non-nil, is invoked before every instruction is executed.
	// It is the machine's only observability hook (§1.1 of SPEC_FULL.md),
	// grounded on other_examples's axone-protocol-prolog HookFunc.
	Trace func(pc CodePtr, instr Instruction, m *Machine)
}

// Option configures a Machine at construction time.
type Option func(*Machine)

// WithTrace installs an instruction trace hook.
func WithTrace(f func(pc CodePtr, instr Instruction, m *Machine)) Option {
	return func(m *Machine) { m.Trace = f }
}

// WithAtomTable shares an existing AtomTable instead of creating a fresh
// one. Atom tables are the one piece of state §5 allows to be shared
// across machines.
func WithAtomTable(t *AtomTable) Option {
	return func(m *Machine) { m.Atoms = t }
}

// WithOutput redirects display/1 output away from os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(m *Machine) { m.Out = w }
}

// NewMachine returns a fresh machine with empty heap/stacks/trail, the
// default call/cut policies installed, and the builtin bytecode program
// loaded at the low end of Code (§4.8: "builtins occupy the lowest
// addresses").
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		E: -1,
		B: -1,
	}
	for _, o := range opts {
		o(m)
	}
	if m.Atoms == nil {
		m.Atoms = NewAtomTable()
	}
	if m.Out == nil {
		m.Out = os.Stdout
	}
	m.Core = m.Atoms.CoreAtoms()
	m.CallPolicy = DefaultCallPolicy{}
	m.CutPolicy = &DefaultCutPolicy{}
	m.Builtins = newBuiltinTable(m)
	m.Code = m.Builtins.code
	m.Predicates = NewPredicateTable()
	return m
}

// Reset restores the machine to its freshly-constructed state while
// keeping the loaded Code and atom table, so a CLI REPL (cmd/prolog) can
// run one query after another without re-loading the builtin program.
func (m *Machine) Reset() {
	m.Heap = m.Heap[:0]
	m.And = m.And[:0]
	m.Or = m.Or[:0]
	m.Trail = m.Trail[:0]
	m.Regs = [MaxArgRegs]Cell{}
	m.Interms = [NumInterms]Const{}
	m.E = -1
	m.B = -1
	m.HB = 0
	m.B0 = 0
	m.CP = 0
	m.P = 0
	m.Mode = ModeRead
	m.S = 0
	m.Fail = false
	m.Halted = false
	m.Ball = Ball{}
	m.Blocks = m.Blocks[:0]
	m.GlobalIndex = 0
	m.CallPolicy = DefaultCallPolicy{}
	m.CutPolicy = &DefaultCutPolicy{}
}

// currentGI returns the choice point's global-index at B, or the
// machine's current global index when there is no choice point — used by
// the conditional-binding test for permanent variables (§4.1).
func (m *Machine) currentGI() uint64 {
	if m.B < 0 {
		return m.GlobalIndex
	}
	return m.Or[m.B].GI
}

// String renders a compact snapshot, useful in test failure messages.
func (m *Machine) String() string {
	return fmt.Sprintf("Machine{heap=%d and=%d or=%d trail=%d e=%d b=%d p=%d fail=%v}",
		len(m.Heap), len(m.And), len(m.Or), len(m.Trail), m.E, m.B, m.P, m.Fail)
}
