package wam

// CallPolicy and CutPolicy are the two capability interfaces the
// interpreter consults around every goal dispatch (§4.6). They exist so
// that setup_call_cleanup/3 and call_with_inference_limit/3 — both
// meta-predicates that need to observe the machine's control flow rather
// than just manipulate terms — can be implemented as ordinary NativeCall
// closures (builtins.go) that temporarily install a non-default policy
// for the duration of one nested Run, instead of hard-wiring their
// bookkeeping into the dispatch loop itself.
//
// Only one CallPolicy and one CutPolicy are active at a time; nesting
// (e.g. an inference-limited call inside a setup_call_cleanup goal) is
// handled by each builtin saving and restoring the previously-installed
// policy around its own nested Run, the way the teacher's context_utils.go
// saves and restores a parent context.Context.

// CallPolicy observes every instruction dispatch while installed. The
// default policy never objects; InferenceLimitPolicy turns this into a
// resource budget.
type CallPolicy interface {
	// Tick runs immediately before the interpreter executes the next
	// instruction. A non-nil return value is thrown as an exception,
	// aborting the goal the policy was installed for.
	Tick(m *Machine) error
}

// DefaultCallPolicy imposes no resource limits.
type DefaultCallPolicy struct{}

// Tick implements CallPolicy.
func (DefaultCallPolicy) Tick(m *Machine) error { return nil }

// InferenceLimitPolicy aborts with inference_limit_exceeded once more than
// Limit instructions have been dispatched under it, implementing
// call_with_inference_limit/3 (§4.6, §9 Testable Properties).
type InferenceLimitPolicy struct {
	Limit uint64
	count uint64
}

// Tick implements CallPolicy.
func (p *InferenceLimitPolicy) Tick(m *Machine) error {
	p.count++
	if p.count > p.Limit {
		return &EvalError{Term: inferenceLimitExceeded(m)}
	}
	return nil
}

// Count reports the number of instructions this policy has observed so
// far, exposed for call_with_inference_limit/3's third argument.
func (p *InferenceLimitPolicy) Count() uint64 { return p.count }

// CutExit enumerates how a goal under a CutPolicy finished, so the policy
// can decide whether a registered cleanup obligation fires.
type CutExit int

const (
	// ExitSuccessDet: the goal succeeded with no remaining choice points
	// at or above the registration barrier.
	ExitSuccessDet CutExit = iota
	// ExitSuccessNondet: the goal succeeded but left a choice point behind.
	ExitSuccessNondet
	// ExitFail: the goal failed and backtracked past the registration
	// barrier.
	ExitFail
	// ExitException: the goal threw.
	ExitException
	// ExitCut: a cut pruned the registration barrier's choice point
	// directly (e.g. the caller committed with !).
	ExitCut
)

// CutPolicy is notified once, at most, per registered obligation, when the
// goal it was registered for stops being retriable — implementing
// setup_call_cleanup/3's "Cleanup is called exactly once, as soon as it
// is known that no choice points remain in Goal" (§4.6).
type CutPolicy interface {
	// Register records cleanup to run when the choice point at barrier b0
	// is abandoned (cut through, exhausted by backtracking, or the goal
	// throws/succeeds deterministically). It returns a token that Notify
	// uses to fire at most once.
	Register(b0 int, cleanup func(m *Machine)) int
	// Notify reports that the obligation registered under token finished
	// with the given CutExit, running its cleanup exactly once regardless
	// of how many times Notify is called for the same token.
	Notify(m *Machine, token int, how CutExit)
	// NotifyCutTo is called by the interpreter's Cut/NeckCut instructions
	// (§4.5) whenever the OR-stack is pruned back to newB, so that any
	// obligation registered above that barrier fires with ExitCut — this
	// is how a bare "!" inside (or after) a setup_call_cleanup/3 goal
	// triggers its cleanup without the cut instructions themselves knowing
	// anything about cleanup bookkeeping.
	NotifyCutTo(m *Machine, newB int)
}

// DefaultCutPolicy runs every registered cleanup the first time Notify is
// called for its token and ignores registrations with no installed
// machinery otherwise — the ordinary, unlimited case where
// setup_call_cleanup/3 is not nested inside another cleanup scope.
type DefaultCutPolicy struct {
	obligations []cutObligation
}

type cutObligation struct {
	b0      int
	fn      func(m *Machine)
	fired   bool
}

// Register implements CutPolicy.
func (p *DefaultCutPolicy) Register(b0 int, cleanup func(m *Machine)) int {
	p.obligations = append(p.obligations, cutObligation{b0: b0, fn: cleanup})
	return len(p.obligations) - 1
}

// Notify implements CutPolicy.
func (p *DefaultCutPolicy) Notify(m *Machine, token int, how CutExit) {
	if token < 0 || token >= len(p.obligations) {
		return
	}
	ob := &p.obligations[token]
	if ob.fired {
		return
	}
	ob.fired = true
	ob.fn(m)
}

// NotifyCutTo implements CutPolicy: any obligation registered at a barrier
// above newB is being pruned away by this cut, so it fires now with
// ExitCut rather than waiting for a Notify call that will never come
// (the choice point it was watching no longer exists).
func (p *DefaultCutPolicy) NotifyCutTo(m *Machine, newB int) {
	for i := range p.obligations {
		ob := &p.obligations[i]
		if !ob.fired && ob.b0 > newB {
			ob.fired = true
			ob.fn(m)
		}
	}
}
