package wam

import "math/big"

// This file implements goal dispatch — the machinery that turns a Prolog
// term sitting in a register into a transfer of control, the way a real
// compiler's call-site code would, except the target is resolved at
// dispatch time instead of compile time (§4.8's hybrid design: there is no
// compiler, so ,/2, ;/2, ->/2, call/N and friends all bottom out here).
//
// dispatchGoal is the only place that turns a callable term into a jump:
// every control construct — whether reached through call/N's trampoline,
// through another dispatchGoal call carrying a conjunction's continuation,
// or through catch/3's nested solve — ends up calling it. Because it is
// also how ,/2 and ;/2 themselves are entered (they are ordinary
// registered builtins, found by the same resolveCallable lookup as any
// user predicate), a goal's cut barrier is threaded through as an ordinary
// parameter rather than reset on every dispatch: resolveCallable's caller
// decides whether the dispatch is cut-opaque (call/N, a fresh m.B) or
// cut-transparent (,/2 and ;/2 passing their own inherited B0 down to
// their operands), matching ISO's cut-transparency rules for control
// constructs versus cut-opacity for call/1.

// emitNative appends a NativeCall instruction to the live code vector and
// returns its address. Used to manufacture a one-off continuation or
// alternative at dispatch time — e.g. ,/2's right-hand side, or ;/2's else
// branch — since Code has no call-by-closure mechanism of its own and a
// choice point's retry address (ChoicePoint.BP) must name a real
// instruction for backtrackTo to resume at.
func (m *Machine) emitNative(fn NativeFunc, id string) CodePtr {
	addr := CodePtr(len(m.Code))
	m.Code = append(m.Code, Instruction{Op: OpNativeCall, Native: fn, NativeID: id})
	return addr
}

// dispatchGoal resolves goal's functor/arity, copies its arguments into
// Regs[1:], and transfers control to its entry point with continuation
// cont and cut barrier b0. It returns once control has been transferred
// (nativeJumped is left set so the caller's OpNativeCall case does not
// also advance P) or with a Prolog-shaped error if goal cannot be
// dispatched at all (unbound, not callable, or undefined).
func dispatchGoal(m *Machine, goal Cell, cont CodePtr, b0 int) (bool, error) {
	goal = deref(m, goal)
	if isRef(goal) {
		return false, &EvalError{Term: instantiationError(m)}
	}
	name, arity, ok := functorOf(m, goal)
	if !ok {
		return false, &EvalError{Term: typeError(m, "callable", goal)}
	}
	addr, ok := m.resolveCallable(name, arity)
	if !ok {
		return false, &EvalError{Term: existenceError(m, "procedure", indicatorTerm(m, name, arity))}
	}
	if arity > 0 {
		s := goal.(StrCell)
		for i := 0; i < arity; i++ {
			m.Regs[i+1] = m.Heap[s.Addr+1+i]
		}
	}
	m.CP = cont
	m.B0 = b0
	m.P = addr
	m.nativeJumped = true
	return true, nil
}

// binArgs reads the two argument cells of a known-arity-2 structure.
func binArgs(m *Machine, s StrCell) (Cell, Cell) {
	return m.Heap[s.Addr+1], m.Heap[s.Addr+2]
}

// extendGoal builds the term call/N actually dispatches: base's functor
// applied to its own arguments followed by extra (§4.5's call/N
// argument-passing model). base with zero extra arguments is returned
// unchanged — call/1 never needs to allocate a new structure.
func extendGoal(m *Machine, base Cell, extra []Cell) (Cell, error) {
	base = deref(m, base)
	if len(extra) == 0 {
		return base, nil
	}
	name, arity, ok := functorOf(m, base)
	if !ok {
		if isRef(base) {
			return nil, &EvalError{Term: instantiationError(m)}
		}
		return nil, &EvalError{Term: typeError(m, "callable", base)}
	}
	newArity := arity + len(extra)
	if newArity > MaxCallArity {
		return nil, &EvalError{Term: representationError(m, "exceeds_max_arity")}
	}
	header, args := m.Heap.newStructure(name, newArity)
	if sc, ok := base.(StrCell); ok {
		for i := 0; i < arity; i++ {
			m.Heap[args[i]] = m.Heap[sc.Addr+1+i]
		}
	}
	for i, e := range extra {
		m.Heap[args[arity+i]] = e
	}
	return StrCell{Addr: header}, nil
}

// biCallN returns the NativeFunc backing call/(extra+1): it appends extra
// trailing arguments (already sitting in Regs[2:]) onto the callable in
// Reg[1] and dispatches the result, opaque to cut (a fresh barrier at the
// current choice point, per ISO call/1) but inheriting the caller's own
// continuation, since call/N's entry was itself reached by an ordinary
// OpCall/OpExecute that already set m.CP to the right place to resume.
func biCallN(extra int) NativeFunc {
	return func(m *Machine) (bool, error) {
		extraArgs := make([]Cell, extra)
		for i := 0; i < extra; i++ {
			extraArgs[i] = m.Regs[2+i]
		}
		goal, err := extendGoal(m, m.Regs[1], extraArgs)
		if err != nil {
			return false, err
		}
		return dispatchGoal(m, goal, m.CP, m.B)
	}
}

// callOnce runs goal to its first solution and back, discarding any
// further choice points it leaves behind (§4.8's documented simplification
// for ->/2's Cond, not/1, catch/3's Goal, setup_call_cleanup/3's Goal, and
// call_with_inference_limit/3's Goal: each of these only ever needs to
// observe Goal's first solution or its failure/exception, never to
// backtrack back into it for a second one, so a nested nested nested
// Run() stands in for a choice-point-preserving compiled sequence).
// P/CP/B0 and the nativeJumped flag are saved and restored around the
// nested run so the caller's own dispatch state survives it untouched.
func callOnce(m *Machine, goal Cell) (bool, error) {
	savedP, savedCP, savedB0 := m.P, m.CP, m.B0
	savedJumped := m.nativeJumped
	bEntry := m.B

	stopAddr := m.emitNative(func(mm *Machine) (bool, error) {
		mm.P = StopCP
		mm.nativeJumped = true
		return true, nil
	}, "once/1-stop")

	if _, err := dispatchGoal(m, goal, stopAddr, m.B); err != nil {
		m.Fail = false
		m.P, m.CP, m.B0 = savedP, savedCP, savedB0
		m.nativeJumped = savedJumped
		return false, err
	}

	ok, err := m.Run()
	if err != nil {
		// Run may have set m.Halted (an exception reached the top with no
		// installed catch/3 block). The caller decides what to do with err
		// — including absorbing it, as call_with_inference_limit/3 does for
		// its own sentinel exception — so the nested session's halt must
		// not leak into whatever the caller resumes next.
		m.Fail = false
		m.Halted = false
		m.P, m.CP, m.B0 = savedP, savedCP, savedB0
		m.nativeJumped = savedJumped
		return false, err
	}
	if ok && m.B > bEntry {
		m.cutTo(bEntry)
	}
	m.Fail = false
	m.P, m.CP, m.B0 = savedP, savedCP, savedB0
	m.nativeJumped = savedJumped
	return ok, nil
}

// ifThenElse implements both ->/2 (els == nil) and ;/2's if-then-else form:
// commit to Cond's first solution, then run Then; if Cond has no solution
// at all, run Else when present, otherwise fail.
func ifThenElse(m *Machine, cond, then Cell, els *Cell, cont CodePtr, b0 int) (bool, error) {
	ok, err := callOnce(m, cond)
	if err != nil {
		return false, err
	}
	if ok {
		return dispatchGoal(m, then, cont, b0)
	}
	if els == nil {
		return false, nil
	}
	return dispatchGoal(m, *els, cont, b0)
}

// biNot implements not/1 and \+/1: negation as failure. Any bindings Goal
// made are undone regardless of outcome — \+ never leaves a trace of
// having tried Goal, win or lose (§4.8).
func biNot(m *Machine) (bool, error) {
	goal := m.Regs[1]
	trailMark := len(m.Trail)
	heapMark := len(m.Heap)
	bMark := m.B
	// Bindings of cells above the heap barrier are not trailed, so the
	// heap below heapMark is saved and copied back as a whole.
	saved := make([]Cell, heapMark)
	copy(saved, m.Heap)

	ok, err := callOnce(m, goal)

	unwindTrail(m, trailMark, len(m.Trail))
	m.Trail = m.Trail[:trailMark]
	m.Heap = m.Heap[:heapMark]
	copy(m.Heap, saved)
	m.B = bMark
	m.HB = m.heapBarrierFor(m.B)

	if err != nil {
		return false, err
	}
	return !ok, nil
}

// biCatch implements catch/3. It installs a BlockFrame so throw/1 (from
// anywhere within Goal, however deeply nested) can unwind straight back
// here, runs Goal to its first solution, and — only if a throw actually
// reached this frame, detected by noticing our own BlockFrame is no longer
// on the stack — unifies the ball against Catcher, running Recovery on a
// match or re-throwing past this frame otherwise (§4.7).
func biCatch(m *Machine) (bool, error) {
	goal, catcher, recovery := m.Regs[1], m.Regs[2], m.Regs[3]

	handlerAddr := m.emitNative(func(mm *Machine) (bool, error) {
		mm.P = StopCP
		mm.nativeJumped = true
		return true, nil
	}, "catch/3-handler")

	m.Blocks = append(m.Blocks, BlockFrame{
		B: m.B, TR: len(m.Trail), H: len(m.Heap), E: m.E, CP: m.CP, Handler: handlerAddr,
	})
	depth := len(m.Blocks)

	ok, err := callOnce(m, goal)
	if err != nil {
		if len(m.Blocks) >= depth {
			m.Blocks = m.Blocks[:depth-1]
		}
		return false, err
	}

	if len(m.Blocks) >= depth {
		// Our block is still installed: Goal returned without throwing.
		m.Blocks = m.Blocks[:depth-1]
		return ok, nil
	}

	// Our block was popped by throwTerm: an exception reached this frame.
	ball := m.restoreBall(m.Ball)
	m.Ball = Ball{}
	if !unify(m, catcher, ball) {
		// Catcher doesn't match: re-throw past this frame exactly the way
		// throw/1 itself does — rewind to the next outer block (or halt)
		// and let whichever fetch/execute loop is actually driving us
		// resume from the rewound P, rather than recursing into a second
		// nested Run() here (which would double-wrap the eventual error
		// through this NativeCall's own OpNativeCall handler).
		m.Fail = false
		m.throwTerm(ball)
		m.nativeJumped = true
		return true, nil
	}
	return callOnce(m, recovery)
}

// biSetupCallCleanup implements setup_call_cleanup/3. Setup and Goal both
// run to their first solution only (§4.8's simplification means Goal is
// always treated as deterministic, so Cleanup always fires immediately
// after Goal returns rather than being deferred to a later backtrack into
// a choice point Goal left behind); Cleanup itself runs through the
// installed CutPolicy so a bare "!" executed by a caller above this frame
// also triggers it, per NotifyCutTo.
func biSetupCallCleanup(m *Machine) (bool, error) {
	setup, goal, cleanup := m.Regs[1], m.Regs[2], m.Regs[3]

	sOk, sErr := callOnce(m, setup)
	if sErr != nil {
		return false, sErr
	}
	if !sOk {
		return false, nil
	}

	bEntry := m.B
	token := m.CutPolicy.Register(bEntry, func(mm *Machine) {
		callOnce(mm, cleanup)
	})

	ok, err := callOnce(m, goal)
	var how CutExit
	switch {
	case err != nil:
		how = ExitException
	case !ok:
		how = ExitFail
	default:
		how = ExitSuccessDet
	}
	m.CutPolicy.Notify(m, token, how)

	if err != nil {
		return false, err
	}
	return ok, nil
}

// biCallWithInferenceLimit implements call_with_inference_limit/3: Goal
// runs under a fresh InferenceLimitPolicy installed only for its duration,
// and Result is bound to inference_limit_exceeded if the budget ran out or
// to the number of instructions actually dispatched otherwise (§4.6, §8).
func biCallWithInferenceLimit(m *Machine) (bool, error) {
	goal, limitTerm, resultArg := m.Regs[1], m.Regs[2], m.Regs[3]

	limitVal, err := m.Eval(limitTerm)
	if err != nil {
		return false, err
	}
	li, ok := limitVal.(ConInt)
	if !ok {
		return false, &EvalError{Term: typeError(m, "integer", limitTerm)}
	}

	policy := &InferenceLimitPolicy{Limit: uint64(li.Int.Int64())}
	prev := m.CallPolicy
	m.CallPolicy = policy
	ok2, err2 := callOnce(m, goal)
	m.CallPolicy = prev

	if err2 != nil {
		if ue, isUncaught := err2.(*UncaughtException); isUncaught {
			if cc, isCon := ue.Term.(ConCell); isCon {
				if a, isAtom := cc.Value.(ConAtom); isAtom && Atom(a) == m.Core.InferenceLimitExceeded {
					return unify(m, resultArg, atomCell(m.Core.InferenceLimitExceeded)), nil
				}
			}
		}
		return false, err2
	}
	if !ok2 {
		return false, nil
	}
	return unify(m, resultArg, ConCell{Value: ConInt{new(big.Int).SetUint64(policy.Count())}}), nil
}
