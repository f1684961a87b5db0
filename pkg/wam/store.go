package wam

// store resolves a single indirection (§4.1): if a is a Ref/StackRef it
// returns the heap or stack cell it points to (which may itself be an
// unbound ref); otherwise it returns a unchanged.
func store(m *Machine, a Cell) Cell {
	switch v := a.(type) {
	case RefCell:
		return m.Heap[v.Addr]
	case StackRefCell:
		return m.And[v.Frame].Perm[v.Slot]
	default:
		return a
	}
}

// deref iterates store to a fixed point: either an unbound ref (one that
// stores to itself) or a non-ref value (§4.1).
func deref(m *Machine, a Cell) Cell {
	for {
		switch v := a.(type) {
		case RefCell:
			next := m.Heap[v.Addr]
			if r, ok := next.(RefCell); ok && r == v {
				return a
			}
			a = next
		case StackRefCell:
			next := m.And[v.Frame].Perm[v.Slot]
			if r, ok := next.(StackRefCell); ok && r == v {
				return a
			}
			a = next
		default:
			return a
		}
	}
}

// isConditional reports whether binding reference r right now would need
// trailing, per the Conditional-Binding test (§3 invariants, §4.1): a
// heap ref is conditional iff its address is below the current heap
// barrier; a stack ref is conditional iff its frame predates the current
// choice point's global index.
func (m *Machine) isConditional(r Cell) bool {
	switch v := r.(type) {
	case RefCell:
		return v.Addr < m.HB
	case StackRefCell:
		return m.And[v.Frame].GI < m.currentGI()
	default:
		return false
	}
}

// bind binds reference r to store(a) and trails r if the binding is
// conditional (§4.1).
func bind(m *Machine, r Cell, a Cell) {
	val := store(m, a)
	cond := m.isConditional(r)
	switch v := r.(type) {
	case RefCell:
		m.Heap[v.Addr] = val
		if cond {
			m.Trail = append(m.Trail, TrailEntry{Kind: TrailHeap, Heap: v.Addr})
		}
	case StackRefCell:
		m.And[v.Frame].Perm[v.Slot] = val
		if cond {
			m.Trail = append(m.Trail, TrailEntry{Kind: TrailStack, Frame: v.Frame, Slot: v.Slot})
		}
	}
}

// unwindTrail resets every trailed reference in [lo, hi) back to an
// unbound self-reference (§4.1).
func unwindTrail(m *Machine, lo, hi int) {
	for i := lo; i < hi; i++ {
		e := m.Trail[i]
		switch e.Kind {
		case TrailHeap:
			m.Heap[e.Heap] = RefCell{Addr: e.Heap}
		case TrailStack:
			m.And[e.Frame].Perm[e.Slot] = StackRefCell{Frame: e.Frame, Slot: e.Slot}
		}
	}
}

// tidyTrail compacts the portion of the trail above the current choice
// point, discarding entries that are no longer conditional now that HB
// has moved (§4.1). Surviving entries may be reordered; unwindTrail never
// depends on trail order within a backtracked range.
func tidyTrail(m *Machine) {
	if m.B < 0 {
		return
	}
	tr := m.Or[m.B].TR
	i := tr
	for i < len(m.Trail) {
		e := m.Trail[i]
		stillConditional := true
		if e.Kind == TrailHeap && e.Heap >= m.HB {
			stillConditional = false
		}
		if stillConditional {
			i++
			continue
		}
		last := len(m.Trail) - 1
		m.Trail[i] = m.Trail[last]
		m.Trail = m.Trail[:last]
	}
}

// backtrackTo restores heap/stacks/trail to the snapshot recorded in
// choice point idx and resumes at its next-alternative address BP. It
// does not touch m.B or m.HB — callers (RetryMeElse/TrustMe and their
// indexed counterparts, in instr.go) decide whether idx survives the
// retry and recompute HB from whatever choice point remains current.
func (m *Machine) backtrackTo(idx int) {
	cp := m.Or[idx]
	unwindTrail(m, cp.TR, len(m.Trail))
	m.Trail = m.Trail[:cp.TR]
	m.Heap = m.Heap[:cp.H]
	m.E = cp.E
	m.CP = cp.CP
	m.B0 = cp.B0
	copy(m.Regs[:len(cp.Args)], cp.Args)
	m.P = cp.BP
}

// heapBarrierFor returns the heap barrier implied by choice point index b
// (0 when there is none), per §3: "hb equals the heap size captured by
// the current choice point (0 when none exists)".
func (m *Machine) heapBarrierFor(b int) int {
	if b < 0 {
		return 0
	}
	return m.Or[b].H
}
