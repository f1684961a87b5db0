package wam

import "fmt"

// StopCP is the continuation value a top-level query installs as its own
// m.CP before jumping into Code: Proceed reaching it means the whole query
// has succeeded and Run should return control to its caller rather than
// fetch another instruction.
const StopCP CodePtr = -1

// UncaughtException wraps an exception term that reached the top level
// with no installed catch/3 block left to intercept it (§4.7).
type UncaughtException struct{ Term Cell }

func (e *UncaughtException) Error() string { return "uncaught prolog exception" }

// Run fetches and executes instructions starting at m.P until the query
// succeeds (m.P reaches StopCP), fails outright (m.Fail with no choice
// point left to retry), or an exception escapes every installed catch/3
// block. A true result with m.B >= 0 left behind means further solutions
// may exist; call Redo to ask for the next one.
func (m *Machine) Run() (bool, error) {
	for {
		if m.Halted {
			return false, m.uncaughtError()
		}
		if m.P == StopCP {
			return true, nil
		}
		if m.Fail {
			if m.B < 0 {
				return false, nil
			}
			m.backtrackTo(m.B)
			m.Fail = false
			continue
		}
		if int(m.P) < 0 || int(m.P) >= len(m.Code) {
			return false, fmt.Errorf("wam: program counter %d out of range (code length %d)", m.P, len(m.Code))
		}
		instr := m.Code[m.P]
		if m.Trace != nil {
			m.Trace(m.P, instr, m)
		}
		if err := m.CallPolicy.Tick(m); err != nil {
			m.throwError(err)
			continue
		}
		m.step(instr)
	}
}

// Redo asks for the next solution of a query left with an outstanding
// choice point after a prior Run. It forces a fail and resumes the loop.
func (m *Machine) Redo() (bool, error) {
	if m.B < 0 {
		return false, nil
	}
	m.Fail = true
	return m.Run()
}

func (m *Machine) uncaughtError() error {
	return &UncaughtException{Term: m.restoreBall(m.Ball)}
}

// step executes one instruction. Most cases either set m.Fail (backtrack
// on the next loop iteration) or fall through to the trailing m.P++;
// control-transfer instructions (Call/Execute/Proceed/cut/switch) set
// m.P themselves and return directly.
func (m *Machine) step(instr Instruction) {
	switch instr.Op {

	case OpGetStructure:
		m.execGetStructure(instr)
	case OpGetList:
		m.execGetList(instr)
	case OpGetConstant:
		cell := deref(m, m.Regs[instr.Reg])
		switch v := cell.(type) {
		case RefCell, StackRefCell:
			bind(m, cell, ConCell{Value: instr.Con})
		case ConCell:
			if !equalConst(v.Value, instr.Con) {
				m.Fail = true
			}
		default:
			m.Fail = true
		}
	case OpGetVariable:
		m.Regs[instr.Reg2] = m.Regs[instr.Reg]
	case OpGetValue:
		if !unify(m, m.Regs[instr.Reg], m.Regs[instr.Reg2]) {
			m.Fail = true
		}

	case OpUnifyVariable:
		m.Regs[instr.Reg] = m.Heap[m.S]
		m.S++
	case OpUnifyValue:
		if m.Mode == ModeRead {
			if !unify(m, m.Regs[instr.Reg], m.Heap[m.S]) {
				m.Fail = true
			}
		} else {
			m.Heap[m.S] = store(m, m.Regs[instr.Reg])
		}
		m.S++
	case OpUnifyConstant:
		if m.Mode == ModeRead {
			cell := deref(m, m.Heap[m.S])
			switch v := cell.(type) {
			case RefCell, StackRefCell:
				bind(m, cell, ConCell{Value: instr.Con})
			case ConCell:
				if !equalConst(v.Value, instr.Con) {
					m.Fail = true
				}
			default:
				m.Fail = true
			}
		} else {
			m.Heap[m.S] = ConCell{Value: instr.Con}
		}
		m.S++
	case OpUnifyVoid:
		m.S += instr.N

	case OpPutStructure:
		header, _ := m.Heap.newStructure(instr.Atom, instr.N)
		m.Regs[instr.Reg] = StrCell{Addr: header}
		m.Mode = ModeWrite
		m.S = header + 1
	case OpPutList:
		addr, _, _ := m.Heap.newList()
		m.Regs[instr.Reg] = LisCell{Addr: addr}
		m.Mode = ModeWrite
		m.S = addr
	case OpPutConstant:
		m.Regs[instr.Reg] = ConCell{Value: instr.Con}
	case OpPutVariable:
		addr := m.Heap.newRef()
		v := RefCell{Addr: addr}
		m.Regs[instr.Reg2] = v
		m.Regs[instr.Reg] = v
	case OpPutValue:
		m.Regs[instr.Reg] = m.Regs[instr.Reg2]
	case OpPutUnsafeValue:
		val := deref(m, m.Regs[instr.Reg2])
		if sr, ok := val.(StackRefCell); ok && sr.Frame == m.E {
			addr := m.Heap.newRef()
			bind(m, val, RefCell{Addr: addr})
			m.Regs[instr.Reg] = RefCell{Addr: addr}
		} else {
			m.Regs[instr.Reg] = val
		}

	case OpSetVariable:
		// PutStructure/PutList already pre-allocated a fresh unbound cell
		// at every argument slot (newStructure/newList), so — exactly like
		// UnifyVariable — this just captures the existing slot's cell
		// rather than allocating a second, unrelated one.
		m.Regs[instr.Reg] = m.Heap[m.S]
		m.S++
	case OpSetValue:
		m.Heap[m.S] = store(m, m.Regs[instr.Reg])
		m.S++
	case OpSetConstant:
		m.Heap[m.S] = ConCell{Value: instr.Con}
		m.S++
	case OpSetVoid:
		m.S += instr.N

	case OpCall:
		m.B0 = m.B
		m.CP = m.P + 1
		m.P = instr.Target
		return
	case OpExecute:
		m.B0 = m.B
		m.P = instr.Target
		return
	case OpProceed:
		m.P = m.CP
		return
	case OpAllocate:
		perm := make([]Cell, instr.N)
		idx := len(m.And)
		for i := range perm {
			perm[i] = StackRefCell{Frame: idx, Slot: i}
		}
		m.And = append(m.And, Frame{CP: m.CP, E: m.E, GI: m.GlobalIndex, Perm: perm})
		m.GlobalIndex++
		m.E = idx
	case OpDeallocate:
		m.CP = m.And[m.E].CP
		m.E = m.And[m.E].E

	case OpGetYVariable:
		m.And[m.E].Perm[instr.N] = m.Regs[instr.Reg]
	case OpPutYValue:
		m.Regs[instr.Reg] = m.And[m.E].Perm[instr.N]

	case OpTryMeElse:
		m.pushChoicePoint(instr.Alt, instr.N)
	case OpRetryMeElse:
		m.Or[m.B].BP = instr.Alt
		m.HB = m.heapBarrierFor(m.B)
	case OpTrustMe:
		prev := m.Or[m.B].B
		m.Or = m.Or[:m.B]
		m.B = prev
		m.HB = m.heapBarrierFor(m.B)
	case OpTry:
		m.pushChoicePoint(instr.Alt, instr.N)
	case OpRetry:
		m.Or[m.B].BP = instr.Alt
		m.HB = m.heapBarrierFor(m.B)
	case OpTrust:
		prev := m.Or[m.B].B
		m.Or = m.Or[:m.B]
		m.B = prev
		m.HB = m.heapBarrierFor(m.B)

	case OpSwitchOnTerm:
		cell := deref(m, m.Regs[instr.Reg])
		switch cell.(type) {
		case RefCell, StackRefCell:
			m.P = instr.NoVar
		case ConCell:
			m.P = instr.NoCon
		case LisCell:
			m.P = instr.NoLis
		case StrCell:
			m.P = instr.NoStr
		}
		return
	case OpSwitchOnConstant:
		target := instr.Target
		if cell, ok := deref(m, m.Regs[instr.Reg]).(ConCell); ok {
			if a := constAtom(m.Atoms, cell.Value); a != 0 {
				if t, ok := instr.Table[a]; ok {
					target = t
				}
			}
		}
		m.P = target
		return
	case OpSwitchOnStructure:
		target := instr.Target
		if cell, ok := deref(m, m.Regs[instr.Reg]).(StrCell); ok {
			h := m.Heap[cell.Addr].(HeaderCell)
			if t, ok := instr.Table[atomArityKey(h.Name, h.Arity)]; ok {
				target = t
			}
		}
		m.P = target
		return

	case OpNeckCut:
		m.cutTo(m.B0)
	case OpGetLevel:
		m.And[m.E].Perm[instr.Reg] = ConCell{Value: ConUsize(uint(m.B0 + 1))}
	case OpCutTo:
		var cu ConUsize
		if cc, ok := m.And[m.E].Perm[instr.Reg].(ConCell); ok {
			cu, _ = cc.Value.(ConUsize)
		}
		m.cutTo(int(cu) - 1)

	case OpInstallNewBlock:
		m.Blocks = append(m.Blocks, BlockFrame{
			B: m.B, TR: len(m.Trail), H: len(m.Heap), E: m.E, CP: m.CP, Handler: instr.Target,
		})
	case OpCleanUpBlock:
		if len(m.Blocks) > 0 {
			m.Blocks = m.Blocks[:len(m.Blocks)-1]
		}
	case OpGetBall:
		m.Regs[instr.Reg] = m.restoreBall(m.Ball)
		m.Ball = Ball{}

	case OpNativeCall:
		m.nativeJumped = false
		ok, err := instr.Native(m)
		if err != nil {
			m.throwError(err)
			return
		}
		if !ok {
			m.Fail = true
		}
		if m.nativeJumped {
			return
		}

	case OpHalt:
		m.Halted = true
		return

	default:
		// OpNoop: a deliberate no-op, used as a placeholder target by
		// asm.go callers that patch it in later.
	}

	if !m.Fail {
		m.P++
	}
}

func (m *Machine) execGetStructure(instr Instruction) {
	cell := deref(m, m.Regs[instr.Reg])
	switch v := cell.(type) {
	case RefCell, StackRefCell:
		header, _ := m.Heap.newStructure(instr.Atom, instr.N)
		bind(m, cell, StrCell{Addr: header})
		m.Mode = ModeWrite
		m.S = header + 1
	case StrCell:
		h := m.Heap[v.Addr].(HeaderCell)
		if h.Name != instr.Atom || h.Arity != instr.N {
			m.Fail = true
			return
		}
		m.Mode = ModeRead
		m.S = v.Addr + 1
	default:
		m.Fail = true
	}
}

func (m *Machine) execGetList(instr Instruction) {
	cell := deref(m, m.Regs[instr.Reg])
	switch v := cell.(type) {
	case RefCell, StackRefCell:
		addr, _, _ := m.Heap.newList()
		bind(m, cell, LisCell{Addr: addr})
		m.Mode = ModeWrite
		m.S = addr
	case LisCell:
		m.Mode = ModeRead
		m.S = v.Addr
	default:
		m.Fail = true
	}
}

// pushChoicePoint installs a new choice point whose next alternative is
// alt and whose saved registers are Regs[0:arity+1] (the argument
// registers 1..arity plus the unused Regs[0], so backtrackTo can copy them
// back position for position), shared by
// TryMeElse and the indexed Try (§4.5/§4.6: the indexed family differs
// only in how it is reached, via a preceding switch, not in what it does
// once reached).
func (m *Machine) pushChoicePoint(alt CodePtr, arity int) {
	args := make([]Cell, arity+1)
	copy(args, m.Regs[:arity+1])
	m.Or = append(m.Or, ChoicePoint{
		E: m.E, CP: m.CP, B: m.B, BP: alt, TR: len(m.Trail), H: len(m.Heap),
		B0: m.B0, Args: args, GI: m.GlobalIndex,
	})
	m.B = len(m.Or) - 1
	m.HB = m.heapBarrierFor(m.B)
}

// cutTo discards every choice point created since barrier b0 (§4.6
// "neck"/explicit cut). b0 of -1 cuts back to the empty OR stack.
func (m *Machine) cutTo(b0 int) {
	if b0 < -1 {
		b0 = -1
	}
	m.CutPolicy.NotifyCutTo(m, b0)
	if len(m.Or) > b0+1 {
		m.Or = m.Or[:b0+1]
	}
	m.B = b0
	m.HB = m.heapBarrierFor(m.B)
}
