package wam

// throwTerm implements throw/1's control-transfer half (§4.7): term is
// copied off-heap into m.Ball, then control is handed to the innermost
// installed catch/3 block, rewinding choice points, trail, and heap to
// exactly the state they were in when that block was pushed.
// If no block is installed, the exception is uncaught: m.Halted is set
// and the caller (the top-level query driver) is expected to report
// m.Ball to the user.
func (m *Machine) throwTerm(term Cell) {
	m.Ball = m.copyToBall(term)
	if len(m.Blocks) == 0 {
		m.Halted = true
		m.Fail = true
		return
	}
	frame := m.Blocks[len(m.Blocks)-1]
	m.Blocks = m.Blocks[:len(m.Blocks)-1]

	unwindTrail(m, frame.TR, len(m.Trail))
	m.Trail = m.Trail[:frame.TR]
	m.Heap = m.Heap[:frame.H]
	m.Or = m.Or[:min(len(m.Or), frame.B+1)]
	m.B = frame.B
	if m.B >= len(m.Or) {
		m.B = -1
	}
	m.HB = m.heapBarrierFor(m.B)
	m.E = frame.E
	m.CP = frame.CP
	m.P = frame.Handler
	m.Fail = false
}

// throwError adapts a Go error produced by Eval or a NativeFunc into the
// same control-transfer path as throw/1. *EvalError already carries a
// ready Prolog term; any other error is wrapped as a generic system_error
// so a stray Go-level failure still surfaces as a catchable exception
// instead of panicking the interpreter.
func (m *Machine) throwError(err error) {
	if ee, ok := err.(*EvalError); ok {
		m.throwTerm(ee.Term)
		return
	}
	term := newErrorTerm(m, Cell(ConCell{Value: ConAtom(m.Atoms.Intern("system_error"))}))
	m.throwTerm(term)
}
