package wam

// unifyPair is one pending unification obligation on the explicit
// push-down list (§4.2: "Iterative Robinson unification with an explicit
// push-down list").
type unifyPair struct{ a, b Cell }

// unify attempts to unify a and b in place, binding variables and
// trailing as needed. It returns false (and leaves m.Fail set) on the
// first mismatch; the top-level dispatcher checks Fail and backtracks,
// matching §4.2's "sticky fail flag" description.
func unify(m *Machine, a, b Cell) bool {
	stack := []unifyPair{{a, b}}
	for len(stack) > 0 {
		n := len(stack) - 1
		pair := stack[n]
		stack = stack[:n]

		x := deref(m, pair.a)
		y := deref(m, pair.b)

		switch {
		case isRef(x) && isRef(y):
			// Always bind the left variable to the right one; any
			// deterministic choice is sound, this one matches the
			// teacher's left-biased binding order in core.go's Eq.
			bind(m, x, y)
		case isRef(x):
			bind(m, x, y)
		case isRef(y):
			bind(m, y, x)
		default:
			lx, lxok := x.(LisCell)
			ly, lyok := y.(LisCell)
			if lxok && lyok {
				stack = append(stack,
					unifyPair{m.Heap[lx.Addr], m.Heap[ly.Addr]},
					unifyPair{m.Heap[lx.Addr+1], m.Heap[ly.Addr+1]},
				)
				continue
			}

			sx, sxok := x.(StrCell)
			sy, syok := y.(StrCell)
			if sxok && syok {
				hx := m.Heap[sx.Addr].(HeaderCell)
				hy := m.Heap[sy.Addr].(HeaderCell)
				if hx.Name != hy.Name || hx.Arity != hy.Arity {
					m.Fail = true
					return false
				}
				for i := 0; i < hx.Arity; i++ {
					stack = append(stack, unifyPair{
						m.Heap[sx.Addr+1+i],
						m.Heap[sy.Addr+1+i],
					})
				}
				continue
			}

			cx, cxok := x.(ConCell)
			cy, cyok := y.(ConCell)
			if cxok && cyok {
				if !equalConst(cx.Value, cy.Value) {
					m.Fail = true
					return false
				}
				continue
			}

			m.Fail = true
			return false
		}
	}
	return true
}

// isRef reports whether c is an unbound-reference-shaped cell (its
// boundness is not checked here — deref already normalized it to either
// a genuinely unbound ref or a non-ref value before isRef is consulted).
func isRef(c Cell) bool {
	switch c.(type) {
	case RefCell, StackRefCell:
		return true
	default:
		return false
	}
}
