package wam

// iterFrame is one entry on the explicit traversal stack of the
// post-order iterator below — an explicit stack
// rather than Go recursion, since terms (and in the acyclic case,
// genuinely cyclic heap graphs) can be arbitrarily deep or, absent a
// visited set, infinitely revisited.
type iterFrame struct {
	cell    Cell
	visited bool // post-order: true once children have been pushed
}

// PreOrder walks the term rooted at root, calling visit on each cell in
// pre-order (a structure/list header before its arguments). Returning
// false from visit stops the walk early.
func PreOrder(m *Machine, root Cell, visit func(Cell) bool) {
	stack := []Cell{root}
	for len(stack) > 0 {
		n := len(stack) - 1
		c := deref(m, stack[n])
		stack = stack[:n]

		if !visit(c) {
			return
		}

		switch v := c.(type) {
		case LisCell:
			// push tail then head so head is visited first
			stack = append(stack, m.Heap[v.Addr+1], m.Heap[v.Addr])
		case StrCell:
			h := m.Heap[v.Addr].(HeaderCell)
			for i := h.Arity - 1; i >= 0; i-- {
				stack = append(stack, m.Heap[v.Addr+1+i])
			}
		}
	}
}

// PostOrder walks the term rooted at root, calling visit on each cell
// after its children (structure/list arguments before the header cell
// itself is revisited as a whole).
func PostOrder(m *Machine, root Cell, visit func(Cell)) {
	stack := []iterFrame{{cell: root}}
	for len(stack) > 0 {
		n := len(stack) - 1
		f := stack[n]

		if f.visited {
			stack = stack[:n]
			visit(deref(m, f.cell))
			continue
		}
		stack[n].visited = true

		c := deref(m, f.cell)
		switch v := c.(type) {
		case LisCell:
			stack = append(stack, iterFrame{cell: m.Heap[v.Addr]}, iterFrame{cell: m.Heap[v.Addr+1]})
		case StrCell:
			h := m.Heap[v.Addr].(HeaderCell)
			for i := 0; i < h.Arity; i++ {
				stack = append(stack, iterFrame{cell: m.Heap[v.Addr+1+i]})
			}
		}
	}
}

// IsAcyclic walks root with an explicit visited set keyed by heap
// address, returning false as soon as a structure or list address is
// revisited while still on the current path (§4.9 "Acyclicity tests use
// an explicit visited set over iteration stacks").
func IsAcyclic(m *Machine, root Cell) bool {
	onPath := map[int]bool{}
	var walk func(Cell) bool
	walk = func(c Cell) bool {
		c = deref(m, c)
		switch v := c.(type) {
		case LisCell:
			if onPath[v.Addr] {
				return false
			}
			onPath[v.Addr] = true
			ok := walk(m.Heap[v.Addr]) && walk(m.Heap[v.Addr+1])
			delete(onPath, v.Addr)
			return ok
		case StrCell:
			if onPath[v.Addr] {
				return false
			}
			onPath[v.Addr] = true
			h := m.Heap[v.Addr].(HeaderCell)
			ok := true
			for i := 0; i < h.Arity && ok; i++ {
				ok = walk(m.Heap[v.Addr+1+i])
			}
			delete(onPath, v.Addr)
			return ok
		default:
			return true
		}
	}
	return walk(root)
}

// IsGround reports whether root contains no unbound variables anywhere
// in its structure, used by ground/1.
func IsGround(m *Machine, root Cell) bool {
	ground := true
	PreOrder(m, root, func(c Cell) bool {
		if isRef(c) {
			ground = false
			return false
		}
		return true
	})
	return ground
}

// zipPair is one pending comparison obligation for the structural walks
// below (=@=/2's variant-equality, and compare/3's standard order).
type zipPair struct{ a, b Cell }

// VariantEqual reports whether a and b are structurally equal up to
// consistent variable renaming (§8 Property 3: "=@=-distinct in every
// unbound variable, but structurally equal"). It threads a pair of
// address maps so that the same pair of original variables must always
// recur together.
func VariantEqual(m *Machine, a, b Cell) bool {
	fwdMap := map[int]int{}
	bwdMap := map[int]int{}

	stack := []zipPair{{a, b}}
	for len(stack) > 0 {
		n := len(stack) - 1
		p := stack[n]
		stack = stack[:n]

		x := deref(m, p.a)
		y := deref(m, p.b)

		xVar, xIsVar := varKey(x)
		yVar, yIsVar := varKey(y)
		if xIsVar || yIsVar {
			if !xIsVar || !yIsVar {
				return false
			}
			if got, ok := fwdMap[xVar]; ok {
				if got != yVar {
					return false
				}
			} else {
				if _, taken := bwdMap[yVar]; taken {
					return false
				}
				fwdMap[xVar] = yVar
				bwdMap[yVar] = xVar
			}
			continue
		}

		lx, lxok := x.(LisCell)
		ly, lyok := y.(LisCell)
		if lxok && lyok {
			stack = append(stack, zipPair{m.Heap[lx.Addr], m.Heap[ly.Addr]}, zipPair{m.Heap[lx.Addr+1], m.Heap[ly.Addr+1]})
			continue
		}

		sx, sxok := x.(StrCell)
		sy, syok := y.(StrCell)
		if sxok && syok {
			hx := m.Heap[sx.Addr].(HeaderCell)
			hy := m.Heap[sy.Addr].(HeaderCell)
			if hx.Name != hy.Name || hx.Arity != hy.Arity {
				return false
			}
			for i := 0; i < hx.Arity; i++ {
				stack = append(stack, zipPair{m.Heap[sx.Addr+1+i], m.Heap[sy.Addr+1+i]})
			}
			continue
		}

		cx, cxok := x.(ConCell)
		cy, cyok := y.(ConCell)
		if cxok && cyok && equalConst(cx.Value, cy.Value) {
			continue
		}

		return false
	}
	return true
}

// varKey returns a stable integer identity for a variable cell (its heap
// address for RefCell, a synthetic negative-free encoding for
// StackRefCell) and whether c is a variable at all.
func varKey(c Cell) (int, bool) {
	switch v := c.(type) {
	case RefCell:
		return v.Addr, true
	case StackRefCell:
		// Frame/Slot pairs are individually small; pack them so distinct
		// frame/slot pairs never collide.
		return (v.Frame << 20) | v.Slot, true
	default:
		return 0, false
	}
}

// Compare implements the standard order of terms used by compare/3,
// @</2, and sort/2: Var < Number < Atom < String < Compound, compounds
// ordered first by arity, then by name, then left to right by argument.
func Compare(m *Machine, a, b Cell) int {
	x := deref(m, a)
	y := deref(m, b)

	rank := func(c Cell) int {
		switch c.(type) {
		case RefCell, StackRefCell:
			return 0
		case ConCell:
			return 1 // refined below by the constant's own kind
		case LisCell, StrCell:
			return 3
		default:
			return 4
		}
	}

	rx, ry := rank(x), rank(y)
	if rx != ry {
		if rx < ry {
			return -1
		}
		return 1
	}

	switch rx {
	case 0:
		kx, _ := varKey(x)
		ky, _ := varKey(y)
		switch {
		case kx < ky:
			return -1
		case kx > ky:
			return 1
		default:
			return 0
		}
	case 1:
		return compareConst(m.Atoms, x.(ConCell).Value, y.(ConCell).Value)
	default:
		return compareCompound(m, x, y)
	}
}

// compareCompound orders two list/structure cells: shorter arity first,
// then by functor name, then left-to-right by argument (a list cons is
// treated as the structure './2' for ordering purposes).
func compareCompound(m *Machine, x, y Cell) int {
	nameOf := func(c Cell) (Atom, int, int) { // name, arity, firstArgAddr
		switch v := c.(type) {
		case LisCell:
			return m.Core.Dot, 2, v.Addr
		case StrCell:
			h := m.Heap[v.Addr].(HeaderCell)
			return h.Name, h.Arity, v.Addr + 1
		}
		return 0, 0, 0
	}
	nx, ax, fx := nameOf(x)
	ny, ay, fy := nameOf(y)
	if ax != ay {
		if ax < ay {
			return -1
		}
		return 1
	}
	if c := m.Atoms.Compare(nx, ny); c != 0 {
		return c
	}
	for i := 0; i < ax; i++ {
		if c := Compare(m, m.Heap[fx+i], m.Heap[fy+i]); c != 0 {
			return c
		}
	}
	return 0
}
