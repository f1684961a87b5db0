package wam

// Heap is the append-mostly cell array backing the term universe (§3).
// Indices into Heap are stable for the lifetime of a binding: nothing is
// ever moved except by the Cheney copier (copier.go), which works in a
// fresh region above the current top and never disturbs existing cells.
type Heap []Cell

// push appends cells to the heap and returns the address of the first one
// pushed.
func (h *Heap) push(cells ...Cell) int {
	addr := len(*h)
	*h = append(*h, cells...)
	return addr
}

// newRef pushes a fresh self-referential (unbound) variable and returns
// its address.
func (h *Heap) newRef() int {
	addr := len(*h)
	*h = append(*h, RefCell{Addr: addr})
	return addr
}

// newStructure pushes a HeaderCell followed by arity fresh unbound
// variables, returning the address of the StrCell's target (the header).
func (h *Heap) newStructure(name Atom, arity int) (header int, args []int) {
	header = h.push(HeaderCell{Name: name, Arity: arity})
	args = make([]int, arity)
	for i := range args {
		args[i] = h.newRef()
	}
	return header, args
}

// newList pushes a fresh [head|tail] skeleton (two unbound variables) and
// returns its address.
func (h *Heap) newList() (addr, head, tail int) {
	addr = len(*h)
	head = h.newRef()
	tail = h.newRef()
	return addr, head, tail
}

// at is a bounds-checked read, returning nil past the end of the heap
// (the only legitimate reason being a stale index after backtracking —
// callers that hit this have a bug, so they should not silently recover).
func (h Heap) at(addr int) Cell {
	if addr < 0 || addr >= len(h) {
		return nil
	}
	return h[addr]
}
