package wam

// cellSink abstracts the destination region a term is copied into: the
// real heap (duplicate_term/2, clause instantiation) or the ball buffer
// (throw/1). Both are append-only slices; only the addressing base
// differs.
type cellSink interface {
	push(cells ...Cell) int
	get(addr int) Cell
	set(addr int, c Cell)
	len() int
}

type heapSink struct{ m *Machine }

func (s heapSink) push(cells ...Cell) int { return s.m.Heap.push(cells...) }
func (s heapSink) get(addr int) Cell      { return s.m.Heap[addr] }
func (s heapSink) set(addr int, c Cell)   { s.m.Heap[addr] = c }
func (s heapSink) len() int               { return len(s.m.Heap) }

type sliceSink struct{ cells *[]Cell }

func (s sliceSink) push(cells ...Cell) int {
	addr := len(*s.cells)
	*s.cells = append(*s.cells, cells...)
	return addr
}
func (s sliceSink) get(addr int) Cell    { return (*s.cells)[addr] }
func (s sliceSink) set(addr int, c Cell) { (*s.cells)[addr] = c }
func (s sliceSink) len() int             { return len(*s.cells) }

type stackKey struct{ frame, slot int }

// copier runs one Cheney-style structure copy (§4.3): each old-region
// anchor (structure header, list cell, or unbound variable) is translated
// to a new address the first time it is reached, recorded in converted so
// later references to the same anchor resolve to the same new address,
// and a two-pointer scan sweeps the freshly appended region until scan
// catches up with the append point ("scan < threshold" in the spec's
// terms — here scan catching up with dst.len()).
//
// Translations are tracked in a side table rather than by overwriting the
// old heap cells in place with a forwarding marker: the machine's own
// deref walks the heap during unify/Eval the moment control returns to
// the interpreter, and a copy that left transient sentinel values sitting
// in live heap cells — even briefly — would be one stray reentrant call
// away from corrupting state. The side table has no such window.
type copier struct {
	m        *Machine
	dst      cellSink
	boundary int // old-region cells are those with addr < boundary

	converted map[int]int          // old heap address -> new dst address, for Str/List/Ref anchors
	permMap   map[stackKey]int     // (frame,slot) -> new dst address, for permanent variables
}

// copyAnchor copies the structure or unbound-variable anchored at
// old-region address addr into dst, memoizing the translation, and
// returns the new address in dst.
func (c *copier) copyAnchor(addr int) int {
	if newAddr, ok := c.converted[addr]; ok {
		return newAddr
	}
	switch cell := c.m.Heap[addr].(type) {
	case HeaderCell:
		args := make([]Cell, cell.Arity)
		for i := range args {
			args[i] = c.m.Heap[addr+1+i]
		}
		newAddr := c.dst.push(append([]Cell{cell}, args...)...)
		c.converted[addr] = newAddr
		return newAddr
	case RefCell:
		newAddr := c.dst.len()
		c.dst.push(RefCell{Addr: newAddr})
		c.converted[addr] = newAddr
		return newAddr
	default:
		return c.dst.push(cell)
	}
}

func (c *copier) copyList(addr int) int {
	if newAddr, ok := c.converted[addr]; ok {
		return newAddr
	}
	head, tail := c.m.Heap[addr], c.m.Heap[addr+1]
	newAddr := c.dst.push(head, tail)
	c.converted[addr] = newAddr
	return newAddr
}

// copyStackVar allocates (once per distinct Frame/Slot, shared across the
// whole copy) a fresh unbound variable in dst standing in for an unbound
// permanent variable reachable from root. The result is always a
// heap-shaped RefCell, even when dst is a ball buffer — a ball never
// references a stack frame that may have already been deallocated by the
// time it is caught.
func (c *copier) copyStackVar(v StackRefCell) int {
	key := stackKey{v.Frame, v.Slot}
	if addr, ok := c.permMap[key]; ok {
		return addr
	}
	addr := c.dst.len()
	c.dst.push(RefCell{Addr: addr})
	c.permMap[key] = addr
	return addr
}

// run seeds dst with root and sweeps until the scan pointer meets the
// append point, returning the (possibly rewritten) root cell. The heap
// itself is never mutated.
func (c *copier) run(root Cell) Cell {
	if c.converted == nil {
		c.converted = map[int]int{}
	}
	if c.permMap == nil {
		c.permMap = map[stackKey]int{}
	}
	rootAddr := c.dst.push(root)
	for scan := rootAddr; scan < c.dst.len(); scan++ {
		cell := deref(c.m, c.dst.get(scan))
		switch v := cell.(type) {
		case LisCell:
			if v.Addr < c.boundary {
				cell = LisCell{Addr: c.copyList(v.Addr)}
			}
		case StrCell:
			if v.Addr < c.boundary {
				cell = StrCell{Addr: c.copyAnchor(v.Addr)}
			}
		case RefCell:
			if v.Addr < c.boundary {
				cell = RefCell{Addr: c.copyAnchor(v.Addr)}
			}
		case StackRefCell:
			cell = RefCell{Addr: c.copyStackVar(v)}
		}
		c.dst.set(scan, cell)
	}
	return c.dst.get(rootAddr)
}

// DuplicateTerm copies the term reachable from root into a fresh heap
// region above the current top (§4.3), for duplicate_term/2. Variables
// unbound in root are fresh and distinct in the result; bound structure
// is reproduced in full (Property 3, §8).
func (m *Machine) DuplicateTerm(root Cell) Cell {
	root = deref(m, root)
	c := &copier{m: m, dst: heapSink{m}, boundary: len(m.Heap)}
	return c.run(root)
}

// copyToBall deep-copies root into a freestanding cell slice suitable for
// a Ball (§4.3 "one overlay targets the ball buffer"). The result never
// references the real heap, so it survives any amount of OR-stack unwind.
func (m *Machine) copyToBall(root Cell) Ball {
	root = deref(m, root)
	var cells []Cell
	c := &copier{m: m, dst: sliceSink{&cells}, boundary: len(m.Heap)}
	c.run(root)
	// run() pushes root as cells[0] before translating it in place, so
	// cells[0] is always the (possibly rewritten) root regardless of what
	// copyAnchor/copyList append afterward.
	return Ball{OriginAddr: 0, Cells: cells}
}

// restoreBall materializes a previously captured Ball back onto the real
// heap (catch/3, once the thrown term needs to be unified against a
// catcher pattern) and returns the Cell for its root.
func (m *Machine) restoreBall(b Ball) Cell {
	offset := len(m.Heap)
	for _, cell := range b.Cells {
		m.Heap.push(rebaseBallCell(cell, offset))
	}
	return m.Heap[offset+b.OriginAddr]
}

// rebaseBallCell shifts a ball-relative List/Str/Ref address by offset so
// it points into the real heap after restoreBall appends the ball's cells
// there. Constants, structure headers, and already-resolved cells carry no
// ball-relative address and pass through unchanged.
func rebaseBallCell(cell Cell, offset int) Cell {
	switch v := cell.(type) {
	case LisCell:
		return LisCell{Addr: v.Addr + offset}
	case StrCell:
		return StrCell{Addr: v.Addr + offset}
	case RefCell:
		return RefCell{Addr: v.Addr + offset}
	default:
		return cell
	}
}
