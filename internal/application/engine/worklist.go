package engine

// Worklist is the FIFO queue of node indices awaiting execution.
type Worklist struct {
	items []int
	head  int
}

// NewWorklist returns a worklist seeded with the given indices.
func NewWorklist(seed ...int) *Worklist {
	w := &Worklist{items: make([]int, 0, len(seed))}
	w.items = append(w.items, seed...)
	return w
}

// Push appends an index to the tail.
func (w *Worklist) Push(i int) {
	w.items = append(w.items, i)
}

// Pop removes and returns the head.
func (w *Worklist) Pop() (int, bool) {
	if w.head >= len(w.items) {
		return 0, false
	}
	i := w.items[w.head]
	w.head++
	if w.head == len(w.items) {
		w.items = w.items[:0]
		w.head = 0
	}
	return i, true
}

// Len returns the number of queued indices.
func (w *Worklist) Len() int { return len(w.items) - w.head }

// Pending returns a copy of the queued indices, head first.
func (w *Worklist) Pending() []int {
	out := make([]int, w.Len())
	copy(out, w.items[w.head:])
	return out
}
