package thread

// readyStructure is the small vtable the design notes call for: a tagged
// variant chosen once at boot between a single priority-ordered list and
// 64 MLFQ round-robin queues.
type readyStructure interface {
	push(t *Thread)
	popHighest() *Thread
	requeue(t *Thread)
	empty() bool
	snapshot() []*Thread
}

// priorityReady is a single list ordered descending by effective priority,
// FIFO among ties.
type priorityReady struct {
	list []*Thread
}

func newPriorityReady() *priorityReady {
	return &priorityReady{}
}

func (r *priorityReady) push(t *Thread) {
	p := t.Priority()
	i := 0
	for i < len(r.list) && r.list[i].Priority() >= p {
		i++
	}
	r.list = append(r.list, nil)
	copy(r.list[i+1:], r.list[i:])
	r.list[i] = t
}

func (r *priorityReady) popHighest() *Thread {
	if len(r.list) == 0 {
		return nil
	}
	t := r.list[0]
	r.list = r.list[1:]
	return t
}

func (r *priorityReady) requeue(t *Thread) {
	r.remove(t)
	r.push(t)
}

func (r *priorityReady) remove(t *Thread) {
	for i, c := range r.list {
		if c == t {
			r.list = append(r.list[:i], r.list[i+1:]...)
			return
		}
	}
}

func (r *priorityReady) empty() bool { return len(r.list) == 0 }

func (r *priorityReady) snapshot() []*Thread {
	out := make([]*Thread, len(r.list))
	copy(out, r.list)
	return out
}

// mlfqReady is 64 FIFO queues, one per priority level; the scheduler picks
// from the highest non-empty level and round-robins within it.
type mlfqReady struct {
	queues [PriMax + 1][]*Thread
}

func newMLFQReady() *mlfqReady {
	return &mlfqReady{}
}

func (r *mlfqReady) push(t *Thread) {
	p := clampPriority(t.Priority())
	t.mlfqQueue = p
	r.queues[p] = append(r.queues[p], t)
}

func (r *mlfqReady) popHighest() *Thread {
	for p := PriMax; p >= PriMin; p-- {
		if len(r.queues[p]) > 0 {
			t := r.queues[p][0]
			r.queues[p] = r.queues[p][1:]
			return t
		}
	}
	return nil
}

// requeue moves t to the queue matching its current priority; used after
// the periodic MLFQ recompute changes a ready thread's priority.
func (r *mlfqReady) requeue(t *Thread) {
	old := t.mlfqQueue
	for i, c := range r.queues[old] {
		if c == t {
			r.queues[old] = append(r.queues[old][:i], r.queues[old][i+1:]...)
			break
		}
	}
	r.push(t)
}

func (r *mlfqReady) empty() bool {
	for _, q := range r.queues {
		if len(q) > 0 {
			return false
		}
	}
	return true
}

func (r *mlfqReady) snapshot() []*Thread {
	var out []*Thread
	for p := PriMax; p >= PriMin; p-- {
		out = append(out, r.queues[p]...)
	}
	return out
}

func clampPriority(p int) int {
	if p < PriMin {
		return PriMin
	}
	if p > PriMax {
		return PriMax
	}
	return p
}
