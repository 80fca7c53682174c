package matchmaking

// AvailabilityQueue is the set of clients seeking a partner. Members are kept
// in arrival order so candidate scans are deterministic for a given seed.
type AvailabilityQueue struct {
	order []string
	index map[string]struct{}
}

func NewAvailabilityQueue() *AvailabilityQueue {
	return &AvailabilityQueue{index: make(map[string]struct{})}
}

func (q *AvailabilityQueue) Add(id string) bool {
	if _, ok := q.index[id]; ok {
		return false
	}
	q.index[id] = struct{}{}
	q.order = append(q.order, id)
	return true
}

func (q *AvailabilityQueue) Remove(id string) bool {
	if _, ok := q.index[id]; !ok {
		return false
	}
	delete(q.index, id)
	for i, member := range q.order {
		if member == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

func (q *AvailabilityQueue) Contains(id string) bool {
	_, ok := q.index[id]
	return ok
}

func (q *AvailabilityQueue) Len() int {
	return len(q.order)
}

// Members returns a copy of the queue in arrival order.
func (q *AvailabilityQueue) Members() []string {
	out := make([]string, len(q.order))
	copy(out, q.order)
	return out
}
