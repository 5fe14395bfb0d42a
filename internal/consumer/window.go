package consumer

// dedupWindow is a bounded FIFO set of recently seen post ids. It is a
// heuristic, not an exact record: once capacity is reached the oldest id
// is forgotten, and a rare duplicate pass-through is accepted because
// actions are guarded by the already-replied probe anyway.
type dedupWindow struct {
	capacity int
	order    []string
	seen     map[string]struct{}
}

func newDedupWindow(capacity int) *dedupWindow {
	return &dedupWindow{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

func (w *dedupWindow) Contains(id string) bool {
	_, ok := w.seen[id]
	return ok
}

func (w *dedupWindow) Insert(id string) {
	if w.Contains(id) {
		return
	}
	if len(w.order) >= w.capacity {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.seen, oldest)
	}
	w.order = append(w.order, id)
	w.seen[id] = struct{}{}
}
