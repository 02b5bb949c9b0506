package scheduler

import (
	"sort"
	"sync"
)

// Registry is the set of stream ids that currently have a running monitor.
type Registry struct {
	mu  sync.Mutex
	ids map[int64]struct{}
}

func NewRegistry() *Registry {
	return &Registry{ids: make(map[int64]struct{})}
}

// TryAdd inserts id and reports whether it was absent. Only the caller that
// gets true may start a monitor for id.
func (r *Registry) TryAdd(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[id]; ok {
		return false
	}
	r.ids[id] = struct{}{}
	return true
}

func (r *Registry) Remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ids, id)
}

func (r *Registry) Has(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

// IDs returns the running ids in ascending order.
func (r *Registry) IDs() []int64 {
	r.mu.Lock()
	out := make([]int64, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
