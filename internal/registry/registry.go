// Package registry stores the scope records owned by one container. It is an
// append-only arena: ids are slot indexes, deleted slots become holes and are
// never handed out again.
package registry

import "sync"

// Record is the state kept for one open scope.
type Record[T any] struct {
	Value       T
	Initialized bool
}

type slot[T any] struct {
	record Record[T]
	live   bool
}

// Registry is safe for concurrent use.
type Registry[T any] struct {
	mu    sync.RWMutex
	slots []slot[T]
}

// New returns an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Open appends an uninitialized record and returns its id.
func (r *Registry[T]) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = append(r.slots, slot[T]{live: true})
	return len(r.slots) - 1
}

// Get returns a copy of the record stored at id. ok is false for deleted or
// unknown ids.
func (r *Registry[T]) Get(id int) (Record[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.slots) || !r.slots[id].live {
		return Record[T]{}, false
	}
	return r.slots[id].record, true
}

// Update applies fn to the live record at id while holding the write lock.
// It returns false, without calling fn, when the record is gone.
func (r *Registry[T]) Update(id int, fn func(*Record[T])) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.slots) || !r.slots[id].live {
		return false
	}
	fn(&r.slots[id].record)
	return true
}

// Delete turns id into a hole. Deleting an unknown or already deleted id is a
// no-op.
func (r *Registry[T]) Delete(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.slots) {
		return
	}
	r.slots[id] = slot[T]{}
}

// Live returns the ids of every record that has not been deleted, in
// ascending order.
func (r *Registry[T]) Live() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int, 0, len(r.slots))
	for id, s := range r.slots {
		if s.live {
			out = append(out, id)
		}
	}
	return out
}
