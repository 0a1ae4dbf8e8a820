package bus

import "sync"

// Hub is a set of listeners for one stream of values.
type Hub[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]func(T)
	// order keeps delivery in subscription order.
	order []int
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: map[int]func(T){}}
}

// Subscribe adds fn and returns a function that removes it again.
func (h *Hub[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	h.subs[id] = fn
	h.order = append(h.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			for i, v := range h.order {
				if v == id {
					h.order = append(h.order[:i:i], h.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish calls every listener with v. Listeners run on the caller's
// goroutine, outside the hub lock.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	fns := make([]func(T), 0, len(h.order))
	for _, id := range h.order {
		fns = append(fns, h.subs[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of listeners.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
