package content

import (
	"context"
	"sync"
)

// Notifier fans delete events out to subscribers, synchronously and in
// subscription order.
type Notifier struct {
	mu       sync.RWMutex
	nextID   int
	order    []int
	handlers map[int]DeleteHandler
}

func NewNotifier() *Notifier {
	return &Notifier{handlers: make(map[int]DeleteHandler)}
}

func (n *Notifier) Subscribe(h DeleteHandler) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.handlers[id] = h
	n.order = append(n.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()

			delete(n.handlers, id)
			for i, v := range n.order {
				if v == id {
					n.order = append(n.order[:i], n.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (n *Notifier) Notify(ctx context.Context, ev DeleteEvent) {
	n.mu.RLock()
	hs := make([]DeleteHandler, 0, len(n.order))
	for _, id := range n.order {
		hs = append(hs, n.handlers[id])
	}
	n.mu.RUnlock()

	for _, h := range hs {
		h(ctx, ev)
	}
}
