package scheduler

import (
	"sync"

	"github.com/syncbridge/backend/internal/domain/reconcile"
)

// PendingQueue is an in-memory, insertion-ordered set of orders awaiting a
// logistics confirmation, keyed by order id. Entries are volatile: a restart
// loses them. Removal never shifts the iteration a consumer is holding,
// because consumers only ever iterate over a Snapshot.
type PendingQueue struct {
	mu      sync.Mutex
	order   []string
	entries map[string]reconcile.PendingOrder
}

// NewPendingQueue creates an empty queue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{
		entries: make(map[string]reconcile.PendingOrder),
	}
}

// Add enqueues the order. Re-adding an already queued order id is a no-op, so
// a replayed webhook cannot duplicate an entry.
func (q *PendingQueue) Add(entry reconcile.PendingOrder) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.entries[entry.OrderID]; exists {
		return
	}
	q.entries[entry.OrderID] = entry
	q.order = append(q.order, entry.OrderID)
}

// Remove drops the order from the queue. Removing an absent id is a no-op.
func (q *PendingQueue) Remove(orderID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.entries[orderID]; !exists {
		return
	}
	delete(q.entries, orderID)
	for i, id := range q.order {
		if id == orderID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// Snapshot returns the queued entries in insertion order. The returned slice
// is a copy; mutating the queue while iterating it is safe.
func (q *PendingQueue) Snapshot() []reconcile.PendingOrder {
	q.mu.Lock()
	defer q.mu.Unlock()
	snapshot := make([]reconcile.PendingOrder, 0, len(q.order))
	for _, id := range q.order {
		snapshot = append(snapshot, q.entries[id])
	}
	return snapshot
}

// Len returns the number of queued entries.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
