package reconcile

import "sync"

// EntityKind names the entity families the guard tracks independently.
type EntityKind string

const (
	EntityOrder   EntityKind = "order"
	EntityCompany EntityKind = "company"
)

// String returns the string representation of EntityKind
func (k EntityKind) String() string {
	return string(k)
}

// Guard suppresses webhook echo loops. While the engine is writing back to
// the catalog, the catalog fires webhooks describing the engine's own writes;
// holding the kind's flag for the duration of the write-back lets the
// handlers drop those echoes instead of re-processing them.
//
// One flag per entity kind, all orders (or all companies) sharing one flag.
// Coarse, but webhook volume is low enough that the collateral drops do not
// matter in practice. Single-process only: two replicas would each carry
// their own guard and suppress nothing of the other's echoes.
type Guard struct {
	mu   sync.Mutex
	busy map[EntityKind]bool
}

// NewGuard creates a guard with all flags clear.
func NewGuard() *Guard {
	return &Guard{busy: make(map[EntityKind]bool)}
}

// TryAcquire takes the kind's flag. On success it returns a release function
// the caller must defer, so the flag clears on every exit path including
// failures. ok is false when the flag is already held.
func (g *Guard) TryAcquire(kind EntityKind) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy[kind] {
		return nil, false
	}
	g.busy[kind] = true
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.busy[kind] = false
	}, true
}

// Busy reports whether the kind's flag is currently held.
func (g *Guard) Busy(kind EntityKind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy[kind]
}
