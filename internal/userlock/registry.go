package userlock

import (
	"sync"

	"go.uber.org/fx"
)

// Registry issues one shared exclusive lock per user identifier so payout-
// affecting operations on the same user never race. Entries live for the
// process lifetime; the map grows with the set of users ever locked.
type Registry struct {
	locks sync.Map // int64 -> *sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{}
}

// LockFor returns the shared lock handle for userID, creating it on first
// use. The registry is advisory: callers supply the critical section.
func (r *Registry) LockFor(userID int64) *sync.Mutex {
	if existing, ok := r.locks.Load(userID); ok {
		return existing.(*sync.Mutex)
	}
	actual, _ := r.locks.LoadOrStore(userID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

var Module = fx.Module("userlock",
	fx.Provide(NewRegistry),
)
