// Package userlock serializes same-user cart and checkout mutations.
// Operations for different users never contend; two requests for one user
// take turns, so concurrent add-to-cart calls cannot lose updates and
// checkout cannot interleave with a cart mutation.
package userlock

import (
	"sync"

	"github.com/google/uuid"
)

type Locker struct {
	mu sync.Map // uuid.UUID -> *sync.Mutex
}

func New() *Locker {
	return &Locker{}
}

// Lock acquires the user's mutex and returns the unlock func.
func (l *Locker) Lock(userID uuid.UUID) func() {
	v, _ := l.mu.LoadOrStore(userID, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
