package userlock

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestLockSerializesSameUser(t *testing.T) {
	l := New()
	userID := uuid.New()

	const workers = 50
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(userID)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	require.Equal(t, workers, counter)
}

func TestLockDifferentUsersIndependent(t *testing.T) {
	l := New()
	a, b := uuid.New(), uuid.New()

	unlockA := l.Lock(a)
	defer unlockA()

	// must not block while a's lock is held
	done := make(chan struct{})
	go func() {
		unlockB := l.Lock(b)
		unlockB()
		close(done)
	}()
	<-done
}
