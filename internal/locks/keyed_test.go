package locks

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := NewKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("bet-1")
			defer unlock()
			v := counter
			v++
			counter = v
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.Held())
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	k := NewKeyedMutex()

	unlockA := k.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		close(done)
	}()
	<-done

	assert.Equal(t, 1, k.Held())
}

func TestKeyedMutex_UnlockIsIdempotent(t *testing.T) {
	k := NewKeyedMutex()

	unlock := k.Lock("a")
	unlock()
	unlock()

	assert.Equal(t, 0, k.Held())
}

func TestLockAll_OrdersAndDedups(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, sortedUnique([]string{"c", "", "a", "b", "a"}))

	k := NewKeyedMutex()
	var wg sync.WaitGroup
	// Opposite argument orders would deadlock without sorting
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			k.LockAll("x", "y")()
		}()
		go func() {
			defer wg.Done()
			k.LockAll("y", "x")()
		}()
	}
	wg.Wait()

	require.Equal(t, 0, k.Held())
}

func TestLedgerLocks(t *testing.T) {
	l := NewLedgerLocks()

	unlockBet := l.Bet("bet-1")
	unlockUsers := l.Users("u2", "u1")
	unlockUsers()
	unlockBet()

	assert.Equal(t, 0, l.bets.Held())
	assert.Equal(t, 0, l.users.Held())
}
