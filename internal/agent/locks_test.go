package agent

import (
	"sync"
	"testing"
)

func TestTurnLocksTryAcquire(t *testing.T) {
	locks := NewTurnLocks()

	if !locks.TryAcquire("a") {
		t.Fatal("first acquire failed")
	}
	if locks.TryAcquire("a") {
		t.Error("second acquire of the same id succeeded")
	}
	if !locks.TryAcquire("b") {
		t.Error("acquire of an unrelated id failed")
	}

	locks.Release("a")
	if !locks.TryAcquire("a") {
		t.Error("acquire after release failed")
	}
}

func TestTurnLocksReleaseUnheldIsNoop(t *testing.T) {
	locks := NewTurnLocks()
	locks.Release("never-held")
	if locks.Held("never-held") {
		t.Error("release created a held entry")
	}
}

func TestTurnLocksConcurrentSingleWinner(t *testing.T) {
	locks := NewTurnLocks()
	const goroutines = 32

	var wg sync.WaitGroup
	wins := make(chan struct{}, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if locks.TryAcquire("contested") {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Errorf("winners = %d, want exactly 1", count)
	}
}
