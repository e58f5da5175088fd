package service

import "sync"

// investmentLocks serializes mutations per investment. Every mutating
// operation reads the current balance and writes a derived one, so the
// engine guarantees at-most-one in-flight mutation per investment ID.
// Operations on different investments proceed in parallel.
type investmentLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newInvestmentLocks() *investmentLocks {
	return &investmentLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for one investment and returns its unlock.
func (l *investmentLocks) Lock(investmentID string) func() {
	l.mu.Lock()
	m, ok := l.locks[investmentID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[investmentID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
