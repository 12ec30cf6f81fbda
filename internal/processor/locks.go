package processor

import (
	"sync"
)

// accountLockMap hands out one mutex per Stellar account, so submissions touching the
// same account are serialized while unrelated accounts proceed in parallel. Locks are
// never evicted; the population is bounded by the anchor's distribution accounts plus
// in-flight destinations.
type accountLockMap struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLockMap() *accountLockMap {
	return &accountLockMap{locks: make(map[string]*sync.Mutex)}
}

// forAccount returns the mutex for the given account, creating it on first use.
func (m *accountLockMap) forAccount(account string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[account]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[account] = lock
	}
	return lock
}

// lockRegistry groups the lock maps the pipeline serializes on.
type lockRegistry struct {
	// SourceAccounts serializes submissions sharing a distribution account, keeping their
	// sequence numbers from colliding.
	SourceAccounts *accountLockMap
	// DestinationAccounts serializes operations against a destination account, e.g. an
	// account creation racing the deposit payment.
	DestinationAccounts *accountLockMap
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{
		SourceAccounts:      newAccountLockMap(),
		DestinationAccounts: newAccountLockMap(),
	}
}
