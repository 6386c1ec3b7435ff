package identity

import (
	"sync"
	"time"
)

// revocationList remembers signed-out token IDs until they would have
// expired anyway.
type revocationList struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func newRevocationList() *revocationList {
	return &revocationList{revoked: map[string]time.Time{}}
}

func (l *revocationList) revoke(id string, expiresAt, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, exp := range l.revoked {
		if !exp.After(now) {
			delete(l.revoked, k)
		}
	}
	if expiresAt.After(now) {
		l.revoked[id] = expiresAt
	}
}

func (l *revocationList) isRevoked(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.revoked[id]
	return ok
}

func (l *revocationList) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.revoked)
}
