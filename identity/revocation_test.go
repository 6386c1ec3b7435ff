package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRevocationList_PrunesExpired(t *testing.T) {
	l := newRevocationList()
	now := time.Now()

	l.revoke("a", now.Add(time.Minute), now)
	l.revoke("already-expired", now.Add(-time.Minute), now)
	assert.True(t, l.isRevoked("a"))
	assert.False(t, l.isRevoked("already-expired"))

	later := now.Add(2 * time.Minute)
	l.revoke("b", later.Add(time.Minute), later)

	assert.False(t, l.isRevoked("a"), "expired entries are pruned")
	assert.True(t, l.isRevoked("b"))
	assert.Equal(t, 1, l.len())
}
