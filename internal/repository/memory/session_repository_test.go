package memory

import (
	"testing"
	"time"

	"testcase-workflow-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepositorySaveGetDelete(t *testing.T) {
	repo := NewSessionRepository(time.Hour)
	s := store.NewWorkflowSession("s-1", "user123", "Portal")

	repo.Save(s)
	got, ok := repo.Get("s-1")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Len(t, repo.All(), 1)

	repo.Delete("s-1")
	_, ok = repo.Get("s-1")
	assert.False(t, ok)
	assert.Equal(t, 0, repo.Count())
}

func TestSessionRepositoryGetOrAddKeepsFirst(t *testing.T) {
	repo := NewSessionRepository(time.Hour)
	first := store.NewWorkflowSession("s-1", "user123", "First")
	second := store.NewWorkflowSession("s-1", "user123", "Second")

	assert.Same(t, first, repo.GetOrAdd(first))
	assert.Same(t, first, repo.GetOrAdd(second))
}

func TestSessionRepositoryExpires(t *testing.T) {
	repo := NewSessionRepository(20 * time.Millisecond)
	repo.Save(store.NewWorkflowSession("s-1", "user123", "Portal"))

	time.Sleep(50 * time.Millisecond)
	_, ok := repo.Get("s-1")
	assert.False(t, ok)
}
