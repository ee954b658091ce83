package memory

import (
	"time"

	"testcase-workflow-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps workflow sessions in memory. Entries expire after
// ttl without access.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	// purge expired items every 10 minutes
	c := cache.New(ttl, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(session *store.WorkflowSession) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

// Get returns the session and refreshes its expiry.
func (r *SessionRepository) Get(sessionID string) (*store.WorkflowSession, bool) {
	if x, found := r.cache.Get(sessionID); found {
		s := x.(*store.WorkflowSession)
		r.cache.Set(sessionID, s, cache.DefaultExpiration)
		return s, true
	}
	return nil, false
}

// GetOrAdd stores session unless one with the same id already exists, and
// returns whichever is stored.
func (r *SessionRepository) GetOrAdd(session *store.WorkflowSession) *store.WorkflowSession {
	if err := r.cache.Add(session.ID, session, cache.DefaultExpiration); err != nil {
		if existing, ok := r.Get(session.ID); ok {
			return existing
		}
		r.Save(session)
	}
	return session
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

// All returns every live session.
func (r *SessionRepository) All() []*store.WorkflowSession {
	items := r.cache.Items()
	out := make([]*store.WorkflowSession, 0, len(items))
	for _, item := range items {
		if s, ok := item.Object.(*store.WorkflowSession); ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
