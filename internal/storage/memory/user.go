package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Vasu1712/stemhub-backend/internal/models"
)

// UserStore keeps User documents in memory, keyed by wallet address.
type UserStore struct {
	mu    sync.RWMutex            // Guards users
	users map[string]*models.User // userID -> user
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[string]*models.User),
	}
}

// Get returns a snapshot of the user.
func (s *UserStore) Get(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock() // Acquire a read lock
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return u.Clone(), nil
}

// Update creates the user on first use. A failing fn stores nothing, not even
// the new empty record.
func (s *UserStore) Update(_ context.Context, id string, fn func(*models.User) error) (*models.User, error) {
	s.mu.Lock() // Held across fn so concurrent updates of one user serialize
	defer s.mu.Unlock()

	current, ok := s.users[id]
	if !ok {
		current = models.NewUser(id)
	}
	next := current.Clone() // fn works on a copy until it succeeds
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id
	next.UpdatedAt = time.Now().UTC()
	s.users[id] = next
	return next.Clone(), nil
}
