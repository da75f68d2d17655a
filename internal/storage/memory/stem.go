package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Vasu1712/stemhub-backend/internal/models"
)

// StemStore keeps stem metadata in memory. Stems are immutable once created.
type StemStore struct {
	mu    sync.RWMutex           // Guards stems
	stems map[string]models.Stem // stemID -> stem, stored by value
}

// NewStemStore creates an empty StemStore.
func NewStemStore() *StemStore {
	return &StemStore{
		stems: make(map[string]models.Stem),
	}
}

// Create stores a copy of stem. Ids are unique.
func (s *StemStore) Create(_ context.Context, stem *models.Stem) error {
	s.mu.Lock() // Acquire a write lock
	defer s.mu.Unlock()
	if _, exists := s.stems[stem.ID]; exists {
		return models.ErrDuplicateStem
	}
	s.stems[stem.ID] = *stem
	return nil
}

func (s *StemStore) Get(_ context.Context, id string) (*models.Stem, error) {
	s.mu.RLock() // Acquire a read lock
	defer s.mu.RUnlock()
	stem, ok := s.stems[id]
	if !ok {
		return nil, models.ErrStemNotFound
	}
	return &stem, nil
}

// Delete removes the given stems. Unknown ids are ignored.
func (s *StemStore) Delete(_ context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.stems, id)
	}
	return nil
}

// GroupAllocator is a process-wide monotonically increasing counter.
type GroupAllocator struct {
	last atomic.Int64 // Last id handed out; zero before the first
}

func NewGroupAllocator() *GroupAllocator {
	return &GroupAllocator{}
}

func (a *GroupAllocator) NextGroupID(_ context.Context) (int64, error) {
	return a.last.Add(1), nil
}
