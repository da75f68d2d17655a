package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Vasu1712/stemhub-backend/internal/models"
)

// ProjectStore manages the storage and retrieval of Project documents in memory.
type ProjectStore struct {
	mu         sync.RWMutex               // Guards every map below
	projects   map[string]*models.Project // projectID -> project
	nameIndex  map[string]string          // name -> projectID, enforces unique names
	groupIndex map[int64]string           // votingGroupID -> projectID
	log        *zap.Logger
}

// NewProjectStore creates and returns a new instance of ProjectStore.
func NewProjectStore(log *zap.Logger) *ProjectStore {
	return &ProjectStore{
		projects:   make(map[string]*models.Project),
		nameIndex:  make(map[string]string),
		groupIndex: make(map[int64]string),
		log:        log,
	}
}

// Create stores a copy of p. Names are unique across the store.
func (s *ProjectStore) Create(_ context.Context, p *models.Project) error {
	s.mu.Lock() // Acquire a write lock
	defer s.mu.Unlock()

	if _, taken := s.nameIndex[p.Name]; taken {
		return models.ErrNameTaken
	}
	if _, taken := s.groupIndex[p.VotingGroupID]; taken {
		return models.Invalid("votingGroupId", "group %d already owned by another project", p.VotingGroupID)
	}

	s.projects[p.ID] = p.Clone()
	s.nameIndex[p.Name] = p.ID
	s.groupIndex[p.VotingGroupID] = p.ID

	s.log.Debug("Project stored", zap.String("projectID", p.ID), zap.String("name", p.Name), zap.Int64("votingGroupID", p.VotingGroupID))
	return nil
}

// Get retrieves a snapshot of a project by its ID.
func (s *ProjectStore) Get(_ context.Context, id string) (*models.Project, error) {
	s.mu.RLock() // Acquire a read lock
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, models.ErrProjectNotFound
	}
	return p.Clone(), nil
}

// GetByGroup retrieves the project owning a voting group.
func (s *ProjectStore) GetByGroup(ctx context.Context, votingGroupID int64) (*models.Project, error) {
	s.mu.RLock()
	id, ok := s.groupIndex[votingGroupID]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrProjectNotFound
	}
	return s.Get(ctx, id)
}

// List returns snapshots of every project, oldest first.
func (s *ProjectStore) List(_ context.Context) ([]*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Update applies fn to a copy of the project under the write lock and
// commits the copy only if fn succeeds.
func (s *ProjectStore) Update(_ context.Context, id string, fn func(*models.Project) error) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.projects[id]
	if !ok {
		return nil, models.ErrProjectNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	// Name, id and group are fixed at creation; the indexes depend on them.
	next.ID, next.Name, next.VotingGroupID = current.ID, current.Name, current.VotingGroupID
	next.UpdatedAt = time.Now().UTC()

	s.projects[id] = next
	return next.Clone(), nil
}

// Delete removes a project and its index entries.
func (s *ProjectStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return models.ErrProjectNotFound
	}
	delete(s.projects, id)
	delete(s.nameIndex, p.Name)
	delete(s.groupIndex, p.VotingGroupID)

	s.log.Debug("Project removed", zap.String("projectID", id))
	return nil
}
