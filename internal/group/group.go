// Package group manages voting groups: numeric namespaces of anonymous voter
// identities, each owned by exactly one project.
package group

import (
	"context"
	"fmt"

	"github.com/Vasu1712/stemhub-backend/internal/storage"
)

// Service allocates voting group ids and answers membership queries against
// the owning project's voter identities. IsMember and queue.Manager.CastVote
// both decide membership with Project.Voter; CastVote calls it inside the
// project update so the check and the vote commit together.
type Service struct {
	projects  storage.ProjectStore
	allocator storage.GroupAllocator
}

// NewService returns a Service over projects, drawing new ids from allocator.
func NewService(projects storage.ProjectStore, allocator storage.GroupAllocator) *Service {
	return &Service{projects: projects, allocator: allocator}
}

// AllocateGroupID returns a group id that has never been issued before.
func (s *Service) AllocateGroupID(ctx context.Context) (int64, error) {
	id, err := s.allocator.NextGroupID(ctx)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("allocator returned non-positive voting group id %d", id)
	}
	return id, nil
}

// IsMember reports whether commitment is registered in votingGroupID.
func (s *Service) IsMember(ctx context.Context, votingGroupID int64, commitment string) (bool, error) {
	p, err := s.projects.GetByGroup(ctx, votingGroupID)
	if err != nil {
		return false, err
	}
	_, ok := p.Voter(commitment)
	return ok, nil
}

// Members returns a sorted snapshot of the group's commitments.
func (s *Service) Members(ctx context.Context, votingGroupID int64) ([]string, error) {
	p, err := s.projects.GetByGroup(ctx, votingGroupID)
	if err != nil {
		return nil, err
	}
	return p.Commitments(), nil
}
