// Package storage defines the document store contracts the voting subsystem
// runs on. Implementations live in the memory, postgres and valkey subpackages.
package storage

import (
	"context"

	"github.com/Vasu1712/stemhub-backend/internal/models"
)

// ProjectStore persists Project documents.
//
// Update is the only way to mutate a stored project. fn runs against a private
// copy and the copy is committed only when fn returns nil, so a failed
// mutation leaves the stored document untouched. Concurrent Updates of the same
// project are serialized.
type ProjectStore interface {
	// Create stores a new project. It fails with models.ErrNameTaken if the
	// name is already in use.
	Create(ctx context.Context, p *models.Project) error
	Get(ctx context.Context, id string) (*models.Project, error)
	GetByGroup(ctx context.Context, votingGroupID int64) (*models.Project, error)
	List(ctx context.Context) ([]*models.Project, error)
	Update(ctx context.Context, id string, fn func(*models.Project) error) (*models.Project, error)
	Delete(ctx context.Context, id string) error
}

// UserStore persists User documents. Update creates the user if it does not
// exist yet, with the same all-or-nothing semantics as ProjectStore.Update.
type UserStore interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, fn func(*models.User) error) (*models.User, error)
}

// StemStore persists immutable Stem records.
type StemStore interface {
	Create(ctx context.Context, s *models.Stem) error
	Get(ctx context.Context, id string) (*models.Stem, error)
	Delete(ctx context.Context, ids ...string) error
}

// GroupAllocator hands out voting group ids. Ids are positive, strictly
// increasing and never reissued.
type GroupAllocator interface {
	NextGroupID(ctx context.Context) (int64, error)
}
