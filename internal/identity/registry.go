// Package identity issues and revokes anonymous voter identities.
package identity

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/Vasu1712/stemhub-backend/internal/metrics"
	"github.com/Vasu1712/stemhub-backend/internal/models"
	"github.com/Vasu1712/stemhub-backend/internal/storage"
)

// Registry keeps a user's identities and the owning project's voter list in step.
type Registry struct {
	users    storage.UserStore
	projects storage.ProjectStore
	rand     io.Reader
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewRegistry returns a Registry writing identities to users and voter
// copies to projects.
func NewRegistry(users storage.UserStore, projects storage.ProjectStore, m *metrics.Metrics, log *zap.Logger) *Registry {
	return &Registry{
		users:    users,
		projects: projects,
		rand:     defaultRand,
		metrics:  m,
		log:      log,
	}
}

// Register issues userID a new identity in votingGroupID. The returned
// identity is the only copy that carries the trapdoor.
//
// The project copy is written before the user record. Until the user record
// holds the identity, Revoke reports ErrNotRegistered, and nobody outside
// this call knows the nullifier yet.
func (r *Registry) Register(ctx context.Context, userID string, votingGroupID int64) (models.VoterIdentity, error) {
	if userID == "" {
		return models.VoterIdentity{}, models.Invalid("userId", "is required")
	}

	project, err := r.projects.GetByGroup(ctx, votingGroupID)
	if err != nil {
		return models.VoterIdentity{}, err
	}
	// Cheap rejection; the user write below is the authoritative check.
	if user, err := r.users.Get(ctx, userID); err == nil && user.IsRegistered(votingGroupID) {
		return models.VoterIdentity{}, models.ErrAlreadyRegistered
	}

	id, err := Generate(r.rand, votingGroupID)
	if err != nil {
		return models.VoterIdentity{}, err
	}

	_, err = r.projects.Update(ctx, project.ID, func(p *models.Project) error {
		return p.AddVoter(id)
	})
	if err != nil {
		return models.VoterIdentity{}, err
	}

	_, err = r.users.Update(ctx, userID, func(u *models.User) error {
		return u.AddIdentity(models.UserIdentity{
			Commitment:     id.Commitment,
			Nullifier:      id.Nullifier,
			TrapdoorDigest: Digest(id.Trapdoor),
			VotingGroupID:  votingGroupID,
		})
	})
	if err != nil {
		// Withdraw the project copy; the identity was never handed out.
		if _, undoErr := r.projects.Update(ctx, project.ID, func(p *models.Project) error {
			p.RemoveVoter(id.Commitment)
			return nil
		}); undoErr != nil && !errors.Is(undoErr, models.ErrProjectNotFound) {
			r.log.Error("Failed to roll back identity registration",
				zap.String("projectID", project.ID), zap.Int64("votingGroupID", votingGroupID), zap.Error(undoErr))
		}
		return models.VoterIdentity{}, err
	}

	r.metrics.IdentityChanges.WithLabelValues("register").Inc()
	r.log.Info("Voter identity registered", zap.String("projectID", project.ID), zap.Int64("votingGroupID", votingGroupID))
	return id, nil
}

// Revoke removes userID's identity from votingGroupID. The project-side copy
// goes first so its nullifier stops validating immediately.
func (r *Registry) Revoke(ctx context.Context, userID string, votingGroupID int64) error {
	user, err := r.users.Get(ctx, userID)
	if errors.Is(err, models.ErrUserNotFound) {
		return models.ErrNotRegistered
	}
	if err != nil {
		return err
	}
	held, ok := user.Identity(votingGroupID)
	if !ok {
		return models.ErrNotRegistered
	}

	project, err := r.projects.GetByGroup(ctx, votingGroupID)
	switch {
	case errors.Is(err, models.ErrProjectNotFound):
		// The project is gone; only the user record is left to clean up.
	case err != nil:
		return err
	default:
		_, err = r.projects.Update(ctx, project.ID, func(p *models.Project) error {
			p.RemoveVoter(held.Commitment)
			return nil
		})
		if err != nil && !errors.Is(err, models.ErrProjectNotFound) {
			return err
		}
	}

	_, err = r.users.Update(ctx, userID, func(u *models.User) error {
		if cur, ok := u.Identity(votingGroupID); !ok || cur.Commitment != held.Commitment {
			return models.ErrNotRegistered
		}
		_, err := u.RemoveIdentity(votingGroupID)
		return err
	})
	if err != nil {
		return err
	}

	r.metrics.IdentityChanges.WithLabelValues("revoke").Inc()
	r.log.Info("Voter identity revoked", zap.Int64("votingGroupID", votingGroupID))
	return nil
}
