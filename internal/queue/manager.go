// Package queue maintains each project's queue of candidate stems and the
// anonymous votes cast on them.
package queue

import (
	"context"

	"go.uber.org/zap"

	"github.com/Vasu1712/stemhub-backend/internal/metrics"
	"github.com/Vasu1712/stemhub-backend/internal/models"
	"github.com/Vasu1712/stemhub-backend/internal/storage"
)

// Notifier receives the current ranking of a project's queue after it changes.
type Notifier interface {
	PublishTally(projectID string, tally []models.QueuedStem)
}

// Manager implements enqueueing, voting and tallying. Every mutation is one
// ProjectStore.Update, so a vote and its nullifier spend land together.
type Manager struct {
	projects storage.ProjectStore
	notifier Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewManager returns a Manager. notifier may be nil.
func NewManager(projects storage.ProjectStore, notifier Notifier, m *metrics.Metrics, log *zap.Logger) *Manager {
	return &Manager{projects: projects, notifier: notifier, metrics: m, log: log}
}

// Enqueue appends stem to the project's queue on behalf of userID, who must be
// a collaborator.
func (m *Manager) Enqueue(ctx context.Context, projectID, userID string, stem models.Stem) (models.QueuedStem, error) {
	var queued models.QueuedStem
	p, err := m.projects.Update(ctx, projectID, func(p *models.Project) error {
		if !p.IsCollaborator(userID) {
			return models.ErrCollaboratorOnly
		}
		var err error
		queued, err = p.Enqueue(stem)
		return err
	})
	if err != nil {
		return models.QueuedStem{}, err
	}

	m.log.Info("Stem queued", zap.String("projectID", projectID), zap.String("stemID", stem.ID), zap.Int("queueLength", len(p.Queue)))
	m.Publish(p)
	return queued, nil
}

// CastVote records one vote on stemID by the identity (commitment, nullifier)
// and returns the stem's new total. The nullifier is spent for this stem only.
func (m *Manager) CastVote(ctx context.Context, projectID, stemID, commitment, nullifier string) (int, error) {
	if commitment == "" || nullifier == "" {
		m.countVote(models.ErrNotEligibleVoter)
		return 0, models.ErrNotEligibleVoter
	}

	var total int
	p, err := m.projects.Update(ctx, projectID, func(p *models.Project) error {
		// Same membership test as group.Service.IsMember.
		voter, ok := p.Voter(commitment)
		if !ok || voter.Nullifier != nullifier {
			return models.ErrNotEligibleVoter
		}
		if p.IsSpent(stemID, nullifier) {
			return models.ErrNullifierSpent
		}
		idx := p.QueueIndex(stemID)
		if idx < 0 {
			return models.ErrStemNotQueued
		}
		p.Queue[idx].Votes++
		p.Spend(stemID, nullifier)
		total = p.Queue[idx].Votes
		return nil
	})
	m.countVote(err)
	if err != nil {
		return 0, err
	}

	m.log.Debug("Vote recorded", zap.String("projectID", projectID), zap.String("stemID", stemID), zap.Int("votes", total))
	m.Publish(p)
	return total, nil
}

func (m *Manager) countVote(err error) {
	outcome := "accepted"
	if err != nil {
		outcome = models.CodeOf(err)
		if outcome == "" {
			outcome = "error"
		}
	}
	m.metrics.VotesCast.WithLabelValues(outcome).Inc()
}

// Tally returns the queue ordered by votes, highest first, with ties kept in
// queue order. It reads a single snapshot and changes nothing.
func (m *Manager) Tally(ctx context.Context, projectID string) ([]models.QueuedStem, error) {
	p, err := m.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return models.Tally(p.Queue), nil
}

// Publish pushes p's current ranking to the notifier, if any.
func (m *Manager) Publish(p *models.Project) {
	if m.notifier == nil || p == nil {
		return
	}
	m.notifier.PublishTally(p.ID, models.Tally(p.Queue))
}

