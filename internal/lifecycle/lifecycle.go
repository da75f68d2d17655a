// Package lifecycle owns project creation and deletion, collaborator
// membership, stem submission and promotion of queued stems under the
// project's track limit.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Vasu1712/stemhub-backend/internal/group"
	"github.com/Vasu1712/stemhub-backend/internal/metrics"
	"github.com/Vasu1712/stemhub-backend/internal/models"
	"github.com/Vasu1712/stemhub-backend/internal/queue"
	"github.com/Vasu1712/stemhub-backend/internal/storage"
)

// Policy selects which queued stems a promotion moves.
type Policy struct {
	MaxPromotions int `json:"maxPromotions"`
	MinVotes      int `json:"minVotes"`
}

func (p Policy) validate() error {
	if p.MaxPromotions < 0 {
		return models.Invalid("maxPromotions", "must not be negative")
	}
	if p.MinVotes < 0 {
		return models.Invalid("minVotes", "must not be negative")
	}
	return nil
}

// Submission is the outcome of SubmitStem.
type Submission struct {
	Stem   models.Stem `json:"stem"`
	Status string      `json:"status"` // StatusQueued or StatusAccepted
}

const (
	StatusQueued   = "queued"
	StatusAccepted = "accepted"
)

// Service keeps the cross-document bookkeeping (users' project and stem
// lists) consistent with the project documents it changes.
type Service struct {
	projects storage.ProjectStore
	users    storage.UserStore
	stems    storage.StemStore
	groups   *group.Service
	queue    *queue.Manager
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

func NewService(
	projects storage.ProjectStore,
	users storage.UserStore,
	stems storage.StemStore,
	groups *group.Service,
	q *queue.Manager,
	m *metrics.Metrics,
	log *zap.Logger,
) *Service {
	return &Service{
		projects: projects,
		users:    users,
		stems:    stems,
		groups:   groups,
		queue:    q,
		metrics:  m,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateProject validates req, allocates a fresh voting group and stores the
// project. The creator is always a collaborator.
func (s *Service) CreateProject(ctx context.Context, req models.NewProject) (*models.Project, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	groupID, err := s.groups.AllocateGroupID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocating voting group: %w", err)
	}

	now := s.now()
	p := &models.Project{
		ID:              uuid.NewString(),
		CreatedBy:       req.CreatedBy,
		Collaborators:   req.Collaborators,
		Name:            req.Name,
		Description:     req.Description,
		BPM:             req.BPM,
		TrackLimit:      req.TrackLimit,
		Tags:            req.Tags,
		Stems:           []models.Stem{},
		Queue:           []models.QueuedStem{},
		VotingGroupID:   groupID,
		VoterIdentities: []models.VoterIdentity{},
		SpentNullifiers: map[string]bool{},
		DirectAccept:    req.DirectAccept,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, err
	}

	for _, userID := range p.Collaborators {
		s.linkUser(ctx, userID, func(u *models.User) { u.AddProject(p.ID) })
	}

	s.log.Info("Project created",
		zap.String("projectID", p.ID), zap.String("name", p.Name),
		zap.String("createdBy", p.CreatedBy), zap.Int64("votingGroupID", groupID))
	return p, nil
}

// GetProject returns a snapshot of a project.
func (s *Service) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	return s.projects.Get(ctx, projectID)
}

// DeleteProject removes a project, its stems and its place in collaborators'
// project lists. Only the creator may delete. The voting group id is not
// released.
func (s *Service) DeleteProject(ctx context.Context, projectID, userID string) error {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if p.CreatedBy != userID {
		return models.ErrCollaboratorOnly
	}
	if err := s.projects.Delete(ctx, projectID); err != nil {
		return err
	}

	stemIDs := make([]string, 0, len(p.Stems)+len(p.Queue))
	for _, st := range p.Stems {
		stemIDs = append(stemIDs, st.ID)
	}
	for _, q := range p.Queue {
		stemIDs = append(stemIDs, q.Stem.ID)
	}
	if err := s.stems.Delete(ctx, stemIDs...); err != nil {
		s.log.Error("Failed to delete stems of removed project", zap.String("projectID", projectID), zap.Error(err))
	}
	for _, c := range p.Collaborators {
		s.linkUser(ctx, c, func(u *models.User) { u.RemoveProject(projectID) })
	}

	s.log.Info("Project deleted", zap.String("projectID", projectID), zap.Int("stems", len(stemIDs)))
	return nil
}

// AddCollaborator adds userID to the project. Adding an existing collaborator
// is a no-op.
func (s *Service) AddCollaborator(ctx context.Context, projectID, userID string) (*models.Project, error) {
	if userID == "" {
		return nil, models.Invalid("userId", "is required")
	}
	var added bool
	p, err := s.projects.Update(ctx, projectID, func(p *models.Project) error {
		added = p.AddCollaborator(userID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if added {
		s.linkUser(ctx, userID, func(u *models.User) { u.AddProject(projectID) })
		s.log.Info("Collaborator added", zap.String("projectID", projectID), zap.String("userID", userID))
	}
	return p, nil
}

// SubmitStem stores a new stem from userID and either queues it for a vote
// or, for projects that accept directly, appends it while capacity remains.
func (s *Service) SubmitStem(ctx context.Context, projectID, userID string, draft models.StemDraft) (Submission, error) {
	if err := draft.Normalize(); err != nil {
		return Submission{}, err
	}
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return Submission{}, err
	}
	if !p.IsCollaborator(userID) {
		return Submission{}, models.ErrCollaboratorOnly
	}

	stem := models.Stem{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		CreatedBy: userID,
		Name:      draft.Name,
		Type:      draft.Type,
		Filename:  draft.Filename,
		AudioURL:  draft.AudioURL,
		CreatedAt: s.now(),
	}
	if err := s.stems.Create(ctx, &stem); err != nil {
		return Submission{}, fmt.Errorf("storing stem: %w", err)
	}

	status, err := s.place(ctx, p, userID, stem)
	if err != nil {
		if delErr := s.stems.Delete(ctx, stem.ID); delErr != nil {
			s.log.Error("Failed to remove orphaned stem", zap.String("stemID", stem.ID), zap.Error(delErr))
		}
		return Submission{}, err
	}

	s.linkUser(ctx, userID, func(u *models.User) { u.AddStem(stem.ID) })
	s.metrics.StemsSubmitted.WithLabelValues(status).Inc()
	return Submission{Stem: stem, Status: status}, nil
}

func (s *Service) place(ctx context.Context, p *models.Project, userID string, stem models.Stem) (string, error) {
	if !p.DirectAccept {
		_, err := s.queue.Enqueue(ctx, p.ID, userID, stem)
		return StatusQueued, err
	}

	accepted := false
	updated, err := s.projects.Update(ctx, p.ID, func(p *models.Project) error {
		if !p.IsCollaborator(userID) {
			return models.ErrCollaboratorOnly
		}
		accepted = false
		if err := p.AcceptStem(stem); err == nil {
			accepted = true
			return nil
		}
		// Full: fall back to the vote queue.
		_, err := p.Enqueue(stem)
		return err
	})
	if err != nil {
		return "", err
	}
	if accepted {
		s.log.Info("Stem accepted directly", zap.String("projectID", p.ID), zap.String("stemID", stem.ID))
		return StatusAccepted, nil
	}
	s.queue.Publish(updated)
	return StatusQueued, nil
}

// Promote moves the best-voted queued stems into the project's stems.
//
// It takes entries from the tally whose votes reach policy.MinVotes, at most
// min(policy.MaxPromotions, remaining capacity) of them, highest first. A
// project already at its track limit yields models.ErrNoCapacity and is left
// unchanged; that is a terminal state, not a failure to retry.
func (s *Service) Promote(ctx context.Context, projectID string, policy Policy) ([]models.Stem, error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}

	var promoted []models.Stem
	p, err := s.projects.Update(ctx, projectID, func(p *models.Project) error {
		promoted = nil
		capacity := p.Capacity()
		if capacity == 0 {
			return models.ErrNoCapacity
		}
		limit := min(policy.MaxPromotions, capacity)

		for _, entry := range models.Tally(p.Queue) {
			if len(promoted) == limit || entry.Votes < policy.MinVotes {
				break
			}
			if err := p.AcceptStem(entry.Stem); err != nil {
				return err
			}
			p.Dequeue(entry.Stem.ID)
			promoted = append(promoted, entry.Stem)
		}
		return nil
	})
	if errors.Is(err, models.ErrNoCapacity) {
		s.metrics.PromotionSkipped.Inc()
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if len(promoted) > 0 {
		s.metrics.StemsPromoted.Add(float64(len(promoted)))
		s.log.Info("Stems promoted",
			zap.String("projectID", projectID), zap.Int("promoted", len(promoted)),
			zap.Int("stems", len(p.Stems)), zap.Int("trackLimit", p.TrackLimit))
		s.queue.Publish(p)
	}
	if promoted == nil {
		promoted = []models.Stem{}
	}
	return promoted, nil
}

// UserProjects returns userID's record and the projects it lists. A user
// with no record yet gets an empty one. Projects deleted since the record was
// written are skipped.
func (s *Service) UserProjects(ctx context.Context, userID string) (*models.User, []*models.Project, error) {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, models.ErrUserNotFound) {
		return models.NewUser(userID), []*models.Project{}, nil
	}
	if err != nil {
		return nil, nil, err
	}

	projects := make([]*models.Project, 0, len(u.ProjectIDs))
	for _, id := range u.ProjectIDs {
		p, err := s.projects.Get(ctx, id)
		if errors.Is(err, models.ErrProjectNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		projects = append(projects, p)
	}
	return u, projects, nil
}

// linkUser applies a bookkeeping change to a user record. Failures are logged;
// the project document stays authoritative.
func (s *Service) linkUser(ctx context.Context, userID string, fn func(*models.User)) {
	_, err := s.users.Update(ctx, userID, func(u *models.User) error {
		fn(u)
		return nil
	})
	if err != nil {
		s.log.Warn("Failed to update user record", zap.String("userID", userID), zap.Error(err))
	}
}
