package lifecycle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Vasu1712/stemhub-backend/internal/models"
)

// RunPromoter calls Promote on every project each interval until ctx is done.
// Projects at their track limit are skipped quietly.
func (s *Service) RunPromoter(ctx context.Context, interval time.Duration, policy Policy) error {
	if err := policy.validate(); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("Promoter started", zap.Duration("interval", interval),
		zap.Int("maxPromotions", policy.MaxPromotions), zap.Int("minVotes", policy.MinVotes))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Promoter stopped")
			return nil
		case <-ticker.C:
			s.PromoteAll(ctx, policy)
		}
	}
}

// PromoteAll runs one promotion pass over all projects and returns how many
// stems were promoted.
func (s *Service) PromoteAll(ctx context.Context, policy Policy) int {
	projects, err := s.projects.List(ctx)
	if err != nil {
		s.log.Error("Failed to list projects for promotion", zap.Error(err))
		return 0
	}

	total := 0
	for _, p := range projects {
		if len(p.Queue) == 0 {
			continue
		}
		promoted, err := s.Promote(ctx, p.ID, policy)
		switch {
		case errors.Is(err, models.ErrNoCapacity):
			s.log.Debug("Project at track limit", zap.String("projectID", p.ID))
		case errors.Is(err, models.ErrProjectNotFound):
			// deleted since listing
		case err != nil:
			s.log.Error("Promotion failed", zap.String("projectID", p.ID), zap.Error(err))
		default:
			total += len(promoted)
		}
	}
	return total
}
