package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Vasu1712/stemhub-backend/internal/models"
)

func TestIsUniqueViolation(t *testing.T) {
	nameErr := &pq.Error{Code: "23505", Constraint: "projects_name_key"}

	require.True(t, isUniqueViolation(nameErr, "projects_name_key"))
	require.True(t, isUniqueViolation(fmt.Errorf("insert: %w", nameErr), ""))
	require.False(t, isUniqueViolation(nameErr, "stems_pkey"))
	require.False(t, isUniqueViolation(&pq.Error{Code: "23503"}, ""))
	require.False(t, isUniqueViolation(errors.New("23505"), ""))
	require.False(t, isUniqueViolation(nil, ""))
}

// openTestDB connects to TEST_DATABASE_URL or skips the test.
func openTestDB(t *testing.T) *ProjectStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	log := zaptest.NewLogger(t)
	db, err := Open(context.Background(), dsn, log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewProjectStore(db, log)
}

func TestProjectStoreRoundTrip(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	groups := NewGroupSequence(s.db)
	gid, err := groups.NextGroupID(ctx)
	require.NoError(t, err)
	next, err := groups.NextGroupID(ctx)
	require.NoError(t, err)
	require.Greater(t, next, gid)

	p := &models.Project{
		ID:              uuid.NewString(),
		CreatedBy:       "0xcreator",
		Collaborators:   []string{"0xcreator"},
		Name:            "pg-" + uuid.NewString()[:8],
		TrackLimit:      2,
		VotingGroupID:   gid,
		Queue:           []models.QueuedStem{{Stem: models.Stem{ID: "s1"}}},
		SpentNullifiers: map[string]bool{},
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, s.Create(ctx, p))
	t.Cleanup(func() { s.Delete(context.Background(), p.ID) })

	dup := *p
	dup.ID = uuid.NewString()
	dup.VotingGroupID = next
	require.ErrorIs(t, s.Create(ctx, &dup), models.ErrNameTaken)

	byGroup, err := s.GetByGroup(ctx, gid)
	require.NoError(t, err)
	require.Equal(t, p.ID, byGroup.ID)

	_, err = s.Update(ctx, p.ID, func(p *models.Project) error {
		p.Queue[0].Votes++
		p.Spend("s1", "n1")
		return models.ErrNullifierSpent
	})
	require.ErrorIs(t, err, models.ErrNullifierSpent)

	updated, err := s.Update(ctx, p.ID, func(p *models.Project) error {
		p.Queue[0].Votes++
		p.Spend("s1", "n1")
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, updated.Queue[0].Votes)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Queue[0].Votes)
	require.True(t, got.IsSpent("s1", "n1"))

	require.NoError(t, s.Delete(ctx, p.ID))
	require.ErrorIs(t, s.Delete(ctx, p.ID), models.ErrProjectNotFound)
	_, err = s.Get(ctx, p.ID)
	require.ErrorIs(t, err, models.ErrProjectNotFound)
}

func TestUserStoreCreatesOnUpdate(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	users := NewUserStore(s.db)
	id := "0x" + uuid.NewString()

	_, err := users.Get(ctx, id)
	require.ErrorIs(t, err, models.ErrUserNotFound)

	_, err = users.Update(ctx, id, func(u *models.User) error {
		return u.AddIdentity(models.UserIdentity{Commitment: "c", VotingGroupID: 1})
	})
	require.NoError(t, err)

	_, err = users.Update(ctx, id, func(u *models.User) error {
		return u.AddIdentity(models.UserIdentity{Commitment: "c2", VotingGroupID: 1})
	})
	require.ErrorIs(t, err, models.ErrAlreadyRegistered)

	got, err := users.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, got.IsRegistered(1))
}
