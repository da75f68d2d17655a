package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Vasu1712/stemhub-backend/internal/models"
)

func newProject(id, name string, group int64) *models.Project {
	return &models.Project{
		ID:              id,
		Name:            name,
		CreatedBy:       "0xcreator",
		Collaborators:   []string{"0xcreator"},
		TrackLimit:      2,
		VotingGroupID:   group,
		SpentNullifiers: map[string]bool{},
		CreatedAt:       time.Now().UTC(),
	}
}

func TestProjectStoreCreate(t *testing.T) {
	s := NewProjectStore(zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newProject("p1", "Alpha", 1)))
	require.ErrorIs(t, s.Create(ctx, newProject("p2", "Alpha", 2)), models.ErrNameTaken)
	require.ErrorIs(t, s.Create(ctx, newProject("p3", "Beta", 1)), models.ErrInvalid)

	byGroup, err := s.GetByGroup(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "p1", byGroup.ID)

	_, err = s.Get(ctx, "p2")
	require.ErrorIs(t, err, models.ErrProjectNotFound)
}

func TestProjectStoreSnapshotsAreIsolated(t *testing.T) {
	s := NewProjectStore(zaptest.NewLogger(t))
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newProject("p1", "Alpha", 1)))

	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	got.Collaborators = append(got.Collaborators, "0xintruder")
	got.SpentNullifiers["s/n"] = true

	again, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, []string{"0xcreator"}, again.Collaborators)
	require.Empty(t, again.SpentNullifiers)
}

func TestProjectStoreUpdateIsAllOrNothing(t *testing.T) {
	s := NewProjectStore(zaptest.NewLogger(t))
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newProject("p1", "Alpha", 1)))

	boom := errors.New("boom")
	_, err := s.Update(ctx, "p1", func(p *models.Project) error {
		p.AddCollaborator("0xhalfway")
		p.Spend("s1", "n1")
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, []string{"0xcreator"}, got.Collaborators)
	require.False(t, got.IsSpent("s1", "n1"))

	updated, err := s.Update(ctx, "p1", func(p *models.Project) error {
		p.Name = "Renamed"
		p.VotingGroupID = 99
		p.AddCollaborator("0xfriend")
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "Alpha", updated.Name, "name is fixed at creation")
	require.EqualValues(t, 1, updated.VotingGroupID)
	require.True(t, updated.IsCollaborator("0xfriend"))

	_, err = s.Update(ctx, "missing", func(*models.Project) error { return nil })
	require.ErrorIs(t, err, models.ErrProjectNotFound)
}

func TestProjectStoreConcurrentUpdates(t *testing.T) {
	s := NewProjectStore(zaptest.NewLogger(t))
	ctx := context.Background()
	p := newProject("p1", "Alpha", 1)
	p.Queue = []models.QueuedStem{{Stem: models.Stem{ID: "s1"}}}
	require.NoError(t, s.Create(ctx, p))

	const writers = 64
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "p1", func(p *models.Project) error {
				p.Queue[0].Votes++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, writers, got.Queue[0].Votes)
}

func TestProjectStoreDeleteAndList(t *testing.T) {
	s := NewProjectStore(zaptest.NewLogger(t))
	ctx := context.Background()

	older := newProject("p1", "Alpha", 1)
	newer := newProject("p2", "Beta", 2)
	newer.CreatedAt = older.CreatedAt.Add(time.Minute)
	require.NoError(t, s.Create(ctx, newer))
	require.NoError(t, s.Create(ctx, older))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "p1", list[0].ID)

	require.NoError(t, s.Delete(ctx, "p1"))
	require.ErrorIs(t, s.Delete(ctx, "p1"), models.ErrProjectNotFound)
	_, err = s.GetByGroup(ctx, 1)
	require.ErrorIs(t, err, models.ErrProjectNotFound)

	require.NoError(t, s.Create(ctx, newProject("p3", "Alpha", 3)), "deleted names can be reused")
}

func TestUserStoreCreatesOnUpdate(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "0xabc")
	require.ErrorIs(t, err, models.ErrUserNotFound)

	u, err := s.Update(ctx, "0xabc", func(u *models.User) error {
		u.AddProject("p1")
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "0xabc", u.ID)

	_, err = s.Update(ctx, "0xabc", func(u *models.User) error {
		u.AddProject("p2")
		return models.ErrAlreadyRegistered
	})
	require.ErrorIs(t, err, models.ErrAlreadyRegistered)

	got, err := s.Get(ctx, "0xabc")
	require.NoError(t, err)
	require.Equal(t, []string{"p1"}, got.ProjectIDs)
}

func TestUserStoreFailedFirstUpdateStoresNothing(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()

	_, err := s.Update(ctx, "0xnew", func(u *models.User) error {
		u.AddProject("p1")
		return models.ErrNotRegistered
	})
	require.ErrorIs(t, err, models.ErrNotRegistered)

	_, err = s.Get(ctx, "0xnew")
	require.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestUserStoreSerializesIdentityWrites(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()

	const writers = 32
	var (
		wg  sync.WaitGroup
		won sync.Map
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "0xabc", func(u *models.User) error {
				return u.AddIdentity(models.UserIdentity{Commitment: string(rune('a' + i)), VotingGroupID: 7})
			})
			if err == nil {
				won.Store(i, true)
				return
			}
			assert.ErrorIs(t, err, models.ErrAlreadyRegistered)
		}()
	}
	wg.Wait()

	winners := 0
	won.Range(func(_, _ any) bool { winners++; return true })
	require.Equal(t, 1, winners)

	u, err := s.Get(ctx, "0xabc")
	require.NoError(t, err)
	require.Len(t, u.Identities, 1)
	require.Equal(t, []int64{7}, u.RegisteredGroupIDs)
}

func TestStemStore(t *testing.T) {
	s := NewStemStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &models.Stem{ID: "s1", Name: "kick"}))
	require.NoError(t, s.Create(ctx, &models.Stem{ID: "s2", Name: "snare"}))
	require.ErrorIs(t, s.Create(ctx, &models.Stem{ID: "s1"}), models.ErrDuplicateStem)

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "kick", got.Name)

	require.NoError(t, s.Delete(ctx, "s1", "s2", "never-existed"))
	_, err = s.Get(ctx, "s2")
	require.ErrorIs(t, err, models.ErrStemNotFound)
}

func TestGroupAllocatorIsMonotonic(t *testing.T) {
	a := NewGroupAllocator()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan int64, 100)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := a.NextGroupID(ctx)
			if err == nil {
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		require.Positive(t, id)
		require.False(t, seen[id])
		seen[id] = true
	}
	require.Len(t, seen, 100)
}
