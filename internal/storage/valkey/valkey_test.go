package valkey

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go"

	"github.com/Vasu1712/stemhub-backend/internal/models"
)

func TestKeys(t *testing.T) {
	require.Equal(t, "{stemhub}:project-name:Night Drive", nameKey("Night Drive"))
	require.Equal(t, "{stemhub}:project-group:42", groupKey(42))

	d := docStore[models.Stem]{prefix: stemPrefix}
	require.Equal(t, "{stemhub}:stem:abc", d.key("abc"))
	require.Equal(t, "{stemhub}:stem:ids", d.indexKey())
}

func TestKeysShareOneSlot(t *testing.T) {
	p := docStore[models.Project]{prefix: projectPrefix}
	keys := []string{p.key("abc"), p.indexKey(), nameKey("Night Drive"), groupKey(42), groupSeqKey}
	for _, k := range keys {
		open := strings.IndexByte(k, '{')
		end := strings.IndexByte(k, '}')
		require.True(t, open >= 0 && end > open+1, k)
		require.Equal(t, "stemhub", k[open+1:end], k)
	}
}

func TestCASBackoff(t *testing.T) {
	for attempt := range 20 {
		d := casBackoff(attempt)
		require.GreaterOrEqual(t, d, minCASBackoff/2)
		require.Less(t, d, maxCASBackoff+minCASBackoff/2)
	}
	require.Less(t, casBackoff(0), minCASBackoff+minCASBackoff/2)
}

// connectTest connects to TEST_VALKEY_ADDR or skips the test.
func connectTest(t *testing.T) valkey.Client {
	t.Helper()
	addr := os.Getenv("TEST_VALKEY_ADDR")
	if addr == "" {
		t.Skip("TEST_VALKEY_ADDR not set")
	}
	client, err := Connect(addr)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestProjectStore(t *testing.T) {
	client := connectTest(t)
	ctx := context.Background()
	s := NewProjectStore(client)

	gid, err := NewGroupCounter(client).NextGroupID(ctx)
	require.NoError(t, err)

	p := &models.Project{
		ID:              uuid.NewString(),
		CreatedBy:       "0xcreator",
		Collaborators:   []string{"0xcreator"},
		Name:            "vk-" + uuid.NewString()[:8],
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
	require.ErrorIs(t, s.Create(ctx, &dup), models.ErrNameTaken)

	byGroup, err := s.GetByGroup(ctx, gid)
	require.NoError(t, err)
	require.Equal(t, p.ID, byGroup.ID)

	const writers = 64
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, p.ID, func(p *models.Project) error {
				p.Queue[0].Votes++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, writers, got.Queue[0].Votes)

	require.NoError(t, s.Delete(ctx, p.ID))
	_, err = s.GetByGroup(ctx, gid)
	require.ErrorIs(t, err, models.ErrProjectNotFound)
}

func TestUpdateStopsWithContext(t *testing.T) {
	client := connectTest(t)
	s := NewStemStore(client)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.docs.update(ctx, uuid.NewString(), nil, func(*models.Stem) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestStemStore(t *testing.T) {
	client := connectTest(t)
	ctx := context.Background()
	s := NewStemStore(client)

	stem := &models.Stem{ID: uuid.NewString(), Name: "kick"}
	require.NoError(t, s.Create(ctx, stem))
	require.ErrorIs(t, s.Create(ctx, stem), models.ErrDuplicateStem)

	got, err := s.Get(ctx, stem.ID)
	require.NoError(t, err)
	require.Equal(t, "kick", got.Name)

	require.NoError(t, s.Delete(ctx, stem.ID))
	_, err = s.Get(ctx, stem.ID)
	require.ErrorIs(t, err, models.ErrStemNotFound)
}
