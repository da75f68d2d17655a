package queue_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Vasu1712/stemhub-backend/internal/models"
	"github.com/Vasu1712/stemhub-backend/internal/testutil"
)

func TestCastVoteSpendsNullifierPerStem(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	p := env.CreateProject(t, "0xcreator", "Spend Per Stem", 4)
	s1 := env.Submit(t, p.ID, "0xcreator", "s1")
	s2 := env.Submit(t, p.ID, "0xcreator", "s2")
	id := env.Register(t, "0xvoter", p.VotingGroupID)

	votes, err := env.Queue.CastVote(ctx, p.ID, s1.ID, id.Commitment, id.Nullifier)
	require.NoError(t, err)
	require.Equal(t, 1, votes)

	_, err = env.Queue.CastVote(ctx, p.ID, s1.ID, id.Commitment, id.Nullifier)
	require.ErrorIs(t, err, models.ErrNullifierSpent)

	votes, err = env.Queue.CastVote(ctx, p.ID, s2.ID, id.Commitment, id.Nullifier)
	require.NoError(t, err)
	require.Equal(t, 1, votes)

	tally, err := env.Queue.Tally(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, tally, 2)
	require.Equal(t, 1, tally[0].Votes)
	require.Equal(t, 1, tally[1].Votes)
}

func TestCastVoteRejectsIneligibleVoters(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	p := env.CreateProject(t, "0xcreator", "Eligibility", 4)
	other := env.CreateProject(t, "0xcreator", "Other Group", 4)
	stem := env.Submit(t, p.ID, "0xcreator", "lead")
	id := env.Register(t, "0xvoter", p.VotingGroupID)
	foreign := env.Register(t, "0xvoter", other.VotingGroupID)

	tests := []struct {
		name       string
		commitment string
		nullifier  string
	}{
		{"unknown commitment", "deadbeef", id.Nullifier},
		{"wrong nullifier", id.Commitment, foreign.Nullifier},
		{"identity of another group", foreign.Commitment, foreign.Nullifier},
		{"empty commitment", "", id.Nullifier},
		{"empty nullifier", id.Commitment, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Queue.CastVote(ctx, p.ID, stem.ID, tt.commitment, tt.nullifier)
			require.ErrorIs(t, err, models.ErrNotEligibleVoter)
			require.Equal(t, models.KindAuthorization, models.KindOf(err))
		})
	}

	tally, err := env.Queue.Tally(ctx, p.ID)
	require.NoError(t, err)
	require.Zero(t, tally[0].Votes)
}

func TestCastVoteErrors(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	p := env.CreateProject(t, "0xcreator", "Vote Errors", 4)
	id := env.Register(t, "0xvoter", p.VotingGroupID)

	_, err := env.Queue.CastVote(ctx, p.ID, "no-such-stem", id.Commitment, id.Nullifier)
	require.ErrorIs(t, err, models.ErrStemNotQueued)

	_, err = env.Queue.CastVote(ctx, "no-such-project", "s", id.Commitment, id.Nullifier)
	require.ErrorIs(t, err, models.ErrProjectNotFound)

	after, err := env.Projects.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Empty(t, after.SpentNullifiers, "failed votes must not spend the nullifier")
}

func TestRevokedIdentityCannotVote(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	p := env.CreateProject(t, "0xcreator", "Revocation", 4)
	stem := env.Submit(t, p.ID, "0xcreator", "pad")
	id := env.Register(t, "0xvoter", p.VotingGroupID)

	require.NoError(t, env.Identities.Revoke(ctx, "0xvoter", p.VotingGroupID))
	_, err := env.Queue.CastVote(ctx, p.ID, stem.ID, id.Commitment, id.Nullifier)
	require.ErrorIs(t, err, models.ErrNotEligibleVoter)
}

func TestConcurrentVotesAreAllCounted(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	p := env.CreateProject(t, "0xcreator", "Concurrent Votes", 4)
	stem := env.Submit(t, p.ID, "0xcreator", "chorus")

	const voters = 32
	ids := make([]models.VoterIdentity, voters)
	for i := range ids {
		ids[i] = env.Register(t, fmt.Sprintf("0xvoter%d", i), p.VotingGroupID)
	}

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			_, err := env.Queue.CastVote(ctx, p.ID, stem.ID, id.Commitment, id.Nullifier)
			return err
		})
	}
	require.NoError(t, g.Wait())

	tally, err := env.Queue.Tally(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, voters, tally[0].Votes)
}

func TestConcurrentReuseOfOneNullifierCountsOnce(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	p := env.CreateProject(t, "0xcreator", "Double Spend", 4)
	stem := env.Submit(t, p.ID, "0xcreator", "hook")
	id := env.Register(t, "0xvoter", p.VotingGroupID)

	var accepted, spent atomic.Int32
	var g errgroup.Group
	for range 16 {
		g.Go(func() error {
			_, err := env.Queue.CastVote(ctx, p.ID, stem.ID, id.Commitment, id.Nullifier)
			switch {
			case err == nil:
				accepted.Add(1)
			case models.CodeOf(err) == models.CodeOf(models.ErrNullifierSpent):
				spent.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, accepted.Load())
	require.EqualValues(t, 15, spent.Load())

	tally, err := env.Queue.Tally(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 1, tally[0].Votes)
}

func TestEnqueue(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	p := env.CreateProject(t, "0xcreator", "Enqueue", 4)
	stem := models.Stem{ID: "stem-1", ProjectID: p.ID, Name: "bass"}

	t.Run("non collaborator", func(t *testing.T) {
		_, err := env.Queue.Enqueue(ctx, p.ID, "0xstranger", stem)
		require.ErrorIs(t, err, models.ErrCollaboratorOnly)

		tally, err := env.Queue.Tally(ctx, p.ID)
		require.NoError(t, err)
		require.Empty(t, tally)
	})

	t.Run("collaborator", func(t *testing.T) {
		queued, err := env.Queue.Enqueue(ctx, p.ID, "0xcreator", stem)
		require.NoError(t, err)
		require.Zero(t, queued.Votes)
		require.Len(t, env.Notifier.Last(p.ID), 1)
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := env.Queue.Enqueue(ctx, p.ID, "0xcreator", stem)
		require.ErrorIs(t, err, models.ErrDuplicateStem)
	})

	t.Run("missing project", func(t *testing.T) {
		_, err := env.Queue.Enqueue(ctx, "missing", "0xcreator", stem)
		require.ErrorIs(t, err, models.ErrProjectNotFound)
	})
}

func TestTallyBroadcastAfterVote(t *testing.T) {
	env := testutil.NewEnv(t)

	p := env.CreateProject(t, "0xcreator", "Broadcast", 4)
	a := env.Submit(t, p.ID, "0xcreator", "a")
	b := env.Submit(t, p.ID, "0xcreator", "b")
	env.Votes(t, p, b.ID, 2)
	env.Votes(t, p, a.ID, 1)

	last := env.Notifier.Last(p.ID)
	require.Len(t, last, 2)
	require.Equal(t, b.ID, last[0].Stem.ID)
	require.Equal(t, 2, last[0].Votes)
	require.Equal(t, a.ID, last[1].Stem.ID)
}
