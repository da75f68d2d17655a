// Package testutil wires the voting subsystem on in-memory stores for tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/Vasu1712/stemhub-backend/internal/group"
	"github.com/Vasu1712/stemhub-backend/internal/identity"
	"github.com/Vasu1712/stemhub-backend/internal/lifecycle"
	"github.com/Vasu1712/stemhub-backend/internal/metrics"
	"github.com/Vasu1712/stemhub-backend/internal/models"
	"github.com/Vasu1712/stemhub-backend/internal/queue"
	"github.com/Vasu1712/stemhub-backend/internal/storage/memory"
)

// RecordingNotifier remembers the last tally published per project.
type RecordingNotifier struct {
	mu      sync.Mutex
	last    map[string][]models.QueuedStem
	updates int
}

func (n *RecordingNotifier) PublishTally(projectID string, tally []models.QueuedStem) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == nil {
		n.last = make(map[string][]models.QueuedStem)
	}
	n.last[projectID] = tally
	n.updates++
}

// Last returns the most recent tally published for projectID.
func (n *RecordingNotifier) Last(projectID string) []models.QueuedStem {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last[projectID]
}

// Updates returns how many tallies were published.
func (n *RecordingNotifier) Updates() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.updates
}

// Env is a fully wired subsystem.
type Env struct {
	Projects   *memory.ProjectStore
	Users      *memory.UserStore
	Stems      *memory.StemStore
	Groups     *group.Service
	Queue      *queue.Manager
	Lifecycle  *lifecycle.Service
	Identities *identity.Registry
	Metrics    *metrics.Metrics
	Notifier   *RecordingNotifier
	Log        *zap.Logger
}

func NewEnv(t testing.TB) *Env {
	t.Helper()

	log := zaptest.NewLogger(t)
	m := metrics.NewUnregistered()
	notifier := &RecordingNotifier{}

	projects := memory.NewProjectStore(log)
	users := memory.NewUserStore()
	stems := memory.NewStemStore()
	groups := group.NewService(projects, memory.NewGroupAllocator())
	q := queue.NewManager(projects, notifier, m, log)

	return &Env{
		Projects:   projects,
		Users:      users,
		Stems:      stems,
		Groups:     groups,
		Queue:      q,
		Lifecycle:  lifecycle.NewService(projects, users, stems, groups, q, m, log),
		Identities: identity.NewRegistry(users, projects, m, log),
		Metrics:    m,
		Notifier:   notifier,
		Log:        log,
	}
}

// CreateProject creates a project owned by creator with the given track limit.
func (e *Env) CreateProject(t testing.TB, creator, name string, trackLimit int) *models.Project {
	t.Helper()
	p, err := e.Lifecycle.CreateProject(context.Background(), models.NewProject{
		CreatedBy:   creator,
		Name:        name,
		Description: "test project " + name,
		BPM:         120,
		TrackLimit:  trackLimit,
		Tags:        []string{"test"},
	})
	require.NoError(t, err)
	return p
}

// Submit queues a stem named name from userID.
func (e *Env) Submit(t testing.TB, projectID, userID, name string) models.Stem {
	t.Helper()
	sub, err := e.Lifecycle.SubmitStem(context.Background(), projectID, userID, models.StemDraft{
		Name:     name,
		Type:     "synth",
		Filename: name + ".wav",
		AudioURL: "https://blobs.example/" + name + ".wav",
	})
	require.NoError(t, err)
	return sub.Stem
}

// Register issues userID an identity in votingGroupID.
func (e *Env) Register(t testing.TB, userID string, votingGroupID int64) models.VoterIdentity {
	t.Helper()
	id, err := e.Identities.Register(context.Background(), userID, votingGroupID)
	require.NoError(t, err)
	return id
}

// Votes casts n votes on stemID, each from a freshly registered voter.
func (e *Env) Votes(t testing.TB, p *models.Project, stemID string, n int) {
	t.Helper()
	for i := range n {
		id := e.Register(t, fmt.Sprintf("voter-%s-%d", stemID, i), p.VotingGroupID)
		_, err := e.Queue.CastVote(context.Background(), p.ID, stemID, id.Commitment, id.Nullifier)
		require.NoError(t, err)
	}
}
