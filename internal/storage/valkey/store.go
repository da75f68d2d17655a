package valkey

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/Vasu1712/stemhub-backend/internal/models"
)

// Every key shares the {stemhub} hash tag so the multi-key scripts stay in
// one cluster slot.
const (
	keyspace       = "{stemhub}:"
	projectPrefix  = keyspace + "project"
	userPrefix     = keyspace + "user"
	stemPrefix     = keyspace + "stem"
	groupSeqKey    = keyspace + "voting-group:seq"
	nameKeyPrefix  = keyspace + "project-name:"
	groupKeyPrefix = keyspace + "project-group:"
)

// Connect opens a Valkey client for addr. A cluster address works as well
// as a single node.
func Connect(addr string) (valkey.Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("connecting to valkey at %s: %w", addr, err)
	}
	return client, nil
}

func nameKey(name string) string { return nameKeyPrefix + name }

func groupKey(id int64) string { return groupKeyPrefix + formatGroupID(id) }

// ProjectStore implements storage.ProjectStore on Valkey. The project name
// and voting group id are unique keys pointing back at the project id.
type ProjectStore struct {
	docs docStore[models.Project]
}

func NewProjectStore(client valkey.Client) *ProjectStore {
	return &ProjectStore{docs: docStore[models.Project]{client: client, prefix: projectPrefix, notFound: models.ErrProjectNotFound}}
}

func (s *ProjectStore) Create(ctx context.Context, p *models.Project) error {
	err := s.docs.create(ctx, p.ID, p, nameKey(p.Name), groupKey(p.VotingGroupID))
	if errors.Is(err, errUniqueTaken) {
		return fmt.Errorf("%w: %s", models.ErrNameTaken, p.Name)
	}
	return err
}

func (s *ProjectStore) Get(ctx context.Context, id string) (*models.Project, error) {
	return s.docs.get(ctx, id)
}

func (s *ProjectStore) GetByGroup(ctx context.Context, votingGroupID int64) (*models.Project, error) {
	id, err := s.docs.lookup(ctx, groupKey(votingGroupID))
	if err != nil {
		return nil, err
	}
	return s.docs.get(ctx, id)
}

func (s *ProjectStore) List(ctx context.Context) ([]*models.Project, error) {
	ids, err := s.docs.ids(ctx)
	if err != nil {
		return nil, err
	}
	projects := make([]*models.Project, 0, len(ids))
	for _, id := range ids {
		p, err := s.docs.get(ctx, id)
		if errors.Is(err, models.ErrProjectNotFound) {
			continue // deleted between SMEMBERS and HGETALL
		}
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt.Before(projects[j].CreatedAt) })
	return projects, nil
}

func (s *ProjectStore) Update(ctx context.Context, id string, fn func(*models.Project) error) (*models.Project, error) {
	return s.docs.update(ctx, id, nil, func(p *models.Project) error {
		name, group := p.Name, p.VotingGroupID
		if err := fn(p); err != nil {
			return err
		}
		p.ID, p.Name, p.VotingGroupID = id, name, group
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	p, err := s.docs.get(ctx, id)
	if err != nil {
		return err
	}
	removed, err := s.docs.remove(ctx, id, nameKey(p.Name), groupKey(p.VotingGroupID))
	if err != nil {
		return err
	}
	if !removed {
		return models.ErrProjectNotFound
	}
	return nil
}

// UserStore implements storage.UserStore on Valkey.
type UserStore struct {
	docs docStore[models.User]
}

func NewUserStore(client valkey.Client) *UserStore {
	return &UserStore{docs: docStore[models.User]{client: client, prefix: userPrefix, notFound: models.ErrUserNotFound}}
}

func (s *UserStore) Get(ctx context.Context, id string) (*models.User, error) {
	return s.docs.get(ctx, id)
}

func (s *UserStore) Update(ctx context.Context, id string, fn func(*models.User) error) (*models.User, error) {
	ensure := func() *models.User { return models.NewUser(id) }
	return s.docs.update(ctx, id, ensure, func(u *models.User) error {
		if err := fn(u); err != nil {
			return err
		}
		u.ID = id
		u.UpdatedAt = time.Now().UTC()
		return nil
	})
}

// StemStore implements storage.StemStore on Valkey.
type StemStore struct {
	docs docStore[models.Stem]
}

func NewStemStore(client valkey.Client) *StemStore {
	return &StemStore{docs: docStore[models.Stem]{client: client, prefix: stemPrefix, notFound: models.ErrStemNotFound}}
}

func (s *StemStore) Create(ctx context.Context, stem *models.Stem) error {
	err := s.docs.create(ctx, stem.ID, stem)
	if errors.Is(err, models.ErrConcurrentUpdate) {
		return models.ErrDuplicateStem
	}
	return err
}

func (s *StemStore) Get(ctx context.Context, id string) (*models.Stem, error) {
	return s.docs.get(ctx, id)
}

func (s *StemStore) Delete(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if _, err := s.docs.remove(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// GroupCounter allocates voting group ids with INCR on a single key.
type GroupCounter struct {
	client valkey.Client
}

func NewGroupCounter(client valkey.Client) *GroupCounter {
	return &GroupCounter{client: client}
}

func (g *GroupCounter) NextGroupID(ctx context.Context) (int64, error) {
	id, err := g.client.Do(ctx, g.client.B().Incr().Key(groupSeqKey).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("allocating voting group id: %w", err)
	}
	return id, nil
}
