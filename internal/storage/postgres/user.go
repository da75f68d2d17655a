package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Vasu1712/stemhub-backend/internal/models"
)

// UserStore implements storage.UserStore using PostgreSQL.
type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Get(ctx context.Context, id string) (*models.User, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM users WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}
	return &u, nil
}

// Update inserts an empty user if needed, then locks and rewrites the row.
func (s *UserStore) Update(ctx context.Context, id string, fn func(*models.User) error) (*models.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	fresh, err := json.Marshal(models.NewUser(id))
	if err != nil {
		return nil, fmt.Errorf("encoding user: %w", err)
	}
	// ON CONFLICT DO NOTHING keeps an existing row as it is.
	if _, err := tx.ExecContext(ctx, `INSERT INTO users (id, doc) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, id, fresh); err != nil {
		return nil, fmt.Errorf("ensuring user: %w", err)
	}

	var raw []byte
	if err := tx.QueryRowContext(ctx, `SELECT doc FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&raw); err != nil {
		return nil, fmt.Errorf("locking user: %w", err)
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}
	if err := fn(&u); err != nil {
		return nil, err
	}
	u.ID = id
	u.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(&u)
	if err != nil {
		return nil, fmt.Errorf("encoding user: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET doc = $2, updated_at = NOW() WHERE id = $1`, id, doc); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing user update: %w", err)
	}
	return &u, nil
}

// StemStore implements storage.StemStore using PostgreSQL.
type StemStore struct {
	db *sql.DB
}

func NewStemStore(db *sql.DB) *StemStore {
	return &StemStore{db: db}
}

func (s *StemStore) Create(ctx context.Context, stem *models.Stem) error {
	doc, err := json.Marshal(stem)
	if err != nil {
		return fmt.Errorf("encoding stem: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO stems (id, project_id, doc) VALUES ($1, $2, $3)`, stem.ID, stem.ProjectID, doc)
	if isUniqueViolation(err, "stems_pkey") {
		return models.ErrDuplicateStem
	}
	if err != nil {
		return fmt.Errorf("inserting stem: %w", err)
	}
	return nil
}

func (s *StemStore) Get(ctx context.Context, id string) (*models.Stem, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM stems WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrStemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading stem: %w", err)
	}
	var stem models.Stem
	if err := json.Unmarshal(raw, &stem); err != nil {
		return nil, fmt.Errorf("decoding stem: %w", err)
	}
	return &stem, nil
}

func (s *StemStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM stems WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("deleting stems: %w", err)
	}
	return nil
}

// GroupSequence allocates voting group ids from a database sequence, so ids
// are never reissued even across restarts.
type GroupSequence struct {
	db *sql.DB
}

func NewGroupSequence(db *sql.DB) *GroupSequence {
	return &GroupSequence{db: db}
}

func (g *GroupSequence) NextGroupID(ctx context.Context) (int64, error) {
	var id int64
	if err := g.db.QueryRowContext(ctx, `SELECT nextval('voting_group_seq')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("allocating voting group id: %w", err)
	}
	return id, nil
}
