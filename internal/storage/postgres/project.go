package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Vasu1712/stemhub-backend/internal/models"
)

// ProjectStore implements storage.ProjectStore with one JSONB document per row.
type ProjectStore struct {
	db  *sql.DB
	log *zap.Logger
}

// NewProjectStore creates a new ProjectStore on an open database.
func NewProjectStore(db *sql.DB, log *zap.Logger) *ProjectStore {
	return &ProjectStore{db: db, log: log}
}

// Create inserts a new project. The unique constraint on name rejects collisions.
func (s *ProjectStore) Create(ctx context.Context, p *models.Project) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding project: %w", err)
	}

	query := `INSERT INTO projects (id, name, voting_group_id, doc) VALUES ($1, $2, $3, $4)`
	_, err = s.db.ExecContext(ctx, query, p.ID, p.Name, p.VotingGroupID, doc)
	if isUniqueViolation(err, "projects_name_key") {
		return models.ErrNameTaken
	}
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}

	s.log.Debug("Project created in DB", zap.String("projectID", p.ID), zap.String("name", p.Name))
	return nil
}

// Get retrieves a project by its ID.
func (s *ProjectStore) Get(ctx context.Context, id string) (*models.Project, error) {
	return s.getOne(ctx, `SELECT doc FROM projects WHERE id = $1`, id)
}

// GetByGroup retrieves the project owning a voting group.
func (s *ProjectStore) GetByGroup(ctx context.Context, votingGroupID int64) (*models.Project, error) {
	return s.getOne(ctx, `SELECT doc FROM projects WHERE voting_group_id = $1`, votingGroupID)
}

func (s *ProjectStore) getOne(ctx context.Context, query string, arg any) (*models.Project, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}
	return decodeProject(raw)
}

// List retrieves all projects, oldest first.
func (s *ProjectStore) List(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		p, err := decodeProject(raw)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project rows: %w", err)
	}
	return projects, nil
}

// Update locks the project row, applies fn and writes the result back in the
// same transaction. Nothing is written if fn fails.
func (s *ProjectStore) Update(ctx context.Context, id string, fn func(*models.Project) error) (*models.Project, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRowContext(ctx, `SELECT doc FROM projects WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("locking project: %w", err)
	}

	current, err := decodeProject(raw)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID, next.Name, next.VotingGroupID = current.ID, current.Name, current.VotingGroupID
	next.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encoding project: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE projects SET doc = $2, updated_at = NOW() WHERE id = $1`, id, doc); err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing project update: %w", err)
	}
	return next, nil
}

// Delete removes a project row.
func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrProjectNotFound
	}
	return nil
}

func decodeProject(raw []byte) (*models.Project, error) {
	var p models.Project
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decoding project: %w", err)
	}
	return &p, nil
}
