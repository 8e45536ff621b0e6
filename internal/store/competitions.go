package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/glanburn/music-manager/internal/model"
)

// CreateCompetition inserts a new competition.
func (s *Store) CreateCompetition(ctx context.Context, c model.Competition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO competitions (id, name, year, location, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Year, c.Location, c.Active, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetCompetition returns a competition by id.
func (s *Store) GetCompetition(ctx context.Context, id string) (*model.Competition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, year, location, active, created_at, updated_at FROM competitions WHERE id = ?`, id)
	return scanCompetition(row)
}

// ListCompetitions returns competitions ordered by year (newest first) and
// name. When activeOnly is set, inactive competitions are omitted.
func (s *Store) ListCompetitions(ctx context.Context, activeOnly bool) ([]model.Competition, error) {
	query := `SELECT id, name, year, location, active, created_at, updated_at FROM competitions`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY year DESC, name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comps []model.Competition
	for rows.Next() {
		var c model.Competition
		if err := rows.Scan(&c.ID, &c.Name, &c.Year, &c.Location, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}
	return comps, rows.Err()
}

// UpdateCompetition updates the mutable fields of a competition. Artifacts
// uploaded earlier keep their snapshot of the old values.
func (s *Store) UpdateCompetition(ctx context.Context, c model.Competition) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE competitions SET name = ?, year = ?, location = ?, active = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Year, c.Location, c.Active, now, c.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteCompetition removes a competition and its grades. It refuses with
// ErrInUse while artifacts still reference the competition.
func (s *Store) DeleteCompetition(ctx context.Context, id string) error {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM artifacts WHERE competition_id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%d artifact(s) uploaded: %w", n, ErrInUse)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM grades WHERE competition_id = ?`, id); err != nil {
		return fmt.Errorf("delete grades: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM competitions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete competition: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func scanCompetition(row scanner) (*model.Competition, error) {
	var c model.Competition
	err := row.Scan(&c.ID, &c.Name, &c.Year, &c.Location, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// requireRow converts a zero-row update/delete into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
