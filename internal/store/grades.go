package store

import (
	"context"
	"fmt"
	"time"

	"github.com/glanburn/music-manager/internal/model"
)

// CreateGrade inserts a new grade.
func (s *Store) CreateGrade(ctx context.Context, g model.Grade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO grades (id, competition_id, category, segment, grade_type, max_duration_seconds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.CompetitionID, g.Category, g.Segment, g.Type, g.MaxDurationSeconds, g.CreatedAt, g.UpdatedAt,
	)
	return err
}

// GetGrade returns a grade by id.
func (s *Store) GetGrade(ctx context.Context, id string) (*model.Grade, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, competition_id, category, segment, grade_type, max_duration_seconds, created_at, updated_at
		FROM grades WHERE id = ?`, id)
	var g model.Grade
	err := row.Scan(&g.ID, &g.CompetitionID, &g.Category, &g.Segment, &g.Type, &g.MaxDurationSeconds, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &g, nil
}

// ListGrades returns grades matching the filter, ordered by category then
// segment.
func (s *Store) ListGrades(ctx context.Context, f model.GradeFilter) ([]model.Grade, error) {
	query := `SELECT id, competition_id, category, segment, grade_type, max_duration_seconds, created_at, updated_at FROM grades`
	var args []interface{}
	if f.CompetitionID != "" {
		query += ` WHERE competition_id = ?`
		args = append(args, f.CompetitionID)
	}
	query += ` ORDER BY category ASC, segment ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grades []model.Grade
	for rows.Next() {
		var g model.Grade
		if err := rows.Scan(&g.ID, &g.CompetitionID, &g.Category, &g.Segment, &g.Type, &g.MaxDurationSeconds, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		grades = append(grades, g)
	}
	return grades, rows.Err()
}

// UpdateGrade updates the mutable fields of a grade. Artifacts uploaded
// earlier keep their snapshot of the old values.
func (s *Store) UpdateGrade(ctx context.Context, g model.Grade) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE grades SET category = ?, segment = ?, grade_type = ?, max_duration_seconds = ?, updated_at = ?
		WHERE id = ?`,
		g.Category, g.Segment, g.Type, g.MaxDurationSeconds, now, g.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteGrade removes a grade. It refuses with ErrInUse while artifacts
// still reference the grade.
func (s *Store) DeleteGrade(ctx context.Context, id string) error {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM artifacts WHERE grade_id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%d artifact(s) uploaded: %w", n, ErrInUse)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM grades WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
