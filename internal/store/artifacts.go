package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/glanburn/music-manager/internal/model"
)

const artifactColumns = `id, storage_id, display_name, original_name,
	competition_id, competition_name, competition_year,
	grade_id, grade_category, grade_segment, grade_type,
	owner_id, owner_name,
	size_bytes, duration_seconds, checksum, status, error_info, uploaded_at, updated_at`

// CreateArtifact inserts a new artifact record. Returns ErrDuplicate if the
// owner already has an upload for the grade.
func (s *Store) CreateArtifact(ctx context.Context, a model.Artifact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (`+artifactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.StorageID, a.DisplayName, a.OriginalName,
		a.CompetitionID, a.CompetitionName, a.CompetitionYear,
		a.GradeID, a.GradeCategory, a.GradeSegment, a.GradeType,
		a.OwnerID, a.OwnerName,
		a.SizeBytes, a.DurationSeconds, a.Checksum, a.Status, a.ErrorInfo, a.UploadedAt, a.UpdatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}

// GetArtifact returns an artifact by id.
func (s *Store) GetArtifact(ctx context.Context, id string) (*model.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id)
	return scanArtifact(row)
}

// FindArtifactByGradeOwner returns the artifact an owner uploaded for a
// grade, or nil if there is none.
func (s *Store) FindArtifactByGradeOwner(ctx context.Context, gradeID, ownerID string) (*model.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE grade_id = ? AND owner_id = ?`, gradeID, ownerID)
	a, err := scanArtifact(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return a, err
}

// ListArtifacts returns artifacts matching the filter, newest first. The
// page size is capped at 100 regardless of the requested limit.
func (s *Store) ListArtifacts(ctx context.Context, f model.ArtifactFilter) ([]model.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts`
	var conditions []string
	var args []interface{}

	if f.CompetitionID != "" {
		conditions = append(conditions, "competition_id = ?")
		args = append(args, f.CompetitionID)
	}
	if f.GradeID != "" {
		conditions = append(conditions, "grade_id = ?")
		args = append(args, f.GradeID)
	}
	if f.OwnerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, f.Status)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := f.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	query += " ORDER BY uploaded_at DESC, id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []model.Artifact
	for rows.Next() {
		a, err := scanArtifactRows(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, rows.Err()
}

// UpdateArtifactStatus changes the status of an artifact.
func (s *Store) UpdateArtifactStatus(ctx context.Context, id, newStatus string, errorInfo *string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE artifacts SET status = ?, error_info = ?, updated_at = ? WHERE id = ?`,
		newStatus, errorInfo, now, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateArtifactDuration sets the decoded track duration.
func (s *Store) UpdateArtifactDuration(ctx context.Context, id string, durationSeconds int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE artifacts SET duration_seconds = ?, updated_at = ? WHERE id = ?`,
		durationSeconds, now, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteArtifact removes an artifact record. The blob is the caller's
// responsibility.
func (s *Store) DeleteArtifact(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ClaimNextUploaded atomically picks the oldest UPLOADED artifact and sets
// it to VERIFYING. Returns nil if no artifact is available.
func (s *Store) ClaimNextUploaded(ctx context.Context) (*model.Artifact, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	row := s.db.QueryRowContext(ctx, `
		UPDATE artifacts SET status = ?, updated_at = ?
		WHERE id = (SELECT id FROM artifacts WHERE status = ? ORDER BY uploaded_at ASC LIMIT 1)
		RETURNING `+artifactColumns,
		model.StatusVerifying, now, model.StatusUploaded,
	)
	a, err := scanArtifact(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return a, err
}

// ResetStaleVerifying resets any VERIFYING artifacts back to UPLOADED
// (for server restart).
func (s *Store) ResetStaleVerifying(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE artifacts SET status = ?, updated_at = ? WHERE status = ?`,
		model.StatusUploaded, now, model.StatusVerifying)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanArtifact(row scanner) (*model.Artifact, error) {
	a, err := scanArtifactRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func scanArtifactRows(row scanner) (*model.Artifact, error) {
	var a model.Artifact
	err := row.Scan(
		&a.ID, &a.StorageID, &a.DisplayName, &a.OriginalName,
		&a.CompetitionID, &a.CompetitionName, &a.CompetitionYear,
		&a.GradeID, &a.GradeCategory, &a.GradeSegment, &a.GradeType,
		&a.OwnerID, &a.OwnerName,
		&a.SizeBytes, &a.DurationSeconds, &a.Checksum, &a.Status, &a.ErrorInfo, &a.UploadedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
