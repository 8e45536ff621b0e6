package model

import (
	"path/filepath"
	"strings"
	"time"
)

// Artifact status constants
const (
	StatusUploaded  = "UPLOADED"
	StatusVerifying = "VERIFYING"
	StatusReady     = "READY"
	StatusCorrupt   = "CORRUPT"
)

// Artifact is the metadata record for an uploaded music file.
//
// Competition, grade and owner fields are denormalized snapshots taken at
// upload time. They are never re-synced when the source record changes.
type Artifact struct {
	ID           string `json:"id"`
	StorageID    string `json:"storage_id"`
	DisplayName  string `json:"display_name"` // canonical name, extension-less
	OriginalName string `json:"original_name"`

	CompetitionID   string `json:"competition_id"`
	CompetitionName string `json:"competition_name"`
	CompetitionYear int    `json:"competition_year"`

	GradeID       string `json:"grade_id"`
	GradeCategory string `json:"grade_category"`
	GradeSegment  string `json:"grade_segment"`
	GradeType     string `json:"grade_type"`

	OwnerID   string `json:"owner_id"`
	OwnerName string `json:"owner_name"`

	SizeBytes       int64   `json:"size_bytes"`
	DurationSeconds *int    `json:"duration_seconds,omitempty"`
	Checksum        string  `json:"checksum"`
	Status          string  `json:"status"`
	ErrorInfo       *string `json:"error_info,omitempty"`
	UploadedAt      string  `json:"uploaded_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// NewArtifact creates an UPLOADED artifact, snapshotting the competition,
// grade and owner fields.
func NewArtifact(id, storageID, displayName, originalName string, comp Competition, grade Grade, owner User, sizeBytes int64, checksum string) Artifact {
	now := time.Now().UTC().Format(time.RFC3339)
	return Artifact{
		ID:              id,
		StorageID:       storageID,
		DisplayName:     displayName,
		OriginalName:    originalName,
		CompetitionID:   comp.ID,
		CompetitionName: comp.Name,
		CompetitionYear: comp.Year,
		GradeID:         grade.ID,
		GradeCategory:   grade.Category,
		GradeSegment:    grade.Segment,
		GradeType:       grade.Type,
		OwnerID:         owner.ID,
		OwnerName:       owner.DisplayName,
		SizeBytes:       sizeBytes,
		Checksum:        checksum,
		Status:          StatusUploaded,
		UploadedAt:      now,
		UpdatedAt:       now,
	}
}

// Extension returns the lower-cased extension of the originally uploaded
// file, without the leading dot. Empty if the original name had none.
func (a Artifact) Extension() string {
	ext := filepath.Ext(a.OriginalName)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// FileName is the name downloads are saved under: the extension-less
// DisplayName with the original extension re-attached.
func (a Artifact) FileName() string {
	ext := a.Extension()
	if ext == "" {
		return a.DisplayName
	}
	return a.DisplayName + "." + ext
}

// ArtifactFilter holds query parameters for listing artifacts.
// Limit is capped at the store's page size; callers needing more loop,
// accumulating Offset until a returned page is shorter than the limit.
type ArtifactFilter struct {
	CompetitionID string
	GradeID       string
	OwnerID       string
	Status        string
	Limit         int
	Offset        int
}
