package store

import (
	"context"

	"github.com/glanburn/music-manager/internal/model"
)

// CompetitionStore provides access to competition records.
type CompetitionStore interface {
	CreateCompetition(ctx context.Context, c model.Competition) error
	GetCompetition(ctx context.Context, id string) (*model.Competition, error)
	ListCompetitions(ctx context.Context, activeOnly bool) ([]model.Competition, error)
	UpdateCompetition(ctx context.Context, c model.Competition) error
	DeleteCompetition(ctx context.Context, id string) error
}

// GradeStore provides access to grade records.
type GradeStore interface {
	CreateGrade(ctx context.Context, g model.Grade) error
	GetGrade(ctx context.Context, id string) (*model.Grade, error)
	ListGrades(ctx context.Context, f model.GradeFilter) ([]model.Grade, error)
	UpdateGrade(ctx context.Context, g model.Grade) error
	DeleteGrade(ctx context.Context, id string) error
}

// UserStore provides access to user records.
type UserStore interface {
	CreateUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	CountUsers(ctx context.Context) (int, error)
	UpdateUserDisplayName(ctx context.Context, id, displayName string) error
	UpdateUserRole(ctx context.Context, id, role string) error
}

// ArtifactStore provides access to artifact metadata records.
type ArtifactStore interface {
	CreateArtifact(ctx context.Context, a model.Artifact) error
	GetArtifact(ctx context.Context, id string) (*model.Artifact, error)
	FindArtifactByGradeOwner(ctx context.Context, gradeID, ownerID string) (*model.Artifact, error)
	ListArtifacts(ctx context.Context, f model.ArtifactFilter) ([]model.Artifact, error)
	UpdateArtifactStatus(ctx context.Context, id, newStatus string, errorInfo *string) error
	UpdateArtifactDuration(ctx context.Context, id string, durationSeconds int) error
	DeleteArtifact(ctx context.Context, id string) error
}

// ArtifactClaimer provides atomic claim operations for background
// verification.
type ArtifactClaimer interface {
	ClaimNextUploaded(ctx context.Context) (*model.Artifact, error)
	ResetStaleVerifying(ctx context.Context) (int64, error)
}

// Repository combines all record operations for the API layer.
type Repository interface {
	CompetitionStore
	GradeStore
	UserStore
	ArtifactStore
}
