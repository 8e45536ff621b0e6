package model

import "time"

// Grade type constants
const (
	GradeTypeSolo  = "solo"
	GradeTypeDance = "dance"
	GradeTypeTeam  = "team"
)

// Grade is a category/segment a competitor submits music under,
// e.g. category "Junior", segment "Free Skate".
type Grade struct {
	ID                 string `json:"id"`
	CompetitionID      string `json:"competition_id"`
	Category           string `json:"category"`
	Segment            string `json:"segment"`
	Type               string `json:"type"`
	MaxDurationSeconds int    `json:"max_duration_seconds"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

// NewGrade creates a grade for a competition.
func NewGrade(id, competitionID, category, segment, gradeType string, maxDurationSeconds int) Grade {
	now := time.Now().UTC().Format(time.RFC3339)
	return Grade{
		ID:                 id,
		CompetitionID:      competitionID,
		Category:           category,
		Segment:            segment,
		Type:               gradeType,
		MaxDurationSeconds: maxDurationSeconds,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// GradeFilter holds query parameters for listing grades.
type GradeFilter struct {
	CompetitionID string
}
