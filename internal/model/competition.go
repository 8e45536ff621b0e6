package model

import "time"

// Competition is an ice-skating competition that accepts music uploads.
type Competition struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Year      int    `json:"year"`
	Location  string `json:"location"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// NewCompetition creates an active competition.
func NewCompetition(id, name string, year int, location string) Competition {
	now := time.Now().UTC().Format(time.RFC3339)
	return Competition{
		ID:        id,
		Name:      name,
		Year:      year,
		Location:  location,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
