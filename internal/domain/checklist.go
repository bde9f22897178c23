package domain

import "time"

// ChecklistTemplate is one label of the currently active template set.
// Templates are not versioned; deployments copy labels at creation time.
type ChecklistTemplate struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// ChecklistItem belongs to exactly one deployment. Label is a copy taken
// from the template at instantiation, not a reference.
type ChecklistItem struct {
	ID           string    `json:"id"`
	DeploymentID string    `json:"deployment_id"`
	Label        string    `json:"label"`
	Position     int       `json:"position"`
	IsCompleted  bool      `json:"is_completed"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
