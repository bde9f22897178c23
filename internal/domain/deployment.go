package domain

import "time"

// Deployment statuses.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusBlocked    = "blocked"
	StatusReleased   = "released"
)

// Deployment types.
const (
	TypeGA             = "ga"
	TypeEAP            = "eap"
	TypeFeatureRelease = "feature_release"
	TypeClientSpecific = "client_specific"
)

// ValidStatus reports whether s is a known deployment status.
func ValidStatus(s string) bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusBlocked, StatusReleased:
		return true
	}
	return false
}

// ValidDeploymentType reports whether t is a known deployment type.
func ValidDeploymentType(t string) bool {
	switch t {
	case TypeGA, TypeEAP, TypeFeatureRelease, TypeClientSpecific:
		return true
	}
	return false
}

// Deployment tracks a product rollout for one or more clients. The client
// list is the superset shape; single-client callers read the first element.
type Deployment struct {
	ID              string           `json:"id"`
	ProductID       string           `json:"product_id"`
	ClientIDs       []string         `json:"client_ids"`
	Status          string           `json:"status"`
	DeploymentType  string           `json:"deployment_type"`
	Owner           string           `json:"owner"`
	TargetDate      *time.Time       `json:"target_date,omitempty"`
	AdapterServices *AdapterServices `json:"adapter_services,omitempty"`
	StatusHistory   []StatusChange   `json:"status_history"`
	BlockedComments []BlockedComment `json:"blocked_comments"`
	NotifyEmails    []string         `json:"notify_emails"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	DeletedAt       *time.Time       `json:"deleted_at,omitempty"`
}

// PrimaryClientID returns the single-client view of the client list.
func (d *Deployment) PrimaryClientID() string {
	if len(d.ClientIDs) == 0 {
		return ""
	}
	return d.ClientIDs[0]
}

// AdapterServices holds the sub-service statuses that only apply when the
// deployed product is an adapter.
type AdapterServices struct {
	Inbound    string `json:"inbound"`
	Outbound   string `json:"outbound"`
	Mapping    string `json:"mapping"`
	Monitoring string `json:"monitoring"`
}

// StatusChange is one entry of a deployment's embedded status history.
// The history is append-only; its last entry always matches the current
// status field.
type StatusChange struct {
	ID         string    `json:"id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Author     string    `json:"author"`
	Text       string    `json:"text,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// BlockedComment is one entry of the embedded blocked-reason thread.
type BlockedComment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	ParentID  *string   `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DeploymentFilter narrows deployment listings.
type DeploymentFilter struct {
	ProductID      string
	ClientID       string
	Status         string
	IncludeDeleted bool
	Limit          int
}
