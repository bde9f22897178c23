package domain

import "time"

// Audit actions.
const (
	ActionCreate       = "create"
	ActionUpdate       = "update"
	ActionDelete       = "delete"
	ActionStatusChange = "status_change"
	ActionApprove      = "approve"
	ActionReject       = "reject"
)

// Resource type names used in audit entries and the interceptor allow-list.
const (
	ResourceProduct    = "product"
	ResourceClient     = "client"
	ResourceDeployment = "deployment"
	ResourceApproval   = "approval"
)

// Actor identifies who performed an action. All fields are optional;
// system and anonymous actions leave them empty.
type Actor struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// FieldChange is a single tracked-field difference.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// AuditEntry is an immutable record of one mutation. Entries are only ever
// inserted; the bigserial ID doubles as the insertion-order tie-break for
// newest-first reads.
type AuditEntry struct {
	ID           int64             `json:"id"`
	Actor        Actor             `json:"actor"`
	Action       string            `json:"action"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	ResourceName string            `json:"resource_name,omitempty"`
	Diff         []FieldChange     `json:"diff,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// AuditFilter narrows audit searches. Query matches resource and actor
// names case-insensitively as a substring.
type AuditFilter struct {
	ActorID      string
	Action       string
	ResourceType string
	From         *time.Time
	To           *time.Time
	Query        string
	Limit        int
	Offset       int
}
