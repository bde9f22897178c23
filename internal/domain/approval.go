package domain

import "time"

// Approval statuses. Every status except pending is terminal.
const (
	ApprovalPending   = "pending"
	ApprovalApproved  = "approved"
	ApprovalRejected  = "rejected"
	ApprovalCancelled = "cancelled"
)

// Approval is a release-approval request tied to a deployment. Product and
// client names are denormalized at request time for display.
type Approval struct {
	ID           string     `json:"id"`
	DeploymentID string     `json:"deployment_id"`
	ProductName  string     `json:"product_name"`
	ClientName   string     `json:"client_name"`
	Requester    string     `json:"requester"`
	Status       string     `json:"status"`
	Reviewer     string     `json:"reviewer,omitempty"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	Comments     string     `json:"comments,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Terminal reports whether the approval has been resolved.
func (a *Approval) Terminal() bool {
	return a.Status != ApprovalPending
}
