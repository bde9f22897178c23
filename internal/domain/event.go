package domain

import "time"

// Domain event topics.
const (
	TopicDeploymentStatusChanged = "deployment.statusChanged"
	TopicApprovalCompleted       = "approval.completed"
)

// Event is a fire-and-forget domain event published after a durable commit.
type Event struct {
	Topic      string    `json:"topic"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// StatusChangedPayload accompanies TopicDeploymentStatusChanged.
type StatusChangedPayload struct {
	DeploymentID string   `json:"deployment_id"`
	FromStatus   string   `json:"from_status"`
	ToStatus     string   `json:"to_status"`
	Author       string   `json:"author"`
	Text         string   `json:"text,omitempty"`
	NotifyEmails []string `json:"notify_emails,omitempty"`
}

// ApprovalCompletedPayload accompanies TopicApprovalCompleted.
type ApprovalCompletedPayload struct {
	ApprovalID   string `json:"approval_id"`
	DeploymentID string `json:"deployment_id"`
	Status       string `json:"status"`
	Reviewer     string `json:"reviewer"`
	Comments     string `json:"comments,omitempty"`
}
