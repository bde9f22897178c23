package repository

import (
	"context"
	"time"

	"github.com/imatefx/control-tower/internal/domain"
)

// ProductRepository persists products.
type ProductRepository interface {
	CreateProduct(ctx context.Context, product *domain.Product) error
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, product *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

// ClientRepository persists clients.
type ClientRepository interface {
	CreateClient(ctx context.Context, client *domain.Client) error
	GetClientByID(ctx context.Context, id string) (*domain.Client, error)
	ListClients(ctx context.Context) ([]domain.Client, error)
	UpdateClient(ctx context.Context, client *domain.Client) error
	DeleteClient(ctx context.Context, id string) error
}

// DeploymentRepository persists deployments and their embedded history.
type DeploymentRepository interface {
	// CreateDeployment inserts the deployment and its checklist items in
	// one transaction.
	CreateDeployment(ctx context.Context, deployment *domain.Deployment, items []domain.ChecklistItem) error
	GetDeploymentByID(ctx context.Context, id string) (*domain.Deployment, error)
	ListDeployments(ctx context.Context, filter domain.DeploymentFilter) ([]domain.Deployment, error)
	UpdateDeploymentFields(ctx context.Context, deployment *domain.Deployment) error
	// AppendStatusTransition sets the status and appends the history entry
	// in a single atomic update. The entry's FromStatus is taken from the
	// stored row, not from the caller.
	AppendStatusTransition(ctx context.Context, deploymentID string, entry domain.StatusChange) (*domain.Deployment, error)
	AppendBlockedComment(ctx context.Context, deploymentID string, comment domain.BlockedComment) (*domain.Deployment, error)
	SoftDeleteDeployment(ctx context.Context, id string) error
	RestoreDeployment(ctx context.Context, id string) error
}

// ChecklistRepository persists templates and per-deployment items.
type ChecklistRepository interface {
	ListTemplates(ctx context.Context) ([]domain.ChecklistTemplate, error)
	ReplaceTemplates(ctx context.Context, labels []string) ([]domain.ChecklistTemplate, error)
	ListChecklistItems(ctx context.Context, deploymentID string) ([]domain.ChecklistItem, error)
	SetChecklistItemCompleted(ctx context.Context, itemID string, completed bool) (*domain.ChecklistItem, error)
}

// ApprovalRepository persists approval requests.
type ApprovalRepository interface {
	CreateApproval(ctx context.Context, approval *domain.Approval) error
	GetApprovalByID(ctx context.Context, id string) (*domain.Approval, error)
	ListApprovalsByDeployment(ctx context.Context, deploymentID string) ([]domain.Approval, error)
	// ResolveApproval moves a pending approval to a terminal status. It
	// returns ErrNotFound if the approval does not exist and
	// domain.ErrAlreadyProcessed if it is no longer pending.
	ResolveApproval(ctx context.Context, id, status, reviewer, comments string, reviewedAt time.Time) (*domain.Approval, error)
}

// AuditRepository appends and reads immutable audit entries.
type AuditRepository interface {
	InsertAuditEntry(ctx context.Context, entry *domain.AuditEntry) error
	ListAuditByResource(ctx context.Context, resourceType, resourceID string, limit int) ([]domain.AuditEntry, error)
	ListAuditByActor(ctx context.Context, actorID string, limit int) ([]domain.AuditEntry, error)
	SearchAudit(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error)
}
