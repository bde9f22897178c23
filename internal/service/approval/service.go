package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/imatefx/control-tower/internal/audit"
	"github.com/imatefx/control-tower/internal/domain"
	"github.com/imatefx/control-tower/internal/events"
	"github.com/imatefx/control-tower/internal/repository"
)

// Releaser drives the deployment status machine on approval success.
type Releaser interface {
	TransitionStatus(ctx context.Context, deploymentID, newStatus, author, note string) (*domain.Deployment, error)
}

// Service manages release-approval requests for deployments.
type Service struct {
	approvals   repository.ApprovalRepository
	deployments repository.DeploymentRepository
	products    repository.ProductRepository
	clients     repository.ClientRepository
	releaser    Releaser
	recorder    *audit.Recorder
	publisher   events.Publisher
	logger      *slog.Logger
}

// New returns an approval service.
func New(
	approvals repository.ApprovalRepository,
	deployments repository.DeploymentRepository,
	products repository.ProductRepository,
	clients repository.ClientRepository,
	releaser Releaser,
	recorder *audit.Recorder,
	publisher events.Publisher,
	logger *slog.Logger,
) Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return Service{
		approvals:   approvals,
		deployments: deployments,
		products:    products,
		clients:     clients,
		releaser:    releaser,
		recorder:    recorder,
		publisher:   publisher,
		logger:      logger,
	}
}

// Request opens a pending approval for an existing deployment, copying the
// product and client names for display.
func (s Service) Request(ctx context.Context, deploymentID, requester string) (*domain.Approval, error) {
	if strings.TrimSpace(requester) == "" {
		return nil, domain.Validationf("requester required")
	}
	dep, err := s.deployments.GetDeploymentByID(ctx, deploymentID)
	if err != nil {
		return nil, err
	}

	approval := &domain.Approval{
		ID:           uuid.NewString(),
		DeploymentID: dep.ID,
		ProductName:  s.productName(ctx, dep.ProductID),
		ClientName:   s.clientName(ctx, dep.PrimaryClientID()),
		Requester:    requester,
		Status:       domain.ApprovalPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.approvals.CreateApproval(ctx, approval); err != nil {
		return nil, err
	}

	s.recorder.RecordBestEffort(ctx, &domain.AuditEntry{
		Actor:        domain.Actor{Name: requester},
		Action:       domain.ActionCreate,
		ResourceType: domain.ResourceApproval,
		ResourceID:   approval.ID,
		ResourceName: approval.ProductName,
		Metadata:     map[string]string{"deployment_id": dep.ID},
	})
	return approval, nil
}

// Approve resolves a pending approval and transitions the deployment to
// released. The resolution is durable before the transition runs; if the
// transition then fails the approval stays approved and the caller gets
// domain.ErrReleaseNotApplied alongside the resolved approval.
func (s Service) Approve(ctx context.Context, approvalID, reviewer, comments string) (*domain.Approval, error) {
	if strings.TrimSpace(reviewer) == "" {
		return nil, domain.Validationf("reviewer required")
	}
	approval, err := s.approvals.ResolveApproval(ctx, approvalID, domain.ApprovalApproved, reviewer, comments, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.recorder.RecordBestEffort(ctx, &domain.AuditEntry{
		Actor:        domain.Actor{Name: reviewer},
		Action:       domain.ActionApprove,
		ResourceType: domain.ResourceApproval,
		ResourceID:   approval.ID,
		ResourceName: approval.ProductName,
		Diff: []domain.FieldChange{
			{Field: "status", OldValue: domain.ApprovalPending, NewValue: domain.ApprovalApproved},
		},
		Metadata: map[string]string{"deployment_id": approval.DeploymentID},
	})

	_, transitionErr := s.releaser.TransitionStatus(ctx, approval.DeploymentID, domain.StatusReleased, reviewer, "released by approval")

	s.publisher.Publish(domain.TopicApprovalCompleted, domain.ApprovalCompletedPayload{
		ApprovalID:   approval.ID,
		DeploymentID: approval.DeploymentID,
		Status:       approval.Status,
		Reviewer:     reviewer,
		Comments:     comments,
	})

	if transitionErr != nil {
		s.logger.Error("deployment release after approval failed",
			"approval_id", approval.ID,
			"deployment_id", approval.DeploymentID,
			"error", transitionErr,
		)
		return approval, fmt.Errorf("%w: %w", domain.ErrReleaseNotApplied, transitionErr)
	}
	return approval, nil
}

// Reject resolves a pending approval without touching the deployment.
func (s Service) Reject(ctx context.Context, approvalID, reviewer, reason string) (*domain.Approval, error) {
	if strings.TrimSpace(reviewer) == "" {
		return nil, domain.Validationf("reviewer required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, domain.Validationf("rejection reason required")
	}
	approval, err := s.approvals.ResolveApproval(ctx, approvalID, domain.ApprovalRejected, reviewer, reason, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.recorder.RecordBestEffort(ctx, &domain.AuditEntry{
		Actor:        domain.Actor{Name: reviewer},
		Action:       domain.ActionReject,
		ResourceType: domain.ResourceApproval,
		ResourceID:   approval.ID,
		ResourceName: approval.ProductName,
		Diff: []domain.FieldChange{
			{Field: "status", OldValue: domain.ApprovalPending, NewValue: domain.ApprovalRejected},
		},
		Metadata: map[string]string{"deployment_id": approval.DeploymentID},
	})

	s.publisher.Publish(domain.TopicApprovalCompleted, domain.ApprovalCompletedPayload{
		ApprovalID:   approval.ID,
		DeploymentID: approval.DeploymentID,
		Status:       approval.Status,
		Reviewer:     reviewer,
		Comments:     reason,
	})
	return approval, nil
}

// Get fetches an approval.
func (s Service) Get(ctx context.Context, id string) (*domain.Approval, error) {
	return s.approvals.GetApprovalByID(ctx, id)
}

// ListByDeployment enumerates a deployment's approvals newest-first.
func (s Service) ListByDeployment(ctx context.Context, deploymentID string) ([]domain.Approval, error) {
	return s.approvals.ListApprovalsByDeployment(ctx, deploymentID)
}

func (s Service) productName(ctx context.Context, productID string) string {
	product, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		s.logger.Warn("product lookup failed", "product_id", productID, "error", err)
		return ""
	}
	return product.Name
}

func (s Service) clientName(ctx context.Context, clientID string) string {
	if clientID == "" {
		return ""
	}
	client, err := s.clients.GetClientByID(ctx, clientID)
	if err != nil {
		s.logger.Warn("client lookup failed", "client_id", clientID, "error", err)
		return ""
	}
	return client.Name
}
