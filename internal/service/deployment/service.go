package deployment

import (
	"context"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/imatefx/control-tower/internal/audit"
	"github.com/imatefx/control-tower/internal/domain"
	"github.com/imatefx/control-tower/internal/events"
	"github.com/imatefx/control-tower/internal/repository"
	"github.com/imatefx/control-tower/internal/service/checklist"
)

// Service owns the deployment aggregate: creation with checklist
// instantiation, the status machine, the blocked-comment thread and
// soft deletion.
type Service struct {
	deployments repository.DeploymentRepository
	products    repository.ProductRepository
	clients     repository.ClientRepository
	checklist   checklist.Service
	interceptor *audit.Interceptor
	recorder    *audit.Recorder
	publisher   events.Publisher
	logger      *slog.Logger
}

// New returns a deployment service.
func New(
	deployments repository.DeploymentRepository,
	products repository.ProductRepository,
	clients repository.ClientRepository,
	checklistSvc checklist.Service,
	interceptor *audit.Interceptor,
	recorder *audit.Recorder,
	publisher events.Publisher,
	logger *slog.Logger,
) Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return Service{
		deployments: deployments,
		products:    products,
		clients:     clients,
		checklist:   checklistSvc,
		interceptor: interceptor,
		recorder:    recorder,
		publisher:   publisher,
		logger:      logger,
	}
}

// CreateInput carries the fields for a new deployment.
type CreateInput struct {
	ProductID      string     `json:"product_id"`
	ClientIDs      []string   `json:"client_ids"`
	DeploymentType string     `json:"deployment_type"`
	Owner          string     `json:"owner"`
	TargetDate     *time.Time `json:"target_date,omitempty"`
	NotifyEmails   []string   `json:"notify_emails,omitempty"`
}

// Create validates input, instantiates the checklist snapshot and inserts
// the deployment in not_started state with an empty history.
func (s Service) Create(ctx context.Context, input CreateInput, actor domain.Actor, meta map[string]string) (*domain.Deployment, []domain.ChecklistItem, error) {
	if strings.TrimSpace(input.ProductID) == "" {
		return nil, nil, domain.Validationf("product_id required")
	}
	if len(input.ClientIDs) == 0 {
		return nil, nil, domain.Validationf("at least one client required")
	}
	deploymentType := input.DeploymentType
	if deploymentType == "" {
		deploymentType = domain.TypeGA
	}
	if !domain.ValidDeploymentType(deploymentType) {
		return nil, nil, domain.Validationf("unknown deployment type %q", deploymentType)
	}

	product, err := s.products.GetProductByID(ctx, input.ProductID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	dep := &domain.Deployment{
		ID:              uuid.NewString(),
		ProductID:       product.ID,
		ClientIDs:       input.ClientIDs,
		Status:          domain.StatusNotStarted,
		DeploymentType:  deploymentType,
		Owner:           input.Owner,
		TargetDate:      input.TargetDate,
		StatusHistory:   []domain.StatusChange{},
		BlockedComments: []domain.BlockedComment{},
		NotifyEmails:    input.NotifyEmails,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if product.IsAdapter {
		dep.AdapterServices = &domain.AdapterServices{
			Inbound:    domain.StatusNotStarted,
			Outbound:   domain.StatusNotStarted,
			Mapping:    domain.StatusNotStarted,
			Monitoring: domain.StatusNotStarted,
		}
	}

	items := s.checklist.InstantiateItems(ctx, dep.ID, now)
	displayName := s.displayName(ctx, product.Name, dep.PrimaryClientID())

	_, err = s.interceptor.Intercept(ctx, audit.Mutation{
		ResourceType: domain.ResourceDeployment,
		Kind:         domain.ActionCreate,
		Actor:        actor,
		Metadata:     meta,
	}, func(ctx context.Context) (audit.Outcome, error) {
		if err := s.deployments.CreateDeployment(ctx, dep, items); err != nil {
			return audit.Outcome{}, err
		}
		state, _ := audit.Snapshot(dep)
		return audit.Outcome{ResourceID: dep.ID, ResourceName: displayName, State: state}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return dep, items, nil
}

// UpdateInput carries the directly editable deployment fields. Nil fields
// are left unchanged.
type UpdateInput struct {
	ClientIDs       []string                `json:"client_ids,omitempty"`
	DeploymentType  *string                 `json:"deployment_type,omitempty"`
	Owner           *string                 `json:"owner,omitempty"`
	TargetDate      *time.Time              `json:"target_date,omitempty"`
	AdapterServices *domain.AdapterServices `json:"adapter_services,omitempty"`
	NotifyEmails    []string                `json:"notify_emails,omitempty"`
}

// Update edits direct fields. Status is out of bounds here; it only moves
// through TransitionStatus.
func (s Service) Update(ctx context.Context, id string, input UpdateInput, actor domain.Actor, meta map[string]string) (*domain.Deployment, error) {
	dep, err := s.deployments.GetDeploymentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.ClientIDs != nil {
		if len(input.ClientIDs) == 0 {
			return nil, domain.Validationf("at least one client required")
		}
		dep.ClientIDs = input.ClientIDs
	}
	if input.DeploymentType != nil {
		if !domain.ValidDeploymentType(*input.DeploymentType) {
			return nil, domain.Validationf("unknown deployment type %q", *input.DeploymentType)
		}
		dep.DeploymentType = *input.DeploymentType
	}
	if input.Owner != nil {
		dep.Owner = *input.Owner
	}
	if input.TargetDate != nil {
		dep.TargetDate = input.TargetDate
	}
	if input.AdapterServices != nil {
		dep.AdapterServices = input.AdapterServices
	}
	if input.NotifyEmails != nil {
		dep.NotifyEmails = input.NotifyEmails
	}

	_, err = s.interceptor.Intercept(ctx, audit.Mutation{
		ResourceType: domain.ResourceDeployment,
		Kind:         domain.ActionUpdate,
		ResourceID:   id,
		Actor:        actor,
		Metadata:     meta,
	}, func(ctx context.Context) (audit.Outcome, error) {
		if err := s.deployments.UpdateDeploymentFields(ctx, dep); err != nil {
			return audit.Outcome{}, err
		}
		state, _ := audit.Snapshot(dep)
		return audit.Outcome{ResourceID: dep.ID, State: state}, nil
	})
	if err != nil {
		return nil, err
	}
	return dep, nil
}

// TransitionStatus applies a status transition. The repository appends the
// history entry and sets the status in one atomic write, so the pairing
// invariant holds even under concurrent transitions. Any status is
// reachable from any status; released is normally driven by the approval
// workflow but a direct transition is allowed too.
func (s Service) TransitionStatus(ctx context.Context, deploymentID, newStatus, author, note string) (*domain.Deployment, error) {
	if !domain.ValidStatus(newStatus) {
		return nil, domain.Validationf("unknown status %q", newStatus)
	}
	entry := domain.StatusChange{
		ID:        uuid.NewString(),
		ToStatus:  newStatus,
		Author:    author,
		Text:      note,
		CreatedAt: time.Now().UTC(),
	}
	dep, err := s.deployments.AppendStatusTransition(ctx, deploymentID, entry)
	if err != nil {
		return nil, err
	}

	applied := dep.StatusHistory[len(dep.StatusHistory)-1]
	s.recorder.RecordBestEffort(ctx, &domain.AuditEntry{
		Actor:        domain.Actor{Name: author},
		Action:       domain.ActionStatusChange,
		ResourceType: domain.ResourceDeployment,
		ResourceID:   dep.ID,
		Diff: []domain.FieldChange{
			{Field: "status", OldValue: applied.FromStatus, NewValue: applied.ToStatus},
		},
	})

	s.publisher.Publish(domain.TopicDeploymentStatusChanged, domain.StatusChangedPayload{
		DeploymentID: dep.ID,
		FromStatus:   applied.FromStatus,
		ToStatus:     applied.ToStatus,
		Author:       author,
		Text:         note,
		NotifyEmails: dep.NotifyEmails,
	})
	s.logger.Info("deployment status changed",
		"deployment_id", dep.ID,
		"from_status", applied.FromStatus,
		"to_status", applied.ToStatus,
		"author", author,
	)
	return dep, nil
}

// AddBlockedComment appends one comment to the blocked-reason thread.
func (s Service) AddBlockedComment(ctx context.Context, deploymentID, text, author string, parentID *string) (*domain.Deployment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.Validationf("comment text required")
	}
	comment := domain.BlockedComment{
		ID:        uuid.NewString(),
		Text:      text,
		Author:    author,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	}
	return s.deployments.AppendBlockedComment(ctx, deploymentID, comment)
}

// Delete tombstones a deployment; Restore brings it back.
func (s Service) Delete(ctx context.Context, id string, actor domain.Actor, meta map[string]string) error {
	_, err := s.interceptor.Intercept(ctx, audit.Mutation{
		ResourceType: domain.ResourceDeployment,
		Kind:         domain.ActionDelete,
		ResourceID:   id,
		Actor:        actor,
		Metadata:     meta,
	}, func(ctx context.Context) (audit.Outcome, error) {
		if err := s.deployments.SoftDeleteDeployment(ctx, id); err != nil {
			return audit.Outcome{}, err
		}
		return audit.Outcome{ResourceID: id}, nil
	})
	return err
}

// Restore clears a deployment tombstone.
func (s Service) Restore(ctx context.Context, id string) error {
	return s.deployments.RestoreDeployment(ctx, id)
}

// Get fetches a live deployment.
func (s Service) Get(ctx context.Context, id string) (*domain.Deployment, error) {
	return s.deployments.GetDeploymentByID(ctx, id)
}

// List enumerates deployments.
func (s Service) List(ctx context.Context, filter domain.DeploymentFilter) ([]domain.Deployment, error) {
	return s.deployments.ListDeployments(ctx, filter)
}

// displayName builds the denormalized "product / client" label for audit
// entries. Lookups are best-effort.
func (s Service) displayName(ctx context.Context, productName, clientID string) string {
	if clientID == "" {
		return productName
	}
	client, err := s.clients.GetClientByID(ctx, clientID)
	if err != nil {
		s.logger.Warn("client lookup for display name failed", "client_id", clientID, "error", err)
		return productName
	}
	return productName + " / " + client.Name
}
