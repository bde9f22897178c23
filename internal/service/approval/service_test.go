package approval

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"log/slog"

	"github.com/imatefx/control-tower/internal/audit"
	"github.com/imatefx/control-tower/internal/domain"
	"github.com/imatefx/control-tower/internal/repository"
	"github.com/imatefx/control-tower/internal/service/checklist"
	"github.com/imatefx/control-tower/internal/service/deployment"
)

type fakeApprovalRepo struct {
	approvals map[string]*domain.Approval
}

func newFakeApprovalRepo() *fakeApprovalRepo {
	return &fakeApprovalRepo{approvals: make(map[string]*domain.Approval)}
}

func (f *fakeApprovalRepo) CreateApproval(_ context.Context, approval *domain.Approval) error {
	clone := *approval
	f.approvals[approval.ID] = &clone
	return nil
}

func (f *fakeApprovalRepo) GetApprovalByID(_ context.Context, id string) (*domain.Approval, error) {
	approval, ok := f.approvals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *approval
	return &clone, nil
}

func (f *fakeApprovalRepo) ListApprovalsByDeployment(_ context.Context, deploymentID string) ([]domain.Approval, error) {
	var out []domain.Approval
	for _, a := range f.approvals {
		if a.DeploymentID == deploymentID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeApprovalRepo) ResolveApproval(_ context.Context, id, status, reviewer, comments string, reviewedAt time.Time) (*domain.Approval, error) {
	approval, ok := f.approvals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if approval.Status != domain.ApprovalPending {
		clone := *approval
		return &clone, domain.ErrAlreadyProcessed
	}
	approval.Status = status
	approval.Reviewer = reviewer
	approval.Comments = comments
	rt := reviewedAt
	approval.ReviewedAt = &rt
	clone := *approval
	return &clone, nil
}

type fakeDeploymentRepo struct {
	deployments map[string]*domain.Deployment
}

func newFakeDeploymentRepo() *fakeDeploymentRepo {
	return &fakeDeploymentRepo{deployments: make(map[string]*domain.Deployment)}
}

func (f *fakeDeploymentRepo) CreateDeployment(_ context.Context, dep *domain.Deployment, _ []domain.ChecklistItem) error {
	clone := *dep
	f.deployments[dep.ID] = &clone
	return nil
}

func (f *fakeDeploymentRepo) GetDeploymentByID(_ context.Context, id string) (*domain.Deployment, error) {
	dep, ok := f.deployments[id]
	if !ok || dep.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	clone := *dep
	return &clone, nil
}

func (f *fakeDeploymentRepo) ListDeployments(context.Context, domain.DeploymentFilter) ([]domain.Deployment, error) {
	return nil, nil
}

func (f *fakeDeploymentRepo) UpdateDeploymentFields(_ context.Context, dep *domain.Deployment) error {
	if _, ok := f.deployments[dep.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *dep
	f.deployments[dep.ID] = &clone
	return nil
}

func (f *fakeDeploymentRepo) AppendStatusTransition(_ context.Context, deploymentID string, entry domain.StatusChange) (*domain.Deployment, error) {
	dep, ok := f.deployments[deploymentID]
	if !ok || dep.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	entry.FromStatus = dep.Status
	dep.StatusHistory = append(dep.StatusHistory, entry)
	dep.Status = entry.ToStatus
	clone := *dep
	clone.StatusHistory = append([]domain.StatusChange(nil), dep.StatusHistory...)
	return &clone, nil
}

func (f *fakeDeploymentRepo) AppendBlockedComment(_ context.Context, deploymentID string, comment domain.BlockedComment) (*domain.Deployment, error) {
	dep, ok := f.deployments[deploymentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	dep.BlockedComments = append(dep.BlockedComments, comment)
	clone := *dep
	return &clone, nil
}

func (f *fakeDeploymentRepo) SoftDeleteDeployment(_ context.Context, id string) error {
	dep, ok := f.deployments[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	dep.DeletedAt = &now
	return nil
}

func (f *fakeDeploymentRepo) RestoreDeployment(_ context.Context, id string) error {
	dep, ok := f.deployments[id]
	if !ok {
		return repository.ErrNotFound
	}
	dep.DeletedAt = nil
	return nil
}

type fakeProductRepo struct {
	products map[string]*domain.Product
}

func (f *fakeProductRepo) CreateProduct(context.Context, *domain.Product) error { return nil }

func (f *fakeProductRepo) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	product, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return product, nil
}

func (f *fakeProductRepo) ListProducts(context.Context) ([]domain.Product, error) { return nil, nil }
func (f *fakeProductRepo) UpdateProduct(context.Context, *domain.Product) error   { return nil }
func (f *fakeProductRepo) DeleteProduct(context.Context, string) error            { return nil }

type fakeClientRepo struct {
	clients map[string]*domain.Client
}

func (f *fakeClientRepo) CreateClient(context.Context, *domain.Client) error { return nil }

func (f *fakeClientRepo) GetClientByID(_ context.Context, id string) (*domain.Client, error) {
	client, ok := f.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return client, nil
}

func (f *fakeClientRepo) ListClients(context.Context) ([]domain.Client, error) { return nil, nil }
func (f *fakeClientRepo) UpdateClient(context.Context, *domain.Client) error   { return nil }
func (f *fakeClientRepo) DeleteClient(context.Context, string) error           { return nil }

type fakeChecklistRepo struct{}

func (fakeChecklistRepo) ListTemplates(context.Context) ([]domain.ChecklistTemplate, error) {
	return nil, nil
}

func (fakeChecklistRepo) ReplaceTemplates(context.Context, []string) ([]domain.ChecklistTemplate, error) {
	return nil, nil
}

func (fakeChecklistRepo) ListChecklistItems(context.Context, string) ([]domain.ChecklistItem, error) {
	return nil, nil
}

func (fakeChecklistRepo) SetChecklistItemCompleted(context.Context, string, bool) (*domain.ChecklistItem, error) {
	return nil, nil
}

type captureAuditRepo struct {
	entries []*domain.AuditEntry
}

func (c *captureAuditRepo) InsertAuditEntry(_ context.Context, entry *domain.AuditEntry) error {
	c.entries = append(c.entries, entry)
	return nil
}

func (c *captureAuditRepo) ListAuditByResource(context.Context, string, string, int) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (c *captureAuditRepo) ListAuditByActor(context.Context, string, int) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (c *captureAuditRepo) SearchAudit(context.Context, domain.AuditFilter) ([]domain.AuditEntry, error) {
	return nil, nil
}

type publishedEvent struct {
	topic   string
	payload any
}

type capturePublisher struct {
	events []publishedEvent
}

func (c *capturePublisher) Publish(topic string, payload any) {
	c.events = append(c.events, publishedEvent{topic: topic, payload: payload})
}

func (c *capturePublisher) byTopic(topic string) []publishedEvent {
	var out []publishedEvent
	for _, e := range c.events {
		if e.topic == topic {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc       Service
	deploySvc deployment.Service
	approvals *fakeApprovalRepo
	repo      *fakeDeploymentRepo
	audits    *captureAuditRepo
	publisher *capturePublisher
}

func newFixture() *fixture {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		approvals: newFakeApprovalRepo(),
		repo:      newFakeDeploymentRepo(),
		audits:    &captureAuditRepo{},
		publisher: &capturePublisher{},
	}
	products := &fakeProductRepo{products: map[string]*domain.Product{
		"prod-1": {ID: "prod-1", Name: "Billing"},
	}}
	clients := &fakeClientRepo{clients: map[string]*domain.Client{
		"client-1": {ID: "client-1", Name: "Acme"},
	}}

	recorder := audit.NewRecorder(f.audits, log)
	interceptor := audit.NewInterceptor(recorder, log, true)

	f.deploySvc = deployment.New(f.repo, products, clients, checklist.New(fakeChecklistRepo{}, log), interceptor, recorder, f.publisher, log)
	f.svc = New(f.approvals, f.repo, products, clients, f.deploySvc, recorder, f.publisher, log)
	return f
}

func (f *fixture) mustCreateDeployment(t *testing.T) *domain.Deployment {
	t.Helper()
	dep, _, err := f.deploySvc.Create(context.Background(), deployment.CreateInput{
		ProductID: "prod-1",
		ClientIDs: []string{"client-1"},
		Owner:     "dana",
	}, domain.Actor{ID: "u1", Name: "dana"}, nil)
	if err != nil {
		t.Fatalf("deployment create failed: %v", err)
	}
	return dep
}

func TestRequestDenormalizesNames(t *testing.T) {
	f := newFixture()
	dep := f.mustCreateDeployment(t)

	approval, err := f.svc.Request(context.Background(), dep.ID, "dana")
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if approval.Status != domain.ApprovalPending {
		t.Fatalf("expected pending, got %s", approval.Status)
	}
	if approval.ProductName != "Billing" || approval.ClientName != "Acme" {
		t.Fatalf("names not denormalized: %+v", approval)
	}
	if approval.DeploymentID != dep.ID {
		t.Fatalf("wrong deployment binding: %+v", approval)
	}
}

func TestRequestUnknownDeployment(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Request(context.Background(), "missing", "dana"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Request(context.Background(), "whatever", "  "); !domain.IsValidation(err) {
		t.Fatalf("blank requester: expected validation error, got %v", err)
	}
}

func TestApproveReleasesDeployment(t *testing.T) {
	f := newFixture()
	dep := f.mustCreateDeployment(t)

	blocked, err := f.deploySvc.TransitionStatus(context.Background(), dep.ID, domain.StatusBlocked, "dana", "waiting on vendor")
	if err != nil {
		t.Fatalf("transition to blocked failed: %v", err)
	}
	if len(blocked.StatusHistory) != 1 {
		t.Fatalf("expected 1 history entry before approval, got %d", len(blocked.StatusHistory))
	}

	pending, err := f.svc.Request(context.Background(), dep.ID, "dana")
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}

	approved, err := f.svc.Approve(context.Background(), pending.ID, "lee", "ship it")
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if approved.Status != domain.ApprovalApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	if approved.Reviewer != "lee" || approved.ReviewedAt == nil {
		t.Fatalf("reviewer not recorded: %+v", approved)
	}

	released, err := f.deploySvc.Get(context.Background(), dep.ID)
	if err != nil {
		t.Fatalf("deployment fetch failed: %v", err)
	}
	if released.Status != domain.StatusReleased {
		t.Fatalf("expected released, got %s", released.Status)
	}
	if len(released.StatusHistory) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(released.StatusHistory))
	}
	last := released.StatusHistory[1]
	if last.FromStatus != domain.StatusBlocked || last.ToStatus != domain.StatusReleased {
		t.Fatalf("unexpected release transition: %+v", last)
	}
	if last.Author != "lee" {
		t.Fatalf("release should be attributed to the reviewer, got %q", last.Author)
	}

	completed := f.publisher.byTopic(domain.TopicApprovalCompleted)
	if len(completed) != 1 {
		t.Fatalf("expected 1 approval.completed event, got %d", len(completed))
	}
	payload, ok := completed[0].payload.(domain.ApprovalCompletedPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", completed[0].payload)
	}
	if payload.ApprovalID != pending.ID || payload.Status != domain.ApprovalApproved {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if len(f.publisher.byTopic(domain.TopicDeploymentStatusChanged)) != 2 {
		t.Fatal("expected status events for both transitions")
	}
}

func TestApproveSurfacesReleaseFailure(t *testing.T) {
	f := newFixture()
	f.approvals.approvals["a1"] = &domain.Approval{
		ID:           "a1",
		DeploymentID: "gone",
		Status:       domain.ApprovalPending,
		Requester:    "dana",
	}

	approval, err := f.svc.Approve(context.Background(), "a1", "lee", "")
	if !errors.Is(err, domain.ErrReleaseNotApplied) {
		t.Fatalf("expected ErrReleaseNotApplied, got %v", err)
	}
	if approval == nil || approval.Status != domain.ApprovalApproved {
		t.Fatalf("approval should stay resolved: %+v", approval)
	}

	stored := f.approvals.approvals["a1"]
	if stored.Status != domain.ApprovalApproved {
		t.Fatalf("stored approval should be approved, got %s", stored.Status)
	}
	if len(f.publisher.byTopic(domain.TopicApprovalCompleted)) != 1 {
		t.Fatal("completion event should still be published")
	}
}

func TestRejectLeavesDeploymentUntouched(t *testing.T) {
	f := newFixture()
	dep := f.mustCreateDeployment(t)
	pending, err := f.svc.Request(context.Background(), dep.ID, "dana")
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}

	if _, err := f.svc.Reject(context.Background(), pending.ID, "lee", ""); !domain.IsValidation(err) {
		t.Fatalf("blank reason: expected validation error, got %v", err)
	}

	rejected, err := f.svc.Reject(context.Background(), pending.ID, "lee", "missing sign-off")
	if err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	if rejected.Status != domain.ApprovalRejected || rejected.Comments != "missing sign-off" {
		t.Fatalf("unexpected approval: %+v", rejected)
	}

	current, err := f.deploySvc.Get(context.Background(), dep.ID)
	if err != nil {
		t.Fatalf("deployment fetch failed: %v", err)
	}
	if current.Status != domain.StatusNotStarted || len(current.StatusHistory) != 0 {
		t.Fatalf("rejection must not touch the deployment: %+v", current)
	}
}

func TestResolveIsFirstWriterWins(t *testing.T) {
	f := newFixture()
	dep := f.mustCreateDeployment(t)
	pending, err := f.svc.Request(context.Background(), dep.ID, "dana")
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}

	first, err := f.svc.Reject(context.Background(), pending.ID, "lee", "not ready")
	if err != nil {
		t.Fatalf("first reject failed: %v", err)
	}

	if _, err := f.svc.Approve(context.Background(), pending.ID, "sam", ""); !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}

	stored := f.approvals.approvals[pending.ID]
	if stored.Reviewer != first.Reviewer || stored.Status != domain.ApprovalRejected {
		t.Fatalf("losing resolution must not overwrite: %+v", stored)
	}
	if stored.ReviewedAt == nil || !stored.ReviewedAt.Equal(*first.ReviewedAt) {
		t.Fatalf("reviewed_at must be unchanged: %+v", stored)
	}

	if _, err := f.svc.Approve(context.Background(), "missing", "lee", ""); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("unknown approval: expected ErrNotFound, got %v", err)
	}
}
