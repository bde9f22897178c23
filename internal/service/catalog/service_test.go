package catalog

import (
	"context"
	"io"
	"testing"

	"log/slog"

	"github.com/imatefx/control-tower/internal/audit"
	"github.com/imatefx/control-tower/internal/domain"
	"github.com/imatefx/control-tower/internal/repository"
)

type memProductRepo struct {
	products map[string]*domain.Product
}

func (m *memProductRepo) CreateProduct(_ context.Context, product *domain.Product) error {
	clone := *product
	m.products[product.ID] = &clone
	return nil
}

func (m *memProductRepo) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	product, ok := m.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *product
	return &clone, nil
}

func (m *memProductRepo) ListProducts(context.Context) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memProductRepo) UpdateProduct(_ context.Context, product *domain.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *product
	m.products[product.ID] = &clone
	return nil
}

func (m *memProductRepo) DeleteProduct(_ context.Context, id string) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

type memClientRepo struct {
	clients map[string]*domain.Client
}

func (m *memClientRepo) CreateClient(_ context.Context, client *domain.Client) error {
	clone := *client
	m.clients[client.ID] = &clone
	return nil
}

func (m *memClientRepo) GetClientByID(_ context.Context, id string) (*domain.Client, error) {
	client, ok := m.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *client
	return &clone, nil
}

func (m *memClientRepo) ListClients(context.Context) ([]domain.Client, error) { return nil, nil }

func (m *memClientRepo) UpdateClient(_ context.Context, client *domain.Client) error {
	if _, ok := m.clients[client.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *client
	m.clients[client.ID] = &clone
	return nil
}

func (m *memClientRepo) DeleteClient(_ context.Context, id string) error {
	delete(m.clients, id)
	return nil
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

func newTestService() (Service, *captureAuditRepo) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	products := &memProductRepo{products: make(map[string]*domain.Product)}
	clients := &memClientRepo{clients: make(map[string]*domain.Client)}
	audits := &captureAuditRepo{}

	recorder := audit.NewRecorder(audits, log)
	interceptor := audit.NewInterceptor(recorder, log, true)
	interceptor.Register(domain.ResourceProduct, audit.ResourceConfig{
		TrackedFields: []string{"name", "description", "is_adapter"},
		Snapshot: func(ctx context.Context, id string) (map[string]any, string, error) {
			product, err := products.GetProductByID(ctx, id)
			if err != nil {
				return nil, "", err
			}
			state, err := audit.Snapshot(product)
			return state, product.Name, err
		},
	})
	interceptor.Register(domain.ResourceClient, audit.ResourceConfig{
		TrackedFields: []string{"name", "contact_email", "region"},
		Snapshot: func(ctx context.Context, id string) (map[string]any, string, error) {
			client, err := clients.GetClientByID(ctx, id)
			if err != nil {
				return nil, "", err
			}
			state, err := audit.Snapshot(client)
			return state, client.Name, err
		},
	})

	return New(products, clients, interceptor, log), audits
}

func TestProductLifecycleIsAudited(t *testing.T) {
	svc, audits := newTestService()
	ctx := context.Background()
	actor := domain.Actor{ID: "u1", Name: "dana"}

	product, err := svc.CreateProduct(ctx, ProductInput{Name: "  Billing  ", Description: "invoicing"}, actor, nil)
	if err != nil {
		t.Fatalf("CreateProduct returned error: %v", err)
	}
	if product.Name != "Billing" {
		t.Fatalf("name should be trimmed, got %q", product.Name)
	}

	updated, err := svc.UpdateProduct(ctx, product.ID, ProductInput{Name: "Billing", Description: "invoicing", IsAdapter: true}, actor, nil)
	if err != nil {
		t.Fatalf("UpdateProduct returned error: %v", err)
	}
	if !updated.IsAdapter {
		t.Fatal("update not applied")
	}

	if err := svc.DeleteProduct(ctx, product.ID, actor, nil); err != nil {
		t.Fatalf("DeleteProduct returned error: %v", err)
	}
	if _, err := svc.GetProduct(ctx, product.ID); err == nil {
		t.Fatal("deleted product still readable")
	}

	if len(audits.entries) != 3 {
		t.Fatalf("expected create/update/delete audit entries, got %d", len(audits.entries))
	}
	if audits.entries[0].Action != domain.ActionCreate ||
		audits.entries[1].Action != domain.ActionUpdate ||
		audits.entries[2].Action != domain.ActionDelete {
		t.Fatalf("unexpected actions: %+v", audits.entries)
	}

	updateDiff := audits.entries[1].Diff
	if len(updateDiff) != 1 || updateDiff[0].Field != "is_adapter" {
		t.Fatalf("expected is_adapter diff only, got %+v", updateDiff)
	}
	if updateDiff[0].OldValue != false || updateDiff[0].NewValue != true {
		t.Fatalf("unexpected diff values: %+v", updateDiff[0])
	}

	deleteDiff := audits.entries[2].Diff
	for _, change := range deleteDiff {
		if change.NewValue != nil {
			t.Fatalf("delete diff should clear values: %+v", change)
		}
	}
}

func TestClientUpdateAuditsChangedFieldsOnly(t *testing.T) {
	svc, audits := newTestService()
	ctx := context.Background()
	actor := domain.Actor{Name: "dana"}

	client, err := svc.CreateClient(ctx, ClientInput{Name: "Acme", ContactEmail: "ops@acme.test", Region: "eu"}, actor, nil)
	if err != nil {
		t.Fatalf("CreateClient returned error: %v", err)
	}

	if _, err := svc.UpdateClient(ctx, client.ID, ClientInput{Name: "Acme", ContactEmail: "ops@acme.test", Region: "us"}, actor, nil); err != nil {
		t.Fatalf("UpdateClient returned error: %v", err)
	}

	last := audits.entries[len(audits.entries)-1]
	if last.ResourceType != domain.ResourceClient || last.Action != domain.ActionUpdate {
		t.Fatalf("unexpected entry: %+v", last)
	}
	if len(last.Diff) != 1 || last.Diff[0].Field != "region" || last.Diff[0].OldValue != "eu" || last.Diff[0].NewValue != "us" {
		t.Fatalf("unexpected diff: %+v", last.Diff)
	}
}

func TestCatalogValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateProduct(ctx, ProductInput{Name: "  "}, domain.Actor{}, nil); !domain.IsValidation(err) {
		t.Fatalf("blank product name: expected validation error, got %v", err)
	}
	if _, err := svc.CreateClient(ctx, ClientInput{}, domain.Actor{}, nil); !domain.IsValidation(err) {
		t.Fatalf("blank client name: expected validation error, got %v", err)
	}
}
