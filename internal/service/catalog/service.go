package catalog

import (
	"context"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/imatefx/control-tower/internal/audit"
	"github.com/imatefx/control-tower/internal/domain"
	"github.com/imatefx/control-tower/internal/repository"
)

// Service manages the product and client lookup entities. Both resource
// types sit on the audit allow-list, so every mutation runs through the
// interceptor.
type Service struct {
	products    repository.ProductRepository
	clients     repository.ClientRepository
	interceptor *audit.Interceptor
	logger      *slog.Logger
}

// New returns a catalog service.
func New(products repository.ProductRepository, clients repository.ClientRepository, interceptor *audit.Interceptor, logger *slog.Logger) Service {
	return Service{products: products, clients: clients, interceptor: interceptor, logger: logger}
}

// ProductInput carries product fields for create and update.
type ProductInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsAdapter   bool   `json:"is_adapter"`
}

// CreateProduct inserts a product.
func (s Service) CreateProduct(ctx context.Context, input ProductInput, actor domain.Actor, meta map[string]string) (*domain.Product, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, domain.Validationf("product name required")
	}
	product := &domain.Product{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		IsAdapter:   input.IsAdapter,
		CreatedAt:   time.Now().UTC(),
	}
	product.UpdatedAt = product.CreatedAt

	_, err := s.interceptor.Intercept(ctx, audit.Mutation{
		ResourceType: domain.ResourceProduct,
		Kind:         domain.ActionCreate,
		Actor:        actor,
		Metadata:     meta,
	}, func(ctx context.Context) (audit.Outcome, error) {
		if err := s.products.CreateProduct(ctx, product); err != nil {
			return audit.Outcome{}, err
		}
		state, _ := audit.Snapshot(product)
		return audit.Outcome{ResourceID: product.ID, ResourceName: product.Name, State: state}, nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct rewrites product fields.
func (s Service) UpdateProduct(ctx context.Context, id string, input ProductInput, actor domain.Actor, meta map[string]string) (*domain.Product, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, domain.Validationf("product name required")
	}
	product, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	product.Name = strings.TrimSpace(input.Name)
	product.Description = input.Description
	product.IsAdapter = input.IsAdapter

	_, err = s.interceptor.Intercept(ctx, audit.Mutation{
		ResourceType: domain.ResourceProduct,
		Kind:         domain.ActionUpdate,
		ResourceID:   id,
		Actor:        actor,
		Metadata:     meta,
	}, func(ctx context.Context) (audit.Outcome, error) {
		if err := s.products.UpdateProduct(ctx, product); err != nil {
			return audit.Outcome{}, err
		}
		state, _ := audit.Snapshot(product)
		return audit.Outcome{ResourceID: product.ID, ResourceName: product.Name, State: state}, nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct removes a product.
func (s Service) DeleteProduct(ctx context.Context, id string, actor domain.Actor, meta map[string]string) error {
	_, err := s.interceptor.Intercept(ctx, audit.Mutation{
		ResourceType: domain.ResourceProduct,
		Kind:         domain.ActionDelete,
		ResourceID:   id,
		Actor:        actor,
		Metadata:     meta,
	}, func(ctx context.Context) (audit.Outcome, error) {
		if err := s.products.DeleteProduct(ctx, id); err != nil {
			return audit.Outcome{}, err
		}
		return audit.Outcome{ResourceID: id}, nil
	})
	return err
}

// GetProduct fetches a product.
func (s Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.products.GetProductByID(ctx, id)
}

// ListProducts enumerates products.
func (s Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.products.ListProducts(ctx)
}

// ClientInput carries client fields for create and update.
type ClientInput struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email"`
	Region       string `json:"region"`
}

// CreateClient inserts a client.
func (s Service) CreateClient(ctx context.Context, input ClientInput, actor domain.Actor, meta map[string]string) (*domain.Client, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, domain.Validationf("client name required")
	}
	client := &domain.Client{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(input.Name),
		ContactEmail: input.ContactEmail,
		Region:       input.Region,
		CreatedAt:    time.Now().UTC(),
	}
	client.UpdatedAt = client.CreatedAt

	_, err := s.interceptor.Intercept(ctx, audit.Mutation{
		ResourceType: domain.ResourceClient,
		Kind:         domain.ActionCreate,
		Actor:        actor,
		Metadata:     meta,
	}, func(ctx context.Context) (audit.Outcome, error) {
		if err := s.clients.CreateClient(ctx, client); err != nil {
			return audit.Outcome{}, err
		}
		state, _ := audit.Snapshot(client)
		return audit.Outcome{ResourceID: client.ID, ResourceName: client.Name, State: state}, nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// UpdateClient rewrites client fields.
func (s Service) UpdateClient(ctx context.Context, id string, input ClientInput, actor domain.Actor, meta map[string]string) (*domain.Client, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, domain.Validationf("client name required")
	}
	client, err := s.clients.GetClientByID(ctx, id)
	if err != nil {
		return nil, err
	}
	client.Name = strings.TrimSpace(input.Name)
	client.ContactEmail = input.ContactEmail
	client.Region = input.Region

	_, err = s.interceptor.Intercept(ctx, audit.Mutation{
		ResourceType: domain.ResourceClient,
		Kind:         domain.ActionUpdate,
		ResourceID:   id,
		Actor:        actor,
		Metadata:     meta,
	}, func(ctx context.Context) (audit.Outcome, error) {
		if err := s.clients.UpdateClient(ctx, client); err != nil {
			return audit.Outcome{}, err
		}
		state, _ := audit.Snapshot(client)
		return audit.Outcome{ResourceID: client.ID, ResourceName: client.Name, State: state}, nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// DeleteClient removes a client.
func (s Service) DeleteClient(ctx context.Context, id string, actor domain.Actor, meta map[string]string) error {
	_, err := s.interceptor.Intercept(ctx, audit.Mutation{
		ResourceType: domain.ResourceClient,
		Kind:         domain.ActionDelete,
		ResourceID:   id,
		Actor:        actor,
		Metadata:     meta,
	}, func(ctx context.Context) (audit.Outcome, error) {
		if err := s.clients.DeleteClient(ctx, id); err != nil {
			return audit.Outcome{}, err
		}
		return audit.Outcome{ResourceID: id}, nil
	})
	return err
}

// GetClient fetches a client.
func (s Service) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	return s.clients.GetClientByID(ctx, id)
}

// ListClients enumerates clients.
func (s Service) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.clients.ListClients(ctx)
}
