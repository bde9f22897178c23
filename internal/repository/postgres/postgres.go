package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imatefx/control-tower/internal/domain"
	"github.com/imatefx/control-tower/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.ProductRepository    = (*Repository)(nil)
	_ repository.ClientRepository     = (*Repository)(nil)
	_ repository.DeploymentRepository = (*Repository)(nil)
	_ repository.ChecklistRepository  = (*Repository)(nil)
	_ repository.ApprovalRepository   = (*Repository)(nil)
	_ repository.AuditRepository      = (*Repository)(nil)
)

// mapPgError translates constraint violations into sentinel errors.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return repository.ErrNotFound
		case "23505", "23514", "22P02":
			return repository.ErrInvalidArgument
		}
	}
	return err
}

// CreateProduct inserts a product.
func (r *Repository) CreateProduct(ctx context.Context, product *domain.Product) error {
	const query = `INSERT INTO products (id, name, description, is_adapter, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`
	_, err := r.pool.Exec(ctx, query, product.ID, product.Name, product.Description, product.IsAdapter, product.CreatedAt)
	return mapPgError(err)
}

// GetProductByID fetches a product.
func (r *Repository) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	const query = `SELECT id, name, description, is_adapter, created_at, updated_at
		FROM products WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.IsAdapter, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListProducts enumerates products by name.
func (r *Repository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	const query = `SELECT id, name, description, is_adapter, created_at, updated_at
		FROM products ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.IsAdapter, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpdateProduct rewrites product fields.
func (r *Repository) UpdateProduct(ctx context.Context, product *domain.Product) error {
	const query = `UPDATE products SET name = $2, description = $3, is_adapter = $4, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, product.ID, product.Name, product.Description, product.IsAdapter)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteProduct removes a product.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateClient inserts a client.
func (r *Repository) CreateClient(ctx context.Context, client *domain.Client) error {
	const query = `INSERT INTO clients (id, name, contact_email, region, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`
	_, err := r.pool.Exec(ctx, query, client.ID, client.Name, client.ContactEmail, client.Region, client.CreatedAt)
	return mapPgError(err)
}

// GetClientByID fetches a client.
func (r *Repository) GetClientByID(ctx context.Context, id string) (*domain.Client, error) {
	const query = `SELECT id, name, contact_email, region, created_at, updated_at
		FROM clients WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var c domain.Client
	if err := row.Scan(&c.ID, &c.Name, &c.ContactEmail, &c.Region, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListClients enumerates clients by name.
func (r *Repository) ListClients(ctx context.Context) ([]domain.Client, error) {
	const query = `SELECT id, name, contact_email, region, created_at, updated_at
		FROM clients ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]domain.Client, 0)
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.ContactEmail, &c.Region, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// UpdateClient rewrites client fields.
func (r *Repository) UpdateClient(ctx context.Context, client *domain.Client) error {
	const query = `UPDATE clients SET name = $2, contact_email = $3, region = $4, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, client.ID, client.Name, client.ContactEmail, client.Region)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteClient removes a client.
func (r *Repository) DeleteClient(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
