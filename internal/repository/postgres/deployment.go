package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/imatefx/control-tower/internal/domain"
	"github.com/imatefx/control-tower/internal/repository"
)

const deploymentColumns = `id, product_id, client_ids, status, deployment_type, owner,
	target_date, adapter_services, status_history, blocked_comments, notify_emails,
	created_at, updated_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row rowScanner) (*domain.Deployment, error) {
	var (
		d        domain.Deployment
		adapter  []byte
		history  []byte
		comments []byte
	)
	if err := row.Scan(
		&d.ID,
		&d.ProductID,
		&d.ClientIDs,
		&d.Status,
		&d.DeploymentType,
		&d.Owner,
		&d.TargetDate,
		&adapter,
		&history,
		&comments,
		&d.NotifyEmails,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.DeletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if len(adapter) > 0 {
		if err := json.Unmarshal(adapter, &d.AdapterServices); err != nil {
			return nil, fmt.Errorf("decode adapter services: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &d.StatusHistory); err != nil {
			return nil, fmt.Errorf("decode status history: %w", err)
		}
	}
	if len(comments) > 0 {
		if err := json.Unmarshal(comments, &d.BlockedComments); err != nil {
			return nil, fmt.Errorf("decode blocked comments: %w", err)
		}
	}
	return &d, nil
}

// CreateDeployment inserts a deployment and its checklist items in one
// transaction so a deployment never exists without its checklist snapshot.
func (r *Repository) CreateDeployment(ctx context.Context, deployment *domain.Deployment, items []domain.ChecklistItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	adapter, err := marshalOrNil(deployment.AdapterServices)
	if err != nil {
		return err
	}
	history, err := json.Marshal(deployment.StatusHistory)
	if err != nil {
		return err
	}

	const query = `INSERT INTO deployments
		(id, product_id, client_ids, status, deployment_type, owner, target_date,
		 adapter_services, status_history, blocked_comments, notify_emails, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '[]'::jsonb, $10, $11, $11)`
	if _, err := tx.Exec(ctx, query,
		deployment.ID,
		deployment.ProductID,
		deployment.ClientIDs,
		deployment.Status,
		deployment.DeploymentType,
		deployment.Owner,
		deployment.TargetDate,
		adapter,
		history,
		deployment.NotifyEmails,
		deployment.CreatedAt,
	); err != nil {
		return mapPgError(err)
	}

	if len(items) > 0 {
		const itemInsert = `INSERT INTO checklist_items (id, deployment_id, label, position, is_completed, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)`
		batch := &pgx.Batch{}
		for _, item := range items {
			batch.Queue(itemInsert, item.ID, item.DeploymentID, item.Label, item.Position, item.IsCompleted, item.CreatedAt)
		}
		br := tx.SendBatch(ctx, batch)
		for range items {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return mapPgError(err)
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetDeploymentByID fetches a live deployment.
func (r *Repository) GetDeploymentByID(ctx context.Context, id string) (*domain.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE id = $1 AND deleted_at IS NULL`
	return scanDeployment(r.pool.QueryRow(ctx, query, id))
}

// ListDeployments enumerates deployments newest-first.
func (r *Repository) ListDeployments(ctx context.Context, filter domain.DeploymentFilter) ([]domain.Deployment, error) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if !filter.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if filter.ProductID != "" {
		args = append(args, filter.ProductID)
		clauses = append(clauses, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(client_ids)", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	query := `SELECT ` + deploymentColumns + ` FROM deployments`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deployments := make([]domain.Deployment, 0)
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	return deployments, rows.Err()
}

// UpdateDeploymentFields rewrites the directly editable fields. Status and
// the embedded history are only touched by AppendStatusTransition.
func (r *Repository) UpdateDeploymentFields(ctx context.Context, deployment *domain.Deployment) error {
	adapter, err := marshalOrNil(deployment.AdapterServices)
	if err != nil {
		return err
	}
	const query = `UPDATE deployments
		SET client_ids = $2, deployment_type = $3, owner = $4, target_date = $5,
		    adapter_services = $6, notify_emails = $7, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.pool.Exec(ctx, query,
		deployment.ID,
		deployment.ClientIDs,
		deployment.DeploymentType,
		deployment.Owner,
		deployment.TargetDate,
		adapter,
		deployment.NotifyEmails,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AppendStatusTransition sets the status and appends the matching history
// entry in one statement. from_status is read from the stored row inside
// the update, so concurrent transitions cannot tear status and history
// apart.
func (r *Repository) AppendStatusTransition(ctx context.Context, deploymentID string, entry domain.StatusChange) (*domain.Deployment, error) {
	query := `UPDATE deployments
		SET status = $2,
		    status_history = status_history || jsonb_build_array(jsonb_build_object(
		        'id', $3::text,
		        'from_status', status,
		        'to_status', $2::text,
		        'author', $4::text,
		        'text', $5::text,
		        'created_at', $6::timestamptz)),
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + deploymentColumns
	return scanDeployment(r.pool.QueryRow(ctx, query,
		deploymentID, entry.ToStatus, entry.ID, entry.Author, entry.Text, entry.CreatedAt))
}

// AppendBlockedComment appends one comment to the embedded thread.
func (r *Repository) AppendBlockedComment(ctx context.Context, deploymentID string, comment domain.BlockedComment) (*domain.Deployment, error) {
	payload, err := json.Marshal(comment)
	if err != nil {
		return nil, err
	}
	query := `UPDATE deployments
		SET blocked_comments = blocked_comments || $2::jsonb, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + deploymentColumns
	return scanDeployment(r.pool.QueryRow(ctx, query, deploymentID, payload))
}

// SoftDeleteDeployment tombstones a deployment.
func (r *Repository) SoftDeleteDeployment(ctx context.Context, id string) error {
	const query = `UPDATE deployments SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RestoreDeployment clears a tombstone.
func (r *Repository) RestoreDeployment(ctx context.Context, id string) error {
	const query = `UPDATE deployments SET deleted_at = NULL, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NOT NULL`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func marshalOrNil(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case *domain.AdapterServices:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
