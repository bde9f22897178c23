package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/imatefx/control-tower/internal/domain"
	"github.com/imatefx/control-tower/internal/repository"
)

const approvalColumns = `id, deployment_id, product_name, client_name, requester,
	status, reviewer, reviewed_at, comments, created_at`

func scanApproval(row rowScanner) (*domain.Approval, error) {
	var (
		a        domain.Approval
		reviewer sql.NullString
		comments sql.NullString
	)
	if err := row.Scan(
		&a.ID,
		&a.DeploymentID,
		&a.ProductName,
		&a.ClientName,
		&a.Requester,
		&a.Status,
		&reviewer,
		&a.ReviewedAt,
		&comments,
		&a.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	a.Reviewer = reviewer.String
	a.Comments = comments.String
	return &a, nil
}

// CreateApproval inserts a pending approval request.
func (r *Repository) CreateApproval(ctx context.Context, approval *domain.Approval) error {
	const query = `INSERT INTO approvals
		(id, deployment_id, product_name, client_name, requester, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		approval.ID,
		approval.DeploymentID,
		approval.ProductName,
		approval.ClientName,
		approval.Requester,
		approval.Status,
		approval.CreatedAt,
	)
	return mapPgError(err)
}

// GetApprovalByID fetches an approval.
func (r *Repository) GetApprovalByID(ctx context.Context, id string) (*domain.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE id = $1`
	return scanApproval(r.pool.QueryRow(ctx, query, id))
}

// ListApprovalsByDeployment enumerates a deployment's approvals newest-first.
func (r *Repository) ListApprovalsByDeployment(ctx context.Context, deploymentID string) ([]domain.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals
		WHERE deployment_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, deploymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	approvals := make([]domain.Approval, 0)
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, *a)
	}
	return approvals, rows.Err()
}

// ResolveApproval moves a pending approval into a terminal status. The
// WHERE status = 'pending' guard makes resolution a compare-and-swap:
// a second resolver finds zero rows and gets ErrAlreadyProcessed.
func (r *Repository) ResolveApproval(ctx context.Context, id, status, reviewer, comments string, reviewedAt time.Time) (*domain.Approval, error) {
	query := `UPDATE approvals
		SET status = $2, reviewer = $3, comments = $4, reviewed_at = $5
		WHERE id = $1 AND status = $6
		RETURNING ` + approvalColumns
	approval, err := scanApproval(r.pool.QueryRow(ctx, query, id, status, reviewer, comments, reviewedAt, domain.ApprovalPending))
	if err == nil {
		return approval, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	// Zero rows: either the approval is gone or it was already resolved.
	existing, getErr := r.GetApprovalByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return existing, domain.ErrAlreadyProcessed
}
