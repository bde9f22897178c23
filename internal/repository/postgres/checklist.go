package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/imatefx/control-tower/internal/domain"
	"github.com/imatefx/control-tower/internal/repository"
)

// ListTemplates returns the active template set in sort order.
func (r *Repository) ListTemplates(ctx context.Context) ([]domain.ChecklistTemplate, error) {
	const query = `SELECT id, label, position, created_at
		FROM checklist_templates ORDER BY position`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := make([]domain.ChecklistTemplate, 0)
	for rows.Next() {
		var t domain.ChecklistTemplate
		if err := rows.Scan(&t.ID, &t.Label, &t.Position, &t.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// ReplaceTemplates swaps the active template set for the given labels.
// Existing deployments keep their copied checklist items untouched.
func (r *Repository) ReplaceTemplates(ctx context.Context, labels []string) ([]domain.ChecklistTemplate, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM checklist_templates`); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	templates := make([]domain.ChecklistTemplate, 0, len(labels))
	const insert = `INSERT INTO checklist_templates (id, label, position, created_at)
		VALUES ($1, $2, $3, $4)`
	batch := &pgx.Batch{}
	for i, label := range labels {
		t := domain.ChecklistTemplate{
			ID:        uuid.NewString(),
			Label:     label,
			Position:  i,
			CreatedAt: now,
		}
		templates = append(templates, t)
		batch.Queue(insert, t.ID, t.Label, t.Position, t.CreatedAt)
	}
	br := tx.SendBatch(ctx, batch)
	for range labels {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return nil, mapPgError(err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return templates, nil
}

// ListChecklistItems returns a deployment's items in sort order.
func (r *Repository) ListChecklistItems(ctx context.Context, deploymentID string) ([]domain.ChecklistItem, error) {
	const query = `SELECT id, deployment_id, label, position, is_completed, created_at, updated_at
		FROM checklist_items WHERE deployment_id = $1 ORDER BY position`
	rows, err := r.pool.Query(ctx, query, deploymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ChecklistItem, 0)
	for rows.Next() {
		var item domain.ChecklistItem
		if err := rows.Scan(&item.ID, &item.DeploymentID, &item.Label, &item.Position, &item.IsCompleted, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetChecklistItemCompleted toggles one item's completion flag.
func (r *Repository) SetChecklistItemCompleted(ctx context.Context, itemID string, completed bool) (*domain.ChecklistItem, error) {
	const query = `UPDATE checklist_items SET is_completed = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, deployment_id, label, position, is_completed, created_at, updated_at`
	row := r.pool.QueryRow(ctx, query, itemID, completed)
	var item domain.ChecklistItem
	if err := row.Scan(&item.ID, &item.DeploymentID, &item.Label, &item.Position, &item.IsCompleted, &item.CreatedAt, &item.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}
