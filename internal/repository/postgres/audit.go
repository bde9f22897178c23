package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/imatefx/control-tower/internal/domain"
)

const auditColumns = `id, actor_id, actor_name, actor_email, action,
	resource_type, resource_id, resource_name, diff, metadata, created_at`

// auditOrder pairs created_at with the bigserial id so bursty writes in the
// same microsecond still read back in a stable newest-first order.
const auditOrder = ` ORDER BY created_at DESC, id DESC`

// InsertAuditEntry appends one immutable entry. A nil diff is stored as
// SQL NULL, signalling "no displayable change".
func (r *Repository) InsertAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	var diff []byte
	if entry.Diff != nil {
		payload, err := json.Marshal(entry.Diff)
		if err != nil {
			return err
		}
		diff = payload
	}
	var metadata []byte
	if len(entry.Metadata) > 0 {
		payload, err := json.Marshal(entry.Metadata)
		if err != nil {
			return err
		}
		metadata = payload
	}

	const query = `INSERT INTO audit_entries
		(actor_id, actor_name, actor_email, action, resource_type, resource_id, resource_name, diff, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	return r.pool.QueryRow(ctx, query,
		nilIfEmpty(entry.Actor.ID),
		nilIfEmpty(entry.Actor.Name),
		nilIfEmpty(entry.Actor.Email),
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		nilIfEmpty(entry.ResourceName),
		diff,
		metadata,
		entry.CreatedAt,
	).Scan(&entry.ID)
}

// ListAuditByResource returns entries for one resource, newest-first.
func (r *Repository) ListAuditByResource(ctx context.Context, resourceType, resourceID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + auditColumns + ` FROM audit_entries
		WHERE resource_type = $1 AND resource_id = $2` + auditOrder + ` LIMIT $3`
	return r.queryAudit(ctx, query, resourceType, resourceID, limit)
}

// ListAuditByActor returns entries for one actor, newest-first.
func (r *Repository) ListAuditByActor(ctx context.Context, actorID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + auditColumns + ` FROM audit_entries
		WHERE actor_id = $1` + auditOrder + ` LIMIT $2`
	return r.queryAudit(ctx, query, actorID, limit)
}

// SearchAudit runs a filtered, paginated search, newest-first.
func (r *Repository) SearchAudit(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	query, args := buildAuditSearch(filter)
	return r.queryAudit(ctx, query, args...)
}

// buildAuditSearch assembles the search statement. Split out so the clause
// construction is testable without a database.
func buildAuditSearch(filter domain.AuditFilter) (string, []any) {
	clauses := make([]string, 0, 6)
	args := make([]any, 0, 8)

	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		clauses = append(clauses, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		clauses = append(clauses, fmt.Sprintf("action = $%d", len(args)))
	}
	if filter.ResourceType != "" {
		args = append(args, filter.ResourceType)
		clauses = append(clauses, fmt.Sprintf("resource_type = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(resource_name ILIKE $%d OR actor_name ILIKE $%d)", n, n))
	}

	query := `SELECT ` + auditColumns + ` FROM audit_entries`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += auditOrder

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func (r *Repository) queryAudit(ctx context.Context, query string, args ...any) ([]domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var (
			entry      domain.AuditEntry
			actorID    sql.NullString
			actorName  sql.NullString
			actorEmail sql.NullString
			name       sql.NullString
			diff       []byte
			metadata   []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&actorID,
			&actorName,
			&actorEmail,
			&entry.Action,
			&entry.ResourceType,
			&entry.ResourceID,
			&name,
			&diff,
			&metadata,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.Actor = domain.Actor{ID: actorID.String, Name: actorName.String, Email: actorEmail.String}
		entry.ResourceName = name.String
		if len(diff) > 0 {
			if err := json.Unmarshal(diff, &entry.Diff); err != nil {
				return nil, fmt.Errorf("decode audit diff: %w", err)
			}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nilIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
