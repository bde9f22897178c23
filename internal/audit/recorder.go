package audit

import (
	"context"
	"time"

	"log/slog"

	"github.com/imatefx/control-tower/internal/domain"
	"github.com/imatefx/control-tower/internal/repository"
)

// Recorder is the single writer of audit entries. Writes are append-only;
// nothing in the application mutates or deletes an entry once stored.
type Recorder struct {
	repo   repository.AuditRepository
	logger *slog.Logger
}

// NewRecorder constructs a Recorder.
func NewRecorder(repo repository.AuditRepository, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Record persists one entry. CreatedAt defaults to now.
func (r *Recorder) Record(ctx context.Context, entry *domain.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.repo.InsertAuditEntry(ctx, entry)
}

// RecordBestEffort persists one entry, logging instead of failing. Audit
// completeness is secondary to the primary operation, so errors stop here.
func (r *Recorder) RecordBestEffort(ctx context.Context, entry *domain.AuditEntry) {
	if err := r.Record(ctx, entry); err != nil {
		r.logger.Warn("audit entry dropped",
			"action", entry.Action,
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
			"error", err,
		)
	}
}

// ByResource returns a resource's entries, newest-first.
func (r *Recorder) ByResource(ctx context.Context, resourceType, resourceID string, limit int) ([]domain.AuditEntry, error) {
	return r.repo.ListAuditByResource(ctx, resourceType, resourceID, limit)
}

// ByActor returns an actor's entries, newest-first.
func (r *Recorder) ByActor(ctx context.Context, actorID string, limit int) ([]domain.AuditEntry, error) {
	return r.repo.ListAuditByActor(ctx, actorID, limit)
}

// Search runs a filtered audit search, newest-first.
func (r *Recorder) Search(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	return r.repo.SearchAudit(ctx, filter)
}
