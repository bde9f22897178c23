package checklist

import (
	"context"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/imatefx/control-tower/internal/domain"
	"github.com/imatefx/control-tower/internal/repository"
)

// DefaultLabels is the fallback checklist applied when no active template
// set exists or the template fetch fails.
var DefaultLabels = []string{
	"requirements",
	"design",
	"development",
	"testing",
	"documentation",
	"training",
	"deployment",
	"validation",
	"handover",
}

// Service manages checklist templates and per-deployment items.
type Service struct {
	repo   repository.ChecklistRepository
	logger *slog.Logger
}

// New returns a checklist service.
func New(repo repository.ChecklistRepository, logger *slog.Logger) Service {
	return Service{repo: repo, logger: logger}
}

// InstantiateItems builds the checklist items for a new deployment by
// copying the active template labels. The copy is taken once; later
// template edits never touch items created here. Template problems fall
// back to DefaultLabels and must not block deployment creation.
func (s Service) InstantiateItems(ctx context.Context, deploymentID string, now time.Time) []domain.ChecklistItem {
	labels := DefaultLabels
	templates, err := s.repo.ListTemplates(ctx)
	switch {
	case err != nil:
		s.logger.Warn("checklist templates unavailable, using defaults",
			"deployment_id", deploymentID, "error", err)
	case len(templates) > 0:
		labels = make([]string, 0, len(templates))
		for _, t := range templates {
			labels = append(labels, t.Label)
		}
	}

	items := make([]domain.ChecklistItem, 0, len(labels))
	for i, label := range labels {
		items = append(items, domain.ChecklistItem{
			ID:           uuid.NewString(),
			DeploymentID: deploymentID,
			Label:        label,
			Position:     i,
			IsCompleted:  false,
			CreatedAt:    now,
		})
	}
	return items
}

// Templates returns the active template set in order.
func (s Service) Templates(ctx context.Context) ([]domain.ChecklistTemplate, error) {
	return s.repo.ListTemplates(ctx)
}

// ReplaceTemplates swaps the active template set.
func (s Service) ReplaceTemplates(ctx context.Context, labels []string) ([]domain.ChecklistTemplate, error) {
	cleaned := make([]string, 0, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, domain.Validationf("template labels must not be empty")
		}
		cleaned = append(cleaned, label)
	}
	if len(cleaned) == 0 {
		return nil, domain.Validationf("at least one template label required")
	}
	return s.repo.ReplaceTemplates(ctx, cleaned)
}

// Items returns a deployment's checklist in order.
func (s Service) Items(ctx context.Context, deploymentID string) ([]domain.ChecklistItem, error) {
	return s.repo.ListChecklistItems(ctx, deploymentID)
}

// SetItemCompleted toggles one item's completion flag.
func (s Service) SetItemCompleted(ctx context.Context, itemID string, completed bool) (*domain.ChecklistItem, error) {
	return s.repo.SetChecklistItemCompleted(ctx, itemID, completed)
}
