package audit

import (
	"context"

	"log/slog"

	"github.com/imatefx/control-tower/internal/domain"
)

// SnapshotFunc loads the current persisted state of a resource plus its
// display name, used to capture prior state before updates and deletes.
type SnapshotFunc func(ctx context.Context, id string) (map[string]any, string, error)

// ResourceConfig describes how one resource type participates in change
// tracking. Resource types without a config bypass the interceptor.
type ResourceConfig struct {
	TrackedFields []string
	Snapshot      SnapshotFunc
}

// Mutation identifies the operation being intercepted.
type Mutation struct {
	ResourceType string
	Kind         string // domain.ActionCreate, ActionUpdate or ActionDelete
	ResourceID   string // required for update and delete
	Actor        domain.Actor
	Metadata     map[string]string
}

// Outcome is what a mutation reports back on success. State is the
// post-mutation snapshot; nil for deletes.
type Outcome struct {
	ResourceID   string
	ResourceName string
	State        map[string]any
}

// Interceptor wraps entity mutations for the allow-listed resource types.
// It captures prior state before the mutation runs, lets the mutation
// proceed regardless of tracking problems, and on success hands the diff to
// the recorder. Auditing never fails or rolls back the primary mutation.
type Interceptor struct {
	recorder  *Recorder
	resources map[string]ResourceConfig
	enabled   bool
	logger    *slog.Logger
}

// NewInterceptor constructs an Interceptor with an empty allow-list.
func NewInterceptor(recorder *Recorder, logger *slog.Logger, enabled bool) *Interceptor {
	return &Interceptor{
		recorder:  recorder,
		resources: make(map[string]ResourceConfig),
		enabled:   enabled,
		logger:    logger,
	}
}

// Register puts a resource type on the allow-list.
func (ic *Interceptor) Register(resourceType string, cfg ResourceConfig) {
	ic.resources[resourceType] = cfg
}

// Intercept runs mutate with before/after tracking. For update and delete
// the prior snapshot is read first; if that read fails the mutation still
// proceeds and tracking is skipped with a warning.
func (ic *Interceptor) Intercept(ctx context.Context, m Mutation, mutate func(context.Context) (Outcome, error)) (Outcome, error) {
	cfg, tracked := ic.resources[m.ResourceType]
	if !ic.enabled || !tracked {
		return mutate(ctx)
	}

	var (
		prior       map[string]any
		priorName   string
		priorFailed bool
	)
	if m.Kind == domain.ActionUpdate || m.Kind == domain.ActionDelete {
		if cfg.Snapshot == nil {
			priorFailed = true
		} else {
			state, name, err := cfg.Snapshot(ctx, m.ResourceID)
			if err != nil {
				priorFailed = true
				ic.logger.Warn("prior state unavailable, change tracking skipped",
					"resource_type", m.ResourceType,
					"resource_id", m.ResourceID,
					"kind", m.Kind,
					"error", err,
				)
			} else {
				prior = state
				priorName = name
			}
		}
	}

	outcome, err := mutate(ctx)
	if err != nil {
		return outcome, err
	}
	if priorFailed {
		return outcome, nil
	}

	var diff []domain.FieldChange
	switch m.Kind {
	case domain.ActionCreate:
		diff = Diff(nil, outcome.State, cfg.TrackedFields)
	case domain.ActionUpdate:
		diff = Diff(prior, outcome.State, cfg.TrackedFields)
	case domain.ActionDelete:
		diff = Diff(prior, nil, cfg.TrackedFields)
	}

	resourceID := outcome.ResourceID
	if resourceID == "" {
		resourceID = m.ResourceID
	}
	resourceName := outcome.ResourceName
	if resourceName == "" {
		resourceName = priorName
	}

	ic.recorder.RecordBestEffort(ctx, &domain.AuditEntry{
		Actor:        m.Actor,
		Action:       m.Kind,
		ResourceType: m.ResourceType,
		ResourceID:   resourceID,
		ResourceName: resourceName,
		Diff:         diff,
		Metadata:     m.Metadata,
	})
	return outcome, nil
}
