package audit

import (
	"context"
	"errors"
	"io"
	"testing"

	"log/slog"

	"github.com/imatefx/control-tower/internal/domain"
)

type stubAuditRepo struct {
	entries   []*domain.AuditEntry
	insertErr error
}

func (s *stubAuditRepo) InsertAuditEntry(_ context.Context, entry *domain.AuditEntry) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubAuditRepo) ListAuditByResource(context.Context, string, string, int) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (s *stubAuditRepo) ListAuditByActor(context.Context, string, int) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (s *stubAuditRepo) SearchAudit(context.Context, domain.AuditFilter) ([]domain.AuditEntry, error) {
	return nil, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestInterceptor(repo *stubAuditRepo, enabled bool) *Interceptor {
	log := discardLogger()
	return NewInterceptor(NewRecorder(repo, log), log, enabled)
}

func staticSnapshot(state map[string]any, name string, err error) SnapshotFunc {
	return func(context.Context, string) (map[string]any, string, error) {
		return state, name, err
	}
}

func TestInterceptBypassesUnlistedResources(t *testing.T) {
	repo := &stubAuditRepo{}
	ic := newTestInterceptor(repo, true)

	ran := false
	_, err := ic.Intercept(context.Background(), Mutation{
		ResourceType: "checklist_item",
		Kind:         domain.ActionUpdate,
		ResourceID:   "item-1",
	}, func(context.Context) (Outcome, error) {
		ran = true
		return Outcome{ResourceID: "item-1"}, nil
	})
	if err != nil {
		t.Fatalf("Intercept returned error: %v", err)
	}
	if !ran {
		t.Fatal("mutation did not run")
	}
	if len(repo.entries) != 0 {
		t.Fatalf("expected no audit entries, got %d", len(repo.entries))
	}
}

func TestInterceptBypassesWhenDisabled(t *testing.T) {
	repo := &stubAuditRepo{}
	ic := newTestInterceptor(repo, false)
	ic.Register(domain.ResourceProduct, ResourceConfig{TrackedFields: []string{"name"}})

	_, err := ic.Intercept(context.Background(), Mutation{
		ResourceType: domain.ResourceProduct,
		Kind:         domain.ActionCreate,
	}, func(context.Context) (Outcome, error) {
		return Outcome{ResourceID: "p1", State: map[string]any{"name": "Billing"}}, nil
	})
	if err != nil {
		t.Fatalf("Intercept returned error: %v", err)
	}
	if len(repo.entries) != 0 {
		t.Fatalf("expected no audit entries, got %d", len(repo.entries))
	}
}

func TestInterceptRecordsCreateDiff(t *testing.T) {
	repo := &stubAuditRepo{}
	ic := newTestInterceptor(repo, true)
	ic.Register(domain.ResourceProduct, ResourceConfig{
		TrackedFields: []string{"name", "is_adapter"},
	})

	_, err := ic.Intercept(context.Background(), Mutation{
		ResourceType: domain.ResourceProduct,
		Kind:         domain.ActionCreate,
		Actor:        domain.Actor{ID: "u1", Name: "Dana"},
	}, func(context.Context) (Outcome, error) {
		return Outcome{
			ResourceID:   "p1",
			ResourceName: "Billing",
			State:        map[string]any{"name": "Billing", "is_adapter": false},
		}, nil
	})
	if err != nil {
		t.Fatalf("Intercept returned error: %v", err)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.Action != domain.ActionCreate || entry.ResourceID != "p1" || entry.ResourceName != "Billing" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Actor.ID != "u1" {
		t.Fatalf("expected actor u1, got %+v", entry.Actor)
	}
	if len(entry.Diff) != 2 {
		t.Fatalf("expected both tracked fields in the create diff, got %+v", entry.Diff)
	}
	if entry.Diff[0].Field != "name" || entry.Diff[0].OldValue != nil || entry.Diff[0].NewValue != "Billing" {
		t.Fatalf("unexpected diff: %+v", entry.Diff)
	}
}

func TestInterceptRecordsUpdateDiffAgainstPrior(t *testing.T) {
	repo := &stubAuditRepo{}
	ic := newTestInterceptor(repo, true)
	ic.Register(domain.ResourceClient, ResourceConfig{
		TrackedFields: []string{"name", "region"},
		Snapshot:      staticSnapshot(map[string]any{"name": "Acme", "region": "eu"}, "Acme", nil),
	})

	_, err := ic.Intercept(context.Background(), Mutation{
		ResourceType: domain.ResourceClient,
		Kind:         domain.ActionUpdate,
		ResourceID:   "c1",
	}, func(context.Context) (Outcome, error) {
		return Outcome{
			ResourceID: "c1",
			State:      map[string]any{"name": "Acme", "region": "us"},
		}, nil
	})
	if err != nil {
		t.Fatalf("Intercept returned error: %v", err)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.ResourceName != "Acme" {
		t.Fatalf("expected resource name from prior snapshot, got %q", entry.ResourceName)
	}
	if len(entry.Diff) != 1 || entry.Diff[0].Field != "region" || entry.Diff[0].OldValue != "eu" || entry.Diff[0].NewValue != "us" {
		t.Fatalf("unexpected diff: %+v", entry.Diff)
	}
}

func TestInterceptRecordsUpdateWithNilDiffWhenNothingTrackedChanged(t *testing.T) {
	repo := &stubAuditRepo{}
	ic := newTestInterceptor(repo, true)
	ic.Register(domain.ResourceClient, ResourceConfig{
		TrackedFields: []string{"name"},
		Snapshot:      staticSnapshot(map[string]any{"name": "Acme"}, "Acme", nil),
	})

	_, err := ic.Intercept(context.Background(), Mutation{
		ResourceType: domain.ResourceClient,
		Kind:         domain.ActionUpdate,
		ResourceID:   "c1",
	}, func(context.Context) (Outcome, error) {
		return Outcome{ResourceID: "c1", State: map[string]any{"name": "Acme"}}, nil
	})
	if err != nil {
		t.Fatalf("Intercept returned error: %v", err)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(repo.entries))
	}
	if repo.entries[0].Diff != nil {
		t.Fatalf("expected nil diff, got %+v", repo.entries[0].Diff)
	}
}

func TestInterceptRecordsDeleteDiff(t *testing.T) {
	repo := &stubAuditRepo{}
	ic := newTestInterceptor(repo, true)
	ic.Register(domain.ResourceDeployment, ResourceConfig{
		TrackedFields: []string{"status", "owner"},
		Snapshot:      staticSnapshot(map[string]any{"status": "blocked", "owner": "dana"}, "Billing / Acme", nil),
	})

	_, err := ic.Intercept(context.Background(), Mutation{
		ResourceType: domain.ResourceDeployment,
		Kind:         domain.ActionDelete,
		ResourceID:   "d1",
	}, func(context.Context) (Outcome, error) {
		return Outcome{}, nil
	})
	if err != nil {
		t.Fatalf("Intercept returned error: %v", err)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(repo.entries))
	}
	entry := repo.entries[0]
	if entry.ResourceID != "d1" {
		t.Fatalf("expected resource id from mutation, got %q", entry.ResourceID)
	}
	if len(entry.Diff) != 2 {
		t.Fatalf("expected 2 changes, got %+v", entry.Diff)
	}
	for _, change := range entry.Diff {
		if change.NewValue != nil {
			t.Fatalf("delete diff should clear values, got %+v", change)
		}
	}
}

func TestInterceptProceedsWhenPriorReadFails(t *testing.T) {
	repo := &stubAuditRepo{}
	ic := newTestInterceptor(repo, true)
	ic.Register(domain.ResourceClient, ResourceConfig{
		TrackedFields: []string{"name"},
		Snapshot:      staticSnapshot(nil, "", errors.New("connection reset")),
	})

	ran := false
	_, err := ic.Intercept(context.Background(), Mutation{
		ResourceType: domain.ResourceClient,
		Kind:         domain.ActionUpdate,
		ResourceID:   "c1",
	}, func(context.Context) (Outcome, error) {
		ran = true
		return Outcome{ResourceID: "c1", State: map[string]any{"name": "Acme"}}, nil
	})
	if err != nil {
		t.Fatalf("Intercept returned error: %v", err)
	}
	if !ran {
		t.Fatal("mutation did not run")
	}
	if len(repo.entries) != 0 {
		t.Fatalf("expected tracking skipped, got %d entries", len(repo.entries))
	}
}

func TestInterceptDoesNotRecordFailedMutations(t *testing.T) {
	repo := &stubAuditRepo{}
	ic := newTestInterceptor(repo, true)
	ic.Register(domain.ResourceProduct, ResourceConfig{TrackedFields: []string{"name"}})

	wantErr := errors.New("boom")
	_, err := ic.Intercept(context.Background(), Mutation{
		ResourceType: domain.ResourceProduct,
		Kind:         domain.ActionCreate,
	}, func(context.Context) (Outcome, error) {
		return Outcome{}, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected mutation error, got %v", err)
	}
	if len(repo.entries) != 0 {
		t.Fatalf("expected no audit entries, got %d", len(repo.entries))
	}
}

func TestInterceptSwallowsRecorderErrors(t *testing.T) {
	repo := &stubAuditRepo{insertErr: errors.New("audit store down")}
	ic := newTestInterceptor(repo, true)
	ic.Register(domain.ResourceProduct, ResourceConfig{TrackedFields: []string{"name"}})

	outcome, err := ic.Intercept(context.Background(), Mutation{
		ResourceType: domain.ResourceProduct,
		Kind:         domain.ActionCreate,
	}, func(context.Context) (Outcome, error) {
		return Outcome{ResourceID: "p1", State: map[string]any{"name": "Billing"}}, nil
	})
	if err != nil {
		t.Fatalf("mutation should succeed despite audit failure, got %v", err)
	}
	if outcome.ResourceID != "p1" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestRecordDefaultsCreatedAt(t *testing.T) {
	repo := &stubAuditRepo{}
	recorder := NewRecorder(repo, discardLogger())

	entry := &domain.AuditEntry{Action: domain.ActionCreate, ResourceType: domain.ResourceProduct, ResourceID: "p1"}
	if err := recorder.Record(context.Background(), entry); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if entry.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}
}
