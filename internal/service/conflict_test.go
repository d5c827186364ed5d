package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"hostfold/internal/domain"
	"hostfold/internal/repository"
)

func seedConflictPair(t *testing.T, repo repository.Store) (*ConflictService, *domain.Conflict) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)

	a := domain.NewHost("res-a")
	a.IPv4 = "10.0.1.10"
	a.Hostname = "store-01"
	a.OS.Family = "linux"
	a.LastSeen = seen(now)
	seedHost(t, repo, a)

	b := domain.NewHost("res-b")
	b.IPv4 = "10.0.1.11"
	b.Hostname = "store-01"
	b.OS.Family = "bsd"
	b.LastSeen = seen(now.Add(-time.Hour))
	seedHost(t, repo, b)

	svc := NewConflictService(repo, NewEventBus())
	conflict, err := svc.Record(ctx, "res-a", "res-b", domain.FieldOSFamily, "linux", "bsd", 0.55)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	return svc, conflict
}

func TestConflictRecordDeduplicates(t *testing.T) {
	repo := newTestStore(t)
	svc, conflict := seedConflictPair(t, repo)

	again, err := svc.Record(context.Background(), "res-b", "res-a", domain.FieldOSFamily, "bsd", "linux", 0.55)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if again.ID != conflict.ID {
		t.Errorf("expected existing conflict %s, got new %s", conflict.ID, again.ID)
	}
}

func TestConflictResolve(t *testing.T) {
	repo := newTestStore(t)
	svc, conflict := seedConflictPair(t, repo)
	ctx := context.Background()

	// A second open disagreement for the pair, to be superseded
	other, err := svc.Record(ctx, "res-a", "res-b", domain.FieldVendor, "Dell", "HP", 0.55)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	merged, err := svc.Resolve(ctx, conflict.ID, domain.ResolutionAcceptA, "", "operator")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	t.Run("resolution triggers deferred merge", func(t *testing.T) {
		if merged == nil || !merged.Active {
			t.Fatal("expected an active merged host")
		}
		if merged.OS.Family != "linux" {
			t.Errorf("expected accepted value linux, got %q", merged.OS.Family)
		}

		loser := "res-b"
		if merged.ID == "res-b" {
			loser = "res-a"
		}
		gone, err := repo.GetHost(ctx, loser)
		if err != nil {
			t.Fatalf("GetHost failed: %v", err)
		}
		if gone.Active || gone.MergedInto != merged.ID {
			t.Errorf("expected %s folded into %s", loser, merged.ID)
		}
	})

	t.Run("remaining pair conflicts superseded", func(t *testing.T) {
		got, err := svc.Get(ctx, other.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != domain.ConflictStatusResolved || got.ResolvedBy != domain.ResolutionSuperseded {
			t.Errorf("expected superseded resolution, got %+v", got)
		}
	})

	t.Run("double resolve returns state conflict", func(t *testing.T) {
		_, err := svc.Resolve(ctx, conflict.ID, domain.ResolutionAcceptB, "", "operator")
		if !errors.Is(err, ErrStateConflict) {
			t.Fatalf("expected ErrStateConflict, got %v", err)
		}
	})
}

func TestConflictResolveWithValue(t *testing.T) {
	repo := newTestStore(t)
	svc, conflict := seedConflictPair(t, repo)
	ctx := context.Background()

	t.Run("value resolution requires a value", func(t *testing.T) {
		if _, err := svc.Resolve(ctx, conflict.ID, domain.ResolutionValue, "", "operator"); err == nil {
			t.Fatal("expected error for empty value")
		}
	})

	t.Run("custom value wins", func(t *testing.T) {
		merged, err := svc.Resolve(ctx, conflict.ID, domain.ResolutionValue, "illumos", "operator")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if merged.OS.Family != "illumos" {
			t.Errorf("expected custom value, got %q", merged.OS.Family)
		}
	})
}

func TestConflictResolveStaleHost(t *testing.T) {
	repo := newTestStore(t)
	svc, conflict := seedConflictPair(t, repo)
	ctx := context.Background()

	// Merge res-b away out of band before the operator resolves
	b, _ := repo.GetHost(ctx, "res-b")
	b.Active = false
	b.MergedInto = "res-a"
	if err := repo.UpdateHost(ctx, b); err != nil {
		t.Fatalf("UpdateHost failed: %v", err)
	}

	_, err := svc.Resolve(ctx, conflict.ID, domain.ResolutionAcceptA, "", "operator")
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict for merged-away host, got %v", err)
	}
}

func TestConflictResolveUnknownResolution(t *testing.T) {
	repo := newTestStore(t)
	svc, conflict := seedConflictPair(t, repo)

	if _, err := svc.Resolve(context.Background(), conflict.ID, "flip-a-coin", "", "operator"); err == nil {
		t.Fatal("expected error for unknown resolution")
	}
}

// mergeFailStore fails ApplyMerge while the flag is set, simulating a
// storage error during the deferred merge
type mergeFailStore struct {
	repository.Store
	fail bool
}

func (s *mergeFailStore) ApplyMerge(ctx context.Context, plan *domain.MergePlan) error {
	if s.fail {
		return errors.New("database is locked")
	}
	return s.Store.ApplyMerge(ctx, plan)
}

func TestConflictResolveMergeFailureLeavesPending(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)

	a := domain.NewHost("retry-a")
	a.IPv4 = "10.0.2.10"
	a.Hostname = "db-01"
	a.OS.Family = "linux"
	a.LastSeen = seen(now)
	seedHost(t, repo, a)

	b := domain.NewHost("retry-b")
	b.IPv4 = "10.0.2.11"
	b.Hostname = "db-01"
	b.OS.Family = "windows"
	b.LastSeen = seen(now.Add(-time.Hour))
	seedHost(t, repo, b)

	store := &mergeFailStore{Store: repo, fail: true}
	svc := NewConflictService(store, NewEventBus())

	conflict, err := svc.Record(ctx, "retry-a", "retry-b", domain.FieldOSFamily, "linux", "windows", 0.55)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if _, err := svc.Resolve(ctx, conflict.ID, domain.ResolutionAcceptA, "", "operator"); err == nil {
		t.Fatal("expected Resolve to surface the merge failure")
	}

	// A failed merge must leave everything retryable: conflict still
	// pending, both hosts untouched
	got, err := svc.Get(ctx, conflict.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.ConflictStatusPending {
		t.Fatalf("expected conflict to stay pending after failed merge, got %s", got.Status)
	}
	for _, id := range []string{"retry-a", "retry-b"} {
		h, err := repo.GetHost(ctx, id)
		if err != nil {
			t.Fatalf("GetHost failed: %v", err)
		}
		if !h.Active || h.MergedInto != "" {
			t.Errorf("host %s must be untouched after failed merge: active=%v merged_into=%q",
				id, h.Active, h.MergedInto)
		}
	}

	store.fail = false
	merged, err := svc.Resolve(ctx, conflict.ID, domain.ResolutionAcceptA, "", "operator")
	if err != nil {
		t.Fatalf("retry Resolve failed: %v", err)
	}
	if merged == nil || merged.OS.Family != "linux" {
		t.Fatalf("expected retry to complete the merge with accepted value, got %+v", merged)
	}
}
