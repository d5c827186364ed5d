package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"hostfold/internal/domain"
)

func TestHostMergeManual(t *testing.T) {
	repo := newTestStore(t)
	svc := NewHostService(repo, NewEventBus())
	ctx := context.Background()

	now := time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC)

	// The secondary is more recent; an engine merge would pick it, but
	// the operator's choice of primary must stand
	primary := domain.NewHost("man-p")
	primary.IPv4 = "10.5.0.10"
	primary.MAC = "aa:bb:cc:dd:00:01"
	primary.LastSeen = seen(now.Add(-time.Hour))
	seedHost(t, repo, primary)

	secondary := domain.NewHost("man-s")
	secondary.IPv4 = "10.5.0.11"
	secondary.MAC = "aa:bb:cc:dd:00:02"
	secondary.Hostname = "print-01"
	secondary.LastSeen = seen(now)
	seedHost(t, repo, secondary)

	merged, err := svc.Merge(ctx, "man-p", "man-s")
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	if merged.ID != "man-p" {
		t.Fatalf("expected caller-chosen primary man-p, got %s", merged.ID)
	}
	if merged.MAC != "aa:bb:cc:dd:00:01" {
		t.Errorf("primary MAC must win a manual merge, got %q", merged.MAC)
	}
	if merged.Hostname != "print-01" {
		t.Errorf("expected hostname filled from secondary, got %q", merged.Hostname)
	}
	if merged.LastSeen == nil || !merged.LastSeen.Equal(now) {
		t.Errorf("expected widened last_seen, got %v", merged.LastSeen)
	}

	gone, _ := repo.GetHost(ctx, "man-s")
	if gone.Active || gone.MergedInto != "man-p" {
		t.Errorf("expected man-s folded into man-p, got active=%v merged_into=%q", gone.Active, gone.MergedInto)
	}

	t.Run("merging a merged host fails", func(t *testing.T) {
		_, err := svc.Merge(ctx, "man-p", "man-s")
		if !errors.Is(err, ErrStateConflict) {
			t.Fatalf("expected ErrStateConflict, got %v", err)
		}
	})

	t.Run("missing host fails", func(t *testing.T) {
		if _, err := svc.Merge(ctx, "man-p", "ghost"); err == nil {
			t.Fatal("expected error for missing host")
		}
	})
}

func TestHostUnifiedView(t *testing.T) {
	repo := newTestStore(t)
	hostSvc := NewHostService(repo, NewEventBus())
	deviceSvc := NewDeviceService(repo, NewEventBus())
	ctx := context.Background()

	a := domain.NewHost("uni-a")
	a.IPv4 = "10.8.1.1"
	a.MAC = "a8:bb:cc:ee:00:01"
	a.Hostname = "gw-main"
	seedHost(t, repo, a)

	sibling := domain.NewHost("uni-b")
	sibling.IPv4 = "10.8.2.1"
	sibling.MAC = "a8:bb:cc:ee:00:01"
	seedHost(t, repo, sibling)

	mergedAway := domain.NewHost("uni-c")
	mergedAway.IPv4 = "10.8.1.1"
	seedHost(t, repo, mergedAway)
	if _, err := hostSvc.Merge(ctx, "uni-a", "uni-c"); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	identity, err := deviceSvc.CreateFromMAC(ctx, "a8:bb:cc:ee:00:01")
	if err != nil {
		t.Fatalf("CreateFromMAC failed: %v", err)
	}
	for _, id := range []string{"uni-a", "uni-b"} {
		if err := deviceSvc.Link(ctx, identity.ID, id); err != nil {
			t.Fatalf("Link failed: %v", err)
		}
	}

	t.Run("view assembles identity siblings and history", func(t *testing.T) {
		view, err := hostSvc.Unified(ctx, "uni-a")
		if err != nil {
			t.Fatalf("Unified failed: %v", err)
		}
		if view.Host.ID != "uni-a" {
			t.Errorf("expected host uni-a, got %s", view.Host.ID)
		}
		if view.Identity == nil || view.Identity.ID != identity.ID {
			t.Error("expected device identity attached")
		}
		if len(view.Siblings) != 1 || view.Siblings[0].ID != "uni-b" {
			t.Errorf("expected sibling uni-b, got %v", view.Siblings)
		}
		if len(view.MergedFrom) != 1 || view.MergedFrom[0].ID != "uni-c" {
			t.Errorf("expected merge history [uni-c], got %v", view.MergedFrom)
		}
	})

	t.Run("view follows merge chain", func(t *testing.T) {
		view, err := hostSvc.Unified(ctx, "uni-c")
		if err != nil {
			t.Fatalf("Unified failed: %v", err)
		}
		if view.Host.ID != "uni-a" {
			t.Errorf("expected chain followed to uni-a, got %s", view.Host.ID)
		}
	})
}

func TestDeviceLinkRules(t *testing.T) {
	repo := newTestStore(t)
	svc := NewDeviceService(repo, NewEventBus())
	ctx := context.Background()

	h := domain.NewHost("link-h")
	h.IPv4 = "10.9.0.1"
	h.MAC = "a8:bb:cc:ff:00:01"
	seedHost(t, repo, h)

	first, err := svc.CreateFromMAC(ctx, "a8:bb:cc:ff:00:01")
	if err != nil {
		t.Fatalf("CreateFromMAC failed: %v", err)
	}

	t.Run("create is idempotent per mac", func(t *testing.T) {
		again, err := svc.CreateFromMAC(ctx, "A8-BB-CC-FF-00-01")
		if err != nil {
			t.Fatalf("CreateFromMAC failed: %v", err)
		}
		if again.ID != first.ID {
			t.Errorf("expected existing identity, got new %s", again.ID)
		}
	})

	t.Run("locally administered mac rejected", func(t *testing.T) {
		if _, err := svc.CreateFromMAC(ctx, "02:00:00:11:22:33"); err == nil {
			t.Fatal("expected rejection of locally-administered MAC")
		}
	})

	t.Run("link then relink elsewhere fails", func(t *testing.T) {
		if err := svc.Link(ctx, first.ID, "link-h"); err != nil {
			t.Fatalf("Link failed: %v", err)
		}
		// Linking to the same identity again is a no-op
		if err := svc.Link(ctx, first.ID, "link-h"); err != nil {
			t.Fatalf("re-Link failed: %v", err)
		}

		other, err := svc.CreateFromMAC(ctx, "a8:bb:cc:ff:00:02")
		if err != nil {
			t.Fatalf("CreateFromMAC failed: %v", err)
		}
		err = svc.Link(ctx, other.ID, "link-h")
		if !errors.Is(err, ErrAlreadyLinked) {
			t.Fatalf("expected ErrAlreadyLinked, got %v", err)
		}
	})

	t.Run("unlink leaves host intact", func(t *testing.T) {
		if err := svc.Unlink(ctx, first.ID, "link-h"); err != nil {
			t.Fatalf("Unlink failed: %v", err)
		}
		got, _ := repo.GetHost(ctx, "link-h")
		if !got.Active || got.DeviceIdentityID != "" {
			t.Errorf("expected active unlinked host, got %+v", got)
		}
	})
}
