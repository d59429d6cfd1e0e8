package sca

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryStoreVersionGuard(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	a := &Authorisation{ID: "a1", ParentExternalID: "p1", ParentType: TypeConsent, ScaStatus: StatusReceived}
	if err := s.Create(ctx, a); err != nil {
		t.Fatal(err)
	}

	first, _ := s.Find(ctx, "a1")
	second, _ := s.Find(ctx, "a1")

	first.ScaStatus = StatusPsuIdentified
	if err := s.Update(ctx, first); err != nil {
		t.Fatal(err)
	}
	if first.Version != 1 {
		t.Fatalf("version not bumped: %d", first.Version)
	}

	// The second reader still holds version 0.
	second.ScaStatus = StatusFailed
	if err := s.Update(ctx, second); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	stored, _ := s.Find(ctx, "a1")
	if stored.ScaStatus != StatusPsuIdentified {
		t.Fatalf("stale write applied: %s", stored.ScaStatus)
	}
}

func TestInMemoryStoreCopiesOut(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if err := s.Create(ctx, &Authorisation{ID: "a1", ScaStatus: StatusReceived}); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Find(ctx, "a1")
	got.ScaStatus = StatusFailed

	again, _ := s.Find(ctx, "a1")
	if again.ScaStatus != StatusReceived {
		t.Fatal("store leaked internal state to callers")
	}
}

func TestInMemoryStoreFindByParentOrdered(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		if err := s.Create(ctx, &Authorisation{ID: id, ParentExternalID: "p1", ParentType: TypeConsent}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Create(ctx, &Authorisation{ID: "x", ParentExternalID: "p2", ParentType: TypeConsent}); err != nil {
		t.Fatal(err)
	}

	got, err := s.FindByParent(ctx, TypeConsent, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestInMemoryStoreListNonTerminal(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.Create(ctx, &Authorisation{ID: "a", ScaStatus: StatusReceived})
	_ = s.Create(ctx, &Authorisation{ID: "b", ScaStatus: StatusFinalised})
	_ = s.Create(ctx, &Authorisation{ID: "c", ScaStatus: StatusStarted})

	got, err := s.ListNonTerminal(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestInMemoryStoreDuplicateCreate(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if err := s.Create(ctx, &Authorisation{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, &Authorisation{ID: "a"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
