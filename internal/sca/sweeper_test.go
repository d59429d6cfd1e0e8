package sca

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRedirectClockExpiry(t *testing.T) {
	f := newFixture(TypeConsent)
	f.profile.approach = ApproachRedirect
	f.parents.add(Parent{ExternalID: "cns-1", PsuData: []PsuData{psuAnna}})
	ctx := context.Background()

	a, err := f.svc.CreateAuthorisation(ctx, TypeConsent, "cns-1", CreateRequest{Psu: psuAnna})
	if err != nil {
		t.Fatal(err)
	}

	// Inside the redirect window nothing happens.
	f.advance(9 * time.Minute)
	if status, _ := f.svc.GetScaStatus(ctx, TypeConsent, "cns-1", a.ExternalID); status != StatusReceived {
		t.Fatalf("expired too early: %s", status)
	}

	// Redirect window elapses long before the authorisation window.
	f.advance(2 * time.Minute)
	status, err := f.svc.GetScaStatus(ctx, TypeConsent, "cns-1", a.ExternalID)
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusExpired {
		t.Fatalf("expected expired, got %s", status)
	}
	if got := f.parents.status("cns-1"); got != ParentRejected {
		t.Fatalf("expired authorisation must reject a single-auth parent: %s", got)
	}
}

func TestAuthorisationClockExpiry(t *testing.T) {
	f := newFixture(TypeConsent)
	f.parents.add(Parent{ExternalID: "cns-1", PsuData: []PsuData{psuAnna}})
	ctx := context.Background()

	// Embedded approach: no redirect deadline, only the overall window.
	a, _ := f.svc.CreateAuthorisation(ctx, TypeConsent, "cns-1", CreateRequest{Psu: psuAnna})
	if !a.RedirectExpiresAt.IsZero() {
		t.Fatal("embedded authorisation must not carry a redirect deadline")
	}

	f.advance(25 * time.Hour)
	if status, _ := f.svc.GetScaStatus(ctx, TypeConsent, "cns-1", a.ExternalID); status != StatusExpired {
		t.Fatalf("expected expired, got %s", status)
	}
}

func TestExpiryIsIdempotentOnReads(t *testing.T) {
	f := newFixture(TypeConsent)
	f.parents.add(Parent{ExternalID: "cns-1", PsuData: []PsuData{psuAnna}})
	ctx := context.Background()

	a, _ := f.svc.CreateAuthorisation(ctx, TypeConsent, "cns-1", CreateRequest{Psu: psuAnna})
	f.advance(25 * time.Hour)

	first, err := f.svc.GetAuthorisation(ctx, TypeConsent, "cns-1", a.ExternalID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.GetAuthorisation(ctx, TypeConsent, "cns-1", a.ExternalID)
	if err != nil {
		t.Fatal(err)
	}
	if first.ScaStatus != StatusExpired || second.ScaStatus != StatusExpired {
		t.Fatalf("statuses: %s, %s", first.ScaStatus, second.ScaStatus)
	}
	if second.Version != first.Version {
		t.Fatalf("redundant expiry wrote again: v%d -> v%d", first.Version, second.Version)
	}
}

func TestTerminalStatusesOutliveTheClock(t *testing.T) {
	f := newFixture(TypeConsent)
	f.parents.add(Parent{ExternalID: "cns-1", PsuData: []PsuData{psuAnna}})
	ctx := context.Background()

	a, _ := f.svc.CreateAuthorisation(ctx, TypeConsent, "cns-1", CreateRequest{Psu: psuAnna})
	if _, err := f.svc.UpdatePsuData(ctx, TypeConsent, "cns-1", a.ExternalID, UpdateRequest{Psu: psuAnna, Password: "secret"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdatePsuData(ctx, TypeConsent, "cns-1", a.ExternalID, UpdateRequest{ScaAuthenticationData: "123456"}); err != nil {
		t.Fatal(err)
	}

	f.advance(48 * time.Hour)
	if status, _ := f.svc.GetScaStatus(ctx, TypeConsent, "cns-1", a.ExternalID); status != StatusFinalised {
		t.Fatalf("finalised authorisation expired: %s", status)
	}
}

func TestMultilevelPartialThenExpiry(t *testing.T) {
	f := newFixture(TypeConsent)
	anna, boris := PsuData{ID: "anna"}, PsuData{ID: "boris"}
	f.parents.add(Parent{ExternalID: "cns-1", MultilevelScaRequired: true, PsuData: []PsuData{anna, boris}})
	ctx := context.Background()

	a, _ := f.svc.CreateAuthorisation(ctx, TypeConsent, "cns-1", CreateRequest{Psu: anna})
	if _, err := f.svc.UpdatePsuData(ctx, TypeConsent, "cns-1", a.ExternalID, UpdateRequest{Psu: anna, Password: "secret"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdatePsuData(ctx, TypeConsent, "cns-1", a.ExternalID, UpdateRequest{ScaAuthenticationData: "123456"}); err != nil {
		t.Fatal(err)
	}
	b, err := f.svc.CreateAuthorisation(ctx, TypeConsent, "cns-1", CreateRequest{Psu: boris})
	if err != nil {
		t.Fatal(err)
	}
	if got := f.parents.status("cns-1"); got != ParentPartiallyAuthorised {
		t.Fatalf("expected partiallyAuthorised, got %s", got)
	}

	// Boris never completes; his authorisation window runs out.
	f.advance(25 * time.Hour)
	n, err := f.svc.ExpireStale(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expiry, got %d", n)
	}
	if status, _ := f.svc.GetScaStatus(ctx, TypeConsent, "cns-1", b.ExternalID); status != StatusExpired {
		t.Fatalf("expected expired, got %s", status)
	}
	if got := f.parents.status("cns-1"); got != ParentRejected {
		t.Fatalf("expired level must reject the parent: %s", got)
	}
}

func TestExpireStaleIsRedundantSafe(t *testing.T) {
	f := newFixture(TypeConsent)
	f.parents.add(Parent{ExternalID: "cns-1", PsuData: []PsuData{psuAnna}})
	ctx := context.Background()

	if _, err := f.svc.CreateAuthorisation(ctx, TypeConsent, "cns-1", CreateRequest{Psu: psuAnna}); err != nil {
		t.Fatal(err)
	}
	f.advance(25 * time.Hour)

	if n, _ := f.svc.ExpireStale(ctx); n != 1 {
		t.Fatalf("first sweep: expected 1, got %d", n)
	}
	if n, _ := f.svc.ExpireStale(ctx); n != 0 {
		t.Fatalf("second sweep: expected 0, got %d", n)
	}
}

func TestCreateRejectedAfterSweepClosesParent(t *testing.T) {
	f := newFixture(TypeConsent)
	f.parents.add(Parent{ExternalID: "cns-1", PsuData: []PsuData{psuAnna}})
	ctx := context.Background()

	if _, err := f.svc.CreateAuthorisation(ctx, TypeConsent, "cns-1", CreateRequest{Psu: psuAnna}); err != nil {
		t.Fatal(err)
	}
	f.advance(25 * time.Hour)

	// The create sweeps the stale sibling, which rejects the parent; the
	// same call must then refuse to open a fresh authorisation on it.
	_, err := f.svc.CreateAuthorisation(ctx, TypeConsent, "cns-1", CreateRequest{Psu: psuAnna})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if got := f.parents.status("cns-1"); got != ParentRejected {
		t.Fatalf("parent status = %s", got)
	}
	auths, err := f.store.FindByParent(ctx, TypeConsent, "cns-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(auths) != 1 {
		t.Fatalf("stored authorisations = %d, want 1", len(auths))
	}
}
