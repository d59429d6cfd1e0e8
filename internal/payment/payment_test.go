package payment

import (
	"context"
	"errors"
	"testing"

	"xs2a.org/internal/authn"
	"xs2a.org/internal/profile"
	"xs2a.org/internal/sca"
	"xs2a.org/internal/vault"
)

var anna = sca.PsuData{ID: "anna"}

func TestCreateValidation(t *testing.T) {
	svc := NewService(NewInMemoryStore(), vault.New(vault.NewInMemoryStore()))
	ctx := context.Background()

	cases := []CreateRequest{
		// missing TPP number
		{Amount: 100, Currency: "EUR"},
		// zero amount
		{TppAuthorisationNumber: "PSDDE-FAKENCA-1", Currency: "EUR"},
		// negative amount
		{TppAuthorisationNumber: "PSDDE-FAKENCA-1", Amount: -5, Currency: "EUR"},
		// missing currency
		{TppAuthorisationNumber: "PSDDE-FAKENCA-1", Amount: 100},
	}
	for i, req := range cases {
		if _, err := svc.Create(ctx, req); !errors.Is(err, sca.ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestCreateAndGet(t *testing.T) {
	svc := NewService(NewInMemoryStore(), vault.New(vault.NewInMemoryStore()))
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateRequest{
		TppAuthorisationNumber: "PSDDE-FAKENCA-1",
		PaymentService:         "payments",
		PaymentProduct:         "sepa-credit-transfers",
		DebtorAccount:          "DE02120300000000202051",
		CreditorAccount:        "DE02500105170137075030",
		Currency:               "EUR",
		Amount:                 12999,
		Psus:                   []sca.PsuData{anna},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != StatusRCVD {
		t.Fatalf("expected RCVD, got %s", p.Status)
	}
	got, err := svc.Get(ctx, p.ExternalID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount != 12999 || got.Currency != "EUR" {
		t.Fatalf("unexpected payment: %+v", got)
	}
}

func newCore(t *testing.T) (*sca.Service, *Service, *vault.Vault) {
	t.Helper()
	v := vault.New(vault.NewInMemoryStore())
	payments := NewService(NewInMemoryStore(), v)

	psuAuth := authn.NewInMemory()
	if err := psuAuth.Register("anna", "pw", []sca.ScaMethod{{ID: "sms-1", Type: "SMS_OTP"}}, "111111"); err != nil {
		t.Fatal(err)
	}
	core := sca.NewService(sca.NewInMemoryStore(), v, profile.New(), psuAuth,
		[]sca.ParentService{NewAdapter(payments), NewCancellationAdapter(payments)})
	return core, payments, v
}

func createPayment(t *testing.T, payments *Service) *Payment {
	t.Helper()
	p, err := payments.Create(context.Background(), CreateRequest{
		TppAuthorisationNumber: "PSDDE-FAKENCA-1",
		Currency:               "EUR",
		Amount:                 5000,
		Psus:                   []sca.PsuData{anna},
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func finalise(t *testing.T, core *sca.Service, kind sca.AuthorisationType, parentID string) {
	t.Helper()
	ctx := context.Background()
	a, err := core.CreateAuthorisation(ctx, kind, parentID, sca.CreateRequest{Psu: anna})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := core.UpdatePsuData(ctx, kind, parentID, a.ExternalID, sca.UpdateRequest{Psu: anna, Password: "pw"}); err != nil {
		t.Fatal(err)
	}
	if _, err := core.UpdatePsuData(ctx, kind, parentID, a.ExternalID, sca.UpdateRequest{ScaAuthenticationData: "111111"}); err != nil {
		t.Fatal(err)
	}
}

func TestInitiationAuthorisationAcceptsPayment(t *testing.T) {
	core, payments, _ := newCore(t)
	p := createPayment(t, payments)

	finalise(t, core, sca.TypePisCreation, p.ExternalID)

	got, _ := payments.Get(context.Background(), p.ExternalID)
	if got.Status != StatusACCP {
		t.Fatalf("expected ACCP, got %s", got.Status)
	}
}

func TestCancellationAuthorisationCancelsAcceptedPayment(t *testing.T) {
	core, payments, _ := newCore(t)
	p := createPayment(t, payments)
	ctx := context.Background()

	finalise(t, core, sca.TypePisCreation, p.ExternalID)

	// The accepted payment still accepts a cancellation flow under its own
	// authorisation kind.
	finalise(t, core, sca.TypePisCancellation, p.ExternalID)

	got, _ := payments.Get(ctx, p.ExternalID)
	if got.Status != StatusCANC {
		t.Fatalf("expected CANC, got %s", got.Status)
	}

	// A cancelled payment is no longer cancellable.
	if _, err := core.CreateAuthorisation(ctx, sca.TypePisCancellation, p.ExternalID, sca.CreateRequest{Psu: anna}); !errors.Is(err, sca.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestRejectedCancellationLeavesPaymentUntouched(t *testing.T) {
	core, payments, _ := newCore(t)
	p := createPayment(t, payments)
	ctx := context.Background()

	finalise(t, core, sca.TypePisCreation, p.ExternalID)

	a, err := core.CreateAuthorisation(ctx, sca.TypePisCancellation, p.ExternalID, sca.CreateRequest{Psu: anna})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := core.UpdatePsuData(ctx, sca.TypePisCancellation, p.ExternalID, a.ExternalID, sca.UpdateRequest{Psu: anna, Password: "wrong"}); !errors.Is(err, sca.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}

	got, _ := payments.Get(ctx, p.ExternalID)
	if got.Status != StatusACCP {
		t.Fatalf("rejected cancellation changed the payment: %s", got.Status)
	}
}

func TestInitiationAndCancellationAuthorisationsAreScopedApart(t *testing.T) {
	core, payments, _ := newCore(t)
	p := createPayment(t, payments)
	ctx := context.Background()

	a, err := core.CreateAuthorisation(ctx, sca.TypePisCreation, p.ExternalID, sca.CreateRequest{Psu: anna})
	if err != nil {
		t.Fatal(err)
	}
	// An initiation authorisation token does not resolve under the
	// cancellation kind.
	if _, err := core.GetAuthorisation(ctx, sca.TypePisCancellation, p.ExternalID, a.ExternalID); !errors.Is(err, sca.ErrNotFound) {
		t.Fatalf("token leaked across kinds: %v", err)
	}
}
