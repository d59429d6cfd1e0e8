package basket

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

func TestCreateRequiresItems(t *testing.T) {
	svc := NewService(NewInMemoryStore(), vault.New(vault.NewInMemoryStore()))
	_, err := svc.Create(context.Background(), CreateRequest{TppAuthorisationNumber: "PSDDE-FAKENCA-1"})
	if !errors.Is(err, sca.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreateAndCancel(t *testing.T) {
	svc := NewService(NewInMemoryStore(), vault.New(vault.NewInMemoryStore()))
	ctx := context.Background()

	b, err := svc.Create(ctx, CreateRequest{
		TppAuthorisationNumber: "PSDDE-FAKENCA-1",
		ConsentIDs:             []string{"cns-token-1"},
		PaymentIDs:             []string{"pmt-token-1", "pmt-token-2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != StatusReceived {
		t.Fatalf("expected received, got %s", b.Status)
	}

	got, err := svc.Cancel(ctx, b.ExternalID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCANC {
		t.Fatalf("expected CANC, got %s", got.Status)
	}
	if _, err := svc.Cancel(ctx, b.ExternalID); !errors.Is(err, sca.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

// failingVaultStore accepts nothing, so every issuance fails after the
// basket row was already persisted.
type failingVaultStore struct{}

func (failingVaultStore) Save(ctx context.Context, e vault.Entry) error {
	return errors.New("storage unavailable")
}

func (failingVaultStore) FindByToken(ctx context.Context, token string) (vault.Entry, error) {
	return vault.Entry{}, vault.ErrNotFound
}

type countingStore struct {
	*InMemoryStore
	creates int
}

func (s *countingStore) Create(ctx context.Context, b *Basket) error {
	s.creates++
	return s.InMemoryStore.Create(ctx, b)
}

func TestCreateVaultFailureKeepsRowHidesID(t *testing.T) {
	store := &countingStore{InMemoryStore: NewInMemoryStore()}
	svc := NewService(store, vault.New(failingVaultStore{}))

	b, err := svc.Create(context.Background(), CreateRequest{
		TppAuthorisationNumber: "PSDDE-FAKENCA-1",
		ConsentIDs:             []string{"cns-token-1"},
	})
	if !errors.Is(err, sca.ErrTechnical) {
		t.Fatalf("expected ErrTechnical, got %v", err)
	}
	if b != nil {
		t.Fatalf("no basket must be returned, got %+v", b)
	}
	if store.creates != 1 {
		t.Fatalf("row not persisted before issuance: %d creates", store.creates)
	}
}

func TestBasketAuthorisationApproves(t *testing.T) {
	ctx := context.Background()
	v := vault.New(vault.NewInMemoryStore())
	baskets := NewService(NewInMemoryStore(), v)

	psuAuth := authn.NewInMemory()
	if err := psuAuth.Register("anna", "pw", []sca.ScaMethod{{ID: "sms-1", Type: "SMS_OTP"}}, "111111"); err != nil {
		t.Fatal(err)
	}
	core := sca.NewService(sca.NewInMemoryStore(), v, profile.New(), psuAuth,
		[]sca.ParentService{NewAdapter(baskets)})

	b, err := baskets.Create(ctx, CreateRequest{
		TppAuthorisationNumber: "PSDDE-FAKENCA-1",
		PaymentIDs:             []string{"pmt-token-1"},
		Psus:                   []sca.PsuData{anna},
	})
	if err != nil {
		t.Fatal(err)
	}

	a, err := core.CreateAuthorisation(ctx, sca.TypeSigningBasket, b.ExternalID, sca.CreateRequest{Psu: anna})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := core.UpdatePsuData(ctx, sca.TypeSigningBasket, b.ExternalID, a.ExternalID, sca.UpdateRequest{Psu: anna, Password: "pw"}); err != nil {
		t.Fatal(err)
	}
	if _, err := core.UpdatePsuData(ctx, sca.TypeSigningBasket, b.ExternalID, a.ExternalID, sca.UpdateRequest{ScaAuthenticationData: "111111"}); err != nil {
		t.Fatal(err)
	}

	got, _ := baskets.Get(ctx, b.ExternalID)
	if got.Status != StatusACTC {
		t.Fatalf("expected ACTC, got %s", got.Status)
	}
}
