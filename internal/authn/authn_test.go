package authn

import (
	"context"
	"errors"
	"testing"

	"xs2a.org/internal/sca"
)

func TestVerifyCredentials(t *testing.T) {
	m := NewInMemory()
	if err := m.Register("anna", "correct-horse", nil, ""); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := m.VerifyCredentials(ctx, sca.PsuData{ID: "anna"}, "correct-horse"); err != nil {
		t.Fatal(err)
	}
	if err := m.VerifyCredentials(ctx, sca.PsuData{ID: "anna"}, "battery-staple"); !errors.Is(err, sca.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if err := m.VerifyCredentials(ctx, sca.PsuData{ID: "ghost"}, "anything"); !errors.Is(err, sca.ErrAuthenticationFailed) {
		t.Fatalf("unknown psu: expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestMethodsCopiedOut(t *testing.T) {
	m := NewInMemory()
	if err := m.Register("anna", "pw", []sca.ScaMethod{{ID: "sms-1"}}, "111111"); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first, err := m.Methods(ctx, sca.PsuData{ID: "anna"})
	if err != nil {
		t.Fatal(err)
	}
	first[0].ID = "mutated"

	second, _ := m.Methods(ctx, sca.PsuData{ID: "anna"})
	if second[0].ID != "sms-1" {
		t.Fatal("internal method list leaked to callers")
	}
}

func TestChallengeLifecycle(t *testing.T) {
	m := NewInMemory()
	if err := m.Register("anna", "pw", []sca.ScaMethod{{ID: "sms-1"}}, "654321"); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	a := &sca.Authorisation{Psu: sca.PsuData{ID: "anna"}, ChosenScaMethod: &sca.ScaMethod{ID: "sms-1"}}

	challenge, err := m.StartChallenge(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if challenge.OtpMaxLength != 6 || challenge.OtpFormat != "integer" {
		t.Fatalf("unexpected challenge: %+v", challenge)
	}

	if err := m.ConfirmChallenge(ctx, a, "654321"); err != nil {
		t.Fatal(err)
	}
	if err := m.ConfirmChallenge(ctx, a, "000000"); !errors.Is(err, sca.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestDecoupledChallengeHasNoOtpPrompt(t *testing.T) {
	m := NewInMemory()
	a := &sca.Authorisation{
		Psu:             sca.PsuData{ID: "anna"},
		ChosenScaMethod: &sca.ScaMethod{ID: "push-1", Decoupled: true},
	}
	challenge, err := m.StartChallenge(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if challenge.OtpMaxLength != 0 || challenge.AdditionalInfo == "" {
		t.Fatalf("unexpected decoupled challenge: %+v", challenge)
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}
