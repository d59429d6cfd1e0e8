package tpp

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func TestGenerateAndParse(t *testing.T) {
	t.Setenv("XS2A_TPP_AUTH_SECRET", "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	token, err := GenerateToken("PSDDE-FAKENCA-1", []string{"AIS", "pis", "ais"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "PSDDE-FAKENCA-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if !slices.Equal(claims.Roles, []string{"ais", "pis"}) {
		t.Fatalf("roles not deduped and sorted: %v", claims.Roles)
	}
	if claims.ID == "" {
		t.Fatal("missing jti")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Setenv("XS2A_TPP_AUTH_SECRET", "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	t.Setenv("XS2A_TPP_AUTH_SECRET", "first-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	token, err := GenerateToken("PSDDE-FAKENCA-1", []string{"ais"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("XS2A_TPP_AUTH_SECRET", "second-secret")
	ResetSecretForTests()
	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestEnabledFollowsEnv(t *testing.T) {
	t.Setenv("XS2A_TPP_AUTH_SECRET", "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
	if Enabled() {
		t.Fatal("expected disabled without a secret")
	}

	t.Setenv("XS2A_TPP_AUTH_SECRET", "live")
	ResetSecretForTests()
	if !Enabled() {
		t.Fatal("expected enabled with a secret")
	}
}

func TestGenerateTokenValidation(t *testing.T) {
	t.Setenv("XS2A_TPP_AUTH_SECRET", "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, err := GenerateToken("  ", []string{"ais"}, time.Hour); err == nil {
		t.Fatal("expected error for empty authorisation number")
	}
	if _, err := GenerateToken("PSDDE-FAKENCA-1", []string{"ais"}, 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	p := Principal{AuthorisationNumber: "PSDDE-FAKENCA-1", Roles: []string{"ais"}}
	ctx := ContextWithPrincipal(context.Background(), p)

	got, ok := PrincipalFromContext(ctx)
	if !ok || got.AuthorisationNumber != p.AuthorisationNumber {
		t.Fatalf("principal lost: %+v ok=%v", got, ok)
	}
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatal("principal found in empty context")
	}
}

func TestHasRoleCaseInsensitive(t *testing.T) {
	p := Principal{Roles: []string{"ais", "pis"}}
	if !p.HasRole("AIS") || !p.HasRole("pis") {
		t.Fatal("role lookup failed")
	}
	if p.HasRole("piisp") {
		t.Fatal("unexpected role")
	}
}
