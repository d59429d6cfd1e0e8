package consent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"xs2a.org/internal/sca"
)

func TestPGStoreFindScansRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	validUntil := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	cols := []string{
		"id", "external_id", "instance_id", "tpp_authorisation_number", "access",
		"recurring_indicator", "valid_until", "frequency_per_day", "psus",
		"multilevel_sca_required", "status", "created_at", "status_changed_at",
	}
	mock.ExpectQuery("from consents where id=").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"c1", "tok-1", "bank-a", "PSDDE-FAKENCA-1", []byte(`["accounts"]`),
			true, validUntil, 4, []byte(`[{"psu_id":"anna"},{"psu_id":"boris"}]`),
			true, "partiallyAuthorised", created, created,
		))

	s := NewPGStore(db)
	c, err := s.Find(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.ExternalID != "tok-1" || c.Status != StatusPartiallyAuthorised {
		t.Fatalf("scan mismatch: %+v", c)
	}
	if len(c.Access) != 1 || c.Access[0] != "accounts" {
		t.Fatalf("access not decoded: %v", c.Access)
	}
	if len(c.Psus) != 2 || c.Psus[1] != (sca.PsuData{ID: "boris"}) {
		t.Fatalf("psus not decoded: %+v", c.Psus)
	}
	if !c.ValidUntil.Equal(validUntil) {
		t.Fatalf("valid_until = %s", c.ValidUntil)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGStoreFindNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("from consents where id=").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	s := NewPGStore(db)
	if _, err := s.Find(context.Background(), "missing"); !errors.Is(err, sca.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreCreateAndUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	c := &Consent{
		ID:                     "c1",
		TppAuthorisationNumber: "PSDDE-FAKENCA-1",
		Access:                 []string{"accounts"},
		Psus:                   []sca.PsuData{{ID: "anna"}},
		Status:                 StatusReceived,
		CreatedAt:              now,
		StatusChangedAt:        now,
	}
	mock.ExpectExec("insert into consents").
		WithArgs("c1", "", "", "PSDDE-FAKENCA-1", []byte(`["accounts"]`),
			false, sqlmock.AnyArg(), 0, []byte(`[{"psu_id":"anna"}]`),
			false, "received", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update consents set").
		WithArgs("tok-1", "valid", now, "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewPGStore(db)
	if err := s.Create(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	c.ExternalID = "tok-1"
	c.Status = StatusValid
	if err := s.Update(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
