package basket

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
	cols := []string{
		"id", "external_id", "instance_id", "tpp_authorisation_number",
		"consent_ids", "payment_ids", "psus", "multilevel_sca_required", "status",
		"created_at", "status_changed_at",
	}
	mock.ExpectQuery("from signing_baskets where id=").
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"b1", "tok-1", "bank-a", "PSDDE-FAKENCA-1",
			[]byte(`["cns-1"]`), []byte(`["pmt-1","pmt-2"]`), []byte(`[{"psu_id":"anna"}]`), false, "received",
			created, created,
		))

	s := NewPGStore(db)
	b, err := s.Find(context.Background(), "b1")
	if err != nil {
		t.Fatal(err)
	}
	if b.ExternalID != "tok-1" || b.Status != StatusReceived {
		t.Fatalf("scan mismatch: %+v", b)
	}
	if len(b.ConsentIDs) != 1 || len(b.PaymentIDs) != 2 || b.PaymentIDs[1] != "pmt-2" {
		t.Fatalf("item ids not decoded: %+v", b)
	}
	if len(b.Psus) != 1 || b.Psus[0] != (sca.PsuData{ID: "anna"}) {
		t.Fatalf("psus not decoded: %+v", b.Psus)
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

	mock.ExpectQuery("from signing_baskets where id=").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	s := NewPGStore(db)
	if _, err := s.Find(context.Background(), "missing"); !errors.Is(err, sca.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreUpdatePersistsStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	changed := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("update signing_baskets set").
		WithArgs("tok-1", "ACTC", changed, "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewPGStore(db)
	b := &Basket{ID: "b1", ExternalID: "tok-1", Status: StatusACTC, StatusChangedAt: changed}
	if err := s.Update(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
