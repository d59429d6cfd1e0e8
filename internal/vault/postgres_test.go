package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreSaveAndFindByToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	mock.ExpectExec("insert into vault_entries").
		WithArgs("01ARZ3NDEKTSV4RRFFQ69G5FAV", "tok-1", created).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("from vault_entries where token=").
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"internal_id", "token", "created_at"}).
			AddRow("01ARZ3NDEKTSV4RRFFQ69G5FAV", "tok-1", created))

	s := NewPGStore(db)
	entry := Entry{InternalID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", Token: "tok-1", CreatedAt: created}
	if err := s.Save(context.Background(), entry); err != nil {
		t.Fatal(err)
	}
	got, err := s.FindByToken(context.Background(), "tok-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.InternalID != entry.InternalID || !got.CreatedAt.Equal(created) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPGStoreSaveMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into vault_entries").
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "vault_entries_pkey" (SQLSTATE 23505)`))

	s := NewPGStore(db)
	err = s.Save(context.Background(), Entry{InternalID: "id-1", Token: "tok-1"})
	if !errors.Is(err, ErrDuplicateToken) {
		t.Fatalf("expected ErrDuplicateToken, got %v", err)
	}
}

func TestPGStoreFindByTokenNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("from vault_entries where token=").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"internal_id", "token", "created_at"}))

	s := NewPGStore(db)
	if _, err := s.FindByToken(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
