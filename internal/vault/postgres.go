package vault

import (
	"context"
	"database/sql"
	"strings"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. The vault_entries table carries
// a unique constraint on token.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Save(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`insert into vault_entries(internal_id, token, created_at) values($1,$2,$3)`,
		e.InternalID, e.Token, e.CreatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateToken
	}
	return err
}

func (s *PGStore) FindByToken(ctx context.Context, token string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`select internal_id, token, created_at from vault_entries where token=$1`, token)
	var e Entry
	if err := row.Scan(&e.InternalID, &e.Token, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

// isUniqueViolation matches the Postgres 23505 error without binding to a
// specific driver error type.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
