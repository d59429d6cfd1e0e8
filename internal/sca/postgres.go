package sca

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

var _ AuthorisationStore = (*PGStore)(nil)

// PGStore implements AuthorisationStore using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const authorisationColumns = `id, external_id, parent_external_id, parent_type, psu, sca_approach,
	sca_status, chosen_sca_method, available_sca_methods, challenge,
	redirect_uri, nok_redirect_uri, internal_request_id,
	created_at, last_action_at, redirect_expires_at, auth_expires_at, version`

func (s *PGStore) Create(ctx context.Context, a *Authorisation) error {
	psu, _ := json.Marshal(a.Psu)
	chosen, _ := json.Marshal(a.ChosenScaMethod)
	available, _ := json.Marshal(a.AvailableScaMethods)
	challenge, _ := json.Marshal(a.Challenge)
	_, err := s.db.ExecContext(ctx,
		`insert into authorisations(`+authorisationColumns+`)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		a.ID, a.ExternalID, a.ParentExternalID, string(a.ParentType), psu, string(a.ScaApproach),
		string(a.ScaStatus), chosen, available, challenge,
		a.RedirectURI, a.NokRedirectURI, a.InternalRequestID,
		a.CreatedAt, a.LastActionAt, nullTime(a.RedirectExpiresAt), nullTime(a.AuthExpiresAt), a.Version,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Authorisation, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+authorisationColumns+` from authorisations where id=$1`, id)
	return scanAuthorisation(row)
}

func (s *PGStore) FindByParent(ctx context.Context, parentType AuthorisationType, parentID string) ([]*Authorisation, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+authorisationColumns+` from authorisations
		 where parent_type=$1 and parent_external_id=$2 order by id asc`,
		string(parentType), parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuthorisations(rows)
}

func (s *PGStore) Update(ctx context.Context, a *Authorisation) error {
	psu, _ := json.Marshal(a.Psu)
	chosen, _ := json.Marshal(a.ChosenScaMethod)
	available, _ := json.Marshal(a.AvailableScaMethods)
	challenge, _ := json.Marshal(a.Challenge)
	res, err := s.db.ExecContext(ctx,
		`update authorisations set
			external_id=$1, psu=$2, sca_approach=$3, sca_status=$4,
			chosen_sca_method=$5, available_sca_methods=$6, challenge=$7,
			last_action_at=$8, redirect_expires_at=$9, auth_expires_at=$10,
			version=version+1
		 where id=$11 and version=$12`,
		a.ExternalID, psu, string(a.ScaApproach), string(a.ScaStatus),
		chosen, available, challenge,
		a.LastActionAt, nullTime(a.RedirectExpiresAt), nullTime(a.AuthExpiresAt),
		a.ID, a.Version,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	a.Version++
	return nil
}

func (s *PGStore) ListNonTerminal(ctx context.Context) ([]*Authorisation, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+authorisationColumns+` from authorisations
		 where sca_status not in ('finalised','failed','exempted','expired') order by id asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuthorisations(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuthorisation(row rowScanner) (*Authorisation, error) {
	var (
		a                 Authorisation
		parentType        string
		approach          string
		status            string
		psu               []byte
		chosen            []byte
		available         []byte
		challenge         []byte
		externalID        sql.NullString
		redirectExpiresAt sql.NullTime
		authExpiresAt     sql.NullTime
	)
	err := row.Scan(
		&a.ID, &externalID, &a.ParentExternalID, &parentType, &psu, &approach,
		&status, &chosen, &available, &challenge,
		&a.RedirectURI, &a.NokRedirectURI, &a.InternalRequestID,
		&a.CreatedAt, &a.LastActionAt, &redirectExpiresAt, &authExpiresAt, &a.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.ExternalID = externalID.String
	a.ParentType = AuthorisationType(parentType)
	a.ScaApproach = ScaApproach(approach)
	a.ScaStatus = ScaStatus(status)
	if redirectExpiresAt.Valid {
		a.RedirectExpiresAt = redirectExpiresAt.Time
	}
	if authExpiresAt.Valid {
		a.AuthExpiresAt = authExpiresAt.Time
	}
	_ = json.Unmarshal(psu, &a.Psu)
	_ = json.Unmarshal(chosen, &a.ChosenScaMethod)
	_ = json.Unmarshal(available, &a.AvailableScaMethods)
	_ = json.Unmarshal(challenge, &a.Challenge)
	return &a, nil
}

func scanAuthorisations(rows *sql.Rows) ([]*Authorisation, error) {
	var res []*Authorisation
	for rows.Next() {
		a, err := scanAuthorisation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
