package basket

import (
	"context"
	"database/sql"
	"encoding/json"

	"xs2a.org/internal/sca"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, b *Basket) error {
	consents, _ := json.Marshal(b.ConsentIDs)
	payments, _ := json.Marshal(b.PaymentIDs)
	psus, _ := json.Marshal(b.Psus)
	_, err := s.db.ExecContext(ctx,
		`insert into signing_baskets(id, external_id, instance_id, tpp_authorisation_number,
			consent_ids, payment_ids, psus, multilevel_sca_required, status,
			created_at, status_changed_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		b.ID, b.ExternalID, b.InstanceID, b.TppAuthorisationNumber,
		consents, payments, psus, b.MultilevelScaRequired, string(b.Status),
		b.CreatedAt, b.StatusChangedAt,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Basket, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, external_id, instance_id, tpp_authorisation_number,
			consent_ids, payment_ids, psus, multilevel_sca_required, status,
			created_at, status_changed_at
		 from signing_baskets where id=$1`, id)
	var (
		b          Basket
		status     string
		consents   []byte
		payments   []byte
		psus       []byte
		externalID sql.NullString
	)
	err := row.Scan(&b.ID, &externalID, &b.InstanceID, &b.TppAuthorisationNumber,
		&consents, &payments, &psus, &b.MultilevelScaRequired, &status,
		&b.CreatedAt, &b.StatusChangedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sca.ErrNotFound
		}
		return nil, err
	}
	b.ExternalID = externalID.String
	b.Status = Status(status)
	_ = json.Unmarshal(consents, &b.ConsentIDs)
	_ = json.Unmarshal(payments, &b.PaymentIDs)
	_ = json.Unmarshal(psus, &b.Psus)
	return &b, nil
}

func (s *PGStore) Update(ctx context.Context, b *Basket) error {
	_, err := s.db.ExecContext(ctx,
		`update signing_baskets set external_id=$1, status=$2, status_changed_at=$3 where id=$4`,
		b.ExternalID, string(b.Status), b.StatusChangedAt, b.ID,
	)
	return err
}
