package payment

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

func (s *PGStore) Create(ctx context.Context, p *Payment) error {
	psus, _ := json.Marshal(p.Psus)
	_, err := s.db.ExecContext(ctx,
		`insert into payments(id, external_id, instance_id, tpp_authorisation_number,
			payment_service, payment_product, debtor_account, creditor_account,
			currency, amount, psus, multilevel_sca_required, status,
			created_at, status_changed_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.ExternalID, p.InstanceID, p.TppAuthorisationNumber,
		p.PaymentService, p.PaymentProduct, p.DebtorAccount, p.CreditorAccount,
		p.Currency, p.Amount, psus, p.MultilevelScaRequired, string(p.Status),
		p.CreatedAt, p.StatusChangedAt,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Payment, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, external_id, instance_id, tpp_authorisation_number,
			payment_service, payment_product, debtor_account, creditor_account,
			currency, amount, psus, multilevel_sca_required, status,
			created_at, status_changed_at
		 from payments where id=$1`, id)
	var (
		p          Payment
		status     string
		psus       []byte
		externalID sql.NullString
	)
	err := row.Scan(&p.ID, &externalID, &p.InstanceID, &p.TppAuthorisationNumber,
		&p.PaymentService, &p.PaymentProduct, &p.DebtorAccount, &p.CreditorAccount,
		&p.Currency, &p.Amount, &psus, &p.MultilevelScaRequired, &status,
		&p.CreatedAt, &p.StatusChangedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sca.ErrNotFound
		}
		return nil, err
	}
	p.ExternalID = externalID.String
	p.Status = TransactionStatus(status)
	_ = json.Unmarshal(psus, &p.Psus)
	return &p, nil
}

func (s *PGStore) Update(ctx context.Context, p *Payment) error {
	_, err := s.db.ExecContext(ctx,
		`update payments set external_id=$1, status=$2, status_changed_at=$3 where id=$4`,
		p.ExternalID, string(p.Status), p.StatusChangedAt, p.ID,
	)
	return err
}
