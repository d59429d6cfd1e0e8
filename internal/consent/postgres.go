package consent

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

func (s *PGStore) Create(ctx context.Context, c *Consent) error {
	access, _ := json.Marshal(c.Access)
	psus, _ := json.Marshal(c.Psus)
	_, err := s.db.ExecContext(ctx,
		`insert into consents(id, external_id, instance_id, tpp_authorisation_number, access,
			recurring_indicator, valid_until, frequency_per_day, psus,
			multilevel_sca_required, status, created_at, status_changed_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		c.ID, c.ExternalID, c.InstanceID, c.TppAuthorisationNumber, access,
		c.RecurringIndicator, c.ValidUntil, c.FrequencyPerDay, psus,
		c.MultilevelScaRequired, string(c.Status), c.CreatedAt, c.StatusChangedAt,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Consent, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, external_id, instance_id, tpp_authorisation_number, access,
			recurring_indicator, valid_until, frequency_per_day, psus,
			multilevel_sca_required, status, created_at, status_changed_at
		 from consents where id=$1`, id)
	var (
		c          Consent
		status     string
		access     []byte
		psus       []byte
		externalID sql.NullString
	)
	err := row.Scan(&c.ID, &externalID, &c.InstanceID, &c.TppAuthorisationNumber, &access,
		&c.RecurringIndicator, &c.ValidUntil, &c.FrequencyPerDay, &psus,
		&c.MultilevelScaRequired, &status, &c.CreatedAt, &c.StatusChangedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sca.ErrNotFound
		}
		return nil, err
	}
	c.ExternalID = externalID.String
	c.Status = Status(status)
	_ = json.Unmarshal(access, &c.Access)
	_ = json.Unmarshal(psus, &c.Psus)
	return &c, nil
}

func (s *PGStore) Update(ctx context.Context, c *Consent) error {
	_, err := s.db.ExecContext(ctx,
		`update consents set external_id=$1, status=$2, status_changed_at=$3 where id=$4`,
		c.ExternalID, string(c.Status), c.StatusChangedAt, c.ID,
	)
	return err
}
