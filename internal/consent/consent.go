// Package consent is the account-information consent parent object and its
// adapter into the SCA orchestration core.
package consent

import (
	"context"
	"time"

	"xs2a.org/internal/sca"
)

// Status is the consent lifecycle status.
type Status string

const (
	StatusReceived            Status = "received"
	StatusPartiallyAuthorised Status = "partiallyAuthorised"
	StatusValid               Status = "valid"
	StatusRejected            Status = "rejected"
	StatusRevokedByPsu        Status = "revokedByPsu"
	StatusExpired             Status = "expired"
	StatusTerminatedByTpp     Status = "terminatedByTpp"
)

// IsFinalised reports whether the authorisation flow for this consent is
// closed. VALID consents accept no further authorisation steps.
func (s Status) IsFinalised() bool {
	return s != StatusReceived && s != StatusPartiallyAuthorised
}

// Consent is a TPP's permission to access account information on behalf of
// one or more PSUs. Soft lifecycle: rows are never deleted.
type Consent struct {
	ID                     string        `json:"-"`
	ExternalID             string        `json:"consent_id"`
	InstanceID             string        `json:"-"`
	TppAuthorisationNumber string        `json:"-"`
	Access                 []string      `json:"access,omitempty"`
	RecurringIndicator     bool          `json:"recurring_indicator"`
	ValidUntil             time.Time     `json:"valid_until"`
	FrequencyPerDay        int           `json:"frequency_per_day"`
	Psus                   []sca.PsuData `json:"-"`
	MultilevelScaRequired  bool          `json:"multilevel_sca_required"`
	Status                 Status        `json:"consent_status"`
	CreatedAt              time.Time     `json:"-"`
	StatusChangedAt        time.Time     `json:"-"`
}

// Store persists consents, keyed by internal id.
type Store interface {
	Create(ctx context.Context, c *Consent) error
	Find(ctx context.Context, id string) (*Consent, error)
	Update(ctx context.Context, c *Consent) error
}
