package consent

import (
	"context"
	"fmt"
	"time"

	"xs2a.org/internal/ids"
	"xs2a.org/internal/sca"
	"xs2a.org/internal/vault"
)

// Service owns consent creation and lifecycle outside the SCA flow.
type Service struct {
	store Store
	vault *vault.Vault
	now   func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewService(store Store, v *vault.Vault, opts ...Option) *Service {
	s := &Service{store: store, vault: v, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest carries the TPP's consent creation attributes.
type CreateRequest struct {
	TppAuthorisationNumber string
	InstanceID             string
	Access                 []string
	RecurringIndicator     bool
	ValidUntil             time.Time
	FrequencyPerDay        int
	Psus                   []sca.PsuData
	// MultilevelScaRequired forces multilevel SCA even for a single PSU.
	// Computed once here, never recomputed.
	MultilevelScaRequired bool
}

// Create persists the consent and then issues its external id. On issuance
// failure the row remains in storage for the audit trail but the operation
// reports a technical error and the id is never exposed.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Consent, error) {
	if req.TppAuthorisationNumber == "" {
		return nil, fmt.Errorf("%w: tpp authorisation number is required", sca.ErrValidation)
	}
	now := s.now().UTC()
	c := &Consent{
		ID:                     ids.New(),
		InstanceID:             req.InstanceID,
		TppAuthorisationNumber: req.TppAuthorisationNumber,
		Access:                 req.Access,
		RecurringIndicator:     req.RecurringIndicator,
		ValidUntil:             req.ValidUntil,
		FrequencyPerDay:        req.FrequencyPerDay,
		Psus:                   req.Psus,
		MultilevelScaRequired:  req.MultilevelScaRequired || len(req.Psus) > 1,
		Status:                 StatusReceived,
		CreatedAt:              now,
		StatusChangedAt:        now,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("%w: persist consent: %v", sca.ErrTechnical, err)
	}
	token, err := s.vault.Issue(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: issue external id: %v", sca.ErrTechnical, err)
	}
	c.ExternalID = token
	if err := s.store.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("%w: persist external id: %v", sca.ErrTechnical, err)
	}
	return c, nil
}

// Get resolves the external id and loads the consent.
func (s *Service) Get(ctx context.Context, externalID string) (*Consent, error) {
	internalID, err := s.vault.Resolve(ctx, externalID)
	if err != nil {
		return nil, sca.ErrNotFound
	}
	c, err := s.store.Find(ctx, internalID)
	if err != nil {
		return nil, err
	}
	c.ExternalID = externalID
	return c, nil
}

// Terminate moves the consent to terminatedByTpp on an explicit TPP delete.
func (s *Service) Terminate(ctx context.Context, externalID string) (*Consent, error) {
	c, err := s.Get(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if c.Status.IsFinalised() && c.Status != StatusValid {
		return c, fmt.Errorf("%w: consent is %s", sca.ErrInvalidState, c.Status)
	}
	c.Status = StatusTerminatedByTpp
	c.StatusChangedAt = s.now().UTC()
	if err := s.store.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("%w: persist termination: %v", sca.ErrTechnical, err)
	}
	return c, nil
}

// RevokeByPsu moves the consent to revokedByPsu.
func (s *Service) RevokeByPsu(ctx context.Context, externalID string) (*Consent, error) {
	c, err := s.Get(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if c.Status.IsFinalised() && c.Status != StatusValid {
		return c, fmt.Errorf("%w: consent is %s", sca.ErrInvalidState, c.Status)
	}
	c.Status = StatusRevokedByPsu
	c.StatusChangedAt = s.now().UTC()
	if err := s.store.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("%w: persist revocation: %v", sca.ErrTechnical, err)
	}
	return c, nil
}
