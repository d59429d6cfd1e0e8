package basket

import (
	"context"
	"fmt"
	"time"

	"xs2a.org/internal/ids"
	"xs2a.org/internal/sca"
	"xs2a.org/internal/vault"
)

// Service owns basket creation and lookup outside the SCA flow.
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

// CreateRequest carries the TPP's basket creation attributes. Item
// references are the external ids of already-created consents and payments.
type CreateRequest struct {
	TppAuthorisationNumber string
	InstanceID             string
	ConsentIDs             []string
	PaymentIDs             []string
	Psus                   []sca.PsuData
	MultilevelScaRequired  bool
}

// Create persists the basket and then issues its external id. If issuance
// fails the basket row stays in storage but the call reports a technical
// error and no external id is ever returned for it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Basket, error) {
	if req.TppAuthorisationNumber == "" {
		return nil, fmt.Errorf("%w: tpp authorisation number is required", sca.ErrValidation)
	}
	if len(req.ConsentIDs)+len(req.PaymentIDs) == 0 {
		return nil, fmt.Errorf("%w: basket must reference at least one item", sca.ErrValidation)
	}
	now := s.now().UTC()
	b := &Basket{
		ID:                     ids.New(),
		InstanceID:             req.InstanceID,
		TppAuthorisationNumber: req.TppAuthorisationNumber,
		ConsentIDs:             req.ConsentIDs,
		PaymentIDs:             req.PaymentIDs,
		Psus:                   req.Psus,
		MultilevelScaRequired:  req.MultilevelScaRequired || len(req.Psus) > 1,
		Status:                 StatusReceived,
		CreatedAt:              now,
		StatusChangedAt:        now,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("%w: persist basket: %v", sca.ErrTechnical, err)
	}
	token, err := s.vault.Issue(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: issue external id: %v", sca.ErrTechnical, err)
	}
	b.ExternalID = token
	if err := s.store.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("%w: persist external id: %v", sca.ErrTechnical, err)
	}
	return b, nil
}

// Get resolves the external id and loads the basket.
func (s *Service) Get(ctx context.Context, externalID string) (*Basket, error) {
	internalID, err := s.vault.Resolve(ctx, externalID)
	if err != nil {
		return nil, sca.ErrNotFound
	}
	b, err := s.store.Find(ctx, internalID)
	if err != nil {
		return nil, err
	}
	b.ExternalID = externalID
	return b, nil
}

// Cancel marks the basket CANC on an explicit TPP delete.
func (s *Service) Cancel(ctx context.Context, externalID string) (*Basket, error) {
	b, err := s.Get(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if b.Status.IsFinalised() {
		return b, fmt.Errorf("%w: basket is %s", sca.ErrInvalidState, b.Status)
	}
	b.Status = StatusCANC
	b.StatusChangedAt = s.now().UTC()
	if err := s.store.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("%w: persist cancellation: %v", sca.ErrTechnical, err)
	}
	return b, nil
}
