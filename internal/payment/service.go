package payment

import (
	"context"
	"fmt"
	"time"

	"xs2a.org/internal/ids"
	"xs2a.org/internal/sca"
	"xs2a.org/internal/vault"
)

// Service owns payment creation and lookup outside the SCA flow.
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

// CreateRequest carries the TPP's payment initiation attributes.
type CreateRequest struct {
	TppAuthorisationNumber string
	InstanceID             string
	PaymentService         string
	PaymentProduct         string
	DebtorAccount          string
	CreditorAccount        string
	Currency               string
	Amount                 int64
	Psus                   []sca.PsuData
	MultilevelScaRequired  bool
}

// Create persists the payment, then issues its external id. The same
// persist-then-issue asymmetry as for consents applies on vault failure.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Payment, error) {
	if req.TppAuthorisationNumber == "" {
		return nil, fmt.Errorf("%w: tpp authorisation number is required", sca.ErrValidation)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be > 0", sca.ErrValidation)
	}
	if req.Currency == "" {
		return nil, fmt.Errorf("%w: currency is required", sca.ErrValidation)
	}
	now := s.now().UTC()
	p := &Payment{
		ID:                     ids.New(),
		InstanceID:             req.InstanceID,
		TppAuthorisationNumber: req.TppAuthorisationNumber,
		PaymentService:         req.PaymentService,
		PaymentProduct:         req.PaymentProduct,
		DebtorAccount:          req.DebtorAccount,
		CreditorAccount:        req.CreditorAccount,
		Currency:               req.Currency,
		Amount:                 req.Amount,
		Psus:                   req.Psus,
		MultilevelScaRequired:  req.MultilevelScaRequired || len(req.Psus) > 1,
		Status:                 StatusRCVD,
		CreatedAt:              now,
		StatusChangedAt:        now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("%w: persist payment: %v", sca.ErrTechnical, err)
	}
	token, err := s.vault.Issue(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: issue external id: %v", sca.ErrTechnical, err)
	}
	p.ExternalID = token
	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("%w: persist external id: %v", sca.ErrTechnical, err)
	}
	return p, nil
}

// Get resolves the external id and loads the payment.
func (s *Service) Get(ctx context.Context, externalID string) (*Payment, error) {
	internalID, err := s.vault.Resolve(ctx, externalID)
	if err != nil {
		return nil, sca.ErrNotFound
	}
	p, err := s.store.Find(ctx, internalID)
	if err != nil {
		return nil, err
	}
	p.ExternalID = externalID
	return p, nil
}
