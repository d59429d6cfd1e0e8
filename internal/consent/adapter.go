package consent

import (
	"context"
	"fmt"

	"xs2a.org/internal/sca"
)

// Adapter exposes consents to the SCA core through the generic parent
// contract. The state machine and aggregator never see the Consent type.
type Adapter struct {
	svc *Service
}

var _ sca.ParentService = (*Adapter)(nil)

func NewAdapter(svc *Service) *Adapter {
	return &Adapter{svc: svc}
}

func (a *Adapter) AuthorisationKind() sca.AuthorisationType {
	return sca.TypeConsent
}

func (a *Adapter) FindNotFinalised(ctx context.Context, externalID string) (sca.Parent, error) {
	c, err := a.svc.Get(ctx, externalID)
	if err != nil {
		return sca.Parent{}, err
	}
	if c.Status.IsFinalised() {
		return sca.Parent{}, fmt.Errorf("%w: consent is %s", sca.ErrInvalidState, c.Status)
	}
	return toParent(c), nil
}

func (a *Adapter) Find(ctx context.Context, externalID string) (sca.Parent, error) {
	c, err := a.svc.Get(ctx, externalID)
	if err != nil {
		return sca.Parent{}, err
	}
	return toParent(c), nil
}

// Persist maps the aggregator's decision back onto the consent status. It is
// idempotent and never regresses a finalised consent.
func (a *Adapter) Persist(ctx context.Context, parent sca.Parent) error {
	c, err := a.svc.Get(ctx, parent.ExternalID)
	if err != nil {
		return err
	}
	next := c.Status
	switch parent.Status {
	case sca.ParentApproved:
		next = StatusValid
	case sca.ParentRejected:
		next = StatusRejected
	case sca.ParentPartiallyAuthorised:
		next = StatusPartiallyAuthorised
	}
	if next == c.Status {
		return nil
	}
	if c.Status.IsFinalised() {
		return nil
	}
	c.Status = next
	c.StatusChangedAt = a.svc.now().UTC()
	return a.svc.store.Update(ctx, c)
}

func toParent(c *Consent) sca.Parent {
	p := sca.Parent{
		ExternalID:            c.ExternalID,
		InstanceID:            c.InstanceID,
		PsuData:               c.Psus,
		MultilevelScaRequired: c.MultilevelScaRequired,
	}
	switch c.Status {
	case StatusReceived:
		p.Status = sca.ParentPending
	case StatusPartiallyAuthorised:
		p.Status = sca.ParentPartiallyAuthorised
	case StatusValid:
		p.Status = sca.ParentApproved
	default:
		p.Status = sca.ParentRejected
	}
	return p
}
