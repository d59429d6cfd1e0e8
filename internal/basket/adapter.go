package basket

import (
	"context"
	"fmt"

	"xs2a.org/internal/sca"
)

// Adapter exposes signing baskets to the SCA core.
type Adapter struct {
	svc *Service
}

var _ sca.ParentService = (*Adapter)(nil)

func NewAdapter(svc *Service) *Adapter {
	return &Adapter{svc: svc}
}

func (a *Adapter) AuthorisationKind() sca.AuthorisationType {
	return sca.TypeSigningBasket
}

func (a *Adapter) FindNotFinalised(ctx context.Context, externalID string) (sca.Parent, error) {
	b, err := a.svc.Get(ctx, externalID)
	if err != nil {
		return sca.Parent{}, err
	}
	if b.Status.IsFinalised() {
		return sca.Parent{}, fmt.Errorf("%w: basket is %s", sca.ErrInvalidState, b.Status)
	}
	return toParent(b), nil
}

func (a *Adapter) Find(ctx context.Context, externalID string) (sca.Parent, error) {
	b, err := a.svc.Get(ctx, externalID)
	if err != nil {
		return sca.Parent{}, err
	}
	return toParent(b), nil
}

func (a *Adapter) Persist(ctx context.Context, parent sca.Parent) error {
	b, err := a.svc.Get(ctx, parent.ExternalID)
	if err != nil {
		return err
	}
	next := b.Status
	switch parent.Status {
	case sca.ParentApproved:
		next = StatusACTC
	case sca.ParentRejected:
		next = StatusRJCT
	case sca.ParentPartiallyAuthorised:
		next = StatusPartiallyAuthorised
	}
	if next == b.Status || b.Status.IsFinalised() {
		return nil
	}
	b.Status = next
	b.StatusChangedAt = a.svc.now().UTC()
	return a.svc.store.Update(ctx, b)
}

func toParent(b *Basket) sca.Parent {
	p := sca.Parent{
		ExternalID:            b.ExternalID,
		InstanceID:            b.InstanceID,
		PsuData:               b.Psus,
		MultilevelScaRequired: b.MultilevelScaRequired,
	}
	switch b.Status {
	case StatusReceived:
		p.Status = sca.ParentPending
	case StatusPartiallyAuthorised:
		p.Status = sca.ParentPartiallyAuthorised
	case StatusACTC:
		p.Status = sca.ParentApproved
	default:
		p.Status = sca.ParentRejected
	}
	return p
}
