package payment

import (
	"context"
	"fmt"

	"xs2a.org/internal/sca"
)

// Adapter exposes payment initiation to the SCA core.
type Adapter struct {
	svc *Service
}

var _ sca.ParentService = (*Adapter)(nil)

func NewAdapter(svc *Service) *Adapter {
	return &Adapter{svc: svc}
}

func (a *Adapter) AuthorisationKind() sca.AuthorisationType {
	return sca.TypePisCreation
}

func (a *Adapter) FindNotFinalised(ctx context.Context, externalID string) (sca.Parent, error) {
	p, err := a.svc.Get(ctx, externalID)
	if err != nil {
		return sca.Parent{}, err
	}
	if p.Status.IsFinalised() {
		return sca.Parent{}, fmt.Errorf("%w: payment is %s", sca.ErrInvalidState, p.Status)
	}
	return toParent(p), nil
}

func (a *Adapter) Find(ctx context.Context, externalID string) (sca.Parent, error) {
	p, err := a.svc.Get(ctx, externalID)
	if err != nil {
		return sca.Parent{}, err
	}
	return toParent(p), nil
}

func (a *Adapter) Persist(ctx context.Context, parent sca.Parent) error {
	p, err := a.svc.Get(ctx, parent.ExternalID)
	if err != nil {
		return err
	}
	next := p.Status
	switch parent.Status {
	case sca.ParentApproved:
		next = StatusACCP
	case sca.ParentRejected:
		next = StatusRJCT
	case sca.ParentPartiallyAuthorised:
		next = StatusPATC
	}
	if next == p.Status || p.Status.IsFinalised() {
		return nil
	}
	p.Status = next
	p.StatusChangedAt = a.svc.now().UTC()
	return a.svc.store.Update(ctx, p)
}

func toParent(p *Payment) sca.Parent {
	out := sca.Parent{
		ExternalID:            p.ExternalID,
		InstanceID:            p.InstanceID,
		PsuData:               p.Psus,
		MultilevelScaRequired: p.MultilevelScaRequired,
	}
	switch p.Status {
	case StatusRCVD:
		out.Status = sca.ParentPending
	case StatusPATC:
		out.Status = sca.ParentPartiallyAuthorised
	case StatusACCP, StatusACTC:
		out.Status = sca.ParentApproved
	default:
		out.Status = sca.ParentRejected
	}
	return out
}

// CancellationAdapter exposes payment cancellation as its own parent flow.
// The same payment row backs both adapters; authorisations are scoped apart
// by their authorisation kind.
type CancellationAdapter struct {
	svc *Service
}

var _ sca.ParentService = (*CancellationAdapter)(nil)

func NewCancellationAdapter(svc *Service) *CancellationAdapter {
	return &CancellationAdapter{svc: svc}
}

func (a *CancellationAdapter) AuthorisationKind() sca.AuthorisationType {
	return sca.TypePisCancellation
}

func (a *CancellationAdapter) FindNotFinalised(ctx context.Context, externalID string) (sca.Parent, error) {
	p, err := a.svc.Get(ctx, externalID)
	if err != nil {
		return sca.Parent{}, err
	}
	if !p.Status.Cancellable() {
		return sca.Parent{}, fmt.Errorf("%w: payment is %s", sca.ErrInvalidState, p.Status)
	}
	return toCancellationParent(p), nil
}

func (a *CancellationAdapter) Find(ctx context.Context, externalID string) (sca.Parent, error) {
	p, err := a.svc.Get(ctx, externalID)
	if err != nil {
		return sca.Parent{}, err
	}
	return toCancellationParent(p), nil
}

// Persist applies the cancellation outcome. An approved cancellation moves
// the payment to CANC; a rejected cancellation leaves the payment as it was.
func (a *CancellationAdapter) Persist(ctx context.Context, parent sca.Parent) error {
	if parent.Status != sca.ParentApproved {
		return nil
	}
	p, err := a.svc.Get(ctx, parent.ExternalID)
	if err != nil {
		return err
	}
	if p.Status == StatusCANC {
		return nil
	}
	p.Status = StatusCANC
	p.StatusChangedAt = a.svc.now().UTC()
	return a.svc.store.Update(ctx, p)
}

func toCancellationParent(p *Payment) sca.Parent {
	out := sca.Parent{
		ExternalID:            p.ExternalID,
		InstanceID:            p.InstanceID,
		PsuData:               p.Psus,
		MultilevelScaRequired: p.MultilevelScaRequired,
	}
	switch p.Status {
	case StatusCANC:
		out.Status = sca.ParentApproved
	case StatusRJCT:
		out.Status = sca.ParentRejected
	default:
		out.Status = sca.ParentPending
	}
	return out
}
