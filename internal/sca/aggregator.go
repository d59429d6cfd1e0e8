package sca

import (
	"context"
	"fmt"

	"xs2a.org/internal/obs"
)

// Decision is the multilevel aggregation outcome for a parent object.
type Decision int

const (
	DecisionPending Decision = iota
	DecisionApprove
	DecisionReject
)

func (d Decision) String() string {
	switch d {
	case DecisionApprove:
		return "approve"
	case DecisionReject:
		return "reject"
	default:
		return "pending"
	}
}

// Evaluate decides whether the parent may finalise, given the authorisations
// collected so far. Pure function: evaluating twice with the same set yields
// the same decision.
//
// Without multilevel SCA the first terminal authorisation decides the parent.
// With multilevel SCA the parent approves only when every PSU in the parent's
// list holds a successful terminal authorisation, and rejects as soon as any
// authorisation fails or expires.
func Evaluate(parent Parent, auths []*Authorisation) Decision {
	if !parent.MultilevelScaRequired || len(parent.PsuData) == 0 {
		for _, a := range auths {
			if a.ScaStatus.IsSuccessful() {
				return DecisionApprove
			}
			if a.ScaStatus == StatusFailed || a.ScaStatus == StatusExpired {
				return DecisionReject
			}
		}
		return DecisionPending
	}

	succeeded := make(map[PsuData]bool, len(parent.PsuData))
	for _, a := range auths {
		switch {
		case a.ScaStatus == StatusFailed || a.ScaStatus == StatusExpired:
			// Fail fast: one rejection is sufficient.
			return DecisionReject
		case a.ScaStatus.IsSuccessful():
			succeeded[a.Psu] = true
		}
	}
	for _, psu := range parent.PsuData {
		if !succeeded[psu] {
			return DecisionPending
		}
	}
	return DecisionApprove
}

// reevaluateParent applies the aggregation decision to the parent. It never
// regresses a parent out of a terminal status, and on multilevel rejection it
// administratively cancels the remaining non-terminal authorisations.
func (s *Service) reevaluateParent(ctx context.Context, psvc ParentService, parentExternalID string) error {
	parent, err := psvc.Find(ctx, parentExternalID)
	if err != nil {
		return err
	}
	if parent.Finalised() {
		return nil
	}
	auths, err := s.store.FindByParent(ctx, psvc.AuthorisationKind(), parent.ExternalID)
	if err != nil {
		return err
	}

	switch Evaluate(parent, auths) {
	case DecisionApprove:
		parent.Status = ParentApproved
		if err := psvc.Persist(ctx, parent); err != nil {
			return fmt.Errorf("%w: persist parent approval: %v", ErrTechnical, err)
		}
		obs.ParentFinalisation(string(psvc.AuthorisationKind()), "approved")
	case DecisionReject:
		parent.Status = ParentRejected
		if err := psvc.Persist(ctx, parent); err != nil {
			return fmt.Errorf("%w: persist parent rejection: %v", ErrTechnical, err)
		}
		obs.ParentFinalisation(string(psvc.AuthorisationKind()), "rejected")
		if err := s.cancelSiblings(ctx, auths); err != nil {
			return err
		}
	case DecisionPending:
		if parent.MultilevelScaRequired && parent.Status == ParentPending && anySuccessful(auths) {
			parent.Status = ParentPartiallyAuthorised
			if err := psvc.Persist(ctx, parent); err != nil {
				return fmt.Errorf("%w: persist partial authorisation: %v", ErrTechnical, err)
			}
		}
	}
	return nil
}

// cancelSiblings forces still-open authorisations of a rejected parent to
// FAILED. Already-terminal authorisations are left untouched.
func (s *Service) cancelSiblings(ctx context.Context, auths []*Authorisation) error {
	for _, a := range auths {
		if a.ScaStatus.IsTerminal() {
			continue
		}
		from := a.ScaStatus
		a.ScaStatus = StatusFailed
		a.LastActionAt = s.now().UTC()
		if err := s.store.Update(ctx, a); err != nil {
			return fmt.Errorf("%w: cancel sibling authorisation: %v", ErrTechnical, err)
		}
		obs.ScaTransition(string(from), "cancel", string(StatusFailed))
	}
	return nil
}

func anySuccessful(auths []*Authorisation) bool {
	for _, a := range auths {
		if a.ScaStatus.IsSuccessful() {
			return true
		}
	}
	return false
}
