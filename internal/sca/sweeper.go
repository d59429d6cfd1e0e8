package sca

import (
	"context"
	"fmt"

	"xs2a.org/internal/obs"
)

// checkAndExpire is the lazy read-path expiry sweep. A non-terminal
// authorisation whose redirect window or overall validity window has elapsed
// is forced to EXPIRED, persisted, and the parent re-evaluated. Safe to call
// redundantly: an already terminal authorisation is left untouched.
func (s *Service) checkAndExpire(ctx context.Context, a *Authorisation) (bool, error) {
	if a.ScaStatus.IsTerminal() {
		return false, nil
	}
	now := s.now().UTC()
	var clock string
	switch {
	case !a.RedirectExpiresAt.IsZero() && now.After(a.RedirectExpiresAt):
		clock = "redirect"
	case !a.AuthExpiresAt.IsZero() && now.After(a.AuthExpiresAt):
		clock = "authorisation"
	default:
		return false, nil
	}

	from := a.ScaStatus
	a.ScaStatus = StatusExpired
	a.LastActionAt = now
	if err := s.store.Update(ctx, a); err != nil {
		a.ScaStatus = from
		return false, fmt.Errorf("%w: persist expiry: %v", ErrTechnical, err)
	}
	obs.ScaTransition(string(from), "expire", string(StatusExpired))
	obs.AuthorisationExpired(clock)

	if psvc, ok := s.parents[a.ParentType]; ok {
		if err := s.reevaluateParent(ctx, psvc, a.ParentExternalID); err != nil {
			// Keep expiry and parent decision atomic: revert so the next
			// read retries the whole sweep.
			a.ScaStatus = from
			a.LastActionAt = s.now().UTC()
			if rerr := s.store.Update(ctx, a); rerr != nil {
				a.ScaStatus = StatusExpired
				return false, err
			}
			obs.ScaTransition(string(StatusExpired), "revert", string(from))
			return false, err
		}
	}
	return true, nil
}

// ExpireStale is the eager variant of the sweep, intended for a periodic
// background loop. It reuses the lazy path, so redundant invocations have no
// further effect.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	open, err := s.store.ListNonTerminal(ctx)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, a := range open {
		done, err := s.checkAndExpire(ctx, a)
		if err != nil {
			return expired, err
		}
		if done {
			expired++
		}
	}
	return expired, nil
}
