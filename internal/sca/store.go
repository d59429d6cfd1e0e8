package sca

import "context"

// AuthorisationStore is the durable record of authorisation attempts.
// Implementations must enforce the optimistic version guard on Update.
type AuthorisationStore interface {
	Create(ctx context.Context, a *Authorisation) error
	// Find looks up by internal id.
	Find(ctx context.Context, id string) (*Authorisation, error)
	// FindByParent returns every authorisation linked to the given parent,
	// oldest first.
	FindByParent(ctx context.Context, parentType AuthorisationType, parentID string) ([]*Authorisation, error)
	// Update persists a mutation. The stored row must still carry a.Version;
	// on success the version is incremented. A stale writer gets ErrConflict.
	Update(ctx context.Context, a *Authorisation) error
	// ListNonTerminal returns all authorisations still in flight, for the
	// eager expiry sweep.
	ListNonTerminal(ctx context.Context) ([]*Authorisation, error)
}

// ParentService is the capability interface each parent kind (consent,
// payment, signing basket) implements once. The state machine and aggregator
// depend only on this interface, never on concrete parent types.
type ParentService interface {
	// FindNotFinalised returns the parent only while its status is
	// non-terminal; operations on closed objects get ErrInvalidState.
	FindNotFinalised(ctx context.Context, externalID string) (Parent, error)
	// Find is the unconditional lookup used for read-only status queries.
	Find(ctx context.Context, externalID string) (Parent, error)
	// Persist saves the parent's (possibly updated) status. Idempotent.
	Persist(ctx context.Context, parent Parent) error
	// AuthorisationKind is the discriminator scoping authorisation queries
	// to this parent kind.
	AuthorisationKind() AuthorisationType
}
