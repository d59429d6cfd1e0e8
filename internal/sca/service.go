package sca

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xs2a.org/internal/ids"
	"xs2a.org/internal/obs"
	"xs2a.org/internal/vault"
)

// Authenticator is the SPI towards the bank's authentication and SCA
// challenge delivery systems. Failures map into FAILED transitions; the core
// never talks to the PSU directly.
type Authenticator interface {
	// Methods lists the SCA methods available for the identified PSU.
	// An empty list means the ASPSP exempts this PSU from SCA.
	Methods(ctx context.Context, psu PsuData) ([]ScaMethod, error)
	// VerifyCredentials checks the PSU password. Returns
	// ErrAuthenticationFailed on rejection.
	VerifyCredentials(ctx context.Context, psu PsuData, password string) error
	// StartChallenge delivers the challenge for the chosen method and
	// returns the data to present to the PSU (nil for decoupled flows).
	StartChallenge(ctx context.Context, a *Authorisation) (*ChallengeData, error)
	// ConfirmChallenge validates the OTP / confirmation code. Returns
	// ErrAuthenticationFailed on rejection.
	ConfirmChallenge(ctx context.Context, a *Authorisation, otp string) error
}

// AspspProfile is the read-only bank configuration consulted at RECEIVED.
type AspspProfile interface {
	ChooseApproach(tppRedirectPreferred bool) ScaApproach
	RedirectTTL() time.Duration
	AuthorisationTTL() time.Duration
	MultilevelScaSupported() bool
	ScaExemptionAllowed() bool
}

// Service drives authorisations through the SCA state machine. All exposed
// operations take and return vault-issued external identifiers only.
type Service struct {
	store    AuthorisationStore
	vault    *vault.Vault
	parents  map[AuthorisationType]ParentService
	profile  AspspProfile
	authn    Authenticator
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the orchestration service. Parent adapters register
// themselves under their authorisation kind.
func NewService(store AuthorisationStore, v *vault.Vault, profile AspspProfile, authn Authenticator, parents []ParentService, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		vault:   v,
		parents: make(map[AuthorisationType]ParentService, len(parents)),
		profile: profile,
		authn:   authn,
		now:     time.Now,
	}
	for _, p := range parents {
		s.parents[p.AuthorisationKind()] = p
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest carries the TPP-supplied attributes of a new authorisation.
type CreateRequest struct {
	Psu                  PsuData
	RedirectURI          string
	NokRedirectURI       string
	TppRedirectPreferred bool
	InternalRequestID    string
}

// UpdateRequest carries exactly one processing step: PSU identification,
// credentials, method selection or confirmation. Combined identification plus
// credentials in one call is accepted for embedded flows.
type UpdateRequest struct {
	Psu                    PsuData
	Password               string
	AuthenticationMethodID string
	ScaAuthenticationData  string
}

func (r UpdateRequest) empty() bool {
	return r.Psu.IsEmpty() && r.Password == "" && r.AuthenticationMethodID == "" && r.ScaAuthenticationData == ""
}

// CreateAuthorisation starts a new authorisation for the given parent. The
// parent row is loaded through its adapter, the SCA approach is fixed from the
// ASPSP profile, and the external id is issued by the vault after the row is
// persisted. A vault issuance failure leaves the row in place and surfaces
// ErrTechnical: the resource is never presented as successfully created.
func (s *Service) CreateAuthorisation(ctx context.Context, kind AuthorisationType, parentExternalID string, req CreateRequest) (*Authorisation, error) {
	psvc, ok := s.parents[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown authorisation type %q", ErrValidation, kind)
	}
	parent, err := psvc.FindNotFinalised(ctx, parentExternalID)
	if err != nil {
		return nil, err
	}
	if !req.Psu.IsEmpty() && !parent.Entitled(req.Psu) {
		return nil, fmt.Errorf("%w: psu not entitled to authorise this object", ErrValidation)
	}
	if parent.MultilevelScaRequired && !s.profile.MultilevelScaSupported() {
		return nil, fmt.Errorf("%w: multilevel sca not supported", ErrValidation)
	}

	existing, err := s.store.FindByParent(ctx, kind, parent.ExternalID)
	if err != nil {
		return nil, err
	}
	expiredAny := false
	for _, prev := range existing {
		expired, err := s.checkAndExpire(ctx, prev)
		if err != nil {
			return nil, err
		}
		expiredAny = expiredAny || expired
		if !prev.ScaStatus.IsTerminal() && prev.Psu.Matches(req.Psu) {
			return nil, fmt.Errorf("%w: authorisation already in progress for this psu", ErrValidation)
		}
	}
	if expiredAny {
		// The sweep may have rejected the parent through the aggregator.
		parent, err = psvc.FindNotFinalised(ctx, parentExternalID)
		if err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	a := &Authorisation{
		ID:                ids.New(),
		ParentExternalID:  parent.ExternalID,
		ParentType:        kind,
		Psu:               req.Psu,
		ScaApproach:       s.profile.ChooseApproach(req.TppRedirectPreferred),
		ScaStatus:         StatusReceived,
		RedirectURI:       req.RedirectURI,
		NokRedirectURI:    req.NokRedirectURI,
		InternalRequestID: req.InternalRequestID,
		CreatedAt:         now,
		LastActionAt:      now,
		AuthExpiresAt:     now.Add(s.profile.AuthorisationTTL()),
	}
	if a.ScaApproach == ApproachRedirect || a.ScaApproach == ApproachOAuth {
		a.RedirectExpiresAt = now.Add(s.profile.RedirectTTL())
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("%w: persist authorisation: %v", ErrTechnical, err)
	}

	token, err := s.vault.Issue(ctx, a.ID)
	if err != nil {
		// The row already exists; the id is never returned unresolved.
		return nil, fmt.Errorf("%w: issue external id: %v", ErrTechnical, err)
	}
	a.ExternalID = token
	if err := s.store.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("%w: persist external id: %v", ErrTechnical, err)
	}
	return a, nil
}

// UpdatePsuData applies one processing step to an authorisation. Transitions
// are total: an event that does not apply to the current status returns the
// untouched authorisation together with ErrInvalidState.
func (s *Service) UpdatePsuData(ctx context.Context, kind AuthorisationType, parentExternalID, authorisationID string, req UpdateRequest) (*Authorisation, error) {
	if req.empty() {
		return nil, fmt.Errorf("%w: empty update", ErrValidation)
	}
	psvc, a, err := s.load(ctx, kind, parentExternalID, authorisationID)
	if err != nil {
		return a, err
	}
	if _, err := s.parentForUpdate(ctx, psvc, parentExternalID); err != nil {
		return a, err
	}
	expired, err := s.checkAndExpire(ctx, a)
	if err != nil {
		return a, err
	}
	if expired || a.ScaStatus.IsTerminal() {
		return a, fmt.Errorf("%w: authorisation is %s", ErrInvalidState, a.ScaStatus)
	}

	switch {
	case req.ScaAuthenticationData != "":
		return s.confirm(ctx, psvc, a, req.ScaAuthenticationData)
	case req.AuthenticationMethodID != "":
		return s.selectMethod(ctx, a, req.AuthenticationMethodID)
	case !req.Psu.IsEmpty():
		if a, err = s.identify(ctx, psvc, a, req.Psu); err != nil {
			return a, err
		}
		if req.Password == "" {
			return a, nil
		}
		return s.authenticate(ctx, psvc, a, req.Password)
	case req.Password != "":
		return s.authenticate(ctx, psvc, a, req.Password)
	}
	return a, fmt.Errorf("%w: no applicable processing step", ErrValidation)
}

// GetAuthorisation returns the authorisation after a lazy expiry check.
func (s *Service) GetAuthorisation(ctx context.Context, kind AuthorisationType, parentExternalID, authorisationID string) (*Authorisation, error) {
	_, a, err := s.load(ctx, kind, parentExternalID, authorisationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.checkAndExpire(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetScaStatus returns the current sca status after a lazy expiry check.
func (s *Service) GetScaStatus(ctx context.Context, kind AuthorisationType, parentExternalID, authorisationID string) (ScaStatus, error) {
	a, err := s.GetAuthorisation(ctx, kind, parentExternalID, authorisationID)
	if err != nil {
		return "", err
	}
	return a.ScaStatus, nil
}

// Exempt marks a non-terminal authorisation EXEMPTED on ASPSP decision,
// bypassing the challenge entirely (e.g. low-value payments).
func (s *Service) Exempt(ctx context.Context, kind AuthorisationType, parentExternalID, authorisationID string) (*Authorisation, error) {
	if !s.profile.ScaExemptionAllowed() {
		return nil, fmt.Errorf("%w: sca exemption not allowed by profile", ErrValidation)
	}
	psvc, a, err := s.load(ctx, kind, parentExternalID, authorisationID)
	if err != nil {
		return a, err
	}
	expired, err := s.checkAndExpire(ctx, a)
	if err != nil {
		return a, err
	}
	if expired || a.ScaStatus.IsTerminal() {
		return a, fmt.Errorf("%w: authorisation is %s", ErrInvalidState, a.ScaStatus)
	}
	return s.transition(ctx, psvc, a, StatusExempted, "exempt")
}

// load resolves the external authorisation id through the vault and verifies
// the record belongs to the requested parent. A token that resolves to a
// different parent or type fails closed with ErrNotFound.
func (s *Service) load(ctx context.Context, kind AuthorisationType, parentExternalID, authorisationID string) (ParentService, *Authorisation, error) {
	psvc, ok := s.parents[kind]
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown authorisation type %q", ErrValidation, kind)
	}
	internalID, err := s.vault.Resolve(ctx, authorisationID)
	if err != nil {
		return psvc, nil, ErrNotFound
	}
	a, err := s.store.Find(ctx, internalID)
	if err != nil {
		return psvc, nil, err
	}
	if a.ParentType != kind || a.ParentExternalID != parentExternalID {
		return psvc, nil, ErrNotFound
	}
	return psvc, a, nil
}

// parentForUpdate rejects processing steps against closed parents.
func (s *Service) parentForUpdate(ctx context.Context, psvc ParentService, parentExternalID string) (Parent, error) {
	return psvc.FindNotFinalised(ctx, parentExternalID)
}

func (s *Service) identify(ctx context.Context, psvc ParentService, a *Authorisation, psu PsuData) (*Authorisation, error) {
	switch a.ScaStatus {
	case StatusReceived:
	case StatusPsuIdentified:
		// Re-identification with the same PSU is an idempotent no-op.
		if a.Psu.Matches(psu) {
			return a, nil
		}
		return a, fmt.Errorf("%w: psu already identified", ErrInvalidState)
	default:
		return a, fmt.Errorf("%w: cannot identify in status %s", ErrInvalidState, a.ScaStatus)
	}
	parent, err := psvc.Find(ctx, a.ParentExternalID)
	if err != nil {
		return a, err
	}
	if !parent.Entitled(psu) {
		return a, fmt.Errorf("%w: psu not entitled to authorise this object", ErrValidation)
	}
	if !a.Psu.IsEmpty() && !a.Psu.Matches(psu) {
		return a, fmt.Errorf("%w: psu does not match authorisation", ErrValidation)
	}
	a.Psu = psu
	return s.transition(ctx, psvc, a, StatusPsuIdentified, "identify")
}

func (s *Service) authenticate(ctx context.Context, psvc ParentService, a *Authorisation, password string) (*Authorisation, error) {
	if a.ScaStatus != StatusPsuIdentified {
		return a, fmt.Errorf("%w: cannot authenticate in status %s", ErrInvalidState, a.ScaStatus)
	}
	if err := s.authn.VerifyCredentials(ctx, a.Psu, password); err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			if _, ferr := s.transition(ctx, psvc, a, StatusFailed, "authenticate"); ferr != nil {
				return a, ferr
			}
			return a, ErrAuthenticationFailed
		}
		return a, fmt.Errorf("%w: verify credentials: %v", ErrTechnical, err)
	}
	if _, err := s.transition(ctx, psvc, a, StatusPsuAuthenticated, "authenticate"); err != nil {
		return a, err
	}

	methods, err := s.authn.Methods(ctx, a.Psu)
	if err != nil {
		return a, fmt.Errorf("%w: list sca methods: %v", ErrTechnical, err)
	}
	switch {
	case len(methods) == 0 && s.profile.ScaExemptionAllowed():
		return s.transition(ctx, psvc, a, StatusExempted, "exempt")
	case len(methods) == 0:
		if _, err := s.transition(ctx, psvc, a, StatusFailed, "authenticate"); err != nil {
			return a, err
		}
		return a, ErrAuthenticationFailed
	case len(methods) == 1:
		a.ChosenScaMethod = &methods[0]
		a.AvailableScaMethods = methods
		return s.start(ctx, psvc, a)
	default:
		a.AvailableScaMethods = methods
		return s.transition(ctx, psvc, a, StatusScaMethodSelected, "authenticate")
	}
}

func (s *Service) selectMethod(ctx context.Context, a *Authorisation, methodID string) (*Authorisation, error) {
	if a.ScaStatus != StatusScaMethodSelected && a.ScaStatus != StatusPsuAuthenticated {
		return a, fmt.Errorf("%w: cannot select method in status %s", ErrInvalidState, a.ScaStatus)
	}
	var chosen *ScaMethod
	for i := range a.AvailableScaMethods {
		if a.AvailableScaMethods[i].ID == methodID {
			chosen = &a.AvailableScaMethods[i]
			break
		}
	}
	if chosen == nil {
		return a, fmt.Errorf("%w: unknown authentication method %q", ErrValidation, methodID)
	}
	a.ChosenScaMethod = chosen
	psvc := s.parents[a.ParentType]
	return s.start(ctx, psvc, a)
}

// start moves the authorisation to STARTED, escalating EMBEDDED to DECOUPLED
// when the chosen method requires it. The escalation is one-way: any other
// approach change is rejected.
func (s *Service) start(ctx context.Context, psvc ParentService, a *Authorisation) (*Authorisation, error) {
	if a.ChosenScaMethod != nil && a.ChosenScaMethod.Decoupled {
		switch a.ScaApproach {
		case ApproachEmbedded:
			a.ScaApproach = ApproachDecoupled
		case ApproachDecoupled:
		default:
			return a, fmt.Errorf("%w: method requires decoupled approach", ErrInvalidState)
		}
	}
	challenge, err := s.authn.StartChallenge(ctx, a)
	if err != nil {
		if _, ferr := s.transition(ctx, psvc, a, StatusFailed, "start"); ferr != nil {
			return a, ferr
		}
		return a, fmt.Errorf("%w: start challenge: %v", ErrTechnical, err)
	}
	a.Challenge = challenge
	return s.transition(ctx, psvc, a, StatusStarted, "start")
}

func (s *Service) confirm(ctx context.Context, psvc ParentService, a *Authorisation, otp string) (*Authorisation, error) {
	if a.ScaStatus != StatusStarted {
		return a, fmt.Errorf("%w: cannot confirm in status %s", ErrInvalidState, a.ScaStatus)
	}
	if err := s.authn.ConfirmChallenge(ctx, a, otp); err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			if _, ferr := s.transition(ctx, psvc, a, StatusFailed, "confirm"); ferr != nil {
				return a, ferr
			}
			return a, ErrAuthenticationFailed
		}
		return a, fmt.Errorf("%w: confirm challenge: %v", ErrTechnical, err)
	}
	return s.transition(ctx, psvc, a, StatusFinalised, "confirm")
}

// transition persists the status change and, when the new status is terminal,
// re-evaluates the parent under the same logical write.
func (s *Service) transition(ctx context.Context, psvc ParentService, a *Authorisation, to ScaStatus, event string) (*Authorisation, error) {
	from := a.ScaStatus
	a.ScaStatus = to
	a.LastActionAt = s.now().UTC()
	if err := s.store.Update(ctx, a); err != nil {
		a.ScaStatus = from
		if errors.Is(err, ErrConflict) {
			return a, err
		}
		return a, fmt.Errorf("%w: persist transition: %v", ErrTechnical, err)
	}
	obs.ScaTransition(string(from), event, string(to))
	if to.IsTerminal() && psvc != nil {
		if err := s.reevaluateParent(ctx, psvc, a.ParentExternalID); err != nil {
			// The terminal write and the parent decision commit together or
			// not at all: revert the status so a retry replays both.
			a.ScaStatus = from
			a.LastActionAt = s.now().UTC()
			if rerr := s.store.Update(ctx, a); rerr != nil {
				a.ScaStatus = to
				return a, err
			}
			obs.ScaTransition(string(to), "revert", string(from))
			return a, err
		}
	}
	return a, nil
}
