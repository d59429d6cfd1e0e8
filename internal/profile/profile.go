// Package profile is the read-only ASPSP configuration consulted by the SCA
// core when an authorisation is received. The core never mutates it.
package profile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"xs2a.org/internal/sca"
)

const (
	defaultRedirectTTL      = 10 * time.Minute
	defaultAuthorisationTTL = 24 * time.Hour
)

// Profile carries the bank's SCA policy.
type Profile struct {
	approaches            []sca.ScaApproach
	redirectTTL           time.Duration
	authorisationTTL      time.Duration
	multilevelEnabled     bool
	exemptionAllowed      bool
	implicitAuthorisation bool
}

var _ sca.AspspProfile = (*Profile)(nil)

// Option configures Profile values.
type Option func(*Profile)

// WithApproaches sets the approach precedence list, first entry preferred.
func WithApproaches(approaches ...sca.ScaApproach) Option {
	return func(p *Profile) {
		if len(approaches) > 0 {
			p.approaches = approaches
		}
	}
}

// WithRedirectTTL sets the TPP redirect link validity window.
func WithRedirectTTL(ttl time.Duration) Option {
	return func(p *Profile) {
		if ttl > 0 {
			p.redirectTTL = ttl
		}
	}
}

// WithAuthorisationTTL sets the overall authorisation validity window.
func WithAuthorisationTTL(ttl time.Duration) Option {
	return func(p *Profile) {
		if ttl > 0 {
			p.authorisationTTL = ttl
		}
	}
}

// WithMultilevelSca enables multi-PSU approval flows.
func WithMultilevelSca(enabled bool) Option {
	return func(p *Profile) { p.multilevelEnabled = enabled }
}

// WithScaExemption allows the ASPSP to exempt authorisations from SCA.
func WithScaExemption(allowed bool) Option {
	return func(p *Profile) { p.exemptionAllowed = allowed }
}

// WithImplicitAuthorisation starts an authorisation automatically when a
// parent object is created.
func WithImplicitAuthorisation(enabled bool) Option {
	return func(p *Profile) { p.implicitAuthorisation = enabled }
}

// New builds a profile with embedded-first defaults.
func New(opts ...Option) *Profile {
	p := &Profile{
		approaches:        []sca.ScaApproach{sca.ApproachEmbedded, sca.ApproachRedirect},
		redirectTTL:       defaultRedirectTTL,
		authorisationTTL:  defaultAuthorisationTTL,
		multilevelEnabled: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FromEnv loads the profile from XS2A_* environment variables, falling back
// to defaults for anything unset.
func FromEnv() (*Profile, error) {
	var opts []Option
	if raw := strings.TrimSpace(os.Getenv("XS2A_SCA_APPROACHES")); raw != "" {
		var approaches []sca.ScaApproach
		for _, part := range strings.Split(raw, ",") {
			switch a := sca.ScaApproach(strings.ToUpper(strings.TrimSpace(part))); a {
			case sca.ApproachEmbedded, sca.ApproachDecoupled, sca.ApproachRedirect, sca.ApproachOAuth:
				approaches = append(approaches, a)
			default:
				return nil, fmt.Errorf("profile: unknown sca approach %q", part)
			}
		}
		opts = append(opts, WithApproaches(approaches...))
	}
	if ttl, err := envDuration("XS2A_REDIRECT_TTL"); err != nil {
		return nil, err
	} else if ttl > 0 {
		opts = append(opts, WithRedirectTTL(ttl))
	}
	if ttl, err := envDuration("XS2A_AUTHORISATION_TTL"); err != nil {
		return nil, err
	} else if ttl > 0 {
		opts = append(opts, WithAuthorisationTTL(ttl))
	}
	if v, ok, err := envBool("XS2A_MULTILEVEL_SCA"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, WithMultilevelSca(v))
	}
	if v, ok, err := envBool("XS2A_SCA_EXEMPTION"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, WithScaExemption(v))
	}
	if v, ok, err := envBool("XS2A_IMPLICIT_AUTHORISATION"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, WithImplicitAuthorisation(v))
	}
	return New(opts...), nil
}

// ChooseApproach picks the approach for a new authorisation. A TPP redirect
// preference wins only when the profile supports a redirect approach.
func (p *Profile) ChooseApproach(tppRedirectPreferred bool) sca.ScaApproach {
	if tppRedirectPreferred {
		for _, a := range p.approaches {
			if a == sca.ApproachRedirect || a == sca.ApproachOAuth {
				return a
			}
		}
	}
	if len(p.approaches) > 0 {
		return p.approaches[0]
	}
	return sca.ApproachEmbedded
}

func (p *Profile) RedirectTTL() time.Duration      { return p.redirectTTL }
func (p *Profile) AuthorisationTTL() time.Duration { return p.authorisationTTL }
func (p *Profile) MultilevelScaSupported() bool    { return p.multilevelEnabled }
func (p *Profile) ScaExemptionAllowed() bool       { return p.exemptionAllowed }

// ImplicitAuthorisation reports whether parent creation starts an
// authorisation in the same call.
func (p *Profile) ImplicitAuthorisation() bool { return p.implicitAuthorisation }

func envDuration(name string) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("profile: parse %s: %w", name, err)
	}
	return d, nil
}

func envBool(name string) (value, set bool, err error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("profile: parse %s: %w", name, err)
	}
	return v, true, nil
}
