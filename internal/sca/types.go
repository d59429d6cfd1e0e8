package sca

import "time"

// ScaStatus is the authorisation state machine status.
type ScaStatus string

const (
	StatusReceived          ScaStatus = "received"
	StatusPsuIdentified     ScaStatus = "psuIdentified"
	StatusPsuAuthenticated  ScaStatus = "psuAuthenticated"
	StatusScaMethodSelected ScaStatus = "scaMethodSelected"
	StatusStarted           ScaStatus = "started"
	StatusFinalised         ScaStatus = "finalised"
	StatusFailed            ScaStatus = "failed"
	StatusExempted          ScaStatus = "exempted"
	StatusExpired           ScaStatus = "expired"
)

// IsTerminal reports whether no further transition is possible.
func (s ScaStatus) IsTerminal() bool {
	switch s {
	case StatusFinalised, StatusFailed, StatusExempted, StatusExpired:
		return true
	}
	return false
}

// IsSuccessful reports whether the status counts towards parent approval.
func (s ScaStatus) IsSuccessful() bool {
	return s == StatusFinalised || s == StatusExempted
}

// ScaApproach is the authentication approach, fixed per authorisation.
type ScaApproach string

const (
	ApproachEmbedded  ScaApproach = "EMBEDDED"
	ApproachDecoupled ScaApproach = "DECOUPLED"
	ApproachRedirect  ScaApproach = "REDIRECT"
	ApproachOAuth     ScaApproach = "OAUTH"
)

// AuthorisationType discriminates the parent business object kind.
type AuthorisationType string

const (
	TypeConsent         AuthorisationType = "CONSENT"
	TypePisCreation     AuthorisationType = "PIS_CREATION"
	TypePisCancellation AuthorisationType = "PIS_CANCELLATION"
	TypeSigningBasket   AuthorisationType = "SIGNING_BASKET"
)

// PsuData identifies the bank customer approving a business object.
type PsuData struct {
	ID              string `json:"psu_id"`
	IDType          string `json:"psu_id_type,omitempty"`
	CorporateID     string `json:"psu_corporate_id,omitempty"`
	CorporateIDType string `json:"psu_corporate_id_type,omitempty"`
}

// IsEmpty reports whether no identification has been supplied yet.
func (p PsuData) IsEmpty() bool {
	return p.ID == "" && p.CorporateID == ""
}

// Matches compares the identifying fields of two PSU tuples.
func (p PsuData) Matches(other PsuData) bool {
	return p.ID == other.ID &&
		p.IDType == other.IDType &&
		p.CorporateID == other.CorporateID &&
		p.CorporateIDType == other.CorporateIDType
}

// ScaMethod is one authentication method the bank offers a PSU.
type ScaMethod struct {
	ID        string `json:"authentication_method_id"`
	Name      string `json:"name,omitempty"`
	Type      string `json:"authentication_type,omitempty"`
	Decoupled bool   `json:"decoupled,omitempty"`
}

// ChallengeData describes the challenge presented to the PSU once STARTED.
type ChallengeData struct {
	Data           []string `json:"data,omitempty"`
	AdditionalInfo string   `json:"additional_information,omitempty"`
	OtpMaxLength   int      `json:"otp_max_length,omitempty"`
	OtpFormat      string   `json:"otp_format,omitempty"`
}

// Authorisation is one PSU's in-flight or completed approval attempt,
// linked to exactly one parent business object.
type Authorisation struct {
	ID               string            `json:"-"`
	ExternalID       string            `json:"authorisation_id"`
	ParentExternalID string            `json:"-"`
	ParentType       AuthorisationType `json:"-"`

	Psu         PsuData     `json:"psu_data,omitempty"`
	ScaApproach ScaApproach `json:"sca_approach"`
	ScaStatus   ScaStatus   `json:"sca_status"`

	ChosenScaMethod     *ScaMethod     `json:"chosen_sca_method,omitempty"`
	AvailableScaMethods []ScaMethod    `json:"available_sca_methods,omitempty"`
	Challenge           *ChallengeData `json:"challenge_data,omitempty"`

	RedirectURI    string `json:"-"`
	NokRedirectURI string `json:"-"`

	InternalRequestID string `json:"-"`

	CreatedAt         time.Time `json:"-"`
	LastActionAt      time.Time `json:"-"`
	RedirectExpiresAt time.Time `json:"-"`
	AuthExpiresAt     time.Time `json:"-"`

	// Version guards concurrent writers; a stale update fails with ErrConflict.
	Version int64 `json:"-"`
}

// ParentStatus is the adapter-level view of a parent object's lifecycle.
type ParentStatus string

const (
	ParentPending             ParentStatus = "pending"
	ParentPartiallyAuthorised ParentStatus = "partiallyAuthorised"
	ParentApproved            ParentStatus = "approved"
	ParentRejected            ParentStatus = "rejected"
)

// Parent is the uniform view of a consent, payment or signing basket that the
// state machine and aggregator operate on.
type Parent struct {
	ExternalID            string
	InstanceID            string
	PsuData               []PsuData
	MultilevelScaRequired bool
	Status                ParentStatus
}

// Finalised reports whether the parent already reached a terminal status.
func (p Parent) Finalised() bool {
	return p.Status == ParentApproved || p.Status == ParentRejected
}

// Entitled reports whether the given PSU may authorise this parent. An empty
// PSU list means the parent accepts any PSU (single-auth flows where the PSU
// binds at identification time).
func (p Parent) Entitled(psu PsuData) bool {
	if len(p.PsuData) == 0 {
		return true
	}
	for _, candidate := range p.PsuData {
		if candidate.Matches(psu) {
			return true
		}
	}
	return false
}
