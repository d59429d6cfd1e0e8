// Package basket is the signing-basket parent object: a bundle of consents
// and payments authorised in one combined SCA flow.
package basket

import (
	"context"
	"time"

	"xs2a.org/internal/sca"
)

// Status is the signing basket lifecycle status.
type Status string

const (
	StatusReceived            Status = "received"
	StatusPartiallyAuthorised Status = "partiallyAuthorised"
	StatusACTC                Status = "ACTC" // accepted technical validation
	StatusRJCT                Status = "RJCT" // rejected
	StatusCANC                Status = "CANC" // cancelled by TPP
)

// IsFinalised reports whether the authorisation flow for the basket is closed.
func (s Status) IsFinalised() bool {
	return s != StatusReceived && s != StatusPartiallyAuthorised
}

// Basket bundles references to consents and payments for combined approval.
// Item references are external ids; the basket never embeds its items.
type Basket struct {
	ID                     string        `json:"-"`
	ExternalID             string        `json:"basket_id"`
	InstanceID             string        `json:"-"`
	TppAuthorisationNumber string        `json:"-"`
	ConsentIDs             []string      `json:"consent_ids,omitempty"`
	PaymentIDs             []string      `json:"payment_ids,omitempty"`
	Psus                   []sca.PsuData `json:"-"`
	MultilevelScaRequired  bool          `json:"multilevel_sca_required"`
	Status                 Status        `json:"transaction_status"`
	CreatedAt              time.Time     `json:"-"`
	StatusChangedAt        time.Time     `json:"-"`
}

// Store persists baskets, keyed by internal id.
type Store interface {
	Create(ctx context.Context, b *Basket) error
	Find(ctx context.Context, id string) (*Basket, error)
	Update(ctx context.Context, b *Basket) error
}
