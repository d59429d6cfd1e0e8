// Package payment is the payment-initiation parent object with its two
// adapters into the SCA core: one for initiation, one for cancellation.
package payment

import (
	"context"
	"time"

	"xs2a.org/internal/sca"
)

// TransactionStatus follows the ISO 20022 payment status codes the gateway
// reports to TPPs.
type TransactionStatus string

const (
	StatusRCVD TransactionStatus = "RCVD" // received
	StatusPATC TransactionStatus = "PATC" // partially accepted, more authorisations pending
	StatusACCP TransactionStatus = "ACCP" // accepted customer profile
	StatusACTC TransactionStatus = "ACTC" // accepted technical validation
	StatusRJCT TransactionStatus = "RJCT" // rejected
	StatusCANC TransactionStatus = "CANC" // cancelled
)

// IsFinalised reports whether the initiation authorisation flow is closed.
func (s TransactionStatus) IsFinalised() bool {
	return s != StatusRCVD && s != StatusPATC
}

// Cancellable reports whether a cancellation flow may still run.
func (s TransactionStatus) Cancellable() bool {
	return s != StatusRJCT && s != StatusCANC
}

// Payment is a single payment initiation. Amounts are minor units, no floats.
type Payment struct {
	ID                     string            `json:"-"`
	ExternalID             string            `json:"payment_id"`
	InstanceID             string            `json:"-"`
	TppAuthorisationNumber string            `json:"-"`
	PaymentService         string            `json:"payment_service"`
	PaymentProduct         string            `json:"payment_product"`
	DebtorAccount          string            `json:"debtor_account"`
	CreditorAccount        string            `json:"creditor_account"`
	Currency               string            `json:"currency"`
	Amount                 int64             `json:"amount"`
	Psus                   []sca.PsuData     `json:"-"`
	MultilevelScaRequired  bool              `json:"multilevel_sca_required"`
	Status                 TransactionStatus `json:"transaction_status"`
	CreatedAt              time.Time         `json:"-"`
	StatusChangedAt        time.Time         `json:"-"`
}

// Store persists payments, keyed by internal id.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	Find(ctx context.Context, id string) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
}
