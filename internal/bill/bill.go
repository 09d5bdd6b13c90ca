// Package bill owns the bill aggregate, its payment lifecycle and the
// settlement service that ties persistence, the transaction builder and the
// ledger together.
package bill

import (
	"fmt"
	"time"

	"github.com/nack098/adasplit/internal/cardano"
)

// Status is the bill's payment lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusPartial  Status = "partial"
	StatusComplete Status = "complete"
	StatusSettled  Status = "settled"
	StatusExpired  Status = "expired"
)

// PaymentStatus is one participant's payment confirmation state.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 500
	minParticipants   = 2
	maxParticipants   = 50
	// minShareLovelace is the smallest per-participant share worth putting
	// on chain (0.01 ADA).
	minShareLovelace = 10_000
)

// Participant records one payer's contribution to a bill. Entries are only
// appended, and the reconciler is the only writer of PaymentStatus after
// creation.
type Participant struct {
	Address       string        `json:"address"`
	AmountPaid    float64       `json:"amountPaid"`
	PaymentTxHash string        `json:"paymentTxHash"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	PaidAt        time.Time     `json:"paidAt"`
}

// Bill is the aggregate root. Status is always derived from the participant
// list, never set independently, except for the time-driven expired state
// and the settled state confirmed by the reconciler.
type Bill struct {
	ID                   string        `json:"id"`
	CreatorAddress       string        `json:"creatorAddress"`
	EscrowAddress        string        `json:"escrowAddress"`
	Title                string        `json:"title"`
	Description          string        `json:"description,omitempty"`
	TotalAmount          float64       `json:"totalAmount"`
	ParticipantCount     int           `json:"participantCount"`
	AmountPerParticipant float64       `json:"amountPerParticipant"`
	Currency             string        `json:"currency"`
	Status               Status        `json:"status"`
	Participants         []Participant `json:"participants"`
	SettlementTxHash     string        `json:"settlementTxHash,omitempty"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// DeriveStatus computes the status implied by the participant list. Terminal
// states (settled, expired) are sticky and never recomputed from the list.
func DeriveStatus(current Status, participants []Participant, participantCount int) Status {
	if current == StatusSettled || current == StatusExpired {
		return current
	}
	switch {
	case len(participants) == 0:
		return StatusPending
	case len(participants) < participantCount:
		return StatusPartial
	default:
		return StatusComplete
	}
}

// HasParticipant reports whether the address already paid into the bill.
func (b *Bill) HasParticipant(address string) bool {
	for _, p := range b.Participants {
		if p.Address == address {
			return true
		}
	}
	return false
}

// PaidCount returns how many shares have been recorded.
func (b *Bill) PaidCount() int {
	return len(b.Participants)
}

// TotalPaid sums the recorded contributions.
func (b *Bill) TotalPaid() float64 {
	var sum float64
	for _, p := range b.Participants {
		sum += p.AmountPaid
	}
	return sum
}

// UnconfirmedParticipants returns the participants whose payment has not been
// confirmed on chain yet.
func (b *Bill) UnconfirmedParticipants() []Participant {
	var out []Participant
	for _, p := range b.Participants {
		if p.PaymentStatus != PaymentPaid {
			out = append(out, p)
		}
	}
	return out
}

// Progress summarizes how far along the bill is.
type Progress struct {
	Paid       int     `json:"paid"`
	Total      int     `json:"total"`
	Percentage int     `json:"percentage"`
	IsComplete bool    `json:"isComplete"`
	TotalPaid  float64 `json:"totalPaid"`
}

// Progress computes the bill's payment progress.
func (b *Bill) Progress() Progress {
	paid := len(b.Participants)
	pct := 0
	if b.ParticipantCount > 0 {
		pct = int(float64(paid)/float64(b.ParticipantCount)*100 + 0.5)
	}
	return Progress{
		Paid:       paid,
		Total:      b.ParticipantCount,
		Percentage: pct,
		IsComplete: paid >= b.ParticipantCount,
		TotalPaid:  b.TotalPaid(),
	}
}

// CreateRequest carries the fields a creator supplies for a new bill.
type CreateRequest struct {
	CreatorAddress   string  `json:"creatorAddress"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	TotalAmount      float64 `json:"totalAmount"`
	ParticipantCount int     `json:"participantCount"`
}

// Validate checks request shape before any I/O happens.
func (r CreateRequest) Validate() error {
	if r.CreatorAddress == "" {
		return fmt.Errorf("%w: creator address is required", ErrValidation)
	}
	if r.Title == "" || len(r.Title) > maxTitleLen {
		return fmt.Errorf("%w: title must be 1-%d characters", ErrValidation, maxTitleLen)
	}
	if len(r.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description must be at most %d characters", ErrValidation, maxDescriptionLen)
	}
	if r.TotalAmount <= 0 {
		return fmt.Errorf("%w: total amount must be positive", ErrValidation)
	}
	if r.ParticipantCount < minParticipants || r.ParticipantCount > maxParticipants {
		return fmt.Errorf("%w: participant count must be %d-%d", ErrValidation, minParticipants, maxParticipants)
	}
	perShare := cardano.PerParticipantLovelace(cardano.ToLovelace(r.TotalAmount), r.ParticipantCount)
	if perShare < minShareLovelace {
		return fmt.Errorf("%w: amount per participant must be at least %v ADA", ErrValidation, cardano.FromLovelace(minShareLovelace))
	}
	return nil
}
