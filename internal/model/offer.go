package model

import (
	"time"

	"github.com/GoPolymarket/guardgate/internal/guardrail"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OfferStatus string

const (
	OfferActive    OfferStatus = "active"
	OfferFilled    OfferStatus = "filled"
	OfferExpired   OfferStatus = "expired"
	OfferCancelled OfferStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s OfferStatus) IsTerminal() bool {
	return s != OfferActive
}

// OfferSpec is what the maker wants to trade.
type OfferSpec struct {
	Asset      string           `json:"asset" binding:"required"`
	Size       decimal.Decimal  `json:"size"`
	Side       Side             `json:"side" binding:"required,oneof=buy sell"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"` // max for buys, min for sells
	Currency   string           `json:"currency" binding:"required"`
}

// Offer is a maker's posted quote together with its compiled guardrails.
type Offer struct {
	ID           uuid.UUID           `json:"id"`
	Spec         OfferSpec           `json:"spec"`
	Guardrails   *guardrail.Document `json:"guardrails"`
	Status       OfferStatus         `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	ExpiresAt    time.Time           `json:"expires_at"`
	ClosedAt     *time.Time          `json:"closed_at,omitempty"` // set when leaving Active
	MakerID      string              `json:"maker_id"`
	OriginalText string              `json:"original_text,omitempty"`
}

// GuardrailID is the engine-side identifier of the offer.
func (o *Offer) GuardrailID() guardrail.OfferID {
	return guardrail.OfferIDFromUUID(o.ID)
}

// IsExpiredAt reports whether now has reached the offer's expiry.
func (o *Offer) IsExpiredAt(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// IsActiveAt is true only for an Active offer that has not yet expired.
func (o *Offer) IsActiveAt(now time.Time) bool {
	return o.Status == OfferActive && !o.IsExpiredAt(now)
}

func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	out := *o
	out.Guardrails = o.Guardrails.Clone()
	if o.Spec.LimitPrice != nil {
		v := *o.Spec.LimitPrice
		out.Spec.LimitPrice = &v
	}
	if o.ClosedAt != nil {
		v := *o.ClosedAt
		out.ClosedAt = &v
	}
	return &out
}
