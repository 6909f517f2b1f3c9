package model

import "github.com/GoPolymarket/guardgate/internal/guardrail"

// CreateOfferRequest carries an offer whose guardrails were already compiled
// from the maker's text. The offer id inside Guardrails is assigned by the server.
type CreateOfferRequest struct {
	MakerID    string              `json:"maker_id" binding:"required"`
	Text       string              `json:"text,omitempty"`
	Spec       OfferSpec           `json:"spec" binding:"required"`
	Guardrails *guardrail.Document `json:"guardrails" binding:"required"`
}

// CreateOfferResponse echoes the stored offer plus the readable guardrails.
type CreateOfferResponse struct {
	Offer   *Offer `json:"offer"`
	Summary string `json:"guardrails_summary"`
}

// FillRequest is the taker's fill body. The evaluation time is stamped by the
// server; settlement shape defaults to a plain two-leg DvP.
type FillRequest struct {
	TakerID           string                   `json:"taker_id" binding:"required"`
	FillSize          uint64                   `json:"fill_size"`
	FillPrice         uint64                   `json:"fill_price"`
	FeedEvidence      []guardrail.FeedEvidence `json:"feed_evidence"`
	TransferLegCount  *uint32                  `json:"transfer_leg_count,omitempty"`
	HasExtraTransfers bool                     `json:"has_extra_transfers,omitempty"`
}

// FillResponse is the receipt summary plus the full outcome.
type FillResponse struct {
	Receipt ReceiptSummary `json:"receipt"`
	Outcome FillOutcome    `json:"outcome"`
	Digest  string         `json:"digest"`
}

type CancelOfferRequest struct {
	MakerID string `json:"maker_id" binding:"required"`
}
