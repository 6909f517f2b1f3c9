package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GoPolymarket/guardgate/internal/guardrail"
	"github.com/GoPolymarket/guardgate/internal/rejection"
	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// SettlementIntent is handed to the settlement pipeline after an accepted fill.
// The maker pays the fill price and receives the fill size; the taker mirrors it.
type SettlementIntent struct {
	MakerDebit  uint64 `json:"maker_debit"`
	MakerCredit uint64 `json:"maker_credit"`
	TakerDebit  uint64 `json:"taker_debit"`
	TakerCredit uint64 `json:"taker_credit"`
	Asset       string `json:"asset"`
	Currency    string `json:"currency"`
}

func NewSettlementIntent(spec OfferSpec, fill *guardrail.FillEvidence) SettlementIntent {
	return SettlementIntent{
		MakerDebit:  fill.FillPrice,
		MakerCredit: fill.FillSize,
		TakerDebit:  fill.FillSize,
		TakerCredit: fill.FillPrice,
		Asset:       spec.Asset,
		Currency:    spec.Currency,
	}
}

// FillAttempt is one taker's try at filling an offer.
type FillAttempt struct {
	ID          uuid.UUID              `json:"id"`
	OfferID     uuid.UUID              `json:"offer_id"`
	Evidence    guardrail.FillEvidence `json:"evidence"`
	AttemptedAt time.Time              `json:"attempted_at"`
}

type OutcomeStatus string

const (
	OutcomeAccepted OutcomeStatus = "accepted"
	OutcomeRejected OutcomeStatus = "rejected"
)

// FillOutcome is either accepted with a settlement or rejected with a reason.
type FillOutcome struct {
	Status     OutcomeStatus
	Settlement *SettlementIntent
	Reason     rejection.Reason
}

func Accepted(s SettlementIntent) FillOutcome {
	return FillOutcome{Status: OutcomeAccepted, Settlement: &s}
}

func Rejected(reason rejection.Reason) FillOutcome {
	return FillOutcome{Status: OutcomeRejected, Reason: reason}
}

func (o FillOutcome) IsAccepted() bool { return o.Status == OutcomeAccepted }

type fillOutcomeJSON struct {
	Status     OutcomeStatus       `json:"status"`
	Settlement *SettlementIntent   `json:"settlement,omitempty"`
	Reason     *rejection.Envelope `json:"reason,omitempty"`
}

func (o FillOutcome) MarshalJSON() ([]byte, error) {
	out := fillOutcomeJSON{Status: o.Status, Settlement: o.Settlement}
	if o.Reason != nil {
		out.Reason = &rejection.Envelope{Reason: o.Reason}
	}
	return json.Marshal(out)
}

func (o *FillOutcome) UnmarshalJSON(data []byte) error {
	var in fillOutcomeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	o.Status = in.Status
	o.Settlement = in.Settlement
	o.Reason = nil
	if in.Reason != nil {
		o.Reason = in.Reason.Reason
	}
	switch {
	case o.Status == OutcomeAccepted && o.Settlement == nil:
		return fmt.Errorf("accepted outcome without settlement")
	case o.Status == OutcomeRejected && o.Reason == nil:
		return fmt.Errorf("rejected outcome without reason")
	case o.Status != OutcomeAccepted && o.Status != OutcomeRejected:
		return fmt.Errorf("unknown outcome status %q", o.Status)
	}
	return nil
}

// FillReceipt is the immutable audit record of one fill attempt.
type FillReceipt struct {
	ReceiptID   uuid.UUID           `json:"receipt_id"`
	Offer       Offer               `json:"offer"`
	Guardrails  *guardrail.Document `json:"guardrails"`
	Fill        FillAttempt         `json:"fill"`
	Outcome     FillOutcome         `json:"outcome"`
	GeneratedAt time.Time           `json:"generated_at"`
	Digest      string              `json:"digest,omitempty"`
}

// RecordReceipt captures the inputs as they are. It never evaluates anything;
// the outcome must already be decided. For an accepted fill the offer passed in
// is the one after the Filled transition.
func RecordReceipt(offer *Offer, doc *guardrail.Document, attempt FillAttempt, outcome FillOutcome, now time.Time) (*FillReceipt, error) {
	if offer == nil || doc == nil {
		return nil, fmt.Errorf("receipt requires an offer and its guardrails")
	}
	attempt.Evidence = attempt.Evidence.Clone()
	r := &FillReceipt{
		ReceiptID:   uuid.New(),
		Offer:       *offer.Clone(),
		Guardrails:  doc.Clone(),
		Fill:        attempt,
		Outcome:     outcome,
		GeneratedAt: now.UTC(),
	}
	digest, err := r.ComputeDigest()
	if err != nil {
		return nil, err
	}
	r.Digest = digest
	return r, nil
}

// ComputeDigest hashes the receipt's canonical JSON (RFC 8785), excluding the
// digest field itself.
func (r *FillReceipt) ComputeDigest() (string, error) {
	body := *r
	body.Digest = ""
	raw, err := json.Marshal(&body)
	if err != nil {
		return "", fmt.Errorf("marshal receipt: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize receipt: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyDigest reports whether the stored digest still matches the content.
func (r *FillReceipt) VerifyDigest() bool {
	digest, err := r.ComputeDigest()
	return err == nil && digest == r.Digest
}

func (r *FillReceipt) IsAccepted() bool { return r.Outcome.IsAccepted() }

func (r *FillReceipt) Clone() *FillReceipt {
	out := *r
	out.Offer = *r.Offer.Clone()
	out.Guardrails = r.Guardrails.Clone()
	out.Fill.Evidence = r.Fill.Evidence.Clone()
	if r.Outcome.Settlement != nil {
		s := *r.Outcome.Settlement
		out.Outcome.Settlement = &s
	}
	return &out
}

// ReceiptSummary is the list projection of a receipt.
type ReceiptSummary struct {
	ReceiptID  uuid.UUID      `json:"receipt_id"`
	OfferID    uuid.UUID      `json:"offer_id"`
	Status     string         `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	ReasonCode rejection.Code `json:"reason_code,omitempty"`
	Taker      string         `json:"taker"`
	Size       uint64         `json:"size"`
	Price      uint64         `json:"price"`
	Timestamp  time.Time      `json:"timestamp"`
}

func (r *FillReceipt) Summary() ReceiptSummary {
	s := ReceiptSummary{
		ReceiptID: r.ReceiptID,
		OfferID:   r.Offer.ID,
		Status:    "ACCEPTED",
		Taker:     r.Fill.Evidence.TakerID,
		Size:      r.Fill.Evidence.FillSize,
		Price:     r.Fill.Evidence.FillPrice,
		Timestamp: r.GeneratedAt,
	}
	if reason := r.Outcome.Reason; reason != nil {
		s.Status = "REJECTED"
		s.Reason = reason.Message()
		s.ReasonCode = reason.Code()
	}
	return s
}
