// Package guardrail holds the compiled constraint set attached to an offer and
// the evidence a taker submits with a fill. Types here are plain data: the
// engine reads them, nothing mutates them after construction.
package guardrail

import (
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrMalformed marks structural problems found before evaluation.
var ErrMalformed = errors.New("malformed guardrail input")

// OfferID is the 256-bit identifier linking a document to its offer.
type OfferID [32]byte

// OfferIDFromUUID places the uuid in the first 16 bytes, rest zero.
func OfferIDFromUUID(id uuid.UUID) OfferID {
	var out OfferID
	copy(out[:16], id[:])
	return out
}

func (id OfferID) String() string { return hex.EncodeToString(id[:]) }

func (id OfferID) IsZero() bool { return id == OfferID{} }

func (id OfferID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *OfferID) UnmarshalText(text []byte) error {
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("%w: offer id: %v", ErrMalformed, err)
	}
	if len(raw) != len(id) {
		return fmt.Errorf("%w: offer id must be %d bytes, got %d", ErrMalformed, len(id), len(raw))
	}
	copy(id[:], raw)
	return nil
}

// Document is the guardrail set compiled from a maker's offer text.
type Document struct {
	OfferID                OfferID         `json:"offer_id"`
	MaxDebit               uint64          `json:"max_debit"`
	MinCredit              *uint64         `json:"min_credit,omitempty"`
	ExpiryTime             uint64          `json:"expiry_time"`
	AllowedSources         []string        `json:"allowed_sources"`
	MaxStalenessSecs       uint64          `json:"max_staleness_secs"`
	QuorumCount            uint32          `json:"quorum_count"`
	QuorumTolerancePercent decimal.Decimal `json:"quorum_tolerance_percent"`
	AllowedTakers          []string        `json:"allowed_takers"`
	AllowedAssets          []string        `json:"allowed_assets,omitempty"`
	RequireAtomicDvP       bool            `json:"require_atomic_dvp"`
	ForbidSidePayments     bool            `json:"forbid_side_payments"`
	Nonce                  uint64          `json:"nonce"`
	MaxFillSize            uint64          `json:"max_fill_size"`
}

// NewDocument returns a document with the compiler's defaults.
func NewDocument(offerID OfferID) *Document {
	return &Document{
		OfferID:                offerID,
		MaxStalenessSecs:       60,
		QuorumCount:            1,
		QuorumTolerancePercent: decimal.NewFromInt(1),
		RequireAtomicDvP:       true,
		ForbidSidePayments:     true,
	}
}

// AllowsTaker reports whether taker may fill; an empty list allows anyone.
func (d *Document) AllowsTaker(taker string) bool {
	return len(d.AllowedTakers) == 0 || slices.Contains(d.AllowedTakers, taker)
}

// AllowsSource reports whether a feed source is accepted; an empty list allows any.
func (d *Document) AllowsSource(source string) bool {
	return len(d.AllowedSources) == 0 || slices.Contains(d.AllowedSources, source)
}

func (d *Document) Expiry() time.Time {
	return time.Unix(int64(d.ExpiryTime), 0).UTC()
}

// Clone returns a deep copy so snapshots never share slices with the original.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.AllowedSources = slices.Clone(d.AllowedSources)
	out.AllowedTakers = slices.Clone(d.AllowedTakers)
	out.AllowedAssets = slices.Clone(d.AllowedAssets)
	if d.MinCredit != nil {
		v := *d.MinCredit
		out.MinCredit = &v
	}
	return &out
}

// Validate checks the document is well formed. It does not judge fills.
func (d *Document) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: guardrails missing", ErrMalformed)
	}
	if d.OfferID.IsZero() {
		return fmt.Errorf("%w: offer id is zero", ErrMalformed)
	}
	if d.ExpiryTime == 0 {
		return fmt.Errorf("%w: expiry time is required", ErrMalformed)
	}
	if err := checkDecimal(d.QuorumTolerancePercent); err != nil {
		return fmt.Errorf("%w: quorum tolerance out of range: %v", ErrMalformed, err)
	}
	if d.QuorumTolerancePercent.IsNegative() {
		return fmt.Errorf("%w: quorum tolerance %s is negative", ErrMalformed, d.QuorumTolerancePercent)
	}
	if d.MinCredit != nil && *d.MinCredit > d.MaxDebit && d.MaxDebit != 0 {
		return fmt.Errorf("%w: min credit %d above max debit %d", ErrMalformed, *d.MinCredit, d.MaxDebit)
	}
	return nil
}

// Summary renders the guardrails for humans.
func (d *Document) Summary() string {
	parts := []string{fmt.Sprintf("Max debit: %d units", d.MaxDebit)}
	if d.MinCredit != nil {
		parts = append(parts, fmt.Sprintf("Min credit: %d units", *d.MinCredit))
	}
	parts = append(parts, "Expires: "+d.Expiry().Format(time.RFC3339))
	if len(d.AllowedSources) > 0 {
		parts = append(parts, "Allowed feeds: "+strings.Join(d.AllowedSources, ", "))
	}
	parts = append(parts, fmt.Sprintf("Feed freshness: <=%ds", d.MaxStalenessSecs))
	if d.QuorumCount > 1 {
		parts = append(parts, fmt.Sprintf("Quorum: %d sources within %s%%", d.QuorumCount, d.QuorumTolerancePercent))
	}
	if len(d.AllowedTakers) > 0 {
		parts = append(parts, "Allowed takers: "+strings.Join(d.AllowedTakers, ", "))
	}
	if d.RequireAtomicDvP {
		parts = append(parts, "Atomic DvP required")
	}
	if d.ForbidSidePayments {
		parts = append(parts, "No side payments")
	}
	parts = append(parts, fmt.Sprintf("Max fill size: %d units", d.MaxFillSize))
	return strings.Join(parts, " | ")
}
