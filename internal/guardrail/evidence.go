package guardrail

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// FeedEvidence is one price attestation. Signature is opaque here; checking
// it belongs to the feed package.
type FeedEvidence struct {
	Source     string          `json:"source"`
	Asset      string          `json:"asset"`
	Price      decimal.Decimal `json:"price"`
	ObservedAt uint64          `json:"observed_at"`
	Signature  string          `json:"signature"`
}

// IsFresh treats future-dated attestations as zero age.
func (f FeedEvidence) IsFresh(maxStalenessSecs, now uint64) bool {
	return Age(f.ObservedAt, now) <= maxStalenessSecs
}

// Age is now minus observedAt, saturating at zero.
func Age(observedAt, now uint64) uint64 {
	if observedAt >= now {
		return 0
	}
	return now - observedAt
}

// Decimal inputs are kept to a range the engine can rescale cheaply.
const (
	MinDecimalExponent int32 = -18
	MaxDecimalExponent int32 = 18
	MaxDecimalDigits         = 38
)

// checkDecimal refuses values whose exponent or digit count would make
// arithmetic on them expensive.
func checkDecimal(d decimal.Decimal) error {
	if exp := d.Exponent(); exp < MinDecimalExponent || exp > MaxDecimalExponent {
		return fmt.Errorf("exponent %d outside [%d, %d]", exp, MinDecimalExponent, MaxDecimalExponent)
	}
	if n := d.NumDigits(); n > MaxDecimalDigits {
		return fmt.Errorf("%d digits exceeds %d", n, MaxDecimalDigits)
	}
	return nil
}

// FillEvidence is the input of one evaluation.
type FillEvidence struct {
	TakerID           string         `json:"taker_id"`
	FillSize          uint64         `json:"fill_size"`
	FillPrice         uint64         `json:"fill_price"`
	FeedEvidence      []FeedEvidence `json:"feed_evidence"`
	EvaluationTime    uint64         `json:"evaluation_time"`
	TransferLegCount  uint32         `json:"transfer_leg_count"`
	HasExtraTransfers bool           `json:"has_extra_transfers"`
}

func (f *FillEvidence) Clone() FillEvidence {
	out := *f
	out.FeedEvidence = slices.Clone(f.FeedEvidence)
	return out
}

// Validate rejects evidence that cannot be evaluated at all. Negative prices
// are refused here so the quorum spread never sees them.
func (f *FillEvidence) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: fill evidence missing", ErrMalformed)
	}
	if f.TakerID == "" {
		return fmt.Errorf("%w: taker id is required", ErrMalformed)
	}
	if f.EvaluationTime == 0 {
		return fmt.Errorf("%w: evaluation time is required", ErrMalformed)
	}
	for i, ev := range f.FeedEvidence {
		if ev.Source == "" {
			return fmt.Errorf("%w: feed evidence %d has no source", ErrMalformed, i)
		}
		if err := checkDecimal(ev.Price); err != nil {
			return fmt.Errorf("%w: feed evidence %d from %q has price out of range: %v", ErrMalformed, i, ev.Source, err)
		}
		if ev.Price.IsNegative() {
			return fmt.Errorf("%w: feed evidence %d from %q has negative price %s", ErrMalformed, i, ev.Source, ev.Price)
		}
	}
	return nil
}

// ValidateAssets checks every attestation prices an asset the document trades.
// An empty asset list on the document skips the check.
func (d *Document) ValidateAssets(f *FillEvidence) error {
	if len(d.AllowedAssets) == 0 {
		return nil
	}
	for i, ev := range f.FeedEvidence {
		if !slices.Contains(d.AllowedAssets, ev.Asset) {
			return fmt.Errorf("%w: feed evidence %d prices %q, expected one of %v", ErrMalformed, i, ev.Asset, d.AllowedAssets)
		}
	}
	return nil
}
