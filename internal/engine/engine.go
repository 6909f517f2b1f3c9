// Package engine decides whether a fill satisfies its offer's guardrails.
//
// Evaluate is a pure function over plain data. It reads no clock (the
// evaluation time travels inside the evidence), never logs and keeps no state,
// so the same bytes give the same verdict in the server and in the proof
// sandbox.
package engine

import (
	"github.com/GoPolymarket/guardgate/internal/guardrail"
	"github.com/GoPolymarket/guardgate/internal/rejection"
	"github.com/shopspring/decimal"
)

// SpreadPrecision is the number of decimal places kept in the spread percentage.
const SpreadPrecision int32 = 8

// DvPLegCount is the number of legs in an atomic delivery-vs-payment settlement.
const DvPLegCount uint32 = 2

var hundred = decimal.NewFromInt(100)

// Evaluate runs the checks in a fixed order and returns the first failure,
// or nil when the fill is acceptable. Every bound is inclusive.
func Evaluate(doc *guardrail.Document, fill *guardrail.FillEvidence) rejection.Reason {
	// 1. Expiry
	if fill.EvaluationTime > doc.ExpiryTime {
		return rejection.OfferExpired{ExpiredAt: doc.ExpiryTime, AttemptedAt: fill.EvaluationTime}
	}

	// 2. Taker allowlist
	if !doc.AllowsTaker(fill.TakerID) {
		return rejection.UnauthorizedTaker{Taker: fill.TakerID, AllowedTakers: doc.AllowedTakers}
	}

	// 3. Size
	if fill.FillSize > doc.MaxFillSize {
		return rejection.SizeExceedsMax{OfferedSize: fill.FillSize, MaxSize: doc.MaxFillSize}
	}

	// 4. Debit
	if fill.FillPrice > doc.MaxDebit {
		return rejection.PriceExceedsLimit{OfferedPrice: fill.FillPrice, LimitPrice: doc.MaxDebit}
	}

	// 5. Feed evidence
	if reason := checkFeeds(doc, fill); reason != nil {
		return reason
	}

	// 6. Settlement shape
	if doc.RequireAtomicDvP && fill.TransferLegCount != DvPLegCount {
		return rejection.InvalidTransferPattern{ExpectedLegs: DvPLegCount, ActualLegs: fill.TransferLegCount}
	}

	// 7. Side payments
	if doc.ForbidSidePayments && fill.HasExtraTransfers {
		return rejection.SidePaymentDetected{TransferLegCount: fill.TransferLegCount}
	}

	return nil
}

func checkFeeds(doc *guardrail.Document, fill *guardrail.FillEvidence) rejection.Reason {
	feeds := fill.FeedEvidence
	if uint64(len(feeds)) < uint64(doc.QuorumCount) {
		return rejection.QuorumNotMet{
			SourcesProvided:  len(feeds),
			QuorumRequired:   doc.QuorumCount,
			TolerancePercent: doc.QuorumTolerancePercent,
		}
	}

	var minPrice, maxPrice decimal.Decimal
	for i, ev := range feeds {
		if !doc.AllowsSource(ev.Source) {
			return rejection.UnauthorizedSource{Source: ev.Source, AllowedSources: doc.AllowedSources}
		}
		if !ev.IsFresh(doc.MaxStalenessSecs, fill.EvaluationTime) {
			return rejection.StaleFeed{
				Source:           ev.Source,
				ObservedAt:       ev.ObservedAt,
				EvaluatedAt:      fill.EvaluationTime,
				MaxStalenessSecs: doc.MaxStalenessSecs,
			}
		}
		if i == 0 || ev.Price.LessThan(minPrice) {
			minPrice = ev.Price
		}
		if i == 0 || ev.Price.GreaterThan(maxPrice) {
			maxPrice = ev.Price
		}
	}

	if len(feeds) < 2 || !minPrice.IsPositive() {
		return nil
	}
	// Exact, without division: (max-min)*100 > tolerance*min.
	if maxPrice.Sub(minPrice).Mul(hundred).GreaterThan(doc.QuorumTolerancePercent.Mul(minPrice)) {
		spread := SpreadPercent(minPrice, maxPrice)
		return rejection.QuorumNotMet{
			SourcesProvided:  len(feeds),
			QuorumRequired:   doc.QuorumCount,
			SpreadPercent:    &spread,
			TolerancePercent: doc.QuorumTolerancePercent,
		}
	}
	return nil
}

// SpreadPercent is (max-min)/min*100 rounded to SpreadPrecision places. It is
// the diagnostic carried by QuorumNotMet; the tolerance check itself is exact.
// Callers must ensure min is positive.
func SpreadPercent(minPrice, maxPrice decimal.Decimal) decimal.Decimal {
	return maxPrice.Sub(minPrice).Mul(hundred).DivRound(minPrice, SpreadPrecision)
}
