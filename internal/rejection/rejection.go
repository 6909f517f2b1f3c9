// Package rejection defines the closed set of business reasons a fill can be
// refused for. Every variant keeps the raw diagnostic fields; text is only
// rendered on demand by Message.
package rejection

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Code is the stable machine code of a rejection.
type Code string

const (
	CodeOfferExpired           Code = "OFFER_EXPIRED"
	CodeAlreadyFilled          Code = "ALREADY_FILLED"
	CodeOfferCancelled         Code = "OFFER_CANCELLED"
	CodeStaleFeed              Code = "STALE_FEED"
	CodeUnauthorizedSource     Code = "UNAUTHORIZED_SOURCE"
	CodeUnauthorizedTaker      Code = "UNAUTHORIZED_TAKER"
	CodePriceExceedsLimit      Code = "PRICE_EXCEEDS_LIMIT"
	CodeSizeExceedsMax         Code = "SIZE_EXCEEDS_MAX"
	CodeQuorumNotMet           Code = "QUORUM_NOT_MET"
	CodeSidePaymentDetected    Code = "SIDE_PAYMENT_DETECTED"
	CodeInvalidTransferPattern Code = "INVALID_TRANSFER_PATTERN"
)

// Reason is implemented only by the variants in this package.
type Reason interface {
	error
	Code() Code
	Message() string
	isReason()
}

// Codes returns every code in declaration order.
func Codes() []Code {
	return []Code{
		CodeOfferExpired,
		CodeAlreadyFilled,
		CodeOfferCancelled,
		CodeStaleFeed,
		CodeUnauthorizedSource,
		CodeUnauthorizedTaker,
		CodePriceExceedsLimit,
		CodeSizeExceedsMax,
		CodeQuorumNotMet,
		CodeSidePaymentDetected,
		CodeInvalidTransferPattern,
	}
}

// OfferExpired: the fill was evaluated after the guardrail expiry.
type OfferExpired struct {
	ExpiredAt   uint64 `json:"expired_at"`
	AttemptedAt uint64 `json:"attempted_at"`
}

func (OfferExpired) isReason() {}
func (OfferExpired) Code() Code { return CodeOfferExpired }
func (r OfferExpired) Error() string { return string(r.Code()) + ": " + r.Message() }
func (r OfferExpired) Message() string {
	return fmt.Sprintf("offer expired at %d (attempted at %d)", r.ExpiredAt, r.AttemptedAt)
}

// AlreadyFilled: the offer reached Filled before this attempt.
type AlreadyFilled struct {
	FilledAt uint64 `json:"filled_at"`
}

func (AlreadyFilled) isReason() {}
func (AlreadyFilled) Code() Code { return CodeAlreadyFilled }
func (r AlreadyFilled) Error() string { return string(r.Code()) + ": " + r.Message() }
func (r AlreadyFilled) Message() string {
	return fmt.Sprintf("offer was already filled at %d", r.FilledAt)
}

// OfferCancelled: the maker withdrew the offer.
type OfferCancelled struct {
	CancelledAt uint64 `json:"cancelled_at"`
}

func (OfferCancelled) isReason() {}
func (OfferCancelled) Code() Code { return CodeOfferCancelled }
func (r OfferCancelled) Error() string { return string(r.Code()) + ": " + r.Message() }
func (r OfferCancelled) Message() string {
	return fmt.Sprintf("offer was cancelled at %d", r.CancelledAt)
}

// StaleFeed: an attestation is older than the allowed staleness.
type StaleFeed struct {
	Source           string `json:"source"`
	ObservedAt       uint64 `json:"observed_at"`
	EvaluatedAt      uint64 `json:"evaluated_at"`
	MaxStalenessSecs uint64 `json:"max_staleness_secs"`
}

func (StaleFeed) isReason() {}
func (StaleFeed) Code() Code { return CodeStaleFeed }
func (r StaleFeed) Error() string { return string(r.Code()) + ": " + r.Message() }

// Age saturates at zero for future-dated attestations.
func (r StaleFeed) Age() uint64 {
	if r.ObservedAt > r.EvaluatedAt {
		return 0
	}
	return r.EvaluatedAt - r.ObservedAt
}

func (r StaleFeed) Message() string {
	return fmt.Sprintf("feed data from %q is stale: %ds old, max allowed is %ds",
		r.Source, r.Age(), r.MaxStalenessSecs)
}

// UnauthorizedSource: an attestation came from a source outside the allowlist.
type UnauthorizedSource struct {
	Source         string   `json:"source"`
	AllowedSources []string `json:"allowed_sources"`
}

func (UnauthorizedSource) isReason() {}
func (UnauthorizedSource) Code() Code { return CodeUnauthorizedSource }
func (r UnauthorizedSource) Error() string { return string(r.Code()) + ": " + r.Message() }
func (r UnauthorizedSource) Message() string {
	return fmt.Sprintf("source %q not in allowlist [%s]", r.Source, strings.Join(r.AllowedSources, ", "))
}

// UnauthorizedTaker: the taker is outside the allowlist.
type UnauthorizedTaker struct {
	Taker         string   `json:"taker"`
	AllowedTakers []string `json:"allowed_takers"`
}

func (UnauthorizedTaker) isReason() {}
func (UnauthorizedTaker) Code() Code { return CodeUnauthorizedTaker }
func (r UnauthorizedTaker) Error() string { return string(r.Code()) + ": " + r.Message() }
func (r UnauthorizedTaker) Message() string {
	return fmt.Sprintf("taker %q not in allowlist [%s]", r.Taker, strings.Join(r.AllowedTakers, ", "))
}

// PriceExceedsLimit: the fill price is above the max debit.
type PriceExceedsLimit struct {
	OfferedPrice uint64 `json:"offered_price"`
	LimitPrice   uint64 `json:"limit_price"`
}

func (PriceExceedsLimit) isReason() {}
func (PriceExceedsLimit) Code() Code { return CodePriceExceedsLimit }
func (r PriceExceedsLimit) Error() string { return string(r.Code()) + ": " + r.Message() }
func (r PriceExceedsLimit) Message() string {
	return fmt.Sprintf("offered price %d exceeds limit %d", r.OfferedPrice, r.LimitPrice)
}

// SizeExceedsMax: the fill size is above the max fill size.
type SizeExceedsMax struct {
	OfferedSize uint64 `json:"offered_size"`
	MaxSize     uint64 `json:"max_size"`
}

func (SizeExceedsMax) isReason() {}
func (SizeExceedsMax) Code() Code { return CodeSizeExceedsMax }
func (r SizeExceedsMax) Error() string { return string(r.Code()) + ": " + r.Message() }
func (r SizeExceedsMax) Message() string {
	return fmt.Sprintf("offered size %d exceeds max %d", r.OfferedSize, r.MaxSize)
}

// QuorumNotMet: too few attestations, or too much disagreement between them.
// SpreadPercent is nil when the count check failed.
type QuorumNotMet struct {
	SourcesProvided  int              `json:"sources_provided"`
	QuorumRequired   uint32           `json:"quorum_required"`
	SpreadPercent    *decimal.Decimal `json:"spread_percent,omitempty"`
	TolerancePercent decimal.Decimal  `json:"tolerance_percent"`
}

func (QuorumNotMet) isReason() {}
func (QuorumNotMet) Code() Code { return CodeQuorumNotMet }
func (r QuorumNotMet) Error() string { return string(r.Code()) + ": " + r.Message() }
func (r QuorumNotMet) Message() string {
	if r.SpreadPercent != nil {
		return fmt.Sprintf("price spread %s%% exceeds tolerance %s%%",
			r.SpreadPercent.String(), r.TolerancePercent.String())
	}
	return fmt.Sprintf("only %d sources provided, %d required for quorum", r.SourcesProvided, r.QuorumRequired)
}

// SidePaymentDetected: the settlement carries transfers beyond the two legs.
type SidePaymentDetected struct {
	TransferLegCount uint32 `json:"transfer_leg_count"`
}

func (SidePaymentDetected) isReason() {}
func (SidePaymentDetected) Code() Code { return CodeSidePaymentDetected }
func (r SidePaymentDetected) Error() string { return string(r.Code()) + ": " + r.Message() }
func (r SidePaymentDetected) Message() string {
	return fmt.Sprintf("side-payment detected: %d transfer legs, extra transfers not allowed", r.TransferLegCount)
}

// InvalidTransferPattern: atomic DvP requires exactly two legs.
type InvalidTransferPattern struct {
	ExpectedLegs uint32 `json:"expected_legs"`
	ActualLegs   uint32 `json:"actual_legs"`
}

func (InvalidTransferPattern) isReason() {}
func (InvalidTransferPattern) Code() Code { return CodeInvalidTransferPattern }
func (r InvalidTransferPattern) Error() string { return string(r.Code()) + ": " + r.Message() }
func (r InvalidTransferPattern) Message() string {
	return fmt.Sprintf("invalid transfer pattern: expected %d legs (atomic DvP), got %d", r.ExpectedLegs, r.ActualLegs)
}
