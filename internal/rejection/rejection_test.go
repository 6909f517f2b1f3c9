package rejection

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allVariants() []Reason {
	spread := decimal.RequireFromString("2.5")
	return []Reason{
		OfferExpired{ExpiredAt: 100, AttemptedAt: 101},
		AlreadyFilled{FilledAt: 50},
		OfferCancelled{CancelledAt: 40},
		StaleFeed{Source: "FeedA", ObservedAt: 10, EvaluatedAt: 400, MaxStalenessSecs: 300},
		UnauthorizedSource{Source: "FeedMallory", AllowedSources: []string{"FeedA", "FeedB"}},
		UnauthorizedTaker{Taker: "eve", AllowedTakers: []string{"bob"}},
		PriceExceedsLimit{OfferedPrice: 11, LimitPrice: 10},
		SizeExceedsMax{OfferedSize: 6, MaxSize: 5},
		QuorumNotMet{SourcesProvided: 2, QuorumRequired: 2, SpreadPercent: &spread, TolerancePercent: decimal.NewFromInt(1)},
		SidePaymentDetected{TransferLegCount: 3},
		InvalidTransferPattern{ExpectedLegs: 2, ActualLegs: 3},
	}
}

func TestEveryCodeHasAVariantAndDecoder(t *testing.T) {
	seen := map[Code]bool{}
	for _, r := range allVariants() {
		seen[r.Code()] = true
	}
	for _, code := range Codes() {
		assert.True(t, seen[code], "no variant for %s", code)
		_, ok := decoders[code]
		assert.True(t, ok, "no decoder for %s", code)
	}
	assert.Len(t, decoders, len(Codes()))
}

func TestStaleFeedAgeSaturates(t *testing.T) {
	r := StaleFeed{Source: "FeedA", ObservedAt: 500, EvaluatedAt: 400, MaxStalenessSecs: 300}
	assert.Equal(t, uint64(0), r.Age())
	assert.Contains(t, r.Message(), "0s old")
}

func TestQuorumMessageDependsOnSpread(t *testing.T) {
	count := QuorumNotMet{SourcesProvided: 1, QuorumRequired: 2, TolerancePercent: decimal.NewFromInt(1)}
	assert.Equal(t, "only 1 sources provided, 2 required for quorum", count.Message())

	spread := decimal.RequireFromString("3.25")
	wide := QuorumNotMet{SourcesProvided: 2, QuorumRequired: 2, SpreadPercent: &spread, TolerancePercent: decimal.NewFromInt(1)}
	assert.Equal(t, "price spread 3.25% exceeds tolerance 1%", wide.Message())
}

func TestEnvelopeKeepsDiagnosticFields(t *testing.T) {
	in := Envelope{Reason: StaleFeed{Source: "FeedB", ObservedAt: 99, EvaluatedAt: 400, MaxStalenessSecs: 300}}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "STALE_FEED", raw["code"])

	var out Envelope
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Reason, out.Reason)
}

func TestEnvelopeRejectsUnknownCode(t *testing.T) {
	var out Envelope
	err := json.Unmarshal([]byte(`{"code":"NOPE","message":"","details":{}}`), &out)
	assert.Error(t, err)
}

func TestReasonsAreErrors(t *testing.T) {
	var err error = PriceExceedsLimit{OfferedPrice: 2, LimitPrice: 1}
	var target PriceExceedsLimit
	require.True(t, errors.As(err, &target))
	assert.Equal(t, uint64(1), target.LimitPrice)
	assert.Equal(t, "PRICE_EXCEEDS_LIMIT: offered price 2 exceeds limit 1", err.Error())
}
