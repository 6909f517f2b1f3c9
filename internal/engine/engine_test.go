package engine

import (
	"testing"

	"github.com/GoPolymarket/guardgate/internal/guardrail"
	"github.com/GoPolymarket/guardgate/internal/rejection"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const now uint64 = 1_737_500_000

func scenarioGuardrails() *guardrail.Document {
	doc := guardrail.NewDocument(guardrail.OfferID{0xaa})
	doc.MaxDebit = 2_000_000_000_000
	doc.ExpiryTime = now + 300
	doc.AllowedSources = []string{"FeedA", "FeedB"}
	doc.MaxStalenessSecs = 300
	doc.QuorumCount = 2
	doc.QuorumTolerancePercent = decimal.RequireFromString("1.0")
	doc.MaxFillSize = 1_000_000_000
	return doc
}

func attestation(source string, price string, age uint64) guardrail.FeedEvidence {
	return guardrail.FeedEvidence{
		Source:     source,
		Asset:      "dETH",
		Price:      decimal.RequireFromString(price),
		ObservedAt: now - age,
		Signature:  "sig_" + source,
	}
}

func scenarioFill() *guardrail.FillEvidence {
	return &guardrail.FillEvidence{
		TakerID:   "taker-1",
		FillSize:  1_000_000_000,
		FillPrice: 1_950_000_000_000,
		FeedEvidence: []guardrail.FeedEvidence{
			attestation("FeedA", "1950", 1),
			attestation("FeedB", "1951", 1),
		},
		EvaluationTime:   now,
		TransferLegCount: 2,
	}
}

func TestScenarioAccepted(t *testing.T) {
	assert.Nil(t, Evaluate(scenarioGuardrails(), scenarioFill()))
}

func TestScenarioUnlistedSource(t *testing.T) {
	fill := scenarioFill()
	fill.FeedEvidence[0] = attestation("FeedMallory", "1950", 1)

	reason := Evaluate(scenarioGuardrails(), fill)
	require.IsType(t, rejection.UnauthorizedSource{}, reason)
	assert.Equal(t, "FeedMallory", reason.(rejection.UnauthorizedSource).Source)
	assert.Equal(t, []string{"FeedA", "FeedB"}, reason.(rejection.UnauthorizedSource).AllowedSources)
}

func TestScenarioStaleFeed(t *testing.T) {
	fill := scenarioFill()
	fill.FeedEvidence[1] = attestation("FeedB", "1951", 301)

	reason := Evaluate(scenarioGuardrails(), fill)
	assert.Equal(t, rejection.StaleFeed{
		Source:           "FeedB",
		ObservedAt:       now - 301,
		EvaluatedAt:      now,
		MaxStalenessSecs: 300,
	}, reason)
}

func TestStalenessBoundaryIsInclusive(t *testing.T) {
	fill := scenarioFill()
	fill.FeedEvidence[0] = attestation("FeedA", "1950", 300)
	assert.Nil(t, Evaluate(scenarioGuardrails(), fill))
}

func TestFutureDatedAttestationIsFresh(t *testing.T) {
	fill := scenarioFill()
	fill.FeedEvidence[0].ObservedAt = now + 1_000
	assert.Nil(t, Evaluate(scenarioGuardrails(), fill))
}

func TestPriceBoundary(t *testing.T) {
	doc := scenarioGuardrails()

	fill := scenarioFill()
	fill.FillPrice = doc.MaxDebit
	assert.Nil(t, Evaluate(doc, fill))

	fill.FillPrice = doc.MaxDebit + 1
	assert.Equal(t, rejection.PriceExceedsLimit{OfferedPrice: doc.MaxDebit + 1, LimitPrice: doc.MaxDebit}, Evaluate(doc, fill))
}

func TestExpiryBoundary(t *testing.T) {
	doc := scenarioGuardrails()

	fill := scenarioFill()
	fill.EvaluationTime = doc.ExpiryTime
	// keep attestations fresh relative to the later evaluation time
	for i := range fill.FeedEvidence {
		fill.FeedEvidence[i].ObservedAt = doc.ExpiryTime
	}
	assert.Nil(t, Evaluate(doc, fill))

	fill.EvaluationTime = doc.ExpiryTime + 1
	assert.Equal(t, rejection.OfferExpired{ExpiredAt: doc.ExpiryTime, AttemptedAt: doc.ExpiryTime + 1}, Evaluate(doc, fill))
}

func TestSizeBoundary(t *testing.T) {
	doc := scenarioGuardrails()
	fill := scenarioFill()
	fill.FillSize = doc.MaxFillSize + 1
	assert.Equal(t, rejection.SizeExceedsMax{OfferedSize: doc.MaxFillSize + 1, MaxSize: doc.MaxFillSize}, Evaluate(doc, fill))
}

func TestFirstFailingCheckWins(t *testing.T) {
	doc := scenarioGuardrails()
	doc.AllowedTakers = []string{"bob"}

	fill := scenarioFill()
	fill.EvaluationTime = doc.ExpiryTime + 10
	fill.FillSize = doc.MaxFillSize * 2
	fill.FillPrice = doc.MaxDebit * 2
	fill.TransferLegCount = 5
	fill.HasExtraTransfers = true
	fill.FeedEvidence = nil

	cases := []struct {
		name string
		fix  func(*guardrail.FillEvidence)
		want rejection.Code
	}{
		{"expired beats everything", func(*guardrail.FillEvidence) {}, rejection.CodeOfferExpired},
		{"taker next", func(f *guardrail.FillEvidence) { f.EvaluationTime = now }, rejection.CodeUnauthorizedTaker},
		{"size next", func(f *guardrail.FillEvidence) { f.TakerID = "bob" }, rejection.CodeSizeExceedsMax},
		{"debit next", func(f *guardrail.FillEvidence) { f.FillSize = 1 }, rejection.CodePriceExceedsLimit},
		{"feeds next", func(f *guardrail.FillEvidence) { f.FillPrice = 1 }, rejection.CodeQuorumNotMet},
		{"transfer pattern next", func(f *guardrail.FillEvidence) { f.FeedEvidence = scenarioFill().FeedEvidence }, rejection.CodeInvalidTransferPattern},
		{"side payment last", func(f *guardrail.FillEvidence) { f.TransferLegCount = 2 }, rejection.CodeSidePaymentDetected},
	}
	for _, tc := range cases {
		tc.fix(fill)
		reason := Evaluate(doc, fill)
		require.NotNil(t, reason, tc.name)
		assert.Equal(t, tc.want, reason.Code(), tc.name)
	}

	fill.HasExtraTransfers = false
	assert.Nil(t, Evaluate(doc, fill))
}

func TestQuorumCountFailureHasNoSpread(t *testing.T) {
	fill := scenarioFill()
	fill.FeedEvidence = fill.FeedEvidence[:1]

	reason := Evaluate(scenarioGuardrails(), fill)
	require.IsType(t, rejection.QuorumNotMet{}, reason)
	q := reason.(rejection.QuorumNotMet)
	assert.Nil(t, q.SpreadPercent)
	assert.Equal(t, 1, q.SourcesProvided)
	assert.Equal(t, uint32(2), q.QuorumRequired)
}

func TestExactQuorumWithZeroSpread(t *testing.T) {
	fill := scenarioFill()
	fill.FeedEvidence[1] = attestation("FeedB", "1950", 1)
	assert.Nil(t, Evaluate(scenarioGuardrails(), fill))
}

func TestSpreadAboveTolerance(t *testing.T) {
	fill := scenarioFill()
	fill.FeedEvidence[1] = attestation("FeedB", "2000", 1)

	reason := Evaluate(scenarioGuardrails(), fill)
	require.IsType(t, rejection.QuorumNotMet{}, reason)
	q := reason.(rejection.QuorumNotMet)
	require.NotNil(t, q.SpreadPercent)
	assert.Equal(t, "2.56410256", q.SpreadPercent.String())
}

func TestSpreadToleranceIsExact(t *testing.T) {
	fill := scenarioFill()
	fill.FeedEvidence[0] = attestation("FeedA", "100000000", 1)
	fill.FeedEvidence[1] = attestation("FeedB", "101000000", 1)
	assert.Nil(t, Evaluate(scenarioGuardrails(), fill), "a spread equal to the tolerance passes")

	// 1.000000000004% rounds to 1 at eight places but is still over.
	fill.FeedEvidence[1] = attestation("FeedB", "101000000.000004", 1)
	reason := Evaluate(scenarioGuardrails(), fill)
	require.IsType(t, rejection.QuorumNotMet{}, reason)
	q := reason.(rejection.QuorumNotMet)
	require.NotNil(t, q.SpreadPercent)
	assert.True(t, q.SpreadPercent.Equal(decimal.NewFromInt(1)), q.SpreadPercent.String())
}

func TestSpreadUsesAllAttestations(t *testing.T) {
	doc := scenarioGuardrails()
	doc.AllowedSources = nil
	fill := scenarioFill()
	fill.FeedEvidence = append(fill.FeedEvidence, attestation("FeedC", "2100", 1))

	reason := Evaluate(doc, fill)
	require.NotNil(t, reason)
	assert.Equal(t, rejection.CodeQuorumNotMet, reason.Code())
}

func TestZeroPriceSkipsSpread(t *testing.T) {
	fill := scenarioFill()
	fill.FeedEvidence[0] = attestation("FeedA", "0", 1)

	assert.NotPanics(t, func() {
		assert.Nil(t, Evaluate(scenarioGuardrails(), fill))
	})
}

func TestSingleAttestationSkipsSpread(t *testing.T) {
	doc := scenarioGuardrails()
	doc.QuorumCount = 1
	fill := scenarioFill()
	fill.FeedEvidence = fill.FeedEvidence[:1]
	assert.Nil(t, Evaluate(doc, fill))
}

func TestAtomicDvPAndSidePaymentsDisabled(t *testing.T) {
	doc := scenarioGuardrails()
	doc.RequireAtomicDvP = false
	doc.ForbidSidePayments = false

	fill := scenarioFill()
	fill.TransferLegCount = 4
	fill.HasExtraTransfers = true
	assert.Nil(t, Evaluate(doc, fill))
}

func TestEvaluateDoesNotMutateInputs(t *testing.T) {
	doc := scenarioGuardrails()
	fill := scenarioFill()
	docCopy := doc.Clone()
	fillCopy := fill.Clone()

	_ = Evaluate(doc, fill)
	assert.Equal(t, docCopy, doc)
	assert.Equal(t, fillCopy, *fill)
}

func TestSpreadPercent(t *testing.T) {
	got := SpreadPercent(decimal.NewFromInt(1950), decimal.NewFromInt(1951))
	assert.Equal(t, "0.05128205", got.String())
}
