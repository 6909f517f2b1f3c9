package engine

import (
	"reflect"
	"testing"

	"github.com/GoPolymarket/guardgate/internal/guardrail"
	"github.com/GoPolymarket/guardgate/internal/rejection"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// TestEvaluateDeterminism: Evaluate(g, f) == Evaluate(g, f) for any input,
// diagnostic fields included.
func TestEvaluateDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("evaluation is deterministic", prop.ForAll(
		func(evalOffset, size, price uint64, prices []int64, legs uint32, extra bool) bool {
			doc := scenarioGuardrails()
			fill := &guardrail.FillEvidence{
				TakerID:           "taker-1",
				FillSize:          size,
				FillPrice:         price,
				EvaluationTime:    now + evalOffset,
				TransferLegCount:  legs,
				HasExtraTransfers: extra,
			}
			for i, p := range prices {
				source := "FeedA"
				if i%2 == 1 {
					source = "FeedB"
				}
				fill.FeedEvidence = append(fill.FeedEvidence, guardrail.FeedEvidence{
					Source:     source,
					Asset:      "dETH",
					Price:      decimal.NewFromInt(p),
					ObservedAt: now - uint64(i),
				})
			}

			first := Evaluate(doc, fill)
			second := Evaluate(doc, fill)
			return reflect.DeepEqual(first, second)
		},
		gen.UInt64Range(0, 600),
		gen.UInt64Range(0, 2_000_000_000),
		gen.UInt64Range(0, 3_000_000_000_000),
		gen.SliceOf(gen.Int64Range(0, 3000)),
		gen.UInt32Range(0, 4),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// TestExpiredAlwaysReportsExpiry: once past expiry, no other failure is visible.
func TestExpiredAlwaysReportsExpiry(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("expired offers report OFFER_EXPIRED", prop.ForAll(
		func(late, size, price uint64) bool {
			doc := scenarioGuardrails()
			fill := scenarioFill()
			fill.EvaluationTime = doc.ExpiryTime + late
			fill.FillSize = size
			fill.FillPrice = price
			reason := Evaluate(doc, fill)
			return reason != nil && reason.Code() == rejection.CodeOfferExpired
		},
		gen.UInt64Range(1, 1_000_000),
		gen.UInt64Range(0, 1<<62),
		gen.UInt64Range(0, 1<<62),
	))

	properties.TestingRun(t)
}
