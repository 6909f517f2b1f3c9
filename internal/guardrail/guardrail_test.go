package guardrail

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument() *Document {
	doc := NewDocument(OfferIDFromUUID(uuid.MustParse("6f1c9b1e-0c2a-4a53-9f4e-1b7f7f2b6a11")))
	doc.MaxDebit = 2_000_000_000_000
	doc.ExpiryTime = 1_737_500_300
	doc.AllowedSources = []string{"FeedA", "FeedB"}
	doc.AllowedAssets = []string{"dETH"}
	doc.MaxFillSize = 1_000_000_000
	return doc
}

func TestNewDocumentDefaults(t *testing.T) {
	doc := NewDocument(OfferID{1})
	assert.Equal(t, uint64(60), doc.MaxStalenessSecs)
	assert.Equal(t, uint32(1), doc.QuorumCount)
	assert.True(t, doc.QuorumTolerancePercent.Equal(decimal.NewFromInt(1)))
	assert.True(t, doc.RequireAtomicDvP)
	assert.True(t, doc.ForbidSidePayments)
}

func TestAllowlistsEmptyMeansAny(t *testing.T) {
	doc := NewDocument(OfferID{1})
	assert.True(t, doc.AllowsTaker("anyone"))
	assert.True(t, doc.AllowsSource("FeedZ"))

	doc.AllowedTakers = []string{"bob"}
	doc.AllowedSources = []string{"FeedA"}
	assert.True(t, doc.AllowsTaker("bob"))
	assert.False(t, doc.AllowsTaker("eve"))
	assert.True(t, doc.AllowsSource("FeedA"))
	assert.False(t, doc.AllowsSource("FeedMallory"))
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	doc := testDocument()
	credit := uint64(5)
	doc.MinCredit = &credit

	cp := doc.Clone()
	cp.AllowedSources[0] = "FeedX"
	*cp.MinCredit = 9

	assert.Equal(t, "FeedA", doc.AllowedSources[0])
	assert.Equal(t, uint64(5), *doc.MinCredit)
}

func TestOfferIDTextRoundTrip(t *testing.T) {
	doc := testDocument()
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var out Document
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, doc.OfferID, out.OfferID)

	var bad OfferID
	assert.ErrorIs(t, bad.UnmarshalText([]byte("abcd")), ErrMalformed)
}

func TestDocumentValidate(t *testing.T) {
	assert.NoError(t, testDocument().Validate())

	noExpiry := testDocument()
	noExpiry.ExpiryTime = 0
	assert.ErrorIs(t, noExpiry.Validate(), ErrMalformed)

	negTolerance := testDocument()
	negTolerance.QuorumTolerancePercent = decimal.NewFromInt(-1)
	assert.ErrorIs(t, negTolerance.Validate(), ErrMalformed)

	zeroID := testDocument()
	zeroID.OfferID = OfferID{}
	assert.ErrorIs(t, zeroID.Validate(), ErrMalformed)

	hugeTolerance := testDocument()
	hugeTolerance.QuorumTolerancePercent = decimal.RequireFromString("1e400")
	assert.ErrorIs(t, hugeTolerance.Validate(), ErrMalformed)
}

func TestFillEvidenceValidate(t *testing.T) {
	fill := &FillEvidence{
		TakerID:        "taker-1",
		EvaluationTime: 100,
		FeedEvidence: []FeedEvidence{
			{Source: "FeedA", Asset: "dETH", Price: decimal.NewFromInt(1950), ObservedAt: 99},
		},
	}
	assert.NoError(t, fill.Validate())

	neg := fill.Clone()
	neg.FeedEvidence[0].Price = decimal.NewFromInt(-1)
	err := neg.Validate()
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.Contains(t, err.Error(), "negative price")

	noTaker := fill.Clone()
	noTaker.TakerID = ""
	assert.ErrorIs(t, noTaker.Validate(), ErrMalformed)

	for _, price := range []string{"1e5000000", "1e-19", "1234567890123456789012345678901234567890"} {
		huge := fill.Clone()
		huge.FeedEvidence[0].Price = decimal.RequireFromString(price)
		err := huge.Validate()
		assert.ErrorIs(t, err, ErrMalformed, price)
		assert.Contains(t, err.Error(), "out of range", price)
	}

	edge := fill.Clone()
	edge.FeedEvidence[0].Price = decimal.RequireFromString("0.000000000000000001")
	assert.NoError(t, edge.Validate())

	// the clone must not alias the original evidence
	assert.True(t, fill.FeedEvidence[0].Price.IsPositive())
}

func TestValidateAssets(t *testing.T) {
	doc := testDocument()
	fill := &FillEvidence{FeedEvidence: []FeedEvidence{{Source: "FeedA", Asset: "dBTC"}}}
	assert.ErrorIs(t, doc.ValidateAssets(fill), ErrMalformed)

	doc.AllowedAssets = nil
	assert.NoError(t, doc.ValidateAssets(fill))
}

func TestAgeSaturates(t *testing.T) {
	assert.Equal(t, uint64(0), Age(200, 100))
	assert.Equal(t, uint64(100), Age(100, 200))
	ev := FeedEvidence{ObservedAt: 500}
	assert.True(t, ev.IsFresh(0, 100))
}

func TestSummaryMentionsQuorum(t *testing.T) {
	doc := testDocument()
	doc.QuorumCount = 2
	s := doc.Summary()
	assert.Contains(t, s, "Quorum: 2 sources within 1%")
	assert.Contains(t, s, "Allowed feeds: FeedA, FeedB")
}
