package feed

import (
	"testing"

	"github.com/GoPolymarket/guardgate/internal/guardrail"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s, err := NewSigner(hexutil.Encode(crypto.FromECDSA(key)))
	require.NoError(t, err)
	return s
}

func attestation() guardrail.FeedEvidence {
	return guardrail.FeedEvidence{
		Source:     "FeedA",
		Asset:      "dETH",
		Price:      decimal.RequireFromString("1950.25"),
		ObservedAt: 1_737_499_999,
	}
}

func TestSignAndVerify(t *testing.T) {
	s := newTestSigner(t)
	ev, err := s.Attest(attestation())
	require.NoError(t, err)
	assert.Len(t, ev.Signature, 132)

	v, err := NewVerifier(map[string]string{"feeda": s.Address().Hex()})
	require.NoError(t, err)
	assert.NoError(t, v.Verify([]guardrail.FeedEvidence{ev}))
}

func TestVerifyDetectsTampering(t *testing.T) {
	s := newTestSigner(t)
	ev, err := s.Attest(attestation())
	require.NoError(t, err)

	v, err := NewVerifier(map[string]string{"FeedA": s.Address().Hex()})
	require.NoError(t, err)

	tampered := ev
	tampered.Price = decimal.RequireFromString("1950.26")
	assert.ErrorIs(t, v.Verify([]guardrail.FeedEvidence{tampered}), ErrBadSignature)

	tampered = ev
	tampered.ObservedAt++
	assert.ErrorIs(t, v.Verify([]guardrail.FeedEvidence{tampered}), ErrBadSignature)

	unsigned := attestation()
	assert.ErrorIs(t, v.Verify([]guardrail.FeedEvidence{unsigned}), ErrBadSignature)

	garbage := attestation()
	garbage.Signature = "0x1234"
	assert.ErrorIs(t, v.Verify([]guardrail.FeedEvidence{garbage}), ErrBadSignature)
}

func TestVerifyRejectsOtherSigner(t *testing.T) {
	honest := newTestSigner(t)
	mallory := newTestSigner(t)
	ev, err := mallory.Attest(attestation())
	require.NoError(t, err)

	v, err := NewVerifier(nil)
	require.NoError(t, err)
	v.Register("FeedA", honest.Address())
	assert.ErrorIs(t, v.Verify([]guardrail.FeedEvidence{ev}), ErrBadSignature)
}

func TestUnregisteredSourcesAreSkipped(t *testing.T) {
	v, err := NewVerifier(map[string]string{})
	require.NoError(t, err)
	ev := attestation()
	ev.Source = "FeedMallory"
	assert.NoError(t, v.Verify([]guardrail.FeedEvidence{ev}))
}

func TestNewVerifierRejectsBadAddress(t *testing.T) {
	_, err := NewVerifier(map[string]string{"FeedA": "not-an-address"})
	assert.Error(t, err)
}

func TestDigestIsStable(t *testing.T) {
	a, err := Digest(attestation())
	require.NoError(t, err)
	b, err := Digest(attestation())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other := attestation()
	other.Asset = "dBTC"
	c, err := Digest(other)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
