// Package feed signs and checks price attestations. A feed signs an EIP-712
// typed message over (source, asset, price, observedAt); the gateway recovers
// the signer and compares it with the address registered for that source.
package feed

import (
	"fmt"
	"math/big"

	"github.com/GoPolymarket/guardgate/internal/guardrail"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	DomainName    = "GuardGate Price Feed"
	DomainVersion = "1"

	primaryType = "FeedAttestation"
)

var attestationTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
	},
	primaryType: {
		{Name: "source", Type: "string"},
		{Name: "asset", Type: "string"},
		{Name: "price", Type: "string"},
		{Name: "observedAt", Type: "uint64"},
	},
}

// TypedData builds the EIP-712 message for one attestation. The price is
// carried as its canonical decimal string so no float rounding can creep in.
func TypedData(ev guardrail.FeedEvidence) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       attestationTypes,
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:    DomainName,
			Version: DomainVersion,
		},
		Message: apitypes.TypedDataMessage{
			"source":     ev.Source,
			"asset":      ev.Asset,
			"price":      ev.Price.String(),
			"observedAt": (*math.HexOrDecimal256)(new(big.Int).SetUint64(ev.ObservedAt)),
		},
	}
}

// Digest is the 32-byte hash that gets signed.
func Digest(ev guardrail.FeedEvidence) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(TypedData(ev))
	if err != nil {
		return nil, fmt.Errorf("hash attestation: %w", err)
	}
	return hash, nil
}
